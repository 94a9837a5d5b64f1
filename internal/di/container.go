// Package di holds the daemon's service container. Services register
// under well-known names, either eagerly or through builders resolved
// on first use.
package di

import (
	"errors"
	"sort"
	"sync"
)

// Well-known service names.
const (
	ServiceConfig     = "config"
	ServiceStateStore = "statestore"
	ServicePriceFeed  = "oracle.feed"
	ServiceRegistry   = "assets.registry"
	ServiceEngine     = "tx.engine"
	ServiceRPCServer  = "rpc.server"
)

// Builder constructs a service, resolving its dependencies through the
// container.
type Builder func(c *Container) (interface{}, error)

// Container maps service names to instances and lazy builders.
type Container struct {
	mu       sync.Mutex
	services map[string]interface{}
	builders map[string]Builder
}

// New returns an empty container.
func New() *Container {
	return &Container{
		services: make(map[string]interface{}),
		builders: make(map[string]Builder),
	}
}

// Register stores an already-built service under name.
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterBuilder stores a builder invoked the first time name is
// resolved.
func (c *Container) RegisterBuilder(name string, builder Builder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builders[name] = builder
}

// Get resolves name, building it if needed. Built services are cached.
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.Lock()
	if service, ok := c.services[name]; ok {
		c.mu.Unlock()
		return service, nil
	}
	builder, ok := c.builders[name]
	c.mu.Unlock()
	if !ok {
		return nil, errors.New("di: service not registered: " + name)
	}

	// Builders may resolve their own dependencies, so build outside the
	// lock.
	service, err := builder(c)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.services[name]; ok {
		return cached, nil
	}
	c.services[name] = service
	return service, nil
}

// MustGet resolves name or panics. For wiring paths where a missing
// service is a programming error.
func (c *Container) MustGet(name string) interface{} {
	service, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return service
}

// Has reports whether name is registered, built or not.
func (c *Container) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.services[name]; ok {
		return true
	}
	_, ok := c.builders[name]
	return ok
}

// ServiceNames returns every registered name, sorted.
func (c *Container) ServiceNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]struct{}, len(c.services)+len(c.builders))
	for name := range c.services {
		seen[name] = struct{}{}
	}
	for name := range c.builders {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
