package di

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	c := New()
	c.Register(ServiceConfig, "cfg")

	got, err := c.Get(ServiceConfig)
	require.NoError(t, err)
	assert.Equal(t, "cfg", got)

	_, err = c.Get(ServiceEngine)
	assert.Error(t, err)
}

func TestBuilderRunsOnce(t *testing.T) {
	c := New()
	calls := 0
	c.RegisterBuilder(ServiceStateStore, func(*Container) (interface{}, error) {
		calls++
		return calls, nil
	})

	first := c.MustGet(ServiceStateStore)
	second := c.MustGet(ServiceStateStore)
	assert.Equal(t, 1, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestBuilderError(t *testing.T) {
	c := New()
	boom := errors.New("boom")
	c.RegisterBuilder(ServiceRegistry, func(*Container) (interface{}, error) {
		return nil, boom
	})

	_, err := c.Get(ServiceRegistry)
	assert.ErrorIs(t, err, boom)
	assert.True(t, c.Has(ServiceRegistry))
}

func TestBuilderResolvesDependencies(t *testing.T) {
	c := New()
	c.Register(ServiceConfig, 2)
	c.RegisterBuilder(ServiceEngine, func(c *Container) (interface{}, error) {
		base, err := c.Get(ServiceConfig)
		if err != nil {
			return nil, err
		}
		return base.(int) * 10, nil
	})

	assert.Equal(t, 20, c.MustGet(ServiceEngine))
	assert.Equal(t, []string{ServiceConfig, ServiceEngine}, c.ServiceNames())
}
