// Package node assembles the daemon: state store, asset registry,
// offer engine and RPC server, wired through the service container.
package node

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/barterlabs/goBarterd/internal/config"
	"github.com/barterlabs/goBarterd/internal/core/assets"
	"github.com/barterlabs/goBarterd/internal/core/oracle"
	"github.com/barterlabs/goBarterd/internal/core/tx"
	"github.com/barterlabs/goBarterd/internal/di"
	"github.com/barterlabs/goBarterd/internal/rpc"
	"github.com/barterlabs/goBarterd/internal/storage/statestore"
)

// Version is the daemon release string.
const Version = "0.1.0"

// Node is a fully wired daemon instance.
type Node struct {
	cfg       *config.Config
	logger    *log.Logger
	container *di.Container

	store     *statestore.Store
	feed      *oracle.StaticSource
	prices    *oracle.CachedSource
	registry  *assets.Registry
	engine    *tx.Engine
	rpcServer *rpc.Server
	tokens    map[uint32]*assets.Token

	startTime    time.Time
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	closeOnce    sync.Once
	closeErr     error
}

// New builds a node from the configuration, opening the state store it
// names.
func New(cfg *config.Config, logger *log.Logger) (*Node, error) {
	return NewWithStore(cfg, nil, logger)
}

// NewWithStore builds a node over an already-open store. The caller
// keeps ownership questions simple: the node closes the store on
// Close either way.
func NewWithStore(cfg *config.Config, store *statestore.Store, logger *log.Logger) (*Node, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[node] ", log.LstdFlags)
	}
	n := &Node{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		tokens:     make(map[uint32]*assets.Token),
		startTime:  time.Now(),
		shutdownCh: make(chan struct{}),
	}
	if err := n.wire(); err != nil {
		if n.store != nil {
			n.store.Close()
		}
		return nil, err
	}
	return n, nil
}

// wire builds the service graph. Resolving the RPC server pulls in
// every dependency beneath it.
func (n *Node) wire() error {
	c := di.New()
	c.Register(di.ServiceConfig, n.cfg)

	c.RegisterBuilder(di.ServiceStateStore, func(*di.Container) (interface{}, error) {
		if n.store != nil {
			return n.store, nil
		}
		return openStore(n.cfg)
	})

	c.RegisterBuilder(di.ServicePriceFeed, func(*di.Container) (interface{}, error) {
		return oracle.NewStaticSource(), nil
	})

	c.RegisterBuilder(di.ServiceRegistry, func(c *di.Container) (interface{}, error) {
		store, err := c.Get(di.ServiceStateStore)
		if err != nil {
			return nil, err
		}
		feed, err := c.Get(di.ServicePriceFeed)
		if err != nil {
			return nil, err
		}
		n.store = store.(*statestore.Store)
		n.feed = feed.(*oracle.StaticSource)

		cacheSize := n.cfg.Engine.OracleCacheSize
		if cacheSize <= 0 {
			cacheSize = 256
		}
		maxAge := time.Duration(n.cfg.Engine.OracleMaxAgeSecs) * time.Second
		if maxAge <= 0 {
			maxAge = time.Minute
		}
		if n.prices, err = oracle.NewCachedSource(n.feed, cacheSize, maxAge); err != nil {
			return nil, err
		}

		registry, tokens, err := buildAssets(n.cfg, n.store, n.feed, n.prices)
		if err != nil {
			return nil, err
		}
		n.tokens = tokens
		return registry, nil
	})

	c.RegisterBuilder(di.ServiceEngine, func(c *di.Container) (interface{}, error) {
		registry, err := c.Get(di.ServiceRegistry)
		if err != nil {
			return nil, err
		}
		n.registry = registry.(*assets.Registry)
		n.engine = tx.NewEngine(tx.EngineConfig{
			Registry: n.registry,
			FeeBps:   n.cfg.Engine.FeeBps,
			Persist:  storePersister{store: n.store},
			Logger:   n.logger,
		})
		if err := n.restoreOffers(); err != nil {
			return nil, err
		}
		return n.engine, nil
	})

	c.RegisterBuilder(di.ServiceRPCServer, func(c *di.Container) (interface{}, error) {
		if _, err := c.Get(di.ServiceEngine); err != nil {
			return nil, err
		}
		service := &rpc.Service{
			Engine:    n.engine,
			Owner:     n.cfg.Engine.Owner,
			NodeName:  n.cfg.NodeName,
			Version:   Version,
			Backend:   n.store.Name(),
			StartTime: n.startTime,
			AddAsset:  n.addAsset,
		}
		return rpc.NewServer(service, n.logger), nil
	})

	n.container = c
	server, err := c.Get(di.ServiceRPCServer)
	if err != nil {
		return err
	}
	n.rpcServer = server.(*rpc.Server)
	return nil
}

// openStore opens the configured backend. Standalone mode always runs
// in memory, whatever the config says.
func openStore(cfg *config.Config) (*statestore.Store, error) {
	scfg := &statestore.Config{
		Path:       cfg.Database.Path,
		Backend:    cfg.Database.Backend,
		Compressor: cfg.Database.Compressor,
		CacheSize:  cfg.Database.CacheSize,
		CacheMB:    cfg.Database.CacheMB,
	}
	if cfg.Standalone {
		scfg.Backend = "memory"
	}
	return statestore.Open(scfg)
}

// addAsset backs the add_asset RPC method.
func (n *Node) addAsset(caller string, spec rpc.AssetSpec) error {
	if spec.ID == 0 {
		return fmt.Errorf("node: asset id must be non-zero")
	}
	if spec.Symbol == "" {
		return fmt.Errorf("node: asset symbol is required")
	}
	if spec.Decimals > 18 || spec.OracleDecimals > 18 {
		return fmt.Errorf("node: asset decimals exceed 18")
	}
	token, ledger, err := buildAsset(n.store, n.feed, assetSeed{
		ID:             spec.ID,
		Symbol:         spec.Symbol,
		Decimals:       spec.Decimals,
		OracleDecimals: spec.OracleDecimals,
		Price:          spec.Price,
		Balances:       spec.Balances,
		Shares:         spec.Shares,
	})
	if err != nil {
		return err
	}
	if err := n.registry.Add(caller, assets.Entry{
		ID:             spec.ID,
		Symbol:         spec.Symbol,
		Token:          token,
		Oracle:         n.prices,
		Dividend:       ledger,
		TokenDecimals:  spec.Decimals,
		OracleDecimals: spec.OracleDecimals,
	}); err != nil {
		return err
	}
	n.tokens[spec.ID] = token
	n.logger.Printf("registered asset %d (%s)", spec.ID, spec.Symbol)
	return nil
}

// Engine returns the offer engine.
func (n *Node) Engine() *tx.Engine { return n.engine }

// Registry returns the asset registry.
func (n *Node) Registry() *assets.Registry { return n.registry }

// RPC returns the JSON-RPC server, also usable as an http.Handler.
func (n *Node) RPC() *rpc.Server { return n.rpcServer }

// Container returns the service container, for introspection.
func (n *Node) Container() *di.Container { return n.container }

// Run serves RPC until Stop is called or the listener fails, then
// snapshots and closes the store.
func (n *Node) Run() error {
	n.logger.Printf("%s %s starting, backend %s, %d assets",
		n.cfg.NodeName, Version, n.store.Name(), len(n.tokens))
	serveErr := n.rpcServer.ListenAndServe(n.cfg.Server.Address(), n.shutdownCh)
	if closeErr := n.Close(); closeErr != nil {
		if serveErr == nil {
			return closeErr
		}
		n.logger.Printf("shutdown: %v", closeErr)
	}
	return serveErr
}

// Stop asks a running node to shut down. Safe to call more than once.
func (n *Node) Stop() {
	n.shutdownOnce.Do(func() { close(n.shutdownCh) })
}

// Close snapshots mutable state and closes the store. Safe to call more
// than once; later calls return the first result.
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		if err := n.Snapshot(); err != nil {
			n.closeErr = fmt.Errorf("node: snapshot: %w", err)
		}
		if err := n.store.Close(); err != nil && n.closeErr == nil {
			n.closeErr = err
		}
	})
	return n.closeErr
}
