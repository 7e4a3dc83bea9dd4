package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"contract_gate/internal/broadcast"
	"contract_gate/internal/check"
	"contract_gate/internal/config"
	"contract_gate/internal/dataType"
	"contract_gate/internal/metrics"
	"contract_gate/internal/p2p"
	"contract_gate/internal/policy"
	"contract_gate/internal/utils"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	shutdownTimeout       = 5 * time.Second
	deferredFlushInterval = time.Second
)

// Loggers hands out per-component loggers; *utils.LogxManager satisfies it.
type Loggers interface {
	Logger(component string) *zap.Logger
}

// Node wires the policy subsystem to libp2p and the admin HTTP endpoint.
type Node struct {
	cfg    *config.MainConfig
	logger *zap.Logger

	Store     *policy.Store
	Cache     *dataType.PeerPolicyCache
	Evaluator *check.Evaluator
	Planner   *broadcast.Planner
	Gossip    *GossipChannel

	flood     *check.PeerFlood
	cancel    context.CancelFunc
	host      host.Host
	transport *p2p.Transport
	rpcServer *rpc.Server
	http      *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewNode creates the libp2p host from cfg and builds the node on it.
func NewNode(cfg *config.MainConfig, genesis *config.Policy, logs Loggers) (*Node, error) {
	h, err := p2p.NewHost(p2p.HostConfig{
		ListenAddrs:     cfg.P2P.ListenAddrs,
		IdentityKeyPath: cfg.P2P.IdentityKey,
	})
	if err != nil {
		return nil, err
	}
	n, err := NewNodeWithHost(cfg, genesis, logs, h)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	return n, nil
}

// NewNodeWithHost builds the node on an existing host. The node owns h
// from here on.
func NewNodeWithHost(cfg *config.MainConfig, genesis *config.Policy, logs Loggers, h host.Host) (*Node, error) {
	if genesis == nil {
		genesis = &config.Policy{}
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	store := policy.NewStore(genesis.Whitelist, genesis.Blacklist, logs.Logger(utils.LogPolicy))
	cache := dataType.NewPeerPolicyCache(cfg.P2P.CacheBuckets)
	evaluator := check.NewEvaluator(store, cache, m)
	admission := logs.Logger(utils.LogAdmission)
	rate, err := cfg.P2P.Rate()
	if err != nil {
		return nil, err
	}
	flood := check.NewPeerFlood(rate, cfg.P2P.CacheBuckets)
	gossip := NewGossipChannel(store, cache, flood, logs.Logger(utils.LogGossip), m)

	rpcLogger := logs.Logger(utils.LogRPC)
	rpcServer, err := NewRPCServer(NewPolicyAPI(store, rpcLogger))
	if err != nil {
		return nil, fmt.Errorf("register admin api: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", rpcServer)

	n := &Node{
		cfg:       cfg,
		logger:    rpcLogger,
		Store:     store,
		Cache:     cache,
		Evaluator: evaluator,
		Planner:   broadcast.NewPlanner(broadcast.NewFilter(evaluator, admission), admission),
		Gossip:    gossip,
		flood:     flood,
		host:      h,
		transport: p2p.NewTransport(h, gossip, logs.Logger(utils.LogP2P), cfg.P2P.SendTimeout),
		rpcServer: rpcServer,
		http: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	return n, nil
}

func (n *Node) Host() host.Host { return n.host }

// RPCAddr is the bound admin listener address, valid after Start.
func (n *Node) RPCAddr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return nil
	}
	return n.listener.Addr()
}

// Start attaches the transport, dials bootstrap peers and opens the admin
// listener. Serve errors are delivered on the returned channel.
func (n *Node) Start(ctx context.Context) (<-chan error, error) {
	ln, err := net.Listen("tcp", n.cfg.RPCListen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", n.cfg.RPCListen, err)
	}
	bg, cancel := context.WithCancel(context.Background())
	n.mu.Lock()
	n.listener = ln
	n.cancel = cancel
	n.mu.Unlock()
	go n.flood.Run(bg)
	if n.flood != nil {
		go n.Gossip.RunDeferred(bg, deferredFlushInterval)
	}

	n.transport.Start()
	if len(n.cfg.P2P.BootstrapPeers) > 0 {
		connected := n.transport.Bootstrap(ctx, n.cfg.P2P.BootstrapPeers)
		n.logger.Info("bootstrap finished",
			zap.Int("connected", connected), zap.Int("configured", len(n.cfg.P2P.BootstrapPeers)))
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := n.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	n.logger.Info("node started",
		zap.String("node", n.cfg.NodeName),
		zap.Stringer("rpc", ln.Addr()),
		zap.Stringer("peerID", n.host.ID()),
	)
	return serveErr, nil
}

// Stop shuts down in reverse order of Start.
func (n *Node) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	n.mu.Lock()
	started := n.listener != nil
	if n.cancel != nil {
		n.cancel()
	}
	n.mu.Unlock()

	var errs []error
	if started {
		if err := n.http.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	n.rpcServer.Stop()
	if err := n.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	n.Gossip.Close()
	if err := n.host.Close(); err != nil {
		errs = append(errs, err)
	}
	n.logger.Info("node stopped", zap.String("node", n.cfg.NodeName))
	return errors.Join(errs...)
}

// Run blocks until ctx is done or the admin server fails.
func (n *Node) Run(ctx context.Context) error {
	serveErr, err := n.Start(ctx)
	if err != nil {
		_ = n.Stop()
		return err
	}
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil {
			n.logger.Error("admin server failed", zap.Error(err))
		}
	}
	if stopErr := n.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}
