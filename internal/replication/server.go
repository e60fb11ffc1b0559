// Package replication mirrors the simulation's event stream onto NATS.
package replication

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"go.uber.org/zap"
)

// EmbeddedServer runs a NATS server inside the process for single-host
// deployments and tests.
type EmbeddedServer struct {
	ns *server.Server

	startupTimeout time.Duration
	host           string
	port           int
	log            *zap.Logger
}

type ServerOpt func(*EmbeddedServer)

func WithStartTimeout(d time.Duration) ServerOpt {
	return func(s *EmbeddedServer) { s.startupTimeout = d }
}

func WithHost(host string) ServerOpt {
	return func(s *EmbeddedServer) { s.host = host }
}

// WithPort sets the client port. server.RANDOM_PORT picks a free one.
func WithPort(port int) ServerOpt {
	return func(s *EmbeddedServer) { s.port = port }
}

func NewEmbeddedServer(log *zap.Logger, opts ...ServerOpt) (*EmbeddedServer, error) {
	s := &EmbeddedServer{
		startupTimeout: 10 * time.Second,
		host:           "127.0.0.1",
		port:           server.DEFAULT_PORT,
		log:            log,
	}
	for _, opt := range opts {
		opt(s)
	}

	ns, err := server.NewServer(&server.Options{
		Host:   s.host,
		Port:   s.port,
		NoSigs: true,
		NoLog:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	s.ns = ns
	return s, nil
}

// Start launches the server and waits until it accepts clients.
func (s *EmbeddedServer) Start() error {
	go s.ns.Start()
	if !s.ns.ReadyForConnections(s.startupTimeout) {
		s.ns.Shutdown()
		return fmt.Errorf("nats server not ready for connections after %s", s.startupTimeout)
	}
	s.log.Info("nats server listening", zap.String("url", s.ns.ClientURL()))
	return nil
}

func (s *EmbeddedServer) ClientURL() string {
	return s.ns.ClientURL()
}

func (s *EmbeddedServer) Shutdown() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
