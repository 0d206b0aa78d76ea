// Package health serves the standard gRPC health service for the
// storefront, fed by periodic checks of its dependencies.
package health

import (
	"context"
	"log"
	"net"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	SERVICE_NAME   = "bookletku.Storefront"
	CHECK_INTERVAL = 15 * time.Second
	CHECK_TIMEOUT  = 5 * time.Second
)

type Check func(ctx context.Context) error

type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	checks map[string]Check
	ready  func() bool

	mu     sync.RWMutex
	last   map[string]Result
	stop   chan struct{}
	closed sync.Once
}

// NewServer registers the health and reflection services. ready gates the
// overall status on top of the checks; it may be nil.
func NewServer(checks map[string]Check, ready func() bool) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		checks: checks,
		ready:  ready,
		last:   make(map[string]Result),
		stop:   make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(SERVICE_NAME, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Update runs every check once and publishes the outcome.
func (s *Server) Update(ctx context.Context) map[string]Result {
	ctx, cancel := context.WithTimeout(ctx, CHECK_TIMEOUT)
	defer cancel()

	results := make(map[string]Result, len(s.checks))
	serving := s.ready == nil || s.ready()
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			results[name] = Result{Status: "unavailable", Message: err.Error()}
			serving = false
			continue
		}
		results[name] = Result{Status: "healthy", Message: "Service is responding"}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(SERVICE_NAME, status)

	s.mu.Lock()
	s.last = results
	s.mu.Unlock()
	return results
}

// Last returns the results of the latest Update.
func (s *Server) Last() map[string]Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Result, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}

// Unavailable lists the checks that failed in the latest Update.
func (s *Server) Unavailable() []string {
	var names []string
	for name, r := range s.Last() {
		if r.Status != "healthy" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Serve runs the checks on an interval and serves gRPC on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.Update(context.Background())
	go s.watch(CHECK_INTERVAL)

	log.Printf("gRPC health service listening on %s", lis.Addr())
	return s.grpc.Serve(lis)
}

func (s *Server) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Update(context.Background())
		}
	}
}

func (s *Server) Stop() {
	s.closed.Do(func() {
		close(s.stop)
		s.health.Shutdown()
		s.grpc.GracefulStop()
	})
}
