package health

import (
	"context"
	"errors"
	"reflect"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func status(t *testing.T, s *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.Status
}

func TestUpdateFollowsChecks(t *testing.T) {
	var redisErr error
	s := NewServer(map[string]Check{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return redisErr },
	}, nil)
	defer s.Stop()

	if got := status(t, s, SERVICE_NAME); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status before first check = %v", got)
	}

	s.Update(context.Background())
	if got := status(t, s, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("overall status = %v, want SERVING", got)
	}

	redisErr = errors.New("connection refused")
	results := s.Update(context.Background())
	if results["redis"].Status != "unavailable" || results["database"].Status != "healthy" {
		t.Errorf("results = %+v", results)
	}
	if got := status(t, s, SERVICE_NAME); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status with redis down = %v, want NOT_SERVING", got)
	}
	if got := s.Unavailable(); !reflect.DeepEqual(got, []string{"redis"}) {
		t.Errorf("unavailable = %v", got)
	}
}

func TestReadyGatesServing(t *testing.T) {
	ready := false
	s := NewServer(nil, func() bool { return ready })
	defer s.Stop()

	s.Update(context.Background())
	if got := status(t, s, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status while loading = %v", got)
	}
	ready = true
	s.Update(context.Background())
	if got := status(t, s, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status when ready = %v", got)
	}
}
