package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegistry_AllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("database", time.Second, func(ctx context.Context) error { return nil })
	r.Register("algod", time.Second, func(ctx context.Context) error { return nil })

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Error("expected aggregate healthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "database" || statuses[1].Name != "algod" {
		t.Errorf("probe order not preserved: %+v", statuses)
	}
}

func TestRegistry_OneUnavailable(t *testing.T) {
	r := NewRegistry()
	r.Register("database", time.Second, func(ctx context.Context) error { return nil })
	r.Register("algod", time.Second, func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Error("expected aggregate unhealthy")
	}
	if statuses[1].Healthy || statuses[1].Detail != "connection refused" {
		t.Errorf("expected failure detail preserved, got %+v", statuses[1])
	}
	if !statuses[0].Healthy {
		t.Errorf("healthy probe dragged down: %+v", statuses[0])
	}
}

func TestRegistry_StuckProbeTimesOut(t *testing.T) {
	r := NewRegistry()
	r.Register("database", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Error("stuck probe should report unhealthy")
	}
	if statuses[0].Detail == "" {
		t.Error("expected timeout detail")
	}
}

func TestRegistry_Empty(t *testing.T) {
	healthy, statuses := NewRegistry().CheckAll(context.Background())
	if !healthy {
		t.Error("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Errorf("expected no statuses, got %d", len(statuses))
	}
}
