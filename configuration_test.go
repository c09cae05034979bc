package ratebucket

import (
	"errors"
	"testing"
	"time"
)

func TestNewConfigurationRejectsEmpty(t *testing.T) {
	_, err := NewConfiguration()
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNewConfigurationRejectsDuplicateIds(t *testing.T) {
	a := Simple(100, time.Second).WithId("shared")
	b := Simple(1000, time.Minute).WithId("shared")
	_, err := NewConfiguration(a, b)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for duplicate id, got %v", err)
	}
}

func TestNewConfigurationAllowsMultipleUnidentified(t *testing.T) {
	a := Simple(100, time.Second)
	b := Simple(1000, time.Minute)
	cfg, err := NewConfiguration(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cfg.Len())
	}
}

func TestConfigurationBandwidthsIsACopy(t *testing.T) {
	cfg, err := NewConfiguration(Simple(10, time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bws := cfg.Bandwidths()
	bws[0] = bws[0].WithId("mutated")
	if cfg.Bandwidths()[0].Id() != "" {
		t.Errorf("Configuration.Bandwidths() leaked a mutable backing array")
	}
}

func TestConfigurationBuilder(t *testing.T) {
	cfg, err := NewConfigurationBuilder().
		AddLimit(Simple(100, time.Second).WithId("burst")).
		AddLimit(Simple(1000, time.Minute).WithId("sustained")).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cfg.Len())
	}
}
