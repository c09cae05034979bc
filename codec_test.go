package ratebucket

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBandwidthRoundTrip(t *testing.T) {
	b := Simple(100, time.Minute).WithId("burst").WithInitialTokens(42)
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out Bandwidth
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !b.Equal(out) {
		t.Errorf("round-tripped bandwidth differs: got %+v, want %+v", out, b)
	}
}

func TestConfigurationRoundTrip(t *testing.T) {
	cfg, err := NewConfiguration(
		Simple(100, time.Second).WithId("burst"),
		Simple(10000, time.Hour).WithId("sustained"),
	)
	if err != nil {
		t.Fatalf("NewConfiguration: %v", err)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out Configuration
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !cfg.Equal(out) {
		t.Errorf("round-tripped configuration differs")
	}
}

func TestBucketStateRoundTrip(t *testing.T) {
	cfg, err := NewConfiguration(Simple(100, time.Second))
	if err != nil {
		t.Fatalf("NewConfiguration: %v", err)
	}
	state := NewBucketState(cfg, 12345)
	_, state = tryConsume(cfg, state, 12345, 30)

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out BucketState
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !state.Equal(out) {
		t.Errorf("round-tripped state differs")
	}
}
