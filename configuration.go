package ratebucket

import "fmt"

// Configuration is an ordered, non-empty list of Bandwidth limits. The
// effective limit of a Configuration at any moment is the most restrictive
// of its bandwidths (§3) — enforced by the algorithm always taking a
// min/max across all bandwidths, never by Configuration itself.
type Configuration struct {
	bandwidths []Bandwidth
}

// NewConfiguration validates and wraps an ordered list of bandwidths.
func NewConfiguration(bandwidths ...Bandwidth) (Configuration, error) {
	if len(bandwidths) == 0 {
		return Configuration{}, fmt.Errorf("%w: configuration requires at least one bandwidth", ErrInvalidArgument)
	}

	seen := make(map[string]struct{}, len(bandwidths))
	for _, b := range bandwidths {
		if b.initialTokens < 0 || b.initialTokens > b.capacity {
			return Configuration{}, fmt.Errorf("%w: initialTokens must be in [0, capacity=%d], got %d", ErrInvalidArgument, b.capacity, b.initialTokens)
		}
		if b.id == "" {
			continue
		}
		if _, dup := seen[b.id]; dup {
			return Configuration{}, fmt.Errorf("%w: duplicate bandwidth id %q", ErrInvalidArgument, b.id)
		}
		seen[b.id] = struct{}{}
	}

	cfg := Configuration{bandwidths: make([]Bandwidth, len(bandwidths))}
	copy(cfg.bandwidths, bandwidths)
	return cfg, nil
}

// Bandwidths returns the configuration's bandwidths in declaration order.
// The returned slice is a copy; mutating it does not affect the
// Configuration.
func (c Configuration) Bandwidths() []Bandwidth {
	out := make([]Bandwidth, len(c.bandwidths))
	copy(out, c.bandwidths)
	return out
}

// Len returns the number of bandwidths in the configuration.
func (c Configuration) Len() int { return len(c.bandwidths) }

// ConfigurationBuilder accumulates Bandwidth values fluently. It exists for
// the DSL convenience callers expect from the distilled spec's §4.1
// ("Helper constructor"); the core algorithm never depends on it, only on
// the Configuration it produces.
type ConfigurationBuilder struct {
	bandwidths []Bandwidth
	err        error
}

// NewConfigurationBuilder returns an empty builder.
func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{}
}

// AddLimit appends a bandwidth to the configuration under construction.
// Returns the builder for chaining.
func (cb *ConfigurationBuilder) AddLimit(b Bandwidth) *ConfigurationBuilder {
	cb.bandwidths = append(cb.bandwidths, b)
	return cb
}

// Build validates the accumulated bandwidths and returns the Configuration.
func (cb *ConfigurationBuilder) Build() (Configuration, error) {
	if cb.err != nil {
		return Configuration{}, cb.err
	}
	return NewConfiguration(cb.bandwidths...)
}
