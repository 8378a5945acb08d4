package overhead

import (
	"slices"

	"github.com/sarchlab/rowpressure/mem/cache"
	"github.com/sarchlab/rowpressure/mem/dram/rowcounter"
	"github.com/sarchlab/rowpressure/sim"
)

// Builder can build estimators.
type Builder struct {
	config       Config
	cacheBuilder cache.Builder
	rowConfig    rowcounter.Config
	hooks        []sim.Hook
}

// MakeBuilder creates a builder with the default model, tracking cache, and
// DRAM organization.
func MakeBuilder() Builder {
	return Builder{
		config:       DefaultConfig(),
		cacheBuilder: cache.MakeBuilder(),
		rowConfig:    rowcounter.DefaultConfig(),
	}
}

// WithConfig sets the constants of the overhead model.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// WithCacheBuilder sets how the tracking cache is built.
func (b Builder) WithCacheBuilder(cacheBuilder cache.Builder) Builder {
	b.cacheBuilder = cacheBuilder
	return b
}

// WithRowCounterConfig sets the DRAM organization of the row counters.
func (b Builder) WithRowCounterConfig(config rowcounter.Config) Builder {
	b.rowConfig = config
	return b
}

// WithHook registers a hook on the estimator.
func (b Builder) WithHook(hook sim.Hook) Builder {
	b.hooks = append(slices.Clip(b.hooks), hook)
	return b
}

// Build creates an estimator that has not seen any event.
func (b Builder) Build() (*Estimator, error) {
	err := b.config.Validate()
	if err != nil {
		return nil, err
	}

	c, err := b.cacheBuilder.Build()
	if err != nil {
		return nil, err
	}

	counters, err := rowcounter.New(b.rowConfig)
	if err != nil {
		return nil, err
	}

	e := &Estimator{
		HookableBase:    sim.NewHookableBase(),
		config:          b.config,
		cache:           c,
		counters:        counters,
		windowRowCounts: make(map[uint64]uint64),
	}

	for _, h := range b.hooks {
		e.AcceptHook(h)
	}

	return e, nil
}
