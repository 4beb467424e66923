package summary

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/metricsafe-go/metricsafe"
	"github.com/metricsafe-go/metricsafe/internal/util"
	"github.com/metricsafe-go/metricsafe/snapshot"
)

// The quantile dimension is reserved in the Prometheus data model for
// summaries and cannot be used as a label name.
const reservedLabelName = "quantile"

// Builder builds Summary instances. Configuration faults are collected
// and reported together by Build.
//
// This type is not concurrency safe.
type Builder struct {
	name               string
	help               string
	unit               string
	labelNames         []string
	quantiles          []builderQuantile
	maxAgeSeconds      int64
	ageBuckets         int
	exemplarsEnabled   bool
	newExemplarSampler func() metricsafe.ExemplarSampler
	clock              metricsafe.Clock
}

type builderQuantile struct {
	phi     float64
	epsilon float64
}

// NewBuilder creates a Builder with the process-wide defaults.
func NewBuilder(name string) *Builder {
	return NewBuilderFromConfig(metricsafe.DefaultConfig(), name)
}

// NewBuilderFromConfig creates a Builder with defaults taken from the
// given Config.
func NewBuilderFromConfig(config metricsafe.Config, name string) *Builder {
	return &Builder{
		name:             name,
		maxAgeSeconds:    config.SummaryMaxAgeSeconds,
		ageBuckets:       config.SummaryNumberOfAgeBuckets,
		exemplarsEnabled: config.ExemplarsEnabled,
		clock:            metricsafe.SystemClock{},
	}
}

func (b *Builder) WithHelp(help string) *Builder {
	b.help = help
	return b
}

func (b *Builder) WithUnit(unit string) *Builder {
	b.unit = unit
	return b
}

func (b *Builder) WithLabelNames(names ...string) *Builder {
	b.labelNames = names
	return b
}

// WithQuantile tracks the given quantile with a default error margin:
// 0.001 if φ <= 0.01 or φ >= 0.99, 0.005 if φ <= 0.02 or φ >= 0.98, and
// 0.01 otherwise.
func (b *Builder) WithQuantile(phi float64) *Builder {
	return b.WithQuantileEpsilon(phi, defaultEpsilon(phi))
}

// WithQuantileEpsilon tracks the given quantile with an explicit error
// margin, i.e. with epsilon 0.001 the 0.95 quantile will be somewhere
// between the 0.949 and 0.951 quantiles. Two special cases:
//
//   - WithQuantileEpsilon(0.0, 0.0) gives the exact minimum observed value
//   - WithQuantileEpsilon(1.0, 0.0) gives the exact maximum observed value
//
// Quantiles are emitted in the order they were added.
func (b *Builder) WithQuantileEpsilon(phi, epsilon float64) *Builder {
	b.quantiles = append(b.quantiles, builderQuantile{phi: phi, epsilon: epsilon})
	return b
}

// WithMaxAgeSeconds sets the size of the moving time window the
// quantiles are relative to. Default 300.
func (b *Builder) WithMaxAgeSeconds(maxAgeSeconds int64) *Builder {
	b.maxAgeSeconds = maxAgeSeconds
	return b
}

// WithNumberOfAgeBuckets sets how smoothly the time window moves
// forward. A 5 minute window with 5 age buckets moves forward every
// minute by one minute. Default 5.
func (b *Builder) WithNumberOfAgeBuckets(ageBuckets int) *Builder {
	b.ageBuckets = ageBuckets
	return b
}

func (b *Builder) WithExemplarsEnabled(enabled bool) *Builder {
	b.exemplarsEnabled = enabled
	return b
}

// WithExemplarSamplerProvider sets the factory for per-data-point
// exemplar samplers. Without a provider no exemplars are sampled even
// when exemplars are enabled.
func (b *Builder) WithExemplarSamplerProvider(provider func() metricsafe.ExemplarSampler) *Builder {
	b.newExemplarSampler = provider
	return b
}

// WithClock replaces the wall-clock source, for tests.
func (b *Builder) WithClock(clock metricsafe.Clock) *Builder {
	b.clock = clock
	return b
}

func defaultEpsilon(phi float64) float64 {
	switch {
	case phi <= 0.01 || phi >= 0.99:
		return 0.001
	case phi <= 0.02 || phi >= 0.98:
		return 0.005
	default:
		return 0.01
	}
}

// Build validates the configuration and creates the Summary. All
// configuration faults are reported in one error.
func (b *Builder) Build() (*Summary, error) {
	var errs error
	if b.name == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: name is required", metricsafe.ErrConfiguration))
	}
	if b.maxAgeSeconds <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: maxAgeSeconds must be positive, got %d",
			metricsafe.ErrConfiguration, b.maxAgeSeconds))
	}
	if b.ageBuckets <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: ageBuckets must be positive, got %d",
			metricsafe.ErrConfiguration, b.ageBuckets))
	}
	for _, name := range b.labelNames {
		if name == reservedLabelName {
			errs = multierr.Append(errs, fmt.Errorf("%w: label name %q is reserved for summaries",
				metricsafe.ErrConfiguration, reservedLabelName))
		}
	}
	targets := make([]util.QuantileTarget, 0, len(b.quantiles))
	for _, quantile := range b.quantiles {
		target, err := util.NewQuantileTarget(quantile.phi, quantile.epsilon)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		targets = append(targets, target)
	}
	if errs != nil {
		return nil, errs
	}

	return &Summary{
		metadata:           snapshot.NewMetadata(b.name, b.help, b.unit),
		labelNames:         append([]string(nil), b.labelNames...),
		targets:            targets,
		maxAgeSeconds:      b.maxAgeSeconds,
		ageBuckets:         b.ageBuckets,
		exemplarsEnabled:   b.exemplarsEnabled,
		newExemplarSampler: b.newExemplarSampler,
		clock:              b.clock,
		dataPoints:         map[string]*DataPoint{},
	}, nil
}
