package services

import (
	"time"

	"fintrack/internal/log"
)

const (
	DefaultLimit           = 5
	DefaultZScoreThreshold = 2.5
	DefaultSpikeWindowDays = 30
	fraudLookbackDays      = 90
	savingsLookbackDays    = 30
)

type settings struct {
	logger          *log.Logger
	now             func() time.Time
	zScoreThreshold float64
	spikeWindowDays int
	defaultLimit    int
	analyzers       []Analyzer
}

// Option configures an AnomalyDetector or RecommendationEngine.
type Option func(*settings)

// WithLogger injects the logger used for degraded stages.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithZScoreThreshold sets the default fraud threshold; values <= 0 are ignored.
func WithZScoreThreshold(z float64) Option {
	return func(s *settings) {
		if z > 0 {
			s.zScoreThreshold = z
		}
	}
}

// WithSpikeWindow sets the lookback used when flagging spending spikes.
func WithSpikeWindow(days int) Option {
	return func(s *settings) {
		if days > 0 {
			s.spikeWindowDays = days
		}
	}
}

// WithDefaultLimit sets the limit used when callers pass a non-positive one.
func WithDefaultLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithAnalyzers replaces the registered analyzers. Order is execution order.
func WithAnalyzers(a ...Analyzer) Option {
	return func(s *settings) {
		s.analyzers = a
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		now:             time.Now,
		zScoreThreshold: DefaultZScoreThreshold,
		spikeWindowDays: DefaultSpikeWindowDays,
		defaultLimit:    DefaultLimit,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentEngine)
	}
	return s
}
