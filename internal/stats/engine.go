package stats

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mobility-stats/internal/model"
	"github.com/sells-group/mobility-stats/internal/record"
)

// Engine computes Stats from record tables. It holds only immutable
// parameters, so one Engine may serve concurrent Compute calls.
type Engine struct {
	p     Params
	log   *zap.Logger
	limit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithConcurrency bounds the number of aggregators run at once. Zero or a
// negative value means no bound.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.limit = n
	}
}

// NewEngine creates an Engine. p is copied; zero fields take the defaults.
func NewEngine(p Params, opts ...Option) *Engine {
	e := &Engine{p: p.clone()}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.L()
	}
	return e
}

// Params returns a copy of the engine's parameters.
func (e *Engine) Params() Params {
	return e.p.clone()
}

// Prepare applies the completion predicate and splits the completed rows
// by schema.
func (e *Engine) Prepare(t record.Table) record.Partitioned {
	return record.Partition(record.Completed(t), e.p.VersionField)
}

// Compute returns every aggregate for the completed rows of t. The
// aggregators share the read-only partitions and each writes its own
// field of the result.
func (e *Engine) Compute(t record.Table) *model.Stats {
	start := time.Now()
	parts := e.Prepare(t)
	done := parts.All

	s := &model.Stats{Total: len(done)}

	var equipments, constraints, travelTime, reco, proReco model.Frequencies

	var g errgroup.Group
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}

	g.Go(func() error { equipments = EquipmentFrequencies(done); return nil })
	g.Go(func() error { constraints = ConstraintFrequencies(done); return nil })
	g.Go(func() error { travelTime = TravelTimeFrequencies(done); return nil })
	g.Go(func() error { reco = RecommendationFrequencies(done); return nil })
	g.Go(func() error { proReco = ProRecommendationFrequencies(done); return nil })
	g.Go(func() error { s.ModeFrequencies = e.ModeFrequencies(parts); return nil })
	g.Go(func() error { s.ProModeFrequencies = e.ProModeFrequencies(parts); return nil })
	g.Go(func() error { s.ModeEmissions = e.ModeEmissions(parts, false); return nil })
	g.Go(func() error { s.RecoModeEmissions = e.ModeEmissions(parts, true); return nil })
	g.Go(func() error { s.ModeEmissionReductions = e.ModeEmissionReductions(parts); return nil })
	g.Go(func() error { s.ProModeEmissions = e.ProModeEmissions(parts, false); return nil })
	g.Go(func() error { s.RecoProModeEmissions = e.ProModeEmissions(parts, true); return nil })
	g.Go(func() error { s.ModeLinks = e.ModeRecoLinks(parts); return nil })
	g.Go(func() error { s.ProModeLinks = e.ProModeRecoLinks(parts); return nil })

	// Aggregators are fail-soft and never return an error.
	_ = g.Wait()

	s.Frequencies = []model.Frequencies{equipments, constraints, travelTime, reco}
	s.ProFrequencies = []model.Frequencies{proReco}

	if ce := e.log.Check(zap.DebugLevel, "stats: computed"); ce != nil {
		ce.Write(
			zap.Int("rows", len(t)),
			zap.Int("completed", len(done)),
			zap.Int("legacy", len(parts.Legacy)),
			zap.Int("journey", len(parts.Journey)),
			zap.Int("intermodal_journeys", intermodalJourneys(parts.Journey)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return s
}

// intermodalJourneys counts journeys combining several non-walking modes.
// Frequencies ignore the split; it is reported for monitoring only.
func intermodalJourneys(t record.Table) int {
	n := 0
	for _, r := range t {
		for _, j := range record.Journeys(r) {
			if j.Days > 0 && j.Intermodal() {
				n++
			}
		}
	}
	return n
}
