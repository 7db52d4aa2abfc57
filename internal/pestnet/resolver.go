package pestnet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/logger"
)

// StrategyKind names a way of turning files on disk into a classifier.
type StrategyKind string

const (
	StrategyComplete            StrategyKind = "complete"
	StrategyDirectory           StrategyKind = "directory"
	StrategyArchitectureWeights StrategyKind = "architecture-weights"
	StrategyWeightsOnly         StrategyKind = "weights-only"
	StrategyFallback            StrategyKind = "fallback"
)

// Well-known artifact names inside the model directory.
const (
	CompleteArtifactName  = "pest_model_complete" + ArtifactExt
	CompleteTFLiteName    = "pest_model_complete.tflite"
	FallbackArtifactName  = "fallback_trained_model" + ArtifactExt
	DirectoryModelName    = "pest_model_savedmodel"
	ArchitectureFileName  = "pest_model_architecture.json"
	WeightsFileName       = "pest_model_weights.npz"
	LegacyWeightsFileName = "model_weights.npz"
)

// Attempt is one candidate in the resolution order. Architecture-weights
// attempts carry two paths: architecture first, weights second.
type Attempt struct {
	Kind  StrategyKind
	Paths []string
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s:%s", a.Kind, strings.Join(a.Paths, "+"))
}

// DefaultAttempts returns the resolution order for modelDir, strongest
// artifact first. extraWeights are appended as weights-only candidates.
func DefaultAttempts(modelDir string, extraWeights []string) []Attempt {
	at := func(name string) string { return filepath.Join(modelDir, name) }
	attempts := []Attempt{
		{Kind: StrategyComplete, Paths: []string{at(CompleteArtifactName)}},
		{Kind: StrategyComplete, Paths: []string{at(CompleteTFLiteName)}},
		{Kind: StrategyComplete, Paths: []string{at(FallbackArtifactName)}},
		{Kind: StrategyDirectory, Paths: []string{at(DirectoryModelName)}},
		{Kind: StrategyArchitectureWeights, Paths: []string{at(ArchitectureFileName), at(WeightsFileName)}},
		{Kind: StrategyWeightsOnly, Paths: []string{at(WeightsFileName)}},
		{Kind: StrategyWeightsOnly, Paths: []string{at(LegacyWeightsFileName)}},
	}
	for _, p := range extraWeights {
		attempts = append(attempts, Attempt{Kind: StrategyWeightsOnly, Paths: []string{p}})
	}
	return attempts
}

// Metrics receives model lifecycle and prediction measurements.
type Metrics interface {
	RecordModelLoadAttempt(strategy string, err error)
	SetModelLoaded(source string)
	RecordPrediction(label string, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordModelLoadAttempt(string, error)          {}
func (noopMetrics) SetModelLoaded(string)                         {}
func (noopMetrics) RecordPrediction(string, time.Duration, error) {}

// ResolverConfig configures where to look and whether to synthesise a fallback.
type ResolverConfig struct {
	ModelDir        string
	ExtraWeights    []string
	ONNXLibraryPath string
	Fallback        bool
	Train           TrainConfig
}

// Resolver walks the attempt list and returns the first classifier that loads.
type Resolver struct {
	cfg      ResolverConfig
	attempts []Attempt
	metrics  Metrics
	log      logger.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

func WithMetrics(m Metrics) ResolverOption {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithAttempts replaces the default attempt order.
func WithAttempts(attempts []Attempt) ResolverOption {
	return func(r *Resolver) { r.attempts = attempts }
}

func WithLogger(l logger.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

func NewResolver(cfg ResolverConfig, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cfg:      cfg,
		attempts: DefaultAttempts(cfg.ModelDir, cfg.ExtraWeights),
		metrics:  noopMetrics{},
		log:      GetLogger().Module("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attempts returns the configured attempt order.
func (r *Resolver) Attempts() []Attempt {
	return r.attempts
}

// FallbackPath is where a synthesised fallback model is saved.
func (r *Resolver) FallbackPath() string {
	return filepath.Join(r.cfg.ModelDir, FallbackArtifactName)
}

// Resolve tries every attempt in order and falls back to training a
// throwaway model. It fails only when the fallback is disabled or cannot be built.
func (r *Resolver) Resolve(ctx context.Context) (Classifier, error) {
	start := time.Now()
	var failures []AttemptFailure

	for _, a := range r.attempts {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(err).
				Component("pestnet").
				Category(errors.CategoryCancellation).
				Timing("resolve_model", time.Since(start)).
				Build()
		}

		attemptStart := time.Now()
		c, err := r.try(a)
		if errors.Is(err, errArtifactMissing) {
			r.log.Debug("model candidate not present", logger.String("attempt", a.String()))
			continue
		}
		r.metrics.RecordModelLoadAttempt(string(a.Kind), err)
		if err != nil {
			r.log.Warn("model candidate rejected",
				logger.String("strategy", string(a.Kind)),
				logger.String("path", strings.Join(a.Paths, ", ")),
				logger.Error(err))
			failures = append(failures, AttemptFailure{Kind: a.Kind, Path: strings.Join(a.Paths, "+"), Err: err})
			continue
		}

		r.log.Info("model loaded",
			logger.String("strategy", string(a.Kind)),
			logger.String("source", c.Source()),
			logger.Duration("elapsed", time.Since(attemptStart)))
		r.metrics.SetModelLoaded(c.Source())
		return c, nil
	}

	if !r.cfg.Fallback {
		return nil, r.failure(&ResolutionFailure{Attempts: failures}, start)
	}

	r.log.Warn("no usable model artifact found, training fallback model",
		logger.Int("failed_attempts", len(failures)),
		logger.Int("samples", r.cfg.Train.Samples),
		logger.Int("epochs", r.cfg.Train.Epochs))

	net, stats, err := SynthesizeFallback(ctx, r.cfg.Train)
	r.metrics.RecordModelLoadAttempt(string(StrategyFallback), err)
	if err != nil {
		return nil, r.failure(&ResolutionFailure{Attempts: failures, Fallback: err}, start)
	}

	path := r.FallbackPath()
	net.setSource(StrategyFallback, path)
	if err := SaveArtifact(path, net, "fallback"); err != nil {
		r.log.Warn("failed to save fallback model, continuing with in-memory copy",
			logger.String("path", path),
			logger.Error(err))
	} else {
		r.log.Info("fallback model saved", logger.String("path", path))
	}

	r.log.Warn("serving fallback model; predictions are not meaningful",
		logger.Int64("seed", stats.Seed),
		logger.Float64("final_loss", stats.FinalLoss),
		logger.Duration("elapsed", time.Since(start)))
	r.metrics.SetModelLoaded(net.Source())
	return net, nil
}

func (r *Resolver) failure(rf *ResolutionFailure, start time.Time) error {
	return errors.New(rf).
		Component("pestnet").
		Category(errors.CategoryModelLoad).
		Priority(errors.PriorityCritical).
		Context("failed_attempts", len(rf.Attempts)).
		Timing("resolve_model", time.Since(start)).
		Build()
}

// try runs a single attempt. A missing artifact yields errArtifactMissing;
// any object created before a failure is released before returning.
func (r *Resolver) try(a Attempt) (Classifier, error) {
	if len(a.Paths) == 0 {
		return nil, fmt.Errorf("attempt %s has no paths", a.Kind)
	}
	for _, p := range a.Paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, errArtifactMissing
		}
	}

	switch a.Kind {
	case StrategyComplete:
		return loadComplete(a.Paths[0])
	case StrategyDirectory:
		return loadDirectoryModel(a.Paths[0], r.cfg.ONNXLibraryPath)
	case StrategyArchitectureWeights:
		if len(a.Paths) != 2 {
			return nil, fmt.Errorf("architecture-weights attempt needs 2 paths, got %d", len(a.Paths))
		}
		return loadArchitectureWeights(a.Paths[0], a.Paths[1])
	case StrategyWeightsOnly:
		return r.loadWeightsOnly(a.Paths[0])
	default:
		return nil, fmt.Errorf("unknown strategy %q", a.Kind)
	}
}
