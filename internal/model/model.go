package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spigell/scoreit/internal/apperr"
	"github.com/spigell/scoreit/internal/features"
	"github.com/spigell/scoreit/internal/metrics"

	"go.uber.org/zap"
)

const defaultLockTimeout = 30 * time.Second

// Options configure the feedback model.
type Options struct {
	BootstrapSamples int
	BootstrapSeed    int64
	LockTimeout      time.Duration
	Train            TrainOptions
}

func (o Options) withDefaults() Options {
	if o.BootstrapSamples <= 0 {
		o.BootstrapSamples = DefaultBootstrapSamples
	}
	if o.BootstrapSamples < MinBootstrapSamples {
		o.BootstrapSamples = MinBootstrapSamples
	}
	if o.BootstrapSeed == 0 {
		o.BootstrapSeed = DefaultBootstrapSeed
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = defaultLockTimeout
	}
	o.Train = o.Train.withDefaults()
	return o
}

// Status describes the current model for reporting.
type Status struct {
	State     string    `json:"state"`
	IsTrained bool      `json:"is_trained"`
	Version   int64     `json:"version"`
	Samples   int       `json:"samples"`
	Pending   int       `json:"pending_feedback"`
	Metrics   Metrics   `json:"metrics"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
}

// Model is a logistic regression classifier over feature vectors that learns from feedback.
//
// Predictions read an immutable snapshot and never wait for training. Fits are
// serialized inside the process by trainMu and across processes by the store lock.
type Model struct {
	store   Store
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics

	trainMu sync.Mutex

	mu   sync.RWMutex
	snap *Snapshot
}

func New(store Store, opts Options, logger *zap.Logger, m *metrics.Metrics) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{
		store:   store,
		opts:    opts.withDefaults(),
		logger:  logger,
		metrics: m,
	}
}

// Open loads the persisted snapshot if there is one. A missing or unusable
// snapshot leaves the model uninitialized; it bootstraps on first use.
func (m *Model) Open(ctx context.Context) error {
	snap, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.logger.Info("no persisted model found, it will be bootstrapped on first use")
			return nil
		}
		if errors.Is(err, ErrCorrupt) {
			m.logger.Warn("persisted model is corrupt, it will be bootstrapped on first use", zap.Error(err))
			return nil
		}
		return fmt.Errorf("loading model: %w", err)
	}

	if !fitted(snap) {
		m.logger.Warn("persisted model has no usable parameters, it will be bootstrapped on first use",
			zap.Stringer("state", snap.State),
			zap.Int64("version", snap.Version),
		)
		return nil
	}

	m.publish(snap)
	m.logger.Info("model loaded",
		zap.Stringer("state", snap.State),
		zap.Int64("version", snap.Version),
		zap.Int("samples", len(snap.Samples)),
		zap.Int("pending", len(snap.Pending)),
	)
	return nil
}

// State returns the current model state.
func (m *Model) State() State {
	snap := m.current()
	if snap == nil {
		return StateUninitialized
	}
	return snap.State
}

func (m *Model) Status() Status {
	snap := m.current()
	if snap == nil {
		return Status{State: StateUninitialized.String()}
	}
	return Status{
		State:     snap.State.String(),
		IsTrained: snap.IsTrained,
		Version:   snap.Version,
		Samples:   len(snap.Samples),
		Pending:   len(snap.Pending),
		Metrics:   snap.Metrics,
		TrainedAt: snap.TrainedAt,
	}
}

// PredictProba returns the probability of a good match for each vector, in input order.
func (m *Model) PredictProba(ctx context.Context, vectors []features.Vector) ([]float64, error) {
	snap := m.current()
	if !fitted(snap) {
		if err := m.Bootstrap(ctx); err != nil {
			return nil, err
		}
		snap = m.current()
		if !fitted(snap) {
			return nil, apperr.New(apperr.KindModelNotFitted, "predict", "model is not fitted", nil)
		}
	}

	out := make([]float64, len(vectors))
	for i, v := range vectors {
		out[i] = snap.Params.predict(v.Values())
	}
	return out, nil
}

// Bootstrap fits the model on synthetic data. It is a no-op unless the model is uninitialized.
// Persisting is best effort: a model that cannot be stored still serves predictions.
func (m *Model) Bootstrap(ctx context.Context) error {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	if fitted(m.current()) {
		return nil
	}

	unlock, err := m.lock(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("bootstrapping without the model lock", zap.Error(err))
		unlock = func() error { return nil }
	}
	defer m.unlock(unlock)

	latest, err := m.store.Load(ctx)
	if err == nil && fitted(latest) {
		m.publish(latest)
		return nil
	}

	// An unusable snapshot still carries real feedback; it is kept as pending.
	var (
		version int64 = 1
		pending []Sample
	)
	if err == nil {
		version = latest.Version + 1
		if latest.State.IsTrained() {
			pending = append(pending, latest.Samples...)
		}
		pending = append(pending, latest.Pending...)
	}
	snap := m.bootstrapSnapshot(version)
	snap.Pending = pending

	if err := m.store.Save(ctx, snap); err != nil {
		m.logger.Warn("persisting bootstrapped model", zap.Error(err))
	}

	m.publish(snap)
	m.metrics.RecordTraining("bootstrap", snap.Metrics.Accuracy, snap.Metrics.AUC)
	m.logger.Info("model bootstrapped on synthetic data",
		zap.Int("samples", len(snap.Samples)),
		zap.Int64("seed", m.opts.BootstrapSeed),
		zap.Float64("accuracy", snap.Metrics.Accuracy),
		zap.Float64("auc", snap.Metrics.AUC),
	)
	return nil
}

// Train refits the model on exactly the given set, replacing earlier parameters and samples.
func (m *Model) Train(ctx context.Context, X []features.Vector, y []int) (Metrics, error) {
	samples, err := toSamples(X, y)
	if err != nil {
		return Metrics{}, err
	}
	return m.refit(ctx, "train", func(*Snapshot) []Sample { return samples })
}

// AddFeedback appends samples to the accumulated feedback set and refits on all of it.
// The latest persisted set is reloaded under the lock, so concurrent writers do not lose samples.
// Until the real feedback holds both labels it is stored as pending and the current
// parameters keep serving; the returned metrics are then those of the current fit.
func (m *Model) AddFeedback(ctx context.Context, samples []Sample) (Metrics, error) {
	if len(samples) == 0 {
		return Metrics{}, apperr.InvalidInput("feedback", "feedback must contain at least one sample", nil)
	}
	for i, s := range samples {
		if s.Label != 0 && s.Label != 1 {
			return Metrics{}, apperr.InvalidInput("feedback", fmt.Sprintf("label at position %d must be 0 or 1", i), nil)
		}
	}

	return m.refit(ctx, "feedback", func(prev *Snapshot) []Sample {
		var all []Sample
		if prev != nil {
			if prev.State.IsTrained() {
				all = append(all, prev.Samples...)
			}
			all = append(all, prev.Pending...)
		}
		return append(all, samples...)
	})
}

func (m *Model) refit(ctx context.Context, op string, collect func(prev *Snapshot) []Sample) (Metrics, error) {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	unlock, err := m.lock(ctx)
	if err != nil {
		return Metrics{}, apperr.New(apperr.KindModelUnavailable, op, "model is busy, try again later", err)
	}
	defer m.unlock(unlock)

	prev := m.current()
	latest, err := m.store.Load(ctx)
	switch {
	case err == nil:
		if prev == nil || latest.Version >= prev.Version {
			prev = latest
		}
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCorrupt):
	default:
		return Metrics{}, apperr.Internal(op, err)
	}

	var version int64 = 1
	if prev != nil {
		version = prev.Version + 1
	}

	samples := collect(prev)
	err = validateSamples(samples)
	if errors.Is(err, errSingleClass) && op == "feedback" {
		return m.keepPending(ctx, prev, samples, version)
	}
	if err != nil {
		return Metrics{}, apperr.InvalidInput(op, err.Error(), nil)
	}

	started := time.Now()
	snap := m.fitSnapshot(samples, StateTrained, version)

	if err := m.store.Save(ctx, snap); err != nil {
		return Metrics{}, apperr.Internal(op, fmt.Errorf("persisting model: %w", err))
	}

	m.publish(snap)
	m.metrics.RecordTraining(op, snap.Metrics.Accuracy, snap.Metrics.AUC)
	m.logger.Info("model trained on feedback",
		zap.String("op", op),
		zap.Int("samples", len(samples)),
		zap.Int64("version", version),
		zap.Float64("accuracy", snap.Metrics.Accuracy),
		zap.Float64("auc", snap.Metrics.AUC),
		zap.Duration("took", time.Since(started)),
	)

	return snap.Metrics, nil
}

// keepPending stores single-label feedback next to the current parameters.
// A model without usable parameters is bootstrapped first. Caller holds both locks.
func (m *Model) keepPending(ctx context.Context, prev *Snapshot, pending []Sample, version int64) (Metrics, error) {
	var snap *Snapshot
	if fitted(prev) {
		next := *prev
		snap = &next
		snap.Version = version
	} else {
		snap = m.bootstrapSnapshot(version)
	}
	snap.Pending = pending

	if err := m.store.Save(ctx, snap); err != nil {
		return Metrics{}, apperr.Internal("feedback", fmt.Errorf("persisting model: %w", err))
	}

	m.publish(snap)
	m.logger.Info("feedback stored until both labels are present",
		zap.Stringer("state", snap.State),
		zap.Int("pending", len(pending)),
		zap.Int64("version", version),
	)
	return snap.Metrics, nil
}

func (m *Model) bootstrapSnapshot(version int64) *Snapshot {
	samples := syntheticSamples(m.opts.BootstrapSamples, m.opts.BootstrapSeed)
	return m.fitSnapshot(samples, StateBootstrapped, version)
}

func (m *Model) fitSnapshot(samples []Sample, state State, version int64) *Snapshot {
	X := make([][features.Size]float64, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		X[i] = s.Features
		y[i] = s.Label
	}

	p := fit(X, y, m.opts.Train)

	scores := make([]float64, len(X))
	for i, x := range X {
		scores[i] = p.predict(x)
	}

	return &Snapshot{
		State:     state,
		IsTrained: state.IsTrained(),
		Version:   version,
		Params:    p,
		Samples:   samples,
		Metrics:   Metrics{Accuracy: accuracy(scores, y), AUC: rocAUC(scores, y)},
		TrainedAt: time.Now().UTC(),
	}
}

func (m *Model) lock(ctx context.Context) (func() error, error) {
	lockCtx, cancel := context.WithTimeout(ctx, m.opts.LockTimeout)
	defer cancel()
	return m.store.Lock(lockCtx)
}

func (m *Model) unlock(unlock func() error) {
	if err := unlock(); err != nil {
		m.logger.Warn("releasing model lock", zap.Error(err))
	}
}

func (m *Model) current() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// publish swaps the snapshot in. A snapshot never replaces a usable one in a later state.
func (m *Model) publish(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fitted(m.snap) && snap.State < m.snap.State {
		return
	}
	m.snap = snap
	m.metrics.SetModelState(int(snap.State))
}

func fitted(snap *Snapshot) bool {
	return snap != nil && snap.State != StateUninitialized && snap.Params.valid()
}

func toSamples(X []features.Vector, y []int) ([]Sample, error) {
	if len(X) != len(y) {
		return nil, apperr.InvalidInput("train", fmt.Sprintf("got %d feature vectors and %d labels", len(X), len(y)), nil)
	}
	samples := make([]Sample, len(X))
	for i := range X {
		samples[i] = NewSample(X[i], y[i])
	}
	if err := validateSamples(samples); err != nil {
		return nil, apperr.InvalidInput("train", err.Error(), nil)
	}
	return samples, nil
}

var (
	errEmptySet    = errors.New("training set is empty")
	errSingleClass = errors.New("training set must contain both positive and negative labels")
)

func validateSamples(samples []Sample) error {
	if len(samples) == 0 {
		return errEmptySet
	}
	var pos, neg bool
	for i, s := range samples {
		switch s.Label {
		case 0:
			neg = true
		case 1:
			pos = true
		default:
			return fmt.Errorf("label at position %d must be 0 or 1, got %d", i, s.Label)
		}
	}
	if !pos || !neg {
		return errSingleClass
	}
	return nil
}
