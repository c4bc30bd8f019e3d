// Package poller runs the memory-hog reconciliation loop: read memory.max
// once per PollInterval and keep the allocation at 90% of it.
//
// The loop is a small state machine:
//
//	Initializing -> Steady            first bounded reading allocated
//	Steady       -> Degraded(reason)  read failure, "max", or a ceiling too small to size against
//	Degraded     -> Steady            next bounded reading
//
// In Degraded the allocation is left exactly as it was.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/container-resource-predictor/memory-hog/internal/cgroup"
	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/allocator"
	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"k8s.io/utils/clock"
)

// PollInterval is the fixed pause between two memory.max reads.
const PollInterval = time.Second

// State is the tracker state.
type State string

const (
	StateInitializing State = "initializing"
	StateSteady       State = "steady"
	StateDegraded     State = "degraded"
)

// LimitReader reads the current memory ceiling at path.
type LimitReader interface {
	ReadLimit(path cgroup.LimitPath) (cgroup.Limit, error)
}

// Result describes one poll iteration.
type Result struct {
	Iteration uint64
	Limit     cgroup.Limit
	ReadErr   error
	Change    allocator.Change
	State     State
}

// Snapshot is a copy of the loop's externally visible state.
type Snapshot struct {
	RunID           string           `json:"runId"`
	State           State            `json:"state"`
	Reason          allocator.Reason `json:"reason,omitempty"`
	LimitPath       string           `json:"limitPath"`
	Limit           cgroup.Limit     `json:"limit"`
	TrackedLimit    cgroup.Limit     `json:"trackedLimit"`
	AllocationBytes int              `json:"allocationBytes"`
	Iteration       uint64           `json:"iteration"`
	Resizes         uint64           `json:"resizes"`
	LastError       string           `json:"lastError,omitempty"`
	LastChange      time.Time        `json:"lastChange"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Poller owns the allocation and drives it from memory.max readings. Only
// Snapshot may be called concurrently with Initialize, Step and Run.
type Poller struct {
	reader  LimitReader
	path    cgroup.LimitPath
	clock   clock.Clock
	log     zerolog.Logger
	metrics *metrics.Metrics
	runID   string
	onStep  func(Result)

	alloc     *allocator.Allocation
	acquirer  allocator.Acquirer
	previous  cgroup.Limit
	state     State
	reason    allocator.Reason
	iteration uint64
	resizes   uint64

	mu   sync.RWMutex
	snap Snapshot
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		p.clock = c
	}
}

// WithLogger sets the logger for status lines.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) {
		p.log = l
	}
}

// WithMetrics sets the Prometheus metrics to update.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(p *Poller) {
		p.runID = id
	}
}

// WithAcquirer overrides how the allocation region is mapped.
func WithAcquirer(fn allocator.Acquirer) Option {
	return func(p *Poller) {
		p.acquirer = fn
	}
}

// WithOnStep sets a callback invoked after every poll iteration.
func WithOnStep(fn func(Result)) Option {
	return func(p *Poller) {
		p.onStep = fn
	}
}

// New creates a Poller for path. Call Initialize before Step or Run.
func New(reader LimitReader, path cgroup.LimitPath, opts ...Option) *Poller {
	p := &Poller{
		reader: reader,
		path:   path,
		clock:  clock.RealClock{},
		log:    zerolog.Nop(),
		state:  StateInitializing,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.New(prometheus.NewRegistry())
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	p.metrics.SetState(string(p.state))
	p.publish("")
	return p
}

// Initialize reads the first limit and allocates 90% of it. Any error is
// fatal to the process.
func (p *Poller) Initialize() error {
	limit, err := p.reader.ReadLimit(p.path)
	if err != nil {
		p.publish(err.Error())
		return fmt.Errorf("reading initial memory limit: %w", err)
	}

	if limit.IsUnbounded() {
		p.log.Error().Msg("Initial memory limit: no specific limit ('max'), cannot allocate 90% of 'max'")
		return fmt.Errorf("initial memory limit: %w", allocator.ErrUnboundedLimit)
	}
	p.log.Info().Str("limit", limit.String()).Msg("Initial memory limit")

	target, err := allocator.TargetSize(limit)
	if err != nil {
		p.log.Error().Err(err).Msg("Cannot allocate memory for this limit")
		return fmt.Errorf("initial memory limit %s: %w", limit, err)
	}
	p.log.Info().Int64("bytes", target).Msgf("Attempting to allocate %s for %d%% of the limit",
		cgroup.Bytes(target), allocator.TargetPercent)

	opts := []allocator.Option{
		allocator.WithOnUsageChange(func(b int64) { p.metrics.AllocationBytes.Set(float64(b)) }),
	}
	if p.acquirer != nil {
		opts = append(opts, allocator.WithAcquirer(p.acquirer))
	}

	start := p.clock.Now()
	alloc, err := allocator.Initialize(limit, opts...)
	if err != nil {
		return err
	}
	p.metrics.FillDuration.Observe(p.clock.Since(start).Seconds())
	p.log.Info().Int("bytes", alloc.Size()).Msg("Successfully allocated and filled memory")

	p.alloc = alloc
	p.previous = limit
	p.observeLimit(limit)
	p.transition(StateSteady, allocator.ReasonNone)
	p.publish("")
	return nil
}

// Allocation returns the tracked allocation, nil before Initialize.
func (p *Poller) Allocation() *allocator.Allocation {
	return p.alloc
}

// State returns the current state and, when degraded, its reason.
func (p *Poller) State() (State, allocator.Reason) {
	return p.state, p.reason
}

// Snapshot returns a copy of the latest published state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Run waits PollInterval and then calls Step, until ctx is done or a resize
// fails. Production callers pass a context that is never cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.alloc == nil {
		return fmt.Errorf("poller not initialized")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(PollInterval):
		}

		if _, err := p.Step(); err != nil {
			return err
		}
	}
}

// Step performs one read-and-reconcile iteration. The only error it returns
// is a failed resize, which is fatal; read failures and unbounded readings
// move the loop to Degraded and leave the allocation untouched.
func (p *Poller) Step() (Result, error) {
	p.iteration++
	p.metrics.PollIterations.Inc()
	res := Result{Iteration: p.iteration}

	limit, err := p.reader.ReadLimit(p.path)
	if err != nil {
		res.ReadErr = err
		p.metrics.ReadErrors.Inc()
		p.log.Warn().Err(err).Uint64("iteration", p.iteration).
			Msg("Error reading memory limit, keeping current allocation")
		p.degrade(allocator.ReasonReadFailed)
		res.State = p.state
		p.publish(err.Error())
		p.done(res)
		return res, nil
	}
	res.Limit = limit

	previous := p.previous
	start := p.clock.Now()
	change, err := p.alloc.Reconcile(limit, previous)
	res.Change = change
	if err != nil {
		p.log.Error().Err(err).Str("limit", limit.String()).Msg("Failed to resize allocation")
		p.publish(err.Error())
		return res, err
	}
	p.previous = limit

	switch change.Outcome {
	case allocator.OutcomeResized:
		p.metrics.FillDuration.Observe(p.clock.Since(start).Seconds())
		p.metrics.LimitChanges.Inc()
		p.metrics.Resizes.Inc()
		p.resizes++
		p.log.Info().Uint64("iteration", p.iteration).Str("limit", limit.String()).Str("previous", previous.String()).
			Msg("Current memory limit - CHANGED")
		p.log.Info().Int("from", change.FromSize).Int("to", change.ToSize).
			Msg("Resized allocation and refilled memory")
		p.transition(StateSteady, allocator.ReasonNone)
	case allocator.OutcomeDegraded:
		if change.Reason == allocator.ReasonUnbounded {
			p.log.Warn().Uint64("iteration", p.iteration).Str("previous", previous.String()).
				Msg("Limit changed from a specific value to 'max', keeping current allocation")
		} else {
			p.log.Warn().Uint64("iteration", p.iteration).Str("limit", limit.String()).
				Msg("Limit too small to size against, keeping current allocation")
		}
		p.degrade(change.Reason)
	default:
		p.logUnchanged(limit)
	}

	p.observeLimit(limit)
	res.State = p.state
	p.publish("")
	p.done(res)
	return res, nil
}

// logUnchanged reports a reading equal to the previous one. Repeated "max"
// or too-small readings keep the loop degraded.
func (p *Poller) logUnchanged(limit cgroup.Limit) {
	if limit.IsUnbounded() {
		p.log.Info().Uint64("iteration", p.iteration).Msg("Current memory limit: no specific limit ('max')")
		p.degrade(allocator.ReasonUnbounded)
		return
	}
	if _, err := allocator.TargetSize(limit); err != nil {
		p.log.Info().Uint64("iteration", p.iteration).Str("limit", limit.String()).
			Msg("Current memory limit - No change (too small to size against)")
		p.degrade(allocator.ReasonTargetTooSmall)
		return
	}
	p.log.Info().Uint64("iteration", p.iteration).Str("limit", limit.String()).Msg("Current memory limit - No change")
	p.transition(StateSteady, allocator.ReasonNone)
}

func (p *Poller) observeLimit(limit cgroup.Limit) {
	if v, ok := limit.Value(); ok {
		p.metrics.LimitUnbounded.Set(0)
		p.metrics.LimitBytes.Set(float64(v))
		return
	}
	p.metrics.LimitUnbounded.Set(1)
}

func (p *Poller) degrade(reason allocator.Reason) {
	p.metrics.Degradations.WithLabelValues(string(reason)).Inc()
	p.transition(StateDegraded, reason)
}

func (p *Poller) transition(to State, reason allocator.Reason) {
	if p.state == to && p.reason == reason {
		return
	}
	p.log.Debug().Str("from", string(p.state)).Str("to", string(to)).Str("reason", string(reason)).
		Msg("Tracker state changed")
	p.state = to
	p.reason = reason
	p.metrics.SetState(string(to))
}

func (p *Poller) publish(lastErr string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	prevResizes := p.snap.Resizes
	p.snap = Snapshot{
		RunID:      p.runID,
		State:      p.state,
		Reason:     p.reason,
		LimitPath:  p.path.String(),
		Limit:      p.previous,
		Iteration:  p.iteration,
		Resizes:    p.resizes,
		LastError:  lastErr,
		LastChange: p.snap.LastChange,
		UpdatedAt:  now,
	}
	if p.alloc != nil {
		p.snap.TrackedLimit = p.alloc.Limit()
		p.snap.AllocationBytes = p.alloc.Size()
	}
	if p.resizes != prevResizes {
		p.snap.LastChange = now
	}
}

func (p *Poller) done(res Result) {
	if p.onStep != nil {
		p.onStep(res)
	}
}
