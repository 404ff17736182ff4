// Package pipeline - Live inference orchestration: one frame in, one set of results out.
//
// A cycle is preprocess -> engine -> decode -> NMS and runs sequentially. Cycles are mutually
// exclusive: a frame that arrives while a cycle is in flight is dropped, never queued. Every
// cycle captures the current generation; Stop, SwitchModel and Close advance it, and a cycle that
// completes under an older generation has its results discarded.
package pipeline

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/models/yolo"
)

var (
	// ErrBusy is returned when a frame arrives while a cycle is still in flight.
	ErrBusy = errors.New("pipeline busy, frame dropped")
	// ErrStopped is returned when the pipeline is stopped or closed.
	ErrStopped = errors.New("pipeline stopped")
	// ErrNoLoader is returned by Select when no Loader was configured.
	ErrNoLoader = errors.New("no model loader configured")
)

// Outcome is the result of one cycle.
type Outcome struct {
	ID         uuid.UUID            `json:"id"`
	Generation uint64               `json:"generation"`
	Model      model.Name           `json:"model"`
	Type       model.Type           `json:"type"`
	FrameSize  image.Point          `json:"frame_size"`
	Results    []postprocess.Result `json:"results"`
	Err        error                `json:"-"`
	// Stale marks a cycle that finished after Stop, SwitchModel or Close; it is never published.
	Stale bool `json:"stale"`
	// Reset marks the empty outcome published when the pipeline stops or switches models.
	Reset   bool          `json:"reset"`
	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed"`
}

// Sink receives fresh outcomes. Publish is called from the cycle's goroutine and must not block
// for long.
type Sink interface {
	Publish(Outcome)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Outcome)

// Publish calls f.
func (f SinkFunc) Publish(o Outcome) { f(o) }

// Loader creates an engine for a model.
type Loader func(m model.Config) (inference.Engine, error)

// DecodeConfigFunc returns decode parameters for a model type.
type DecodeConfigFunc func(t model.Type) yolo.Config

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithSink adds a sink.
func WithSink(s Sink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, s) }
}

// WithFilter selects the resampling filter used by preprocessing.
func WithFilter(f images.ResampleFilter) Option {
	return func(p *Pipeline) { p.scratch.Filter = f }
}

// WithDecodeConfig overrides the decode parameters per model type.
func WithDecodeConfig(fn DecodeConfigFunc) Option {
	return func(p *Pipeline) { p.decodeFor = fn }
}

// WithLoader enables Select over the given catalogue.
func WithLoader(l Loader, catalogue []model.Config) Option {
	return func(p *Pipeline) {
		p.loader = l
		p.catalogue = catalogue
	}
}

// state is everything a cycle needs from the active model.
type state struct {
	model   model.Config
	engine  inference.Engine
	decoder models.Decoder
}

// Pipeline runs inference cycles against the active model.
type Pipeline struct {
	mu        sync.RWMutex
	active    *state
	sinks     []Sink
	loader    Loader
	catalogue []model.Config
	decodeFor DecodeConfigFunc

	scratch    *inference.Scratch
	busy       atomic.Bool
	running    atomic.Bool
	closed     atomic.Bool
	generation atomic.Uint64

	// Outcomes are delivered in publication order by whichever goroutine drains pending.
	pubMu    sync.Mutex
	pending  []Outcome
	draining bool

	stats *Stats
	log   *logger.Logger
}

// New creates a running pipeline for m, taking ownership of engine.
//
// Arguments:
//   - m: The active model.
//   - engine: An engine already loaded with m.
//   - opts: Options.
//
// Returns:
//   - *Pipeline: The pipeline, already started.
//   - error: An error if m is invalid or has no decoder.
func New(m model.Config, engine inference.Engine, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		scratch:   inference.NewScratch(images.BilinearFilter),
		decodeFor: yolo.DefaultConfig,
		stats:     newStats(),
		log:       logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.Named("pipeline")

	st, err := p.newState(m, engine)
	if err != nil {
		return nil, err
	}
	p.active = st
	p.running.Store(true)

	p.log.Info("pipeline ready", "model", string(m.Name), "type", string(m.Type))
	return p, nil
}

func (p *Pipeline) newState(m model.Config, engine inference.Engine) (*state, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	cfg := p.decodeFor(m.Type)
	cfg.InputSize = m.TargetSize()
	decoder, err := models.NewDecoder(m.Type, cfg)
	if err != nil {
		return nil, err
	}
	if n := len(engine.OutputNames()); n < decoder.NumOutputs() {
		return nil, errors.Errorf("model %s: %s decoding needs %d outputs, engine has %d",
			m.Name, m.Type, decoder.NumOutputs(), n)
	}
	if len(engine.InputNames()) != 1 {
		return nil, errors.Errorf("model %s: expected one engine input, have %d", m.Name, len(engine.InputNames()))
	}
	return &state{model: m, engine: engine, decoder: decoder}, nil
}

// Process runs one cycle on frame.
//
// Cycle failures (engine errors, malformed outputs) do not return an error: they are logged and
// reported as an Outcome with no results and Err set. Process itself only fails when the frame is
// dropped (ErrBusy) or the pipeline is stopped (ErrStopped).
//
// Arguments:
//   - ctx: Passed to the engine.
//   - frame: The video frame.
//
// Returns:
//   - Outcome: The cycle outcome; Stale is set when it was superseded while running.
//   - error: ErrBusy or ErrStopped.
func (p *Pipeline) Process(ctx context.Context, frame image.Image) (Outcome, error) {
	if !p.running.Load() {
		return Outcome{}, ErrStopped
	}
	if !p.busy.CompareAndSwap(false, true) {
		p.stats.drop()
		p.log.Debug("frame dropped")
		return Outcome{}, ErrBusy
	}
	defer p.busy.Store(false)

	gen := p.generation.Load()
	p.mu.RLock()
	st := p.active
	p.mu.RUnlock()

	out := Outcome{
		ID:         uuid.New(),
		Generation: gen,
		Model:      st.model.Name,
		Type:       st.model.Type,
		Started:    time.Now(),
	}
	if frame != nil {
		out.FrameSize = frame.Bounds().Size()
	}

	results, err := p.cycle(ctx, st, frame, out.FrameSize)
	out.Elapsed = time.Since(out.Started)
	if err != nil {
		out.Err = err
		out.Results = []postprocess.Result{}
		p.log.Warn("cycle failed", "id", out.ID.String(), "model", string(st.model.Name), "err", err)
	} else {
		out.Results = results
	}

	if p.generation.Load() != gen || !p.running.Load() {
		out.Stale = true
		p.log.Debug("discarding stale cycle", "id", out.ID.String(), "generation", gen)
	}
	p.stats.observe(out)

	if !out.Stale {
		p.publish(out)
	}
	return out, nil
}

func (p *Pipeline) cycle(ctx context.Context, st *state, frame image.Image, size image.Point) ([]postprocess.Result, error) {
	input, err := inference.Preprocess(frame, st.model.TargetSize(), p.scratch)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}

	outputs, err := st.engine.Run(ctx, map[string]postprocess.Tensor{st.engine.InputNames()[0]: input})
	if err != nil {
		return nil, errors.Wrap(err, "engine run")
	}

	names := st.engine.OutputNames()[:st.decoder.NumOutputs()]
	ordered, err := inference.Ordered(names, outputs)
	if err != nil {
		return nil, err
	}

	results, err := st.decoder.Decode(ordered, size)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return results, nil
}

// publish queues o for delivery. A cycle outcome is dropped, even part way through the sinks,
// once a later Stop or SwitchModel has bumped the generation, and a reset queued meanwhile is
// always delivered after it. Sinks may call back into the pipeline.
func (p *Pipeline) publish(o Outcome) {
	p.pubMu.Lock()
	p.pending = append(p.pending, o)
	if p.draining {
		p.pubMu.Unlock()
		return
	}
	p.draining = true
	for len(p.pending) > 0 {
		next := p.pending[0]
		p.pending = p.pending[1:]
		p.pubMu.Unlock()
		p.deliver(next)
		p.pubMu.Lock()
	}
	p.pending = nil
	p.draining = false
	p.pubMu.Unlock()
}

func (p *Pipeline) deliver(o Outcome) {
	p.mu.RLock()
	sinks := p.sinks
	p.mu.RUnlock()
	for _, s := range sinks {
		if !o.Reset && p.generation.Load() != o.Generation {
			p.log.Debug("discarding superseded outcome", "id", o.ID.String(), "generation", o.Generation)
			return
		}
		s.Publish(o)
	}
}

// publishReset tells sinks to clear whatever they show.
func (p *Pipeline) publishReset(gen uint64) {
	p.mu.RLock()
	m := p.active.model
	p.mu.RUnlock()
	p.publish(Outcome{
		ID:         uuid.New(),
		Generation: gen,
		Model:      m.Name,
		Type:       m.Type,
		Results:    []postprocess.Result{},
		Reset:      true,
		Started:    time.Now(),
	})
}

// AddSink registers a sink for subsequent outcomes.
func (p *Pipeline) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(append([]Sink(nil), p.sinks...), s)
}

// Stop pauses processing and discards the result of any in-flight cycle.
func (p *Pipeline) Stop() {
	if p.running.CompareAndSwap(true, false) {
		gen := p.generation.Add(1)
		p.log.Info("pipeline stopped", "generation", gen)
		p.publishReset(gen)
	}
}

// Start resumes processing after Stop.
func (p *Pipeline) Start() error {
	if p.closed.Load() {
		return ErrStopped
	}
	if p.running.CompareAndSwap(false, true) {
		p.log.Info("pipeline started", "generation", p.generation.Load())
	}
	return nil
}

// Running reports whether frames are being processed.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Busy reports whether a cycle is in flight.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// Generation returns the current cancellation generation.
func (p *Pipeline) Generation() uint64 {
	return p.generation.Load()
}

// Model returns the active model.
func (p *Pipeline) Model() model.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active.model
}

// Catalogue returns the models Select can load.
func (p *Pipeline) Catalogue() []model.Config {
	return p.catalogue
}

// Stats returns the cycle counters.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// SwitchModel replaces the active model and engine. Any in-flight cycle becomes stale and the old
// engine is closed. The pipeline keeps its running state.
//
// Arguments:
//   - m: The new model.
//   - engine: An engine loaded with m; the pipeline takes ownership.
//
// Returns:
//   - error: An error if m is invalid; the previous model stays active.
func (p *Pipeline) SwitchModel(m model.Config, engine inference.Engine) error {
	if p.closed.Load() {
		return ErrStopped
	}
	st, err := p.newState(m, engine)
	if err != nil {
		return err
	}

	p.mu.Lock()
	old := p.active
	p.active = st
	p.mu.Unlock()

	gen := p.generation.Add(1)
	p.log.Info("model switched", "from", string(old.model.Name), "to", string(m.Name), "generation", gen)
	p.publishReset(gen)

	if err := old.engine.Close(); err != nil {
		p.log.Warn("closing previous engine", "model", string(old.model.Name), "err", err)
	}
	return nil
}

// Select loads a catalogue model by name through the configured Loader and switches to it.
func (p *Pipeline) Select(name model.Name) error {
	if p.loader == nil {
		return ErrNoLoader
	}
	m, ok := models.Lookup(p.catalogue, name)
	if !ok {
		return errors.Errorf("unknown model %q", name)
	}
	if p.Model().Name == name {
		return nil
	}

	engine, err := p.loader(m)
	if err != nil {
		return errors.Wrapf(err, "loading %s", name)
	}
	if err := p.SwitchModel(m, engine); err != nil {
		_ = engine.Close()
		return err
	}
	return nil
}

// Close stops the pipeline for good and releases the engine.
func (p *Pipeline) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.running.Store(false)
	gen := p.generation.Add(1)

	p.mu.RLock()
	st := p.active
	p.mu.RUnlock()

	p.log.Info("pipeline closed", "generation", gen, "metrics", p.stats.GetPerformanceMetrics())
	return st.engine.Close()
}
