package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"audioreport/internal/logging"
	"audioreport/internal/memory"
	"audioreport/internal/metrics"
)

// State of the model slot.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
)

const offloadTimeout = 30 * time.Second

var errReleased = errors.New("model handle already released")

// Handle is the caller's reference to the resident model. It is valid until
// passed to Controller.Release.
type Handle struct {
	ID     uuid.UUID
	Tier   Tier
	Device Device

	model Model
	once  sync.Once
}

// Transcribe runs inference on the held model.
func (h *Handle) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if h == nil || h.model == nil {
		return "", errReleased
	}
	return h.model.Transcribe(ctx, audioPath)
}

// Status is a read-only view of the slot.
type Status struct {
	State   State  `json:"state"`
	Loaded  bool   `json:"whisper_loaded"`
	Tier    string `json:"tier,omitempty"`
	Device  Device `json:"device,omitempty"`
	Backend string `json:"backend"`
}

// Controller owns the single speech model slot. Acquire queues while another
// handle is out; every handle must be released.
type Controller struct {
	loader  Loader
	probe   memory.Prober
	metrics *metrics.Metrics
	slot    *semaphore.Weighted
	log     zerolog.Logger

	mu      sync.Mutex
	state   State
	current *Handle
}

// NewController creates a controller. m may be nil.
func NewController(loader Loader, probe memory.Prober, m *metrics.Metrics) *Controller {
	return &Controller{
		loader:  loader,
		probe:   probe,
		metrics: m,
		slot:    semaphore.NewWeighted(1),
		log:     logging.Component("lifecycle"),
		state:   StateUnloaded,
	}
}

// Acquire waits for the slot, then loads tier, stepping down one tier at a
// time on failure. Each tier is tried at most once. If every tier fails the
// slot is freed and a *ModelLoadError is returned. Cancelling ctx aborts
// both the wait and the ladder.
func (c *Controller) Acquire(ctx context.Context, tier Tier) (*Handle, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("acquire: invalid tier %d", int(tier))
	}

	c.metrics.AddWaiter(1)
	err := c.slot.Acquire(ctx, 1)
	c.metrics.AddWaiter(-1)
	if err != nil {
		return nil, err
	}

	loaded := false
	defer func() {
		if !loaded {
			c.abandon()
		}
	}()

	c.reclaim()
	c.setState(StateLoading, nil)

	var tried []Tier
	var lastErr error
	for _, t := range Ladder(tier) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tried = append(tried, t)

		start := time.Now()
		m, err := c.load(ctx, t)
		c.metrics.RecordModelLoad(t.String(), err == nil, time.Since(start).Seconds())
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Str("tier", t.String()).Str("backend", c.loader.Name()).Msg("model load failed")
			c.reclaim()
			continue
		}

		h := &Handle{ID: uuid.New(), Tier: t, Device: m.Device(), model: m}
		c.setState(StateLoaded, h)
		c.metrics.SetModelResident(true)
		loaded = true
		c.log.Info().
			Str("handle", h.ID.String()).
			Str("tier", t.String()).
			Str("device", string(h.Device)).
			Dur("load_time", time.Since(start)).
			Msg("model loaded")
		return h, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.metrics.RecordLoadExhausted()
	return nil, &ModelLoadError{Requested: tier, Tried: tried, Err: lastErr}
}

// load calls the loader for one tier. A panicking loader counts as a failed
// load for that tier.
func (c *Controller) load(ctx context.Context, t Tier) (m Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("loader panicked: %v", r)
		}
	}()
	m, err = c.loader.Load(ctx, t)
	if err == nil && m == nil {
		err = errors.New("loader returned no model")
	}
	return m, err
}

// Release offloads and closes the model behind h, clears the slot and
// reclaims memory. A nil or already released handle is a no-op.
func (c *Controller) Release(h *Handle) {
	if h == nil {
		return
	}
	h.once.Do(func() { c.release(h) })
}

func (c *Controller) release(h *Handle) {
	defer c.slot.Release(1)
	defer c.reclaim()
	defer func() {
		h.model = nil
		c.mu.Lock()
		if c.current == h {
			c.current = nil
		}
		c.state = StateUnloaded
		c.mu.Unlock()
		c.metrics.SetModelResident(false)
	}()

	m := h.model
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), offloadTimeout)
	defer cancel()

	if err := m.Offload(ctx); err != nil {
		c.log.Warn().Err(err).Str("handle", h.ID.String()).Msg("offload failed")
	}
	if err := m.Close(); err != nil {
		c.log.Warn().Err(err).Str("handle", h.ID.String()).Msg("close failed")
	}
	c.log.Info().Str("handle", h.ID.String()).Str("tier", h.Tier.String()).Msg("model released")
}

// With acquires a model, runs fn, and releases the model however fn exits.
func (c *Controller) With(ctx context.Context, tier Tier, fn func(*Handle) error) error {
	h, err := c.Acquire(ctx, tier)
	if err != nil {
		return err
	}
	defer c.Release(h)
	return fn(h)
}

// Status reports the slot without touching the model.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{State: c.state, Backend: c.loader.Name()}
	if c.current != nil {
		s.Loaded = true
		s.Tier = c.current.Tier.String()
		s.Device = c.current.Device
	}
	return s
}

// abandon resets an unsuccessful acquisition and frees the slot.
func (c *Controller) abandon() {
	c.setState(StateUnloaded, nil)
	c.reclaim()
	c.slot.Release(1)
}

func (c *Controller) setState(s State, h *Handle) {
	c.mu.Lock()
	c.state = s
	c.current = h
	c.mu.Unlock()
}

func (c *Controller) reclaim() {
	if c.probe != nil {
		c.probe.Reclaim()
	}
}
