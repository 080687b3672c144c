package paginate

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/reflowio/paginate/pkg/document"
	"github.com/reflowio/paginate/pkg/logging"
	"github.com/reflowio/paginate/pkg/measure"
)

// HeightUpdate is one observed change of a unit's measurement at the
// active width.
type HeightUpdate struct {
	Unit document.ItemRef

	// Outcome is the measurement at the active width. Valid only when
	// Known is true.
	Outcome measure.Outcome

	// Known is false while the active width has no outcome for the
	// unit, for example right after a width change.
	Known bool
}

// heightState is the last published height value for one unit. The
// zero value means "not measured", matching the state before any
// publication.
type heightState struct {
	out   measure.Outcome
	known bool
}

// Coordinator owns the height and position caches for one document and
// keeps the page-position table consistent with the measurements known
// so far. One coordinator serves one document/view pairing.
//
// All state transitions run on a single internal goroutine. Public
// methods are safe for concurrent use; measurement results arriving
// from scheduler workers are funneled into the same goroutine, so the
// caches never see concurrent writers.
type Coordinator struct {
	spine  document.Spine
	config Config
	logger zerolog.Logger

	scheduler *measure.Scheduler
	heights   *measure.HeightCache
	positions *PositionCache

	events chan func()
	quit   chan struct{}
	closed chan struct{}

	closeOnce sync.Once

	// Everything below is loop-owned state.
	ready         bool
	size          Size
	lastPublished Result
	lastHeight    map[document.ItemRef]heightState
	nextSubID     int
	posSubs       map[int]chan Result
	heightSubs    map[document.ItemRef]map[int]chan HeightUpdate
}

// New creates a coordinator for the given spine and renderer adapter
// and starts its event loop. The spine is copied; it must describe the
// document's full, stable reading order.
func New(spine document.Spine, m measure.Measurer, config Config) *Coordinator {
	if config.MaxConcurrentMeasurements <= 0 {
		config.MaxConcurrentMeasurements = 2
	}
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = 64
	}
	if config.SubscriptionBuffer <= 0 {
		config.SubscriptionBuffer = 16
	}
	logger := logging.NewLogger("paginate")
	if config.Logger != nil {
		logger = *config.Logger
	}

	c := &Coordinator{
		spine:      append(document.Spine(nil), spine...),
		config:     config,
		logger:     logger,
		heights:    measure.NewHeightCache(),
		positions:  NewPositionCache(),
		events:     make(chan func(), 128),
		quit:       make(chan struct{}),
		closed:     make(chan struct{}),
		lastHeight: make(map[document.ItemRef]heightState),
		posSubs:    make(map[int]chan Result),
		heightSubs: make(map[document.ItemRef]map[int]chan HeightUpdate),
	}

	// The Contains callback is only invoked from EnsureMeasured, which
	// the coordinator calls on its own loop, so the unlocked cache
	// read is serialized.
	c.scheduler = measure.NewScheduler(m, measure.SchedulerConfig{
		MaxConcurrent: config.MaxConcurrentMeasurements,
		QueueBuffer:   config.QueueBuffer,
	}, c.heights.Contains, c.handleResult, logger)

	go c.loop()

	return c
}

// Close cancels outstanding measurements, stops the event loop and
// closes all subscriber channels. Cancelled measurements never write
// outcomes. Close is idempotent and blocks until shutdown completes.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.logger.Debug().Msg("Coordinator closing")
		c.scheduler.Close()
		close(c.quit)
	})
	<-c.closed
}

// DocumentReady signals that the document can be measured. The first
// call triggers measurement at the current page width; repeated ready
// transitions are no-ops.
func (c *Coordinator) DocumentReady() {
	c.post(func() {
		if c.ready {
			return
		}
		c.ready = true
		c.logger.Info().Int("units", len(c.spine)).Msg("Document ready")
		c.ensureMeasured()
		c.resynthesize()
	})
}

// WatchReadiness forwards a readiness transition stream into the
// coordinator. Only the first transition to ready has any effect. The
// goroutine stops when ctx is done, the stream closes, or the
// coordinator shuts down.
func (c *Coordinator) WatchReadiness(ctx context.Context, ready <-chan struct{}) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			case _, ok := <-ready:
				if !ok {
					return
				}
				c.DocumentReady()
			}
		}
	}()
}

// SetPageSize changes the active page size. A width change triggers
// measurement at the new width; entries for previous widths are
// retained. A height-only change just re-slices the known heights.
// Setting the size the coordinator already has is a no-op.
func (c *Coordinator) SetPageSize(size Size) error {
	if !size.Valid() {
		return fmt.Errorf("invalid page size %gx%g", size.Width, size.Height)
	}
	c.post(func() {
		if size == c.size {
			return
		}
		widthChanged := size.Width != c.size.Width
		c.size = size
		c.logger.Debug().
			Float64("page_w", size.Width).
			Float64("page_h", size.Height).
			Bool("width_changed", widthChanged).
			Msg("Page size changed")
		if widthChanged {
			if c.ready {
				c.ensureMeasured()
			}
			c.republishHeights()
		}
		c.resynthesize()
	})
	return nil
}

// CurrentPositions returns the page table for the active size. Before
// the first synthesis it returns an empty list and no error. A
// SynthesisError means pagination at the active width is blocked by a
// failed measurement. Callers must not modify the returned slice.
func (c *Coordinator) CurrentPositions() ([]Position, error) {
	var res Result
	if err := c.call(func() {
		if cached, ok := c.positions.Get(c.size); ok {
			res = cached
		}
	}); err != nil {
		return nil, err
	}
	return res.Positions, res.Err
}

// HeightFor returns the measurement outcome for unit at the active
// width. ok is false while no outcome exists, and always after Close.
func (c *Coordinator) HeightFor(unit document.ItemRef) (out measure.Outcome, ok bool) {
	if err := c.call(func() {
		out, ok = c.heights.Get(unit, c.size.Width)
	}); err != nil {
		return measure.Outcome{}, false
	}
	return out, ok
}

// SubscribePositions registers an observer of the active page table.
// The channel receives each distinct successive value of
// CurrentPositions; unchanged recomputations are suppressed. cancel
// unregisters the observer and closes the channel.
func (c *Coordinator) SubscribePositions() (<-chan Result, func()) {
	ch := make(chan Result, c.config.SubscriptionBuffer)
	var id int
	if err := c.call(func() {
		c.nextSubID++
		id = c.nextSubID
		c.posSubs[id] = ch
	}); err != nil {
		close(ch)
		return ch, func() {}
	}

	cancel := func() {
		_ = c.call(func() {
			if sub, ok := c.posSubs[id]; ok {
				delete(c.posSubs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// SubscribeHeight registers an observer of one unit's measurement at
// the active width. The channel receives each distinct successive
// value of HeightFor, including the transition back to unknown when
// the width changes to one not yet measured.
func (c *Coordinator) SubscribeHeight(unit document.ItemRef) (<-chan HeightUpdate, func()) {
	ch := make(chan HeightUpdate, c.config.SubscriptionBuffer)
	var id int
	if err := c.call(func() {
		c.nextSubID++
		id = c.nextSubID
		subs := c.heightSubs[unit]
		if subs == nil {
			subs = make(map[int]chan HeightUpdate)
			c.heightSubs[unit] = subs
		}
		subs[id] = ch
	}); err != nil {
		close(ch)
		return ch, func() {}
	}

	cancel := func() {
		_ = c.call(func() {
			subs := c.heightSubs[unit]
			if sub, ok := subs[id]; ok {
				delete(subs, id)
				close(sub)
				if len(subs) == 0 {
					delete(c.heightSubs, unit)
				}
			}
		})
	}
	return ch, cancel
}

// loop is the serialized execution context: every cache write,
// synthesis run and publication happens here.
func (c *Coordinator) loop() {
	defer close(c.closed)
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.quit:
			for _, ch := range c.posSubs {
				close(ch)
			}
			for _, subs := range c.heightSubs {
				for _, ch := range subs {
					close(ch)
				}
			}
			return
		}
	}
}

// post schedules fn on the loop. Returns false if the coordinator is
// shutting down.
func (c *Coordinator) post(fn func()) bool {
	select {
	case c.events <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// call runs fn on the loop and waits for it to complete.
func (c *Coordinator) call(fn func()) error {
	done := make(chan struct{})
	if !c.post(func() {
		fn()
		close(done)
	}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

// handleResult hands a completed measurement from a scheduler worker
// into the loop.
func (c *Coordinator) handleResult(res measure.Result) {
	c.post(func() {
		c.applyResult(res)
	})
}

func (c *Coordinator) applyResult(res measure.Result) {
	if !c.heights.Put(res.Unit, res.Width, res.Outcome) {
		// Terminal outcomes are never overwritten.
		return
	}
	if res.Width != c.size.Width {
		// Cached for later; positions at the active width are
		// unaffected.
		return
	}
	c.notifyHeight(res.Unit, res.Outcome, true)
	c.resynthesize()
}

func (c *Coordinator) ensureMeasured() {
	if c.size.Width <= 0 {
		c.logger.Debug().Msg("Skipping measurement, no page width yet")
		return
	}
	c.scheduler.EnsureMeasured(c.spine, c.size.Width)
}

// resynthesize recomputes the page table for the active size from the
// current height snapshot and replaces the cache entry.
func (c *Coordinator) resynthesize() {
	snapshot := c.heights.Snapshot(c.size.Width)
	positions, err := Synthesize(c.spine, snapshot, c.size)
	if err != nil {
		synthesisRunsTotal.WithLabelValues("failed").Inc()
		c.logger.Warn().
			Err(err).
			Float64("page_w", c.size.Width).
			Float64("page_h", c.size.Height).
			Msg("Position synthesis blocked by failed measurement")
	} else {
		synthesisRunsTotal.WithLabelValues("ok").Inc()
	}

	res := Result{Positions: positions, Err: err}
	c.positions.Put(c.size, res)
	c.publish(res)
}

// publish delivers res to position subscribers unless it equals the
// last published value.
func (c *Coordinator) publish(res Result) {
	if res.Equal(c.lastPublished) {
		publicationsSuppressed.Inc()
		return
	}
	c.lastPublished = res
	publicationsTotal.Inc()
	c.logger.Debug().
		Int("pages", len(res.Positions)).
		Float64("page_w", c.size.Width).
		Float64("page_h", c.size.Height).
		Msg("Positions updated")

	for id, ch := range c.posSubs {
		select {
		case ch <- res:
		default:
			subscriberDropsTotal.Inc()
			c.logger.Warn().
				Int("subscriber", id).
				Msg("Position subscriber buffer full, update dropped")
		}
	}
}

// notifyHeight delivers a height change for unit unless the value at
// the active width is unchanged.
func (c *Coordinator) notifyHeight(unit document.ItemRef, out measure.Outcome, known bool) {
	state := heightState{out: out, known: known}
	if c.lastHeight[unit] == state {
		return
	}
	c.lastHeight[unit] = state

	update := HeightUpdate{Unit: unit, Outcome: out, Known: known}
	for id, ch := range c.heightSubs[unit] {
		select {
		case ch <- update:
		default:
			subscriberDropsTotal.Inc()
			c.logger.Warn().
				Int("subscriber", id).
				Str("unit", string(unit)).
				Msg("Height subscriber buffer full, update dropped")
		}
	}
}

// republishHeights refreshes every observed unit's height stream after
// a width change: values may flip to the new width's outcome or back
// to unknown.
func (c *Coordinator) republishHeights() {
	units := make(map[document.ItemRef]struct{}, len(c.heightSubs)+len(c.lastHeight))
	for unit := range c.heightSubs {
		units[unit] = struct{}{}
	}
	for unit := range c.lastHeight {
		units[unit] = struct{}{}
	}
	for unit := range units {
		out, known := c.heights.Get(unit, c.size.Width)
		c.notifyHeight(unit, out, known)
	}
}
