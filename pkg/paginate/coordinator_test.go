package paginate_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reflowio/paginate/internal/testutil"
	"github.com/reflowio/paginate/pkg/document"
	"github.com/reflowio/paginate/pkg/measure"
	"github.com/reflowio/paginate/pkg/paginate"
)

func newTestCoordinator(t *testing.T, spine document.Spine, m measure.Measurer) *paginate.Coordinator {
	t.Helper()

	cfg := paginate.DefaultConfig()
	nop := zerolog.Nop()
	cfg.Logger = &nop

	c := paginate.New(spine, m, cfg)
	t.Cleanup(c.Close)
	return c
}

// waitForPositions polls CurrentPositions until it holds n pages
// without error.
func waitForPositions(t *testing.T, c *paginate.Coordinator, n int) []paginate.Position {
	t.Helper()

	var positions []paginate.Position
	require.Eventually(t, func() bool {
		var err error
		positions, err = c.CurrentPositions()
		return err == nil && len(positions) == n
	}, 5*time.Second, 5*time.Millisecond, "waiting for %d positions", n)
	return positions
}

// waitForFailure polls CurrentPositions until it yields an error.
func waitForFailure(t *testing.T, c *paginate.Coordinator) error {
	t.Helper()

	var synthErr error
	require.Eventually(t, func() bool {
		_, err := c.CurrentPositions()
		synthErr = err
		return err != nil && !errors.Is(err, paginate.ErrClosed)
	}, 5*time.Second, 5*time.Millisecond, "waiting for synthesis failure")
	return synthErr
}

func TestCoordinator_PaginatesDocument(t *testing.T) {
	spine := document.Spine{"u1", "u2"}
	measurer := testutil.NewScriptedMeasurer()
	measurer.SetHeight("u1", 100, 250)
	measurer.SetHeight("u2", 100, 50)

	c := newTestCoordinator(t, spine, measurer)
	c.DocumentReady()
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))

	positions := waitForPositions(t, c, 4)

	pageHeights := make([]float64, len(positions))
	for i, p := range positions {
		pageHeights[i] = p.PageSize.Height
	}
	assert.Equal(t, []float64{100, 100, 50, 50}, pageHeights)
	assert.Equal(t, document.ItemRef("u1"), positions[0].Unit)
	assert.Equal(t, document.ItemRef("u2"), positions[3].Unit)

	out, ok := c.HeightFor("u1")
	require.True(t, ok)
	assert.Equal(t, 250.0, out.Height)
}

func TestCoordinator_PositionsEmptyBeforeReady(t *testing.T) {
	c := newTestCoordinator(t, document.Spine{"u1"}, testutil.NewScriptedMeasurer())

	positions, err := c.CurrentPositions()
	require.NoError(t, err)
	assert.Empty(t, positions)

	_, ok := c.HeightFor("u1")
	assert.False(t, ok)
}

func TestCoordinator_RepeatedReadyIsNoOp(t *testing.T) {
	spine := document.Spine{"u1", "u2"}
	measurer := testutil.NewScriptedMeasurer()
	measurer.SetHeight("u1", 100, 250)
	measurer.SetHeight("u2", 100, 50)

	c := newTestCoordinator(t, spine, measurer)
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))
	c.DocumentReady()
	waitForPositions(t, c, 4)

	c.DocumentReady()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, measurer.Calls("u1", 100))
	assert.Equal(t, 1, measurer.Calls("u2", 100))
}

func TestCoordinator_HeightOnlyChangeDoesNotRemeasure(t *testing.T) {
	spine := document.Spine{"u1", "u2"}
	measurer := testutil.NewScriptedMeasurer()
	measurer.SetHeight("u1", 100, 250)
	measurer.SetHeight("u2", 100, 50)

	c := newTestCoordinator(t, spine, measurer)
	c.DocumentReady()
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))
	waitForPositions(t, c, 4)

	// Same width, taller page: u1 now spans 2 pages, u2 still 1.
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 200}))
	waitForPositions(t, c, 3)

	assert.Equal(t, 2, measurer.TotalCalls(), "height-only change must not trigger measurement")
}

func TestCoordinator_WidthChangeRetainsOldWidthCache(t *testing.T) {
	spine := document.Spine{"u1", "u2"}
	measurer := testutil.NewScriptedMeasurer()
	measurer.SetHeight("u1", 100, 250)
	measurer.SetHeight("u2", 100, 50)
	measurer.SetHeight("u1", 200, 500)
	measurer.SetHeight("u2", 200, 100)
	measurer.CloseGate()

	c := newTestCoordinator(t, spine, measurer)
	c.DocumentReady()
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))

	// Width changes while the width-100 measurements are still in
	// flight behind the gate.
	require.Eventually(t, func() bool {
		return measurer.InFlight() >= 2
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 200, Height: 100}))

	measurer.OpenGate()
	waitForPositions(t, c, 6) // u1: 5 pages, u2: 1 page at width 200

	// The late width-100 outcomes were cached anyway: switching back
	// needs no further renderer work.
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))
	waitForPositions(t, c, 4)
	assert.Equal(t, 1, measurer.Calls("u1", 100))
	assert.Equal(t, 1, measurer.Calls("u2", 100))
}

func TestCoordinator_FailurePoisonsOnlyItsWidth(t *testing.T) {
	spine := document.Spine{"u1", "u2"}
	cause := errors.New("render error")
	measurer := testutil.NewScriptedMeasurer()
	measurer.SetFailure("u1", 100, cause)
	measurer.SetHeight("u2", 100, 50)
	measurer.SetHeight("u1", 200, 500)
	measurer.SetHeight("u2", 200, 100)

	c := newTestCoordinator(t, spine, measurer)
	c.DocumentReady()
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))

	err := waitForFailure(t, c)
	var synErr *paginate.SynthesisError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, 100.0, synErr.Width)
	var measErr *measure.MeasurementError
	require.ErrorAs(t, err, &measErr)
	assert.Equal(t, document.ItemRef("u1"), measErr.Unit)
	assert.ErrorIs(t, err, cause)

	// A different width is unaffected.
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 200, Height: 100}))
	waitForPositions(t, c, 6)

	// The failure is terminal: coming back to width 100 yields it
	// again without re-measuring.
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))
	waitForFailure(t, c)
	assert.Equal(t, 1, measurer.Calls("u1", 100))
}

func TestCoordinator_SuppressesUnchangedPublications(t *testing.T) {
	spine := document.Spine{"u1", "u2"}
	measurer := testutil.NewScriptedMeasurer()
	measurer.SetHeight("u1", 100, 250)
	measurer.SetHeight("u2", 100, 50)

	c := newTestCoordinator(t, spine, measurer)
	updates, cancel := c.SubscribePositions()
	defer cancel()

	// Page height zero: every synthesis run yields the same empty
	// table, so completing measurements must not publish anything.
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 0}))
	c.DocumentReady()

	require.Eventually(t, func() bool {
		_, ok1 := c.HeightFor("u1")
		_, ok2 := c.HeightFor("u2")
		return ok1 && ok2
	}, 5*time.Second, 5*time.Millisecond)

	select {
	case res := <-updates:
		t.Fatalf("unchanged value was published: %+v", res)
	case <-time.After(100 * time.Millisecond):
	}

	// A real change publishes.
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))
	select {
	case res := <-updates:
		require.NoError(t, res.Err)
		assert.Len(t, res.Positions, 4)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a publication after the page size change")
	}
}

func TestCoordinator_PositionUpdatesAreDistinct(t *testing.T) {
	spine := document.Spine{"u1", "u2"}
	measurer := testutil.NewScriptedMeasurer()
	measurer.SetHeight("u1", 100, 250)
	measurer.SetHeight("u2", 100, 50)

	c := newTestCoordinator(t, spine, measurer)
	updates, cancel := c.SubscribePositions()
	defer cancel()

	c.DocumentReady()
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))

	var received []paginate.Result
	deadline := time.After(5 * time.Second)
	for {
		select {
		case res := <-updates:
			received = append(received, res)
		case <-deadline:
			t.Fatal("timed out waiting for the full page table")
		}
		if len(received) > 0 && len(received[len(received)-1].Positions) == 4 {
			break
		}
	}

	for i := 1; i < len(received); i++ {
		assert.False(t, received[i].Equal(received[i-1]),
			"consecutive updates %d and %d are equal", i-1, i)
	}
}

func TestCoordinator_HeightSubscription(t *testing.T) {
	spine := document.Spine{"u1"}
	measurer := testutil.NewScriptedMeasurer()
	measurer.SetHeight("u1", 100, 250)
	measurer.SetHeight("u1", 300, 600)

	c := newTestCoordinator(t, spine, measurer)
	updates, cancel := c.SubscribeHeight("u1")
	defer cancel()

	c.DocumentReady()
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))

	recv := func() paginate.HeightUpdate {
		select {
		case u := <-updates:
			return u
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for height update")
			return paginate.HeightUpdate{}
		}
	}

	first := recv()
	require.True(t, first.Known)
	assert.Equal(t, 250.0, first.Outcome.Height)

	// Switching to an unmeasured width flips the value to unknown,
	// then to the new outcome once measured.
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 300, Height: 100}))
	second := recv()
	assert.False(t, second.Known)

	third := recv()
	require.True(t, third.Known)
	assert.Equal(t, 600.0, third.Outcome.Height)
}

func TestCoordinator_WatchReadiness(t *testing.T) {
	spine := document.Spine{"u1"}
	measurer := testutil.NewScriptedMeasurer()
	measurer.SetHeight("u1", 100, 50)

	c := newTestCoordinator(t, spine, measurer)
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))

	ready := make(chan struct{})
	c.WatchReadiness(context.Background(), ready)

	ready <- struct{}{}
	waitForPositions(t, c, 1)

	// Further transitions are no-ops.
	ready <- struct{}{}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, measurer.Calls("u1", 100))
}

func TestCoordinator_SetPageSizeRejectsInvalidSizes(t *testing.T) {
	c := newTestCoordinator(t, document.Spine{"u1"}, testutil.NewScriptedMeasurer())

	assert.Error(t, c.SetPageSize(paginate.Size{Width: math.NaN(), Height: 100}))
	assert.Error(t, c.SetPageSize(paginate.Size{Width: 100, Height: -5}))
	assert.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 0}))
}

func TestCoordinator_CloseCancelsOutstandingWork(t *testing.T) {
	spine := document.Spine{"u1", "u2", "u3"}
	measurer := testutil.NewScriptedMeasurer()
	for _, unit := range spine {
		measurer.SetHeight(unit, 100, 100)
	}
	measurer.CloseGate()

	cfg := paginate.DefaultConfig()
	nop := zerolog.Nop()
	cfg.Logger = &nop
	c := paginate.New(spine, measurer, cfg)

	c.DocumentReady()
	require.NoError(t, c.SetPageSize(paginate.Size{Width: 100, Height: 100}))
	require.Eventually(t, func() bool {
		return measurer.InFlight() >= 2
	}, 5*time.Second, 5*time.Millisecond)

	c.Close()

	_, err := c.CurrentPositions()
	assert.ErrorIs(t, err, paginate.ErrClosed)

	_, ok := c.HeightFor("u1")
	assert.False(t, ok)

	// Subscriptions after close come back already closed.
	updates, cancel := c.SubscribePositions()
	defer cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestCoordinator_SubscriptionCancelClosesChannel(t *testing.T) {
	c := newTestCoordinator(t, document.Spine{"u1"}, testutil.NewScriptedMeasurer())

	updates, cancel := c.SubscribePositions()
	cancel()

	_, open := <-updates
	assert.False(t, open)
}
