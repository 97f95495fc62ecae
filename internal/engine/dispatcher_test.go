package engine

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/rasterfilter/internal/cache"
	"github.com/MeKo-Tech/rasterfilter/internal/filter"
	"github.com/MeKo-Tech/rasterfilter/internal/geom"
	"github.com/MeKo-Tech/rasterfilter/internal/raster"
	"github.com/MeKo-Tech/rasterfilter/internal/selection"
	"github.com/MeKo-Tech/rasterfilter/internal/store"
)

func newDispatcher(t *testing.T, cfg Config) *Dispatcher {
	t.Helper()
	if cfg.Cache == nil {
		c, err := cache.New(32)
		require.NoError(t, err)
		cfg.Cache = c
	}
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

// newTarget builds a 2x2 target with a fixed, distinguishable pixel
// pattern.
func newTarget(t *testing.T, id string) *raster.Target {
	t.Helper()
	target, err := raster.New(id, 2, 2, geom.Identity())
	require.NoError(t, err)
	require.NoError(t, target.Replace([]uint8{
		100, 110, 120, 255, 10, 20, 30, 255,
		200, 210, 220, 128, 0, 0, 0, 255,
	}))
	return target
}

func TestApplyRejectsInvalidParams(t *testing.T) {
	d := newDispatcher(t, Config{})
	target := newTarget(t, "a")
	before := target.Snapshot()

	spec := filter.Spec{Kind: filter.Brightness, Params: filter.Params{Adjustment: 500}}
	outcomes, err := d.Apply(context.Background(), []*raster.Target{target}, spec, nil)

	var invalid *filter.InvalidParameterError
	require.True(t, errors.As(err, &invalid))
	assert.Nil(t, outcomes)
	assert.Equal(t, before, target.Snapshot(), "rejected batch must not touch pixels")
}

func TestApplyEmptyBatch(t *testing.T) {
	d := newDispatcher(t, Config{})

	spec := filter.Spec{Kind: filter.Invert}
	_, err := d.Apply(context.Background(), nil, spec, nil)
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestApplyCommitsAndNotifies(t *testing.T) {
	var committed []string
	d := newDispatcher(t, Config{
		OnCommit: func(id string, spec filter.Spec) {
			committed = append(committed, id+"/"+spec.Kind.String())
		},
	})
	target := newTarget(t, "a")
	revBefore := target.Revision()

	spec := filter.Spec{Kind: filter.Brightness, Params: filter.Params{Adjustment: 50}}
	outcomes, err := d.Apply(context.Background(), []*raster.Target{target}, spec, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)

	pix := target.Snapshot()
	assert.Equal(t, uint8(150), pix[0])
	assert.Equal(t, uint8(160), pix[1])
	assert.Equal(t, uint8(255), pix[3], "alpha must be preserved")
	assert.Equal(t, []string{"a/brightness"}, committed)
	assert.Equal(t, revBefore, target.Revision(), "filter commits must not bump the revision")
}

func TestRepeatApplyHitsCache(t *testing.T) {
	d := newDispatcher(t, Config{})
	target := newTarget(t, "a")

	spec := filter.Spec{Kind: filter.Invert}
	outcomes, err := d.Apply(context.Background(), []*raster.Target{target}, spec, nil)
	require.NoError(t, err)
	assert.False(t, outcomes[0].CacheHit)
	require.Equal(t, uint64(1), d.Computations())

	first := target.Snapshot()

	outcomes, err = d.Apply(context.Background(), []*raster.Target{target}, spec, nil)
	require.NoError(t, err)
	assert.True(t, outcomes[0].CacheHit)
	assert.Equal(t, uint64(1), d.Computations(), "identical re-apply must be served from cache")
	assert.Equal(t, first, target.Snapshot())
}

func TestExternalEditInvalidates(t *testing.T) {
	d := newDispatcher(t, Config{})
	target := newTarget(t, "a")

	spec := filter.Spec{Kind: filter.Grayscale}
	_, err := d.Apply(context.Background(), []*raster.Target{target}, spec, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), d.Computations())

	// An external paint edit bumps the revision; the old result no longer
	// applies.
	require.NoError(t, target.Replace([]uint8{
		50, 60, 70, 255, 80, 90, 100, 255,
		1, 2, 3, 255, 4, 5, 6, 255,
	}))
	d.InvalidateTarget(target.ID())

	outcomes, err := d.Apply(context.Background(), []*raster.Target{target}, spec, nil)
	require.NoError(t, err)
	assert.False(t, outcomes[0].CacheHit)
	assert.Equal(t, uint64(2), d.Computations())
}

func TestMaskedApplyRespectsSelection(t *testing.T) {
	d := newDispatcher(t, Config{})
	target := newTarget(t, "a")
	before := target.Snapshot()

	// Select only the left column in display space; the transform is
	// identity, so display cells line up with pixels.
	mask, err := selection.New(image.Rect(0, 0, 2, 2))
	require.NoError(t, err)
	mask.Set(0, 0, 255)
	mask.Set(0, 1, 255)

	spec := filter.Spec{Kind: filter.Invert}
	outcomes, err := d.Apply(context.Background(), []*raster.Target{target}, spec, mask)
	require.NoError(t, err)
	require.NoError(t, outcomes[0].Err)

	pix := target.Snapshot()
	assert.Equal(t, uint8(255-100), pix[0], "selected pixel must be inverted")
	assert.Equal(t, before[4:8], pix[4:8], "unselected pixel must be byte-identical")
	assert.Equal(t, before[12:16], pix[12:16], "unselected pixel must be byte-identical")
}

func TestMaskGeometryKeysTheCache(t *testing.T) {
	d := newDispatcher(t, Config{})
	target := newTarget(t, "a")

	maskA, err := selection.New(image.Rect(0, 0, 2, 2))
	require.NoError(t, err)
	maskA.Set(0, 0, 255)

	maskB := maskA.Clone()
	maskB.Set(1, 1, 255)

	spec := filter.Spec{Kind: filter.Invert}
	_, err = d.Apply(context.Background(), []*raster.Target{target}, spec, maskA)
	require.NoError(t, err)
	_, err = d.Apply(context.Background(), []*raster.Target{target}, spec, maskB)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), d.Computations(), "different selections must not share results")
}

func TestDegenerateTransformFailsOnlyThatTarget(t *testing.T) {
	d := newDispatcher(t, Config{})

	good := newTarget(t, "good")
	bad := newTarget(t, "bad")
	bad.SetTransform(geom.Transform{ScaleX: 0, ScaleY: 1})

	mask, err := selection.New(image.Rect(0, 0, 2, 2))
	require.NoError(t, err)
	mask.Set(0, 0, 255)

	spec := filter.Spec{Kind: filter.Invert}
	outcomes, err := d.Apply(context.Background(), []*raster.Target{bad, good}, spec, mask)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	var degenerate *geom.DegenerateTransformError
	require.True(t, errors.As(outcomes[0].Err, &degenerate))
	assert.NoError(t, outcomes[1].Err, "healthy targets must still be processed")
}

func TestCancelledContextAborts(t *testing.T) {
	d := newDispatcher(t, Config{})
	target := newTarget(t, "a")
	before := target.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spec := filter.Spec{Kind: filter.Invert}
	outcomes, err := d.Apply(ctx, []*raster.Target{target}, spec, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, outcomes[0].Err, context.Canceled)
	assert.Equal(t, before, target.Snapshot(), "aborted pass must not commit")
}

func TestSupersededInvocationNeverCommits(t *testing.T) {
	d := newDispatcher(t, Config{})
	target := newTarget(t, "a")
	before := target.Snapshot()

	// Hold the per-target lock so the invocation queues, then claim a
	// newer generation before releasing it.
	st := d.state(target.ID())
	st.mu.Lock()

	outCh := make(chan Outcome, 1)
	go func() {
		spec := filter.Spec{Kind: filter.Invert}
		outCh <- d.applyOne(context.Background(), target, spec, nil)
	}()

	for st.latest.Load() == 0 {
		time.Sleep(time.Millisecond) // wait for the invocation to claim its generation
	}
	st.latest.Add(1)
	st.mu.Unlock()

	out := <-outCh
	assert.True(t, out.Superseded)
	assert.NoError(t, out.Err)
	assert.Equal(t, before, target.Snapshot(), "superseded pass must not commit")
}

func TestStoreServesAcrossDispatchers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	target := newTarget(t, "a")
	spec := filter.Spec{Kind: filter.Sepia, Params: filter.Params{Intensity: 100}}

	d1 := newDispatcher(t, Config{Store: st})
	outcomes, err := d1.Apply(context.Background(), []*raster.Target{target}, spec, nil)
	require.NoError(t, err)
	require.NoError(t, outcomes[0].Err)
	want := target.Snapshot()

	// A fresh dispatcher with a cold cache finds the result in the store.
	fresh := newTarget(t, "a")
	d2 := newDispatcher(t, Config{Store: st})
	outcomes, err = d2.Apply(context.Background(), []*raster.Target{fresh}, spec, nil)
	require.NoError(t, err)
	require.NoError(t, outcomes[0].Err)
	assert.True(t, outcomes[0].FromStore)
	assert.Equal(t, uint64(0), d2.Computations())
	assert.Equal(t, want, fresh.Snapshot())
}

func TestConcurrentAppliesSerialize(t *testing.T) {
	d := newDispatcher(t, Config{})
	target := newTarget(t, "a")

	specs := []filter.Spec{
		{Kind: filter.Invert},
		{Kind: filter.Grayscale},
		{Kind: filter.Brightness, Params: filter.Params{Adjustment: 10}},
		{Kind: filter.Sepia, Params: filter.Params{Intensity: 50}},
	}

	done := make(chan error, len(specs))
	for _, spec := range specs {
		go func(spec filter.Spec) {
			_, err := d.Apply(context.Background(), []*raster.Target{target}, spec, nil)
			done <- err
		}(spec)
	}
	for range specs {
		require.NoError(t, <-done)
	}

	// The buffer must be internally consistent: alpha of the opaque
	// pixels survives every kind above.
	pix := target.Snapshot()
	assert.Equal(t, uint8(255), pix[3])
	assert.Equal(t, uint8(255), pix[7])
}
