// Package engine orchestrates filter application: validation, cache lookup,
// coverage resolution, computation, and atomic commit back to the targets.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/rasterfilter/internal/cache"
	"github.com/MeKo-Tech/rasterfilter/internal/filter"
	"github.com/MeKo-Tech/rasterfilter/internal/geom"
	"github.com/MeKo-Tech/rasterfilter/internal/raster"
	"github.com/MeKo-Tech/rasterfilter/internal/selection"
)

// ErrNoTargets is returned by Apply when the batch is empty.
var ErrNoTargets = errors.New("no targets to filter")

// errSuperseded aborts an in-flight pass when a newer invocation has taken
// over the same target.
var errSuperseded = errors.New("superseded by a newer invocation")

// ResultStore is the optional second-level lookup behind the in-memory
// cache. A nil result with a nil error means the key is absent.
type ResultStore interface {
	Get(key cache.Key) (*cache.Result, error)
	Put(key cache.Key, pix []uint8, width, height int) error
}

// CommitFunc is notified after a filtered buffer has been committed to a
// target.
type CommitFunc func(targetID string, spec filter.Spec)

// Config configures a Dispatcher. Cache is required; Store, OnCommit, and
// Logger are optional.
type Config struct {
	Cache    *cache.Cache
	Store    ResultStore
	OnCommit CommitFunc
	Logger   *slog.Logger
}

// Outcome reports what happened to one target of a batch invocation.
type Outcome struct {
	TargetID   string
	CacheHit   bool
	FromStore  bool
	Superseded bool
	Err        error
	Elapsed    time.Duration
}

// targetState serializes filter work per target and tracks the newest
// invocation generation for last-write-wins supersession.
type targetState struct {
	mu     sync.Mutex
	latest atomic.Uint64
}

// Dispatcher applies filters to pixel targets. Concurrent invocations on
// the same target are serialized; when a newer invocation arrives while an
// older one is still computing, the older one aborts at the next row
// boundary and never commits.
type Dispatcher struct {
	cache    *cache.Cache
	store    ResultStore
	onCommit CommitFunc
	logger   *slog.Logger

	mu     sync.Mutex
	states map[string]*targetState

	computations atomic.Uint64
}

// New creates a dispatcher from cfg.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("dispatcher requires a result cache")
	}
	return &Dispatcher{
		cache:    cfg.Cache,
		store:    cfg.Store,
		onCommit: cfg.OnCommit,
		logger:   cfg.Logger,
		states:   make(map[string]*targetState),
	}, nil
}

func (d *Dispatcher) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}

// Computations reports how many filter passes were actually computed, as
// opposed to served from the cache or the store.
func (d *Dispatcher) Computations() uint64 {
	return d.computations.Load()
}

// InvalidateTarget drops every cached result for a target. Call it after
// the target's pixel buffer was replaced outside the dispatcher.
func (d *Dispatcher) InvalidateTarget(targetID string) int {
	return d.cache.InvalidateTarget(targetID)
}

// state returns the per-target serialization record, creating it on first
// use.
func (d *Dispatcher) state(targetID string) *targetState {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.states[targetID]
	if st == nil {
		st = &targetState{}
		d.states[targetID] = st
	}
	return st
}

// Apply runs one filter pass over every target in the batch, constrained by
// the optional selection mask. Parameter validation failures reject the
// whole batch before any pixel is touched; per-target failures are reported
// in the returned outcomes and do not stop the remaining targets.
func (d *Dispatcher) Apply(ctx context.Context, targets []*raster.Target, spec filter.Spec, mask *selection.Mask) ([]Outcome, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	// Snapshot the mask so concurrent selection edits cannot tear an
	// in-flight pass.
	mask = mask.Clone()

	outcomes := make([]Outcome, len(targets))
	for i, target := range targets {
		outcomes[i] = d.applyOne(ctx, target, spec, mask)
	}
	return outcomes, nil
}

func (d *Dispatcher) applyOne(ctx context.Context, target *raster.Target, spec filter.Spec, mask *selection.Mask) Outcome {
	start := time.Now()
	out := Outcome{TargetID: target.ID()}

	st := d.state(target.ID())
	gen := st.latest.Add(1)

	st.mu.Lock()
	defer st.mu.Unlock()

	// A newer invocation may already be queued behind us; bail before
	// doing any work.
	if st.latest.Load() != gen {
		out.Superseded = true
		out.Elapsed = time.Since(start)
		return out
	}

	check := func(row int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if st.latest.Load() != gen {
			return errSuperseded
		}
		return nil
	}

	err := d.run(target, spec, mask, check, &out)
	if errors.Is(err, errSuperseded) {
		out.Superseded = true
	} else if err != nil {
		out.Err = err
	}
	out.Elapsed = time.Since(start)
	return out
}

// run performs the cache/store/compute flow for one target and commits the
// result. The target's pixel buffer is only written on success.
func (d *Dispatcher) run(target *raster.Target, spec filter.Spec, mask *selection.Mask, check filter.RowCheck, out *Outcome) error {
	key := cache.Key{
		TargetID:   target.ID(),
		Revision:   target.Revision(),
		Kind:       spec.Kind.String(),
		Params:     spec.CacheString(),
		MaskDigest: mask.Digest(),
	}

	if res, err := d.cache.Get(key); err != nil {
		var corrupt *cache.CorruptionError
		if !errors.As(err, &corrupt) {
			return err
		}
		d.log().Warn("Discarded corrupted cache entry", "target", target.ID(), "kind", key.Kind)
	} else if res != nil {
		out.CacheHit = true
		return d.commit(target, spec, res.Pix)
	}

	if d.store != nil {
		res, err := d.store.Get(key)
		if err != nil {
			d.log().Warn("Result store lookup failed", "target", target.ID(), "error", err)
		} else if res != nil {
			out.FromStore = true
			d.cache.Put(key, res.Pix, res.Width, res.Height)
			return d.commit(target, spec, res.Pix)
		}
	}

	pix, err := d.compute(target, spec, mask, check)
	if err != nil {
		return err
	}

	d.cache.Put(key, pix, target.Width(), target.Height())
	if d.store != nil {
		if err := d.store.Put(key, pix, target.Width(), target.Height()); err != nil {
			d.log().Warn("Failed to persist result", "target", target.ID(), "error", err)
		}
	}

	return d.commit(target, spec, pix)
}

// compute produces the filtered pixel buffer for one target, resolving the
// selection mask into a per-pixel coverage grid first.
func (d *Dispatcher) compute(target *raster.Target, spec filter.Spec, mask *selection.Mask, check filter.RowCheck) ([]uint8, error) {
	d.computations.Add(1)

	pix := target.Snapshot()
	w, h := target.Width(), target.Height()

	if mask == nil {
		return filter.Whole(pix, w, h, spec, check)
	}

	coverage, err := resolveCoverage(target, mask, check)
	if err != nil {
		return nil, err
	}
	return filter.Masked(pix, w, h, spec, coverage, check)
}

// resolveCoverage samples the display-space mask at every pixel center,
// producing a coverage grid in the target's own pixel space.
func resolveCoverage(target *raster.Target, mask *selection.Mask, check filter.RowCheck) ([]uint8, error) {
	mapper, err := geom.NewMapper(target.Transform())
	if err != nil {
		return nil, err
	}

	w, h := target.Width(), target.Height()
	coverage := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		if err := check(y); err != nil {
			return nil, err
		}
		for x := 0; x < w; x++ {
			p := mapper.ToDisplay(geom.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			coverage[y*w+x] = mask.Sample(p.X, p.Y)
		}
	}
	return coverage, nil
}

func (d *Dispatcher) commit(target *raster.Target, spec filter.Spec, pix []uint8) error {
	if err := target.Commit(pix); err != nil {
		return fmt.Errorf("failed to commit result to target %q: %w", target.ID(), err)
	}
	if d.onCommit != nil {
		d.onCommit(target.ID(), spec)
	}
	return nil
}
