package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/MeKo-Tech/rasterfilter/internal/filter"
	"github.com/MeKo-Tech/rasterfilter/internal/geom"
	"github.com/MeKo-Tech/rasterfilter/internal/raster"
	"github.com/MeKo-Tech/rasterfilter/internal/selection"
)

// UnknownTargetError reports a target ID the session does not manage.
type UnknownTargetError struct {
	ID string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target %q", e.ID)
}

// Session is the host-facing document model: a set of named pixel targets,
// an optional active selection mask, and a dispatcher to run filters over
// them. All methods are safe for concurrent use.
type Session struct {
	dispatcher *Dispatcher

	mu      sync.RWMutex
	targets map[string]*raster.Target
	order   []string
	mask    *selection.Mask
}

// NewSession creates a session using cfg's dispatcher configuration.
func NewSession(cfg Config) (*Session, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Session{
		dispatcher: d,
		targets:    make(map[string]*raster.Target),
	}, nil
}

// Dispatcher exposes the underlying dispatcher, mainly for stats.
func (s *Session) Dispatcher() *Dispatcher { return s.dispatcher }

// AddTarget registers a target under its ID. Adding a duplicate ID fails.
func (s *Session) AddTarget(t *raster.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[t.ID()]; ok {
		return fmt.Errorf("target %q already registered", t.ID())
	}
	s.targets[t.ID()] = t
	s.order = append(s.order, t.ID())
	return nil
}

// Target looks up a registered target by ID.
func (s *Session) Target(id string) (*raster.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	if !ok {
		return nil, &UnknownTargetError{ID: id}
	}
	return t, nil
}

// TargetIDs returns the registered target IDs in insertion order.
func (s *Session) TargetIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// PixelBuffer returns a snapshot copy of a target's pixels.
func (s *Session) PixelBuffer(id string) ([]uint8, error) {
	t, err := s.Target(id)
	if err != nil {
		return nil, err
	}
	return t.Snapshot(), nil
}

// ReplacePixelBuffer swaps in externally edited pixel content, bumping the
// target's revision and dropping its cached filter results.
func (s *Session) ReplacePixelBuffer(id string, pix []uint8) error {
	t, err := s.Target(id)
	if err != nil {
		return err
	}
	if err := t.Replace(pix); err != nil {
		return err
	}
	s.dispatcher.InvalidateTarget(id)
	return nil
}

// DisplayTransform returns a target's pixel-to-display transform.
func (s *Session) DisplayTransform(id string) (geom.Transform, error) {
	t, err := s.Target(id)
	if err != nil {
		return geom.Transform{}, err
	}
	return t.Transform(), nil
}

// SetDisplayTransform repositions a target on the canvas. Filter results
// are pixel-space, so cached entries stay valid.
func (s *Session) SetDisplayTransform(id string, tr geom.Transform) error {
	t, err := s.Target(id)
	if err != nil {
		return err
	}
	t.SetTransform(tr)
	return nil
}

// SetActiveMask installs the selection constraining subsequent Apply calls.
// A nil mask means "apply to entire targets". The mask is snapshotted, so
// the caller may keep editing its copy.
func (s *Session) SetActiveMask(m *selection.Mask) {
	s.mu.Lock()
	s.mask = m.Clone()
	s.mu.Unlock()
}

// ActiveMask returns a snapshot of the current selection, or nil.
func (s *Session) ActiveMask() *selection.Mask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mask.Clone()
}

// Apply runs one filter over the named targets, or over every registered
// target when no IDs are given. The active mask at call time constrains
// the pass.
func (s *Session) Apply(ctx context.Context, kindName string, params filter.Params, targetIDs ...string) ([]Outcome, error) {
	kind, err := filter.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	spec := filter.Spec{Kind: kind, Params: params}

	s.mu.RLock()
	if len(targetIDs) == 0 {
		targetIDs = append(targetIDs, s.order...)
	}
	targets := make([]*raster.Target, 0, len(targetIDs))
	var missing error
	for _, id := range targetIDs {
		t, ok := s.targets[id]
		if !ok {
			missing = &UnknownTargetError{ID: id}
			break
		}
		targets = append(targets, t)
	}
	mask := s.mask
	s.mu.RUnlock()

	if missing != nil {
		return nil, missing
	}
	return s.dispatcher.Apply(ctx, targets, spec, mask)
}
