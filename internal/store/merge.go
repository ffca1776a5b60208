// Package store holds the append-only merge stores that producer tasks
// write into concurrently, and the run archive used for multi-run audits.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"tribunal/internal/logging"
	"tribunal/internal/metrics"
)

var (
	// ErrFrozen is returned by Submit once the owning stage has completed.
	ErrFrozen = errors.New("store is frozen: stage already completed")
	// ErrNotFrozen is returned by Snapshot while the stage is still running.
	ErrNotFrozen = errors.New("store is not frozen: stage still running")
)

// Spec describes one value kind held by a Store.
type Spec[V any] struct {
	// Name labels logs and metrics ("evidence", "opinions").
	Name string
	// Validate rejects structurally invalid values. Nil accepts everything.
	Validate func(V) error
	// Partition returns the partition key of a value.
	Partition func(V) string
	// Compare is a total order used to canonicalise snapshots.
	Compare func(a, b V) int
	// Prepare normalises a value before it is stored (e.g. assigns ids).
	Prepare func(V) V
}

// Store is an append-only, partitioned collection written concurrently by
// producer tasks. Submissions never overwrite one another; the frozen
// snapshot is canonically ordered, so its contents do not depend on the
// order or interleaving of submissions.
type Store[V any] struct {
	spec   Spec[V]
	logger *slog.Logger

	mu     sync.Mutex
	items  []V
	frozen *Snapshot[V]
}

// New returns an empty store for the given value kind.
func New[V any](spec Spec[V]) *Store[V] {
	if spec.Partition == nil {
		spec.Partition = func(V) string { return "" }
	}
	return &Store[V]{spec: spec, logger: logging.New("store").With("store", spec.Name)}
}

// Name returns the store label.
func (s *Store[V]) Name() string { return s.spec.Name }

// Submit validates v and appends it. A value that fails validation is
// rejected with the validation error and leaves the store untouched.
func (s *Store[V]) Submit(v V) error {
	if s.spec.Validate != nil {
		if err := s.spec.Validate(v); err != nil {
			metrics.CountSubmission(s.spec.Name, metrics.SubmitRejected)
			s.logger.Warn("submission rejected", "error", err)
			return err
		}
	}
	if s.spec.Prepare != nil {
		v = s.spec.Prepare(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen != nil {
		metrics.CountSubmission(s.spec.Name, metrics.SubmitLate)
		return ErrFrozen
	}
	s.items = append(s.items, v)
	metrics.CountSubmission(s.spec.Name, metrics.SubmitAccepted)
	return nil
}

// Freeze closes the store to further submissions and returns its snapshot.
// The executor calls it at the join barrier. Freeze is idempotent.
func (s *Store[V]) Freeze() *Snapshot[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen == nil {
		s.frozen = newSnapshot(s.spec, s.items)
		s.items = nil
		s.logger.Debug("store frozen", "records", s.frozen.Len())
	}
	return s.frozen
}

// Snapshot returns the frozen view. It fails with ErrNotFrozen while the
// owning stage is still running.
func (s *Store[V]) Snapshot() (*Snapshot[V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen == nil {
		return nil, fmt.Errorf("%s: %w", s.spec.Name, ErrNotFrozen)
	}
	return s.frozen, nil
}

// Snapshot is an immutable, canonically ordered view of a frozen store.
type Snapshot[V any] struct {
	spec       Spec[V]
	items      []V
	partitions map[string][]V
	keys       []string
}

// Combiner is the associative, commutative merge implemented once per
// value kind.
type Combiner[S any] interface {
	Combine(other S) S
}

var _ Combiner[*Snapshot[int]] = (*Snapshot[int])(nil)

func newSnapshot[V any](spec Spec[V], items []V) *Snapshot[V] {
	sorted := slices.Clone(items)
	if spec.Compare != nil {
		slices.SortStableFunc(sorted, spec.Compare)
	}
	snap := &Snapshot[V]{spec: spec, items: sorted, partitions: make(map[string][]V)}
	for _, v := range sorted {
		k := spec.Partition(v)
		if _, ok := snap.partitions[k]; !ok {
			snap.keys = append(snap.keys, k)
		}
		snap.partitions[k] = append(snap.partitions[k], v)
	}
	slices.Sort(snap.keys)
	return snap
}

// Len returns the number of values in the snapshot.
func (s *Snapshot[V]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// All returns a copy of every value in canonical order.
func (s *Snapshot[V]) All() []V {
	if s == nil {
		return nil
	}
	return slices.Clone(s.items)
}

// Partition returns a copy of the values under key, in canonical order.
func (s *Snapshot[V]) Partition(key string) []V {
	if s == nil {
		return nil
	}
	return slices.Clone(s.partitions[key])
}

// Keys returns the partition keys present, sorted.
func (s *Snapshot[V]) Keys() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.keys)
}

// Counts returns the number of values per partition.
func (s *Snapshot[V]) Counts() map[string]int {
	out := make(map[string]int)
	if s == nil {
		return out
	}
	for k, vs := range s.partitions {
		out[k] = len(vs)
	}
	return out
}

// Combine merges two snapshots of the same kind into a new one. The
// operation is commutative and associative: it is multiset union followed
// by canonical ordering.
func (s *Snapshot[V]) Combine(other *Snapshot[V]) *Snapshot[V] {
	if s == nil {
		return other
	}
	if other == nil {
		return s
	}
	merged := make([]V, 0, len(s.items)+len(other.items))
	merged = append(merged, s.items...)
	merged = append(merged, other.items...)
	return newSnapshot(s.spec, merged)
}
