package attendance

import (
	"cmp"
	"container/heap"
	"fmt"
	"slices"
)

// Merger collapses every interval of one employee, whatever its source, into
// a non-overlapping sequence. Overlaps are resolved by type rank only:
//
//   - the higher-ranked interval owns the overlapping segment; the lower one
//     is truncated, and whatever it had beyond the winner is re-queued;
//   - two intervals of the same type are unioned;
//   - two different types of equal rank: the one later in processing order
//     wins the overlap.
//
// Processing order is the total key (start asc, rank desc, end desc, type,
// source, validated), so the output never depends on the order of the input.
type Merger struct {
	Priorities Priorities
}

type MergeResult struct {
	Intervals []Interval
	Conflicts []Conflict
}

func NewMerger(p Priorities) Merger {
	return Merger{Priorities: p}
}

// Merge returns the canonical, non-overlapping intervals for employeeID.
// Intervals with End <= Start are skipped; the validator reports them.
func (m Merger) Merge(employeeID string, intervals []Interval) (MergeResult, error) {
	if employeeID == "" {
		return MergeResult{}, ErrEmptyEmployeeID
	}
	state := &mergeState{
		prio:  m.Priorities,
		queue: &worklist{prio: m.Priorities},
	}
	for _, iv := range intervals {
		if iv.EmployeeID != employeeID {
			return MergeResult{}, fmt.Errorf("%w: %s in timeline of %s", ErrEmployeeMismatch, iv.EmployeeID, employeeID)
		}
		if !iv.Valid() {
			continue
		}
		state.queue.items = append(state.queue.items, iv.WithEnd(iv.End))
	}
	heap.Init(state.queue)

	for state.queue.Len() > 0 {
		state.place(heap.Pop(state.queue).(Interval))
	}
	return MergeResult{Intervals: state.out, Conflicts: state.conflicts}, nil
}

type mergeState struct {
	prio      Priorities
	queue     *worklist
	out       []Interval
	conflicts []Conflict
}

// place resolves current against the tail of out. Every interval already in
// out starts at or before current.Start, which is what makes comparing with
// the last element enough.
func (s *mergeState) place(current Interval) {
	for {
		n := len(s.out)
		if n == 0 {
			s.out = append(s.out, current)
			return
		}
		last := s.out[n-1]
		if !current.Start.Before(last.End) {
			s.out = append(s.out, current)
			return
		}

		order := s.prio.Compare(current.Type, last.Type)
		switch {
		case order == 0 && current.Type == last.Type:
			merged := last
			if current.End.After(last.End) {
				merged = merged.WithEnd(current.End)
			}
			merged.Validated = last.Validated && current.Validated
			s.record(ConflictSameType, merged, current, "same activity reported twice, unioned")
			s.out = s.out[:n-1]
			current = merged

		case order >= 0:
			kind := ConflictPriority
			detail := fmt.Sprintf("%s outranks %s", current.Type, last.Type)
			if order == 0 {
				kind = ConflictDifferentType
				detail = fmt.Sprintf("%s and %s tie, later %s wins", current.Type, last.Type, current.Type)
			}
			s.record(kind, current, last, detail)
			if last.End.After(current.End) {
				s.requeue(last.WithStart(current.End))
			}
			if current.Start.After(last.Start) {
				s.out[n-1] = last.WithEnd(current.Start)
				s.out = append(s.out, current)
				return
			}
			s.out = s.out[:n-1]

		default:
			s.record(ConflictPriority, last, current, fmt.Sprintf("%s outranks %s", last.Type, current.Type))
			if current.End.After(last.End) {
				s.requeue(current.WithStart(last.End))
			}
			return
		}
	}
}

func (s *mergeState) requeue(iv Interval) {
	heap.Push(s.queue, iv)
}

func (s *mergeState) record(kind ConflictKind, kept, other Interval, detail string) {
	s.conflicts = append(s.conflicts, Conflict{Kind: kind, Kept: kept, Other: other, Detail: detail})
}

// CompareProcessing orders intervals the way the merger consumes them.
func CompareProcessing(p Priorities, a, b Interval) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Rank(b.Type), p.Rank(a.Type)); c != 0 {
		return c
	}
	if c := b.End.Compare(a.End); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	switch {
	case a.Validated == b.Validated:
		return 0
	case a.Validated:
		return -1
	default:
		return 1
	}
}

// SortIntervals returns a sorted copy in processing order.
func SortIntervals(p Priorities, intervals []Interval) []Interval {
	out := slices.Clone(intervals)
	slices.SortStableFunc(out, func(a, b Interval) int { return CompareProcessing(p, a, b) })
	return out
}

type worklist struct {
	prio  Priorities
	items []Interval
}

func (w *worklist) Len() int { return len(w.items) }

func (w *worklist) Less(i, j int) bool {
	return CompareProcessing(w.prio, w.items[i], w.items[j]) < 0
}

func (w *worklist) Swap(i, j int) { w.items[i], w.items[j] = w.items[j], w.items[i] }

func (w *worklist) Push(x any) { w.items = append(w.items, x.(Interval)) }

func (w *worklist) Pop() any {
	n := len(w.items)
	item := w.items[n-1]
	w.items = w.items[:n-1]
	return item
}
