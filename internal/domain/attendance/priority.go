package attendance

import (
	"fmt"
	"strings"
)

// Priorities is an ordered enumeration of interval types, highest tier first.
// A tier may hold several types, which then tie. The merger only ever asks it
// for a rank, so the tie-break policy can be swapped and tested on its own.
type Priorities struct {
	tiers [][]IntervalType
	rank  map[IntervalType]int
}

var AllTypes = []IntervalType{TypeLeave, TypeWork, TypeBreak, TypeScheduled}

func DefaultPriorities() Priorities {
	p, _ := NewPriorities(TypeLeave, TypeWork, TypeBreak, TypeScheduled)
	return p
}

// NewPriorities builds a strict table from highest to lowest.
func NewPriorities(order ...IntervalType) (Priorities, error) {
	tiers := make([][]IntervalType, 0, len(order))
	for _, typ := range order {
		tiers = append(tiers, []IntervalType{typ})
	}
	return NewTieredPriorities(tiers...)
}

// NewTieredPriorities builds a table from tiers, highest first. Every known
// type must appear exactly once across all tiers.
func NewTieredPriorities(tiers ...[]IntervalType) (Priorities, error) {
	rank := make(map[IntervalType]int, len(AllTypes))
	copied := make([][]IntervalType, 0, len(tiers))
	for i, tier := range tiers {
		if len(tier) == 0 {
			return Priorities{}, fmt.Errorf("%w: empty tier at position %d", ErrInvalidPriorities, i)
		}
		for _, typ := range tier {
			if !knownType(typ) {
				return Priorities{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPriorities, typ)
			}
			if _, dup := rank[typ]; dup {
				return Priorities{}, fmt.Errorf("%w: duplicate type %q", ErrInvalidPriorities, typ)
			}
			rank[typ] = len(tiers) - 1 - i
		}
		copied = append(copied, append([]IntervalType(nil), tier...))
	}
	if len(rank) != len(AllTypes) {
		return Priorities{}, fmt.Errorf("%w: expected %d types, got %d", ErrInvalidPriorities, len(AllTypes), len(rank))
	}
	return Priorities{tiers: copied, rank: rank}, nil
}

// ParsePriorities accepts entries like "leave", "work", "break|scheduled",
// highest first; types joined with "|" share a tier.
func ParsePriorities(entries []string) (Priorities, error) {
	tiers := make([][]IntervalType, 0, len(entries))
	for _, entry := range entries {
		var tier []IntervalType
		for _, name := range strings.Split(entry, "|") {
			tier = append(tier, IntervalType(strings.ToLower(strings.TrimSpace(name))))
		}
		tiers = append(tiers, tier)
	}
	return NewTieredPriorities(tiers...)
}

// Rank returns 0 for the lowest tier. Unknown types rank below all.
func (p Priorities) Rank(typ IntervalType) int {
	if p.rank == nil {
		return DefaultPriorities().Rank(typ)
	}
	if r, ok := p.rank[typ]; ok {
		return r
	}
	return -1
}

// Compare returns +1 when a outranks b, -1 when b outranks a, 0 on a tie.
func (p Priorities) Compare(a, b IntervalType) int {
	ra, rb := p.Rank(a), p.Rank(b)
	switch {
	case ra > rb:
		return 1
	case ra < rb:
		return -1
	default:
		return 0
	}
}

func (p Priorities) String() string {
	tiers := p.tiers
	if tiers == nil {
		tiers = DefaultPriorities().tiers
	}
	parts := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		names := make([]string, 0, len(tier))
		for _, typ := range tier {
			names = append(names, string(typ))
		}
		parts = append(parts, strings.Join(names, "|"))
	}
	return strings.Join(parts, " > ")
}

func knownType(typ IntervalType) bool {
	for _, t := range AllTypes {
		if t == typ {
			return true
		}
	}
	return false
}
