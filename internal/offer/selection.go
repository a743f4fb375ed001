package offer

import (
	"cmp"
	"slices"
)

// Default race bounds: up to three rounds of five.
const (
	DefaultMinRaceSize = 5
	DefaultMaxRaceSize = 15
)

// Match classifies an offer relative to a target offer.
type Match string

// Match tiers in priority order.
const (
	MatchTarget  Match = "target"
	MatchExact   Match = "exact"
	MatchSameGPU Match = "same-gpu"
	MatchOther   Match = "other"
)

// Classify returns how o relates to target.
func Classify(o, target Offer) Match {
	switch {
	case o.ID == target.ID:
		return MatchTarget
	case o.GPUName == target.GPUName && o.NumGPUs == target.NumGPUs:
		return MatchExact
	case o.GPUName == target.GPUName:
		return MatchSameGPU
	default:
		return MatchOther
	}
}

// Breakdown partitions a catalog around a target offer. The target itself
// belongs to no tier. Exact and SameGPU keep catalog order; Other is sorted
// by hourly price, cheapest first.
type Breakdown struct {
	Exact   []Offer
	SameGPU []Offer
	Other   []Offer
}

// BreakDown partitions all around target. Offers repeating an ID already seen
// are dropped so the tiers stay disjoint.
func BreakDown(all []Offer, target Offer) Breakdown {
	var b Breakdown
	seen := map[string]bool{target.ID: true}
	for _, o := range all {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		switch Classify(o, target) {
		case MatchExact:
			b.Exact = append(b.Exact, o)
		case MatchSameGPU:
			b.SameGPU = append(b.SameGPU, o)
		default:
			b.Other = append(b.Other, o)
		}
	}
	slices.SortStableFunc(b.Other, func(x, y Offer) int {
		return x.HourlyPrice.Cmp(y.HourlyPrice)
	})
	return b
}

// Len returns the number of offers across all tiers.
func (b Breakdown) Len() int {
	return len(b.Exact) + len(b.SameGPU) + len(b.Other)
}

// Policy bounds the candidate set.
type Policy struct {
	MinSize int
	MaxSize int
}

// DefaultPolicy returns the 5..15 policy.
func DefaultPolicy() Policy {
	return Policy{MinSize: DefaultMinRaceSize, MaxSize: DefaultMaxRaceSize}
}

func (p Policy) normalized() Policy {
	if p.MinSize < 1 {
		p.MinSize = 1
	}
	if p.MaxSize < p.MinSize {
		p.MaxSize = p.MinSize
	}
	return p
}

// Select builds the ordered candidate list for target. The result always
// starts with target, then all exact matches. Same-GPU matches are added
// only while below MinSize, then the cheapest other offers pad up to
// MinSize. The list is truncated to MaxSize.
func (p Policy) Select(all []Offer, target Offer) []Offer {
	p = p.normalized()
	b := BreakDown(all, target)

	out := make([]Offer, 0, p.MaxSize)
	out = append(out, target)
	out = append(out, b.Exact...)
	if len(out) < p.MinSize {
		out = append(out, b.SameGPU...)
	}
	for _, o := range b.Other {
		if len(out) >= p.MinSize {
			break
		}
		out = append(out, o)
	}
	if len(out) > p.MaxSize {
		out = out[:p.MaxSize]
	}
	return out
}

// SelectCandidates applies the default policy.
func SelectCandidates(all []Offer, target Offer) []Offer {
	return DefaultPolicy().Select(all, target)
}

// Recommend picks a target when the user accepted a tier-level suggestion
// instead of a specific offer: verified offers first, then higher
// reliability, then lower price. Ties break on ID.
func Recommend(all []Offer) (Offer, bool) {
	if len(all) == 0 {
		return Offer{}, false
	}
	ranked := slices.Clone(all)
	slices.SortStableFunc(ranked, func(x, y Offer) int {
		if x.Verified != y.Verified {
			if x.Verified {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(y.Reliability, x.Reliability); c != 0 {
			return c
		}
		if c := x.HourlyPrice.Cmp(y.HourlyPrice); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return ranked[0], true
}
