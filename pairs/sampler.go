// Package pairs converts a labeled corpus into contrastive training pairs
// under four sampling strategies with exact count, duplication, and coverage
// semantics.
package pairs

import (
	"math/rand"

	"github.com/fewshotml/fewshot/corpus"
	"github.com/fewshotml/fewshot/errors"
)

// Strategy selects how training pairs are drawn from the pair pool.
type Strategy string

const (
	// Oversampling emits max(P, N) of each side: the minority side is its
	// full enumeration plus uniform with-replacement draws up to the target,
	// so every unique pair still appears at least once.
	Oversampling Strategy = "oversampling"
	// Undersampling emits min(P, N) of each side: the majority side is
	// subsampled without replacement, so no pair repeats.
	Undersampling Strategy = "undersampling"
	// Unique emits every pair in the pool exactly once.
	Unique Strategy = "unique"
	// NumIterations emits, per sample, a fixed number of positive and
	// negative draws with replacement. Samples in singleton classes skip
	// their positive draws (no valid partner) rather than failing the run.
	NumIterations Strategy = "num_iterations"
)

// DefaultStrategy is used when no strategy is configured.
const DefaultStrategy = Oversampling

// Pair is one contrastive training example. Positive reports whether both
// samples share a class.
type Pair struct {
	A        corpus.Sample
	B        corpus.Sample
	Positive bool
}

// Plan is the epoch's pair sequence: a finite, one-shot iterator. It is not
// restartable; call Generate again (with the same seed for an identical
// plan) for another epoch.
type Plan struct {
	c    *corpus.Corpus
	refs []ref
	next int

	numPos int
	numNeg int
}

// Next returns the next pair, or ok == false once the plan is exhausted.
func (p *Plan) Next() (Pair, bool) {
	if p.next >= len(p.refs) {
		return Pair{}, false
	}
	r := p.refs[p.next]
	p.next++
	return Pair{
		A:        p.c.Sample(int(r.a)),
		B:        p.c.Sample(int(r.b)),
		Positive: r.positive,
	}, true
}

// Len returns the total number of pairs in the plan.
func (p *Plan) Len() int {
	return len(p.refs)
}

// Counts returns how many positive and negative pairs the plan holds.
func (p *Plan) Counts() (pos, neg int) {
	return p.numPos, p.numNeg
}

// PoolSizes returns |PositivePool| and |NegativePool| for a corpus without
// materializing either pool.
func PoolSizes(c *corpus.Corpus) (pos, neg int64) {
	p := newPool(c)
	return p.totalPos, p.totalNeg
}

// Generate plans one epoch of pairs from the corpus under the given
// strategy. The seed drives both sampling and the final whole-plan shuffle;
// identical inputs produce identical plans. numIterations is only consulted
// by the NumIterations strategy.
func Generate(c *corpus.Corpus, strategy Strategy, seed int64, numIterations int) (*Plan, error) {
	if c == nil || c.Len() == 0 {
		return nil, errors.InsufficientDataError{Reason: "corpus is empty"}
	}
	if c.NumClasses() < 2 {
		return nil, errors.InsufficientDataError{Reason: "fewer than 2 classes, no negative pairs possible"}
	}

	r := rand.New(rand.NewSource(seed))
	p := newPool(c)

	var pos, neg []ref
	switch strategy {
	case Unique:
		pos = p.allPositives()
		neg = p.allNegatives()
	case Oversampling:
		target := p.totalPos
		if p.totalNeg > target {
			target = p.totalNeg
		}
		pos = oversample(r, p, true, target)
		neg = oversample(r, p, false, target)
	case Undersampling:
		target := p.totalPos
		if p.totalNeg < target {
			target = p.totalNeg
		}
		pos = undersample(r, p, true, target)
		neg = undersample(r, p, false, target)
	case NumIterations:
		if numIterations < 1 {
			return nil, errors.ConfigurationError{Reason: "num_iterations must be a positive integer"}
		}
		pos, neg = perSample(r, p, numIterations)
	default:
		return nil, errors.InvalidPolicyError{Policy: string(strategy)}
	}

	// The policy fixes the counts; order within the epoch is irrelevant, but
	// shuffling the concatenation avoids batch-level class skew.
	refs := append(pos, neg...)
	r.Shuffle(len(refs), func(i, j int) {
		refs[i], refs[j] = refs[j], refs[i]
	})

	return &Plan{c: c, refs: refs, numPos: len(pos), numNeg: len(neg)}, nil
}

// oversample returns one side's full enumeration topped up to target with
// uniform with-replacement draws. An empty side stays empty: there is
// nothing to repeat.
func oversample(r *rand.Rand, p *pool, positive bool, target int64) []ref {
	var refs []ref
	total := p.totalNeg
	if positive {
		total = p.totalPos
		refs = p.allPositives()
	} else {
		refs = p.allNegatives()
	}
	if total == 0 {
		return refs
	}
	for int64(len(refs)) < target {
		if positive {
			refs = append(refs, p.positiveAt(r.Int63n(total)))
		} else {
			refs = append(refs, p.negativeAt(r.Int63n(total)))
		}
	}
	return refs
}

// undersample returns one side subsampled without replacement down to
// target; a side already at or below target is enumerated in full.
func undersample(r *rand.Rand, p *pool, positive bool, target int64) []ref {
	total := p.totalNeg
	if positive {
		total = p.totalPos
	}
	if total <= target {
		if positive {
			return p.allPositives()
		}
		return p.allNegatives()
	}
	ranks := sampleRanks(r, total, target)
	refs := make([]ref, 0, len(ranks))
	for _, rank := range ranks {
		if positive {
			refs = append(refs, p.positiveAt(rank))
		} else {
			refs = append(refs, p.negativeAt(rank))
		}
	}
	return refs
}

// perSample draws, for every sample, k positive partners (uniform from its
// class excluding itself; skipped entirely for singleton classes) and k
// negative partners (uniform over all other classes), all with replacement.
func perSample(r *rand.Rand, p *pool, k int) (pos, neg []ref) {
	var total int
	for _, g := range p.groups {
		total += len(g)
	}

	for gi, g := range p.groups {
		others := total - len(g)
		for mi, self := range g {
			if len(g) >= 2 {
				for t := 0; t < k; t++ {
					q := r.Intn(len(g) - 1)
					if q >= mi {
						q++
					}
					pos = append(pos, ref{a: int32(self), b: int32(g[q]), positive: true})
				}
			}
			for t := 0; t < k; t++ {
				neg = append(neg, ref{a: int32(self), b: int32(p.nthOther(gi, r.Intn(others)))})
			}
		}
	}
	return pos, neg
}

// nthOther returns the n-th sample index outside group gi, counting groups
// in class-ID order.
func (p *pool) nthOther(gi, n int) int {
	for i, g := range p.groups {
		if i == gi {
			continue
		}
		if n < len(g) {
			return g[n]
		}
		n -= len(g)
	}
	// unreachable while n < total - len(groups[gi])
	return -1
}
