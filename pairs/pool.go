package pairs

import (
	"math"
	"sort"

	"github.com/fewshotml/fewshot/corpus"
)

// ref identifies a pair by corpus sample indices. Pool-derived refs are
// canonical: a's group precedes b's (same-class pairs keep a < b), so a
// mirrored duplicate of a pool pair can never be produced.
type ref struct {
	a, b     int32
	positive bool
}

// pool is the conceptual enumeration of all unordered, non-reflexive pairs
// in a corpus, split into a positive (same-class) and a negative
// (cross-class) side. Neither side is ever materialized: pairs are addressed
// by rank and recovered arithmetically.
type pool struct {
	groups [][]int // sample indices per class, class-ID order

	posPrefix []int64 // per-class C(n,2), cumulative; len(groups)+1
	totalPos  int64

	classPairs [][2]int
	negPrefix  []int64 // per class-pair n1*n2, cumulative; len(classPairs)+1
	totalNeg   int64
}

func newPool(c *corpus.Corpus) *pool {
	classes := c.Classes()
	p := &pool{
		groups:    make([][]int, 0, len(classes)),
		posPrefix: make([]int64, 1, len(classes)+1),
	}
	for _, class := range classes {
		p.groups = append(p.groups, c.Members(class))
	}

	for _, g := range p.groups {
		p.totalPos += comb2(len(g))
		p.posPrefix = append(p.posPrefix, p.totalPos)
	}

	p.negPrefix = append(p.negPrefix, 0)
	for i := 0; i < len(p.groups); i++ {
		for j := i + 1; j < len(p.groups); j++ {
			p.classPairs = append(p.classPairs, [2]int{i, j})
			p.totalNeg += int64(len(p.groups[i])) * int64(len(p.groups[j]))
			p.negPrefix = append(p.negPrefix, p.totalNeg)
		}
	}
	return p
}

// comb2 returns C(n, 2).
func comb2(n int) int64 {
	if n < 2 {
		return 0
	}
	return int64(n) * int64(n-1) / 2
}

// rowStart returns the rank of pair (i, i+1) in the lexicographic ordering
// of all pairs (a, b) with a < b < n.
func rowStart(n int, i int64) int64 {
	return i * (2*int64(n) - i - 1) / 2
}

// unrankComb2 recovers the k-th pair (i, j), i < j, in lexicographic order
// over n elements. The closed-form estimate is corrected by at most a couple
// of steps to absorb float rounding.
func unrankComb2(n int, k int64) (int, int) {
	m := 2*float64(n) - 1
	i := int64((m - math.Sqrt(m*m-8*float64(k))) / 2)
	if i < 0 {
		i = 0
	}
	for i > 0 && rowStart(n, i) > k {
		i--
	}
	for rowStart(n, i+1) <= k {
		i++
	}
	j := i + 1 + (k - rowStart(n, i))
	return int(i), int(j)
}

// positiveAt returns the positive pair with the given global rank.
func (p *pool) positiveAt(rank int64) ref {
	g := sort.Search(len(p.groups), func(i int) bool { return p.posPrefix[i+1] > rank })
	group := p.groups[g]
	li, lj := unrankComb2(len(group), rank-p.posPrefix[g])
	return ref{a: int32(group[li]), b: int32(group[lj]), positive: true}
}

// negativeAt returns the negative pair with the given global rank.
func (p *pool) negativeAt(rank int64) ref {
	cp := sort.Search(len(p.classPairs), func(i int) bool { return p.negPrefix[i+1] > rank })
	g1 := p.groups[p.classPairs[cp][0]]
	g2 := p.groups[p.classPairs[cp][1]]
	local := rank - p.negPrefix[cp]
	i := local / int64(len(g2))
	j := local % int64(len(g2))
	return ref{a: int32(g1[i]), b: int32(g2[j])}
}

// allPositives enumerates every positive pair exactly once.
func (p *pool) allPositives() []ref {
	refs := make([]ref, 0, p.totalPos)
	for _, g := range p.groups {
		for i := 0; i < len(g); i++ {
			for j := i + 1; j < len(g); j++ {
				refs = append(refs, ref{a: int32(g[i]), b: int32(g[j]), positive: true})
			}
		}
	}
	return refs
}

// allNegatives enumerates every negative pair exactly once.
func (p *pool) allNegatives() []ref {
	refs := make([]ref, 0, p.totalNeg)
	for _, cp := range p.classPairs {
		for _, a := range p.groups[cp[0]] {
			for _, b := range p.groups[cp[1]] {
				refs = append(refs, ref{a: int32(a), b: int32(b)})
			}
		}
	}
	return refs
}

// sampleRanks draws k distinct ranks from [0, total) without materializing
// the range (Floyd's sampling), returning them in increasing order.
func sampleRanks(r intner, total int64, k int64) []int64 {
	chosen := make(map[int64]struct{}, k)
	for i := total - k; i < total; i++ {
		j := r.Int63n(i + 1)
		if _, taken := chosen[j]; taken {
			chosen[i] = struct{}{}
		} else {
			chosen[j] = struct{}{}
		}
	}
	ranks := make([]int64, 0, k)
	for rank := range chosen {
		ranks = append(ranks, rank)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
	return ranks
}

// intner is the subset of rand.Rand the pool needs.
type intner interface {
	Int63n(n int64) int64
}
