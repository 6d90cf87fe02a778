package pairs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fewshotml/fewshot/corpus"
	"github.com/fewshotml/fewshot/errors"
)

func drain(t *testing.T, plan *Plan) []Pair {
	var out []Pair
	for {
		p, ok := plan.Next()
		if !ok {
			break
		}
		out = append(out, p)
	}
	require.Len(t, out, plan.Len())
	return out
}

// canonical id-set key for duplicate detection across mirror orientations
func key(p Pair) [2]int {
	if p.A.ID < p.B.ID {
		return [2]int{p.A.ID, p.B.ID}
	}
	return [2]int{p.B.ID, p.A.ID}
}

func TestGenerateCounts(t *testing.T) {
	c := buildCorpus(t, map[string]int{"happy": 8, "content": 4, "sad": 8})

	tests := []struct {
		strategy   Strategy
		iterations int
		pos, neg   int
	}{
		{Unique, 0, 62, 128},
		{Oversampling, 0, 128, 128},
		{Undersampling, 0, 62, 62},
		{NumIterations, 20, 400, 400},
	}
	for _, test := range tests {
		plan, err := Generate(c, test.strategy, 42, test.iterations)
		require.NoError(t, err, "strategy %s", test.strategy)
		pos, neg := plan.Counts()
		assert.Equal(t, test.pos, pos, "strategy %s positives", test.strategy)
		assert.Equal(t, test.neg, neg, "strategy %s negatives", test.strategy)
		assert.Equal(t, test.pos+test.neg, plan.Len(), "strategy %s total", test.strategy)
	}
}

func TestGenerateNoSelfOrMirrorPairs(t *testing.T) {
	c := buildCorpus(t, map[string]int{"happy": 8, "content": 4, "sad": 8})

	for _, strategy := range []Strategy{Unique, Oversampling, Undersampling} {
		plan, err := Generate(c, strategy, 7, 0)
		require.NoError(t, err)

		oriented := make(map[[2]int]bool)
		for _, p := range drain(t, plan) {
			require.NotEqual(t, p.A.ID, p.B.ID, "strategy %s emitted a self pair", strategy)
			require.Equal(t, p.Positive, p.A.Class == p.B.Class)
			oriented[[2]int{p.A.ID, p.B.ID}] = true
			require.False(t, oriented[[2]int{p.B.ID, p.A.ID}],
				"strategy %s emitted mirrored duplicates", strategy)
		}
	}
}

func TestUniqueExactCoverage(t *testing.T) {
	c := buildCorpus(t, map[string]int{"happy": 8, "content": 4, "sad": 8})
	plan, err := Generate(c, Unique, 3, 0)
	require.NoError(t, err)

	counts := make(map[[2]int]int)
	for _, p := range drain(t, plan) {
		counts[key(p)]++
	}
	require.Len(t, counts, 190)
	for k, n := range counts {
		require.Equal(t, 1, n, "pair %v emitted %d times", k, n)
	}
}

func TestOversamplingMinorityCoverage(t *testing.T) {
	c := buildCorpus(t, map[string]int{"happy": 8, "content": 4, "sad": 8})
	plan, err := Generate(c, Oversampling, 11, 0)
	require.NoError(t, err)

	seenPos := make(map[[2]int]bool)
	var dup bool
	counts := make(map[[2]int]int)
	for _, p := range drain(t, plan) {
		counts[key(p)]++
		if counts[key(p)] > 1 {
			dup = true
		}
		if p.Positive {
			seenPos[key(p)] = true
		}
	}
	// minority side (62 positives) is oversampled to 128, covering its pool
	assert.Len(t, seenPos, 62, "every unique positive pair appears at least once")
	assert.True(t, dup, "oversampling must repeat minority pairs")
}

func TestUndersamplingNoDuplicates(t *testing.T) {
	c := buildCorpus(t, map[string]int{"happy": 8, "content": 4, "sad": 8})
	plan, err := Generate(c, Undersampling, 5, 0)
	require.NoError(t, err)

	counts := make(map[[2]int]int)
	for _, p := range drain(t, plan) {
		counts[key(p)]++
	}
	require.Len(t, counts, 124)
	for k, n := range counts {
		require.Equal(t, 1, n, "pair %v emitted %d times", k, n)
	}
}

func TestNumIterationsSkipsSingletonClasses(t *testing.T) {
	// one singleton class: its sample gets negative draws but no positives
	c := buildCorpus(t, map[string]int{"happy": 1, "content": 2, "sad": 2})
	plan, err := Generate(c, NumIterations, 9, 3)
	require.NoError(t, err)

	pos, neg := plan.Counts()
	assert.Equal(t, 12, pos, "4 non-singleton samples x 3 draws")
	assert.Equal(t, 15, neg, "5 samples x 3 draws")

	for _, p := range drain(t, plan) {
		assert.NotEqual(t, p.A.ID, p.B.ID)
		assert.Equal(t, p.Positive, p.A.Class == p.B.Class)
	}
}

func TestGenerateDeterminism(t *testing.T) {
	c := buildCorpus(t, map[string]int{"happy": 8, "content": 4, "sad": 8})

	for _, strategy := range []Strategy{Unique, Oversampling, Undersampling, NumIterations} {
		first, err := Generate(c, strategy, 1234, 5)
		require.NoError(t, err)
		second, err := Generate(c, strategy, 1234, 5)
		require.NoError(t, err)

		require.Equal(t, first.Len(), second.Len())
		for {
			a, okA := first.Next()
			b, okB := second.Next()
			require.Equal(t, okA, okB)
			if !okA {
				break
			}
			require.Equal(t, a, b, "strategy %s diverged under identical seeds", strategy)
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	empty, err := corpus.New(nil)
	require.NoError(t, err)
	_, err = Generate(empty, Unique, 1, 0)
	assert.IsType(t, errors.InsufficientDataError{}, err)

	oneClass := buildCorpus(t, map[string]int{"happy": 5})
	_, err = Generate(oneClass, Unique, 1, 0)
	assert.IsType(t, errors.InsufficientDataError{}, err)

	c := buildCorpus(t, map[string]int{"happy": 2, "sad": 2})
	_, err = Generate(c, Strategy("bogus"), 1, 0)
	assert.IsType(t, errors.InvalidPolicyError{}, err)

	_, err = Generate(c, NumIterations, 1, 0)
	assert.IsType(t, errors.ConfigurationError{}, err)
	_, err = Generate(c, NumIterations, 1, -3)
	assert.IsType(t, errors.ConfigurationError{}, err)
}

func TestAllSingletonClasses(t *testing.T) {
	// no positive pairs exist at all; policies degrade rather than fail
	c := buildCorpus(t, map[string]int{"happy": 1, "sad": 1, "angry": 1})

	plan, err := Generate(c, Unique, 2, 0)
	require.NoError(t, err)
	pos, neg := plan.Counts()
	assert.Equal(t, 0, pos)
	assert.Equal(t, 3, neg)

	plan, err = Generate(c, Oversampling, 2, 0)
	require.NoError(t, err)
	pos, neg = plan.Counts()
	assert.Equal(t, 0, pos, "an empty side has nothing to oversample")
	assert.Equal(t, 3, neg)

	plan, err = Generate(c, Undersampling, 2, 0)
	require.NoError(t, err)
	pos, neg = plan.Counts()
	assert.Equal(t, 0, pos)
	assert.Equal(t, 0, neg)
}

func TestBatcher(t *testing.T) {
	c := buildCorpus(t, map[string]int{"happy": 8, "content": 4, "sad": 8})
	plan, err := Generate(c, Unique, 21, 0)
	require.NoError(t, err)

	batcher := NewBatcher(plan, 16)
	var total, batches int
	for {
		batch, ok := batcher.Next()
		if !ok {
			break
		}
		require.NotEmpty(t, batch)
		require.LessOrEqual(t, len(batch), 16)
		total += len(batch)
		batches++
	}
	assert.Equal(t, 190, total)
	assert.Equal(t, 12, batches, "11 full batches and one remainder of 14")
}

func TestUniformPairs(t *testing.T) {
	ps, err := UniformPairs(10, 50, 77)
	require.NoError(t, err)
	require.Len(t, ps, 50)
	for _, p := range ps {
		require.NotEqual(t, p[0], p[1])
		require.GreaterOrEqual(t, p[0], 0)
		require.Less(t, p[0], 10)
		require.GreaterOrEqual(t, p[1], 0)
		require.Less(t, p[1], 10)
	}

	again, err := UniformPairs(10, 50, 77)
	require.NoError(t, err)
	require.Equal(t, ps, again)

	_, err = UniformPairs(1, 5, 1)
	assert.IsType(t, errors.InsufficientDataError{}, err)
	_, err = UniformPairs(10, 0, 1)
	assert.IsType(t, errors.ConfigurationError{}, err)
}
