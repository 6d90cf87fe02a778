package pairs

import (
	"math/rand"

	"github.com/fewshotml/fewshot/errors"
)

// UniformPairs draws count index pairs uniformly with replacement from n
// items, a != b, with no class structure assumed. Used for distillation,
// where pair targets come from a teacher model rather than labels.
func UniformPairs(n, count int, seed int64) ([][2]int, error) {
	if n < 2 {
		return nil, errors.InsufficientDataError{Reason: "need at least 2 texts to form pairs"}
	}
	if count < 1 {
		return nil, errors.ConfigurationError{Reason: "pair count must be a positive integer"}
	}

	r := rand.New(rand.NewSource(seed))
	out := make([][2]int, 0, count)
	for i := 0; i < count; i++ {
		a := r.Intn(n)
		b := r.Intn(n - 1)
		if b >= a {
			b++
		}
		out = append(out, [2]int{a, b})
	}
	return out, nil
}
