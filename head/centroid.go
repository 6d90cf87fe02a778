package head

import (
	"math"
	"sort"

	"github.com/viant/vec/search"

	"github.com/fewshotml/fewshot/errors"
)

// Centroid is a nearest-class-centroid head: Fit averages the embeddings of
// each label and Predict picks the label whose centroid is closest by
// cosine distance. Labels are arbitrary integers.
type Centroid struct {
	Centroids map[int][]float32
	Labels    []int // sorted, for deterministic prediction and proba order
}

// NewCentroid returns an unfitted head.
func NewCentroid() *Centroid {
	return &Centroid{}
}

// Fit implements Fitter
func (c *Centroid) Fit(embs [][]float32, labels []int) error {
	if len(embs) != len(labels) {
		return errors.Errorf("got %d embeddings but %d labels", len(embs), len(labels))
	}
	if len(embs) == 0 {
		return errors.Errorf("cannot fit on an empty corpus")
	}

	sums := make(map[int][]float32)
	counts := make(map[int]int)
	for n, e := range embs {
		label := labels[n]
		if sums[label] == nil {
			sums[label] = make([]float32, len(e))
		}
		for i, v := range e {
			sums[label][i] += v
		}
		counts[label]++
	}

	c.Centroids = make(map[int][]float32, len(sums))
	c.Labels = c.Labels[:0]
	for label, sum := range sums {
		inv := 1 / float32(counts[label])
		for i := range sum {
			sum[i] *= inv
		}
		c.Centroids[label] = sum
		c.Labels = append(c.Labels, label)
	}
	sort.Ints(c.Labels)
	return nil
}

// checkDims rejects embeddings whose dimension differs from the fitted
// centroids; the distance of mismatched vectors is meaningless.
func (c *Centroid) checkDims(embs [][]float32) error {
	dim := c.Dim()
	for _, e := range embs {
		if len(e) != dim {
			return errors.Errorf("embedding dim %d != fitted dim %d", len(e), dim)
		}
	}
	return nil
}

// cosineDist returns the cosine distance in [0, 2]; degenerate zero vectors
// are treated as maximally distant.
func cosineDist(a, b []float32) float32 {
	if search.Float32s(a).Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 2
	}
	return search.Float32s(a).CosineDistance(b)
}

// Dim returns the embedding dimension the head was fitted at, 0 if unfitted.
func (c *Centroid) Dim() int {
	for _, vec := range c.Centroids {
		return len(vec)
	}
	return 0
}

// Predict implements Head
func (c *Centroid) Predict(embs [][]float32) ([]int, error) {
	if len(c.Centroids) == 0 {
		return nil, errors.Errorf("head is not fitted")
	}
	if err := c.checkDims(embs); err != nil {
		return nil, err
	}
	preds := make([]int, 0, len(embs))
	for _, e := range embs {
		best := c.Labels[0]
		bestDist := float32(math.Inf(1))
		for _, label := range c.Labels {
			if d := cosineDist(e, c.Centroids[label]); d < bestDist {
				best, bestDist = label, d
			}
		}
		preds = append(preds, best)
	}
	return preds, nil
}

// PredictProba implements Head: a softmax over centroid similarities, in
// Labels order.
func (c *Centroid) PredictProba(embs [][]float32) ([][]float64, error) {
	if len(c.Centroids) == 0 {
		return nil, errors.Errorf("head is not fitted")
	}
	if err := c.checkDims(embs); err != nil {
		return nil, err
	}
	probas := make([][]float64, 0, len(embs))
	for _, e := range embs {
		sims := make([]float64, len(c.Labels))
		for i, label := range c.Labels {
			sims[i] = 1 - float64(cosineDist(e, c.Centroids[label]))
		}
		probas = append(probas, softmax(sims))
	}
	return probas, nil
}
