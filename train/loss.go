package train

import (
	"github.com/viant/vec/search"
)

// cosineWithGrads returns the cosine similarity of a and b along with the
// gradient of the similarity with respect to each vector. ok is false for a
// degenerate (zero-magnitude) vector, in which case the pair carries no
// signal and should be skipped.
func cosineWithGrads(a, b []float32) (cos float64, ga, gb []float32, ok bool) {
	ma := float64(search.Float32s(a).Magnitude())
	mb := float64(search.Float32s(b).Magnitude())
	if ma == 0 || mb == 0 {
		return 0, nil, nil, false
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	cos = dot / (ma * mb)

	ga = make([]float32, len(a))
	gb = make([]float32, len(b))
	for i := range a {
		ga[i] = float32(float64(b[i])/(ma*mb) - cos*float64(a[i])/(ma*ma))
		gb[i] = float32(float64(a[i])/(ma*mb) - cos*float64(b[i])/(mb*mb))
	}
	return cos, ga, gb, true
}

// contrastiveLoss scores one pair: positives are pulled toward cosine 1,
// negatives are pushed until their cosine falls below margin. Returns the
// loss and its gradient with respect to each embedding; zero gradients mean
// the pair is already satisfied.
func contrastiveLoss(a, b []float32, positive bool, margin float64) (float64, []float32, []float32) {
	cos, dca, dcb, ok := cosineWithGrads(a, b)
	if !ok {
		return 0, make([]float32, len(a)), make([]float32, len(b))
	}

	var dLdCos float64
	var loss float64
	if positive {
		d := 1 - cos
		loss = d * d
		dLdCos = -2 * d
	} else if cos > margin {
		d := cos - margin
		loss = d * d
		dLdCos = 2 * d
	} else {
		return 0, make([]float32, len(a)), make([]float32, len(b))
	}

	scaleInPlace(dca, dLdCos)
	scaleInPlace(dcb, dLdCos)
	return loss, dca, dcb
}

// regressionLoss scores one pair against a continuous similarity target, as
// used when distilling a teacher's pairwise geometry.
func regressionLoss(a, b []float32, target float64) (float64, []float32, []float32) {
	cos, dca, dcb, ok := cosineWithGrads(a, b)
	if !ok {
		return 0, make([]float32, len(a)), make([]float32, len(b))
	}

	d := cos - target
	scaleInPlace(dca, 2*d)
	scaleInPlace(dcb, 2*d)
	return d * d, dca, dcb
}

// cosineSimilarity returns the plain cosine of two vectors, 0 for
// degenerate input.
func cosineSimilarity(a, b []float32) float64 {
	if search.Float32s(a).Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 0
	}
	return 1 - float64(search.Float32s(a).CosineDistance(b))
}

func scaleInPlace(v []float32, s float64) {
	for i := range v {
		v[i] = float32(float64(v[i]) * s)
	}
}
