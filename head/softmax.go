package head

import (
	"math"

	"github.com/fewshotml/fewshot/errors"
)

// Softmax is a multinomial logistic regression head: logits are an affine
// map of the embedding, trained with cross-entropy.
type Softmax struct {
	W       [][]float64 // classes x dims
	B       []float64
	Classes int
	Dims    int
}

// NewSoftmax returns a zero-initialized head for dims-dimensional
// embeddings and the given number of classes.
func NewSoftmax(dims, classes int) *Softmax {
	w := make([][]float64, classes)
	for i := range w {
		w[i] = make([]float64, dims)
	}
	return &Softmax{W: w, B: make([]float64, classes), Classes: classes, Dims: dims}
}

// NumClasses implements Differentiable
func (s *Softmax) NumClasses() int {
	return s.Classes
}

// Dim returns the embedding dimension the head expects.
func (s *Softmax) Dim() int {
	return s.Dims
}

// Forward implements Differentiable: one row of logits per embedding.
func (s *Softmax) Forward(embs [][]float32) [][]float64 {
	logits := make([][]float64, 0, len(embs))
	for _, e := range embs {
		z := make([]float64, s.Classes)
		for c := 0; c < s.Classes; c++ {
			z[c] = s.B[c]
			for i, w := range s.W[c] {
				z[c] += w * float64(e[i])
			}
		}
		logits = append(logits, z)
	}
	return logits
}

// LossFn implements Differentiable: mean cross-entropy.
func (s *Softmax) LossFn() LossFunc {
	return func(logits [][]float64, labels []int) float64 {
		var loss float64
		for i, z := range logits {
			p := softmax(z)
			loss += -math.Log(math.Max(p[labels[i]], 1e-12))
		}
		return loss / float64(len(logits))
	}
}

func (s *Softmax) checkLabels(labels []int) error {
	for _, label := range labels {
		if label < 0 || label >= s.Classes {
			return errors.LabelRangeError{Label: label, NumClasses: s.Classes}
		}
	}
	return nil
}

// Step implements Differentiable: one mean-gradient descent step over the
// batch, with optional l2 weight decay, returning the loss before the
// update and the loss gradient with respect to each input embedding.
func (s *Softmax) Step(embs [][]float32, labels []int, learningRate, l2 float64) (float64, [][]float32, error) {
	if len(embs) != len(labels) {
		return 0, nil, errors.Errorf("got %d embeddings but %d labels", len(embs), len(labels))
	}
	if len(embs) == 0 {
		return 0, nil, errors.Errorf("empty batch")
	}
	if err := s.checkLabels(labels); err != nil {
		return 0, nil, err
	}

	dW := make([][]float64, s.Classes)
	for c := range dW {
		dW[c] = make([]float64, s.Dims)
	}
	dB := make([]float64, s.Classes)
	inputGrads := make([][]float32, len(embs))

	var loss float64
	invBatch := 1 / float64(len(embs))
	for n, e := range embs {
		z := s.Forward([][]float32{e})[0]
		p := softmax(z)
		loss += -math.Log(math.Max(p[labels[n]], 1e-12))

		ig := make([]float32, s.Dims)
		for c := 0; c < s.Classes; c++ {
			dz := p[c]
			if c == labels[n] {
				dz--
			}
			dz *= invBatch
			dB[c] += dz
			for i := range s.W[c] {
				dW[c][i] += dz * float64(e[i])
				ig[i] += float32(s.W[c][i] * dz)
			}
		}
		inputGrads[n] = ig
	}
	loss *= invBatch

	for c := range s.W {
		for i := range s.W[c] {
			s.W[c][i] -= learningRate * (dW[c][i] + l2*s.W[c][i])
		}
		s.B[c] -= learningRate * dB[c]
	}
	return loss, inputGrads, nil
}

// Predict implements Head
func (s *Softmax) Predict(embs [][]float32) ([]int, error) {
	preds := make([]int, 0, len(embs))
	for _, z := range s.Forward(embs) {
		best := 0
		for c := 1; c < len(z); c++ {
			if z[c] > z[best] {
				best = c
			}
		}
		preds = append(preds, best)
	}
	return preds, nil
}

// PredictProba implements Head
func (s *Softmax) PredictProba(embs [][]float32) ([][]float64, error) {
	probas := make([][]float64, 0, len(embs))
	for _, z := range s.Forward(embs) {
		probas = append(probas, softmax(z))
	}
	return probas, nil
}

func softmax(z []float64) []float64 {
	max := z[0]
	for _, v := range z[1:] {
		if v > max {
			max = v
		}
	}
	p := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		p[i] = math.Exp(v - max)
		sum += p[i]
	}
	for i := range p {
		p[i] /= sum
	}
	return p
}
