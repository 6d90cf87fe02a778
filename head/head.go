// Package head provides classification heads fitted on text embeddings.
// Heads come in two flavors: one-shot fitted (Fitter) and gradient-trained
// (Differentiable).
package head

// Head predicts integer class labels from embeddings.
type Head interface {
	Predict(embs [][]float32) ([]int, error)
	PredictProba(embs [][]float32) ([][]float64, error)
}

// Fitter is a non-differentiable head fitted in one shot. Label values are
// arbitrary integers; they need not be dense.
type Fitter interface {
	Head
	Fit(embs [][]float32, labels []int) error
}

// LossFunc scores logits against integer labels.
type LossFunc func(logits [][]float64, labels []int) float64

// Differentiable is a head trained by gradient steps. Labels must lie in
// [0, NumClasses()). Step returns the gradient of the loss with respect to
// the input embeddings so an end-to-end trainer can keep updating the body.
type Differentiable interface {
	Head
	NumClasses() int
	Forward(embs [][]float32) [][]float64
	LossFn() LossFunc
	Step(embs [][]float32, labels []int, learningRate, l2 float64) (loss float64, inputGrads [][]float32, err error)
}
