// Package embed defines the sentence-embedding capability consumed by the
// trainer, plus a hash-based reference implementation.
package embed

// Embedder turns texts into fixed-dimension vectors.
type Embedder interface {
	// Embed returns one vector per input text.
	Embed(texts []string) ([][]float32, error)
	// Dim returns the embedding dimension.
	Dim() int
}

// Trainable is an Embedder whose parameters can be updated. The trainer
// computes d(loss)/d(embedding) for each text and hands the gradients back;
// how they propagate into the model's parameters is the model's business.
// While not trainable (frozen), ApplyGradients is a no-op.
type Trainable interface {
	Embedder
	SetTrainable(on bool)
	Trainable() bool
	ApplyGradients(texts []string, grads [][]float32, learningRate float64) error
}
