package embed

import (
	"math/rand"

	spooky "github.com/dgryski/go-spooky"

	"github.com/fewshotml/fewshot/errors"
)

// HashEmbedder is a bag-of-tokens embedding model: each token hashes into a
// row of a parameter table and a text embeds as the mean of its token rows.
// It is the reference Trainable implementation; gradients on a text
// embedding distribute evenly over the text's token rows.
type HashEmbedder struct {
	Buckets int
	Dims    int
	Rows    [][]float32

	trainable bool
}

// NewHashEmbedder builds a trainable table of buckets x dims parameters,
// initialized from the seed.
func NewHashEmbedder(buckets, dims int, seed int64) *HashEmbedder {
	r := rand.New(rand.NewSource(seed))
	rows := make([][]float32, buckets)
	for i := range rows {
		row := make([]float32, dims)
		for j := range row {
			row[j] = (r.Float32() - 0.5) * 0.2
		}
		rows[i] = row
	}
	return &HashEmbedder{Buckets: buckets, Dims: dims, Rows: rows, trainable: true}
}

func (e *HashEmbedder) bucket(token string) int {
	return int(spooky.Hash64([]byte(token)) % uint64(e.Buckets))
}

// Dim implements Embedder
func (e *HashEmbedder) Dim() int {
	return e.Dims
}

// Embed implements Embedder. A text with no tokens embeds as the zero
// vector.
func (e *HashEmbedder) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec := make([]float32, e.Dims)
		tokens := Tokenize(text)
		if len(tokens) == 0 {
			out = append(out, vec)
			continue
		}
		for _, token := range tokens {
			row := e.Rows[e.bucket(token)]
			for i := range vec {
				vec[i] += row[i]
			}
		}
		inv := 1 / float32(len(tokens))
		for i := range vec {
			vec[i] *= inv
		}
		out = append(out, vec)
	}
	return out, nil
}

// SetTrainable implements Trainable
func (e *HashEmbedder) SetTrainable(on bool) {
	e.trainable = on
}

// Trainable implements Trainable
func (e *HashEmbedder) Trainable() bool {
	return e.trainable
}

// ApplyGradients implements Trainable: a descent step on the token rows of
// each text. Frozen models ignore the update.
func (e *HashEmbedder) ApplyGradients(texts []string, grads [][]float32, learningRate float64) error {
	if len(texts) != len(grads) {
		return errors.Errorf("got %d texts but %d gradients", len(texts), len(grads))
	}
	if !e.trainable {
		return nil
	}
	for t, text := range texts {
		grad := grads[t]
		if len(grad) != e.Dims {
			return errors.Errorf("gradient dim %d != embedding dim %d", len(grad), e.Dims)
		}
		tokens := Tokenize(text)
		if len(tokens) == 0 {
			continue
		}
		step := float32(learningRate) / float32(len(tokens))
		for _, token := range tokens {
			row := e.Rows[e.bucket(token)]
			for i := range row {
				row[i] -= step * grad[i]
			}
		}
	}
	return nil
}
