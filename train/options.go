package train

import (
	"github.com/fewshotml/fewshot/errors"
	"github.com/fewshotml/fewshot/pairs"
)

// IntPair carries a per-phase (embedding, head) pair of integer knobs.
type IntPair struct {
	Embedding int
	Head      int
}

// Ints sets both phases to the same value.
func Ints(v int) IntPair {
	return IntPair{Embedding: v, Head: v}
}

// FloatPair carries a per-phase (embedding, head) pair of float knobs.
type FloatPair struct {
	Embedding float64
	Head      float64
}

// Floats sets both phases to the same value.
func Floats(v float64) FloatPair {
	return FloatPair{Embedding: v, Head: v}
}

// Options is the full configuration surface of the Trainer.
type Options struct {
	// BatchSize and NumEpochs are independent knobs per phase.
	BatchSize IntPair
	NumEpochs IntPair
	// MaxSteps, when positive, caps the embedding phase's total gradient
	// steps; it overrides NumEpochs.Embedding and is checked only at batch
	// boundaries, never mid-batch.
	MaxSteps int
	// Strategy selects the pair sampling policy; NumIterations is only
	// consulted by the NumIterations strategy and by distillation.
	Strategy      pairs.Strategy
	NumIterations int
	// EndToEnd keeps the embedding body trainable during the head phase,
	// with BodyLearningRate.Head applied to it.
	EndToEnd         bool
	BodyLearningRate FloatPair
	HeadLearningRate float64
	// L2Weight applies weight decay to head and (under EndToEnd) body
	// parameters during the head phase.
	L2Weight float64
	// Margin is the cosine similarity under which negative pairs stop being
	// pushed apart.
	Margin float64
	Seed   int64
	// Objective scores Evaluate; defaults to classification accuracy.
	Objective Objective
}

// DefaultOptions returns the defaults used when a zero knob is left unset.
func DefaultOptions() Options {
	return Options{
		BatchSize:        Ints(16),
		NumEpochs:        IntPair{Embedding: 1, Head: 25},
		Strategy:         pairs.DefaultStrategy,
		NumIterations:    20,
		BodyLearningRate: FloatPair{Embedding: 0.05, Head: 0.005},
		HeadLearningRate: 0.1,
		Margin:           0.25,
		Seed:             42,
		Objective:        Accuracy,
	}
}

// withDefaults fills unset knobs from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.BatchSize.Embedding == 0 {
		o.BatchSize.Embedding = def.BatchSize.Embedding
	}
	if o.BatchSize.Head == 0 {
		o.BatchSize.Head = def.BatchSize.Head
	}
	if o.NumEpochs.Embedding == 0 {
		o.NumEpochs.Embedding = def.NumEpochs.Embedding
	}
	if o.NumEpochs.Head == 0 {
		o.NumEpochs.Head = def.NumEpochs.Head
	}
	if o.Strategy == "" {
		o.Strategy = def.Strategy
	}
	if o.NumIterations == 0 {
		o.NumIterations = def.NumIterations
	}
	if o.BodyLearningRate.Embedding == 0 {
		o.BodyLearningRate.Embedding = def.BodyLearningRate.Embedding
	}
	if o.BodyLearningRate.Head == 0 {
		o.BodyLearningRate.Head = def.BodyLearningRate.Head
	}
	if o.HeadLearningRate == 0 {
		o.HeadLearningRate = def.HeadLearningRate
	}
	if o.Margin == 0 {
		o.Margin = def.Margin
	}
	if o.Objective == nil {
		o.Objective = def.Objective
	}
	return o
}

// validate fails fast on contradictory hyperparameters.
func (o Options) validate() error {
	if o.BatchSize.Embedding < 1 || o.BatchSize.Head < 1 {
		return errors.ConfigurationError{Reason: "batch sizes must be positive"}
	}
	if o.NumEpochs.Embedding < 1 || o.NumEpochs.Head < 1 {
		return errors.ConfigurationError{Reason: "epoch counts must be positive"}
	}
	if o.MaxSteps < 0 {
		return errors.ConfigurationError{Reason: "max steps cannot be negative"}
	}
	if o.Strategy == pairs.NumIterations && o.NumIterations < 1 {
		return errors.ConfigurationError{Reason: "num_iterations must be a positive integer"}
	}
	if o.BodyLearningRate.Embedding <= 0 || o.BodyLearningRate.Head <= 0 {
		return errors.ConfigurationError{Reason: "body learning rates must be positive"}
	}
	if o.HeadLearningRate <= 0 {
		return errors.ConfigurationError{Reason: "head learning rate must be positive"}
	}
	if o.L2Weight < 0 {
		return errors.ConfigurationError{Reason: "l2 weight cannot be negative"}
	}
	if o.Margin < 0 || o.Margin >= 1 {
		return errors.ConfigurationError{Reason: "margin must be in [0, 1)"}
	}
	return nil
}
