// Package search is a thin random-search driver over the trainer's public
// train/evaluate contract: it rebuilds a fresh model per trial from a
// factory and scores it against a single objective metric. Trial proposal
// stays deliberately simple; anything smarter can drive the same contract
// from outside.
package search

import (
	"context"
	"log"
	"math"
	"math/rand"

	"github.com/fewshotml/fewshot/corpus"
	"github.com/fewshotml/fewshot/errors"
	"github.com/fewshotml/fewshot/train"
)

// Param describes one searchable hyperparameter.
type Param struct {
	Name string
	Min  float64
	Max  float64
	// Log samples log-uniformly (for learning rates and the like).
	Log bool
	// Int rounds sampled values to integers (batch sizes, epoch counts).
	Int bool
}

// Space is the set of hyperparameters to search over.
type Space []Param

// Trial records one sampled configuration and its outcome.
type Trial struct {
	Params  map[string]float64
	Metrics map[string]float64
	Score   float64
}

// ModelInit builds a fresh trainer from sampled hyperparameters.
type ModelInit func(params map[string]float64) (*train.Trainer, error)

// Driver runs seeded random search: Trials times, sample the space, build a
// model, train on the train corpus, evaluate on the eval corpus, and keep
// the best trial by Objective (default "accuracy").
type Driver struct {
	Space     Space
	ModelInit ModelInit
	Objective string
	Trials    int
	Seed      int64
}

func (d Driver) sample(r *rand.Rand) map[string]float64 {
	params := make(map[string]float64, len(d.Space))
	for _, p := range d.Space {
		var v float64
		if p.Log {
			v = math.Exp(math.Log(p.Min) + r.Float64()*(math.Log(p.Max)-math.Log(p.Min)))
		} else {
			v = p.Min + r.Float64()*(p.Max-p.Min)
		}
		if p.Int {
			v = math.Round(v)
		}
		params[p.Name] = v
	}
	return params
}

// Run executes the search and returns the best trial plus the full history.
func (d Driver) Run(ctx context.Context, trainC, evalC *corpus.Corpus) (Trial, []Trial, error) {
	if d.ModelInit == nil {
		return Trial{}, nil, errors.ConfigurationError{Reason: "model init factory is required"}
	}
	if d.Trials < 1 {
		return Trial{}, nil, errors.ConfigurationError{Reason: "trial count must be positive"}
	}
	objective := d.Objective
	if objective == "" {
		objective = "accuracy"
	}

	r := rand.New(rand.NewSource(d.Seed))
	var best Trial
	var history []Trial
	for i := 0; i < d.Trials; i++ {
		params := d.sample(r)

		model, err := d.ModelInit(params)
		if err != nil {
			return Trial{}, nil, errors.Wrapf(err, "unable to build model for trial %d", i)
		}
		if _, err := model.Train(ctx, trainC); err != nil {
			return Trial{}, nil, errors.Wrapf(err, "trial %d failed", i)
		}
		metrics, err := model.Evaluate(evalC)
		if err != nil {
			return Trial{}, nil, errors.Wrapf(err, "unable to evaluate trial %d", i)
		}
		score, ok := metrics[objective]
		if !ok {
			return Trial{}, nil, errors.Errorf("objective %q missing from metrics", objective)
		}

		trial := Trial{Params: params, Metrics: metrics, Score: score}
		history = append(history, trial)
		if len(history) == 1 || score > best.Score {
			best = trial
		}
		log.Printf("trial %d/%d: %s %.4f (best %.4f)", i+1, d.Trials, objective, score, best.Score)
	}
	return best, history, nil
}
