package main

import (
	"context"
	"fmt"
	"log"

	arg "github.com/alexflint/go-arg"

	"github.com/fewshotml/fewshot/corpus"
	"github.com/fewshotml/fewshot/embed"
	"github.com/fewshotml/fewshot/head"
	"github.com/fewshotml/fewshot/search"
	"github.com/fewshotml/fewshot/train"
)

type arguments struct {
	Data    string  `arg:"required" help:"training CSV with text,label columns"`
	Trials  int     `help:"number of hyperparameter trials"`
	Split   float64 `help:"evaluation fraction carved off the training data"`
	Buckets int     `help:"embedding table rows"`
	Dims    int     `help:"embedding dimension"`
	Seed    int64   `help:"seed for splitting and trial sampling"`
}

// Runs random hyperparameter search for the few-shot trainer over a small
// space of learning rates and epoch counts, printing the best trial.
func main() {
	args := arguments{
		Trials:  10,
		Split:   0.2,
		Buckets: 4096,
		Dims:    64,
		Seed:    42,
	}
	arg.MustParse(&args)

	full, err := corpus.FromCSVFile(args.Data)
	if err != nil {
		log.Fatal(err)
	}
	trainC, evalC, err := full.Split(args.Seed, args.Split)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("searching over %d training and %d evaluation samples", trainC.Len(), evalC.Len())

	driver := search.Driver{
		Space: search.Space{
			{Name: "body_learning_rate", Min: 1e-3, Max: 1e-1, Log: true},
			{Name: "head_learning_rate", Min: 1e-2, Max: 1, Log: true},
			{Name: "num_epochs", Min: 1, Max: 3, Int: true},
			{Name: "batch_size", Min: 4, Max: 32, Int: true},
		},
		ModelInit: func(params map[string]float64) (*train.Trainer, error) {
			return train.New(
				embed.NewHashEmbedder(args.Buckets, args.Dims, args.Seed),
				head.NewSoftmax(args.Dims, trainC.NumClasses()),
				train.Options{
					BatchSize: train.Ints(int(params["batch_size"])),
					NumEpochs: train.IntPair{
						Embedding: int(params["num_epochs"]),
						Head:      25,
					},
					BodyLearningRate: train.Floats(params["body_learning_rate"]),
					HeadLearningRate: params["head_learning_rate"],
					Seed:             args.Seed,
				},
			)
		},
		Trials: args.Trials,
		Seed:   args.Seed,
	}

	best, _, err := driver.Run(context.Background(), trainC, evalC)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("best trial: score %f\n", best.Score)
	for name, value := range best.Params {
		fmt.Printf("  %s: %g\n", name, value)
	}
	for name, value := range best.Metrics {
		fmt.Printf("  %s: %f\n", name, value)
	}
}
