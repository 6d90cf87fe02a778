package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fewshotml/fewshot/corpus"
	"github.com/fewshotml/fewshot/embed"
	"github.com/fewshotml/fewshot/head"
	"github.com/fewshotml/fewshot/pairs"
	"github.com/fewshotml/fewshot/train"
)

// This binary trains a few-shot text classifier from a labeled CSV corpus
// and writes the resulting model as gob.
func main() {
	var (
		dataPath   string
		testPath   string
		testSplit  float64
		outPath    string
		headKind   string
		strategy   string
		iterations int
		epochs     int
		headEpochs int
		batchSize  int
		bodyLR     float64
		bodyHeadLR float64
		headLR     float64
		l2         float64
		endToEnd   bool
		maxSteps   int
		buckets    int
		dims       int
		seed       int64
	)
	flag.StringVar(&dataPath, "data", "", "path to training CSV with text,label columns (REQUIRED)")
	flag.StringVar(&testPath, "test", "", "path to evaluation CSV; when empty, -split carves one off the training data")
	flag.Float64Var(&testSplit, "split", 0.2, "evaluation fraction used when -test is empty, in (0,1)")
	flag.StringVar(&outPath, "out", "", "out path to write the trained model to (REQUIRED)")
	flag.StringVar(&headKind, "head", "centroid", "classification head: centroid or softmax")
	flag.StringVar(&strategy, "strategy", string(pairs.DefaultStrategy), "pair sampling strategy: oversampling, undersampling, unique, num_iterations")
	flag.IntVar(&iterations, "iterations", 20, "per-sample draws for the num_iterations strategy")
	flag.IntVar(&epochs, "epochs", 1, "embedding phase epochs")
	flag.IntVar(&headEpochs, "headepochs", 25, "head phase epochs (differentiable heads)")
	flag.IntVar(&batchSize, "batch", 16, "batch size for both phases")
	flag.Float64Var(&bodyLR, "lr", 0.05, "embedding phase body learning rate")
	flag.Float64Var(&bodyHeadLR, "bodyheadlr", 0, "body learning rate during the head phase under -endtoend; 0 means -lr/10")
	flag.Float64Var(&headLR, "headlr", 0.1, "head learning rate")
	flag.Float64Var(&l2, "l2", 0, "head phase weight decay")
	flag.BoolVar(&endToEnd, "endtoend", false, "keep the body trainable during the head phase")
	flag.IntVar(&maxSteps, "maxsteps", 0, "embedding phase step cap, overrides -epochs when positive")
	flag.IntVar(&buckets, "buckets", 4096, "embedding table rows")
	flag.IntVar(&dims, "dims", 64, "embedding dimension")
	flag.Int64Var(&seed, "seed", 42, "seed for sampling, shuffling and init")
	flag.Parse()

	if dataPath == "" || outPath == "" {
		flag.Usage()
		log.Fatal("data, out REQUIRED")
	}

	start := time.Now()

	trainC, err := corpus.FromCSVFile(dataPath)
	if err != nil {
		log.Fatal(err)
	}
	var evalC *corpus.Corpus
	if testPath != "" {
		evalC, err = corpus.FromCSVFile(testPath)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		trainC, evalC, err = trainC.Split(seed, testSplit)
		if err != nil {
			log.Fatal(err)
		}
	}
	fmt.Printf("loaded %d training and %d evaluation samples across %d classes\n",
		trainC.Len(), evalC.Len(), trainC.NumClasses())

	if bodyHeadLR == 0 {
		bodyHeadLR = bodyLR / 10
	}

	var hd head.Head
	switch headKind {
	case "centroid":
		hd = head.NewCentroid()
	case "softmax":
		hd = head.NewSoftmax(dims, trainC.NumClasses())
	default:
		log.Fatalf("unknown head %q", headKind)
	}

	trainer, err := train.New(
		embed.NewHashEmbedder(buckets, dims, seed),
		hd,
		train.Options{
			BatchSize:        train.Ints(batchSize),
			NumEpochs:        train.IntPair{Embedding: epochs, Head: headEpochs},
			MaxSteps:         maxSteps,
			Strategy:         pairs.Strategy(strategy),
			NumIterations:    iterations,
			EndToEnd:         endToEnd,
			BodyLearningRate: train.FloatPair{Embedding: bodyLR, Head: bodyHeadLR},
			HeadLearningRate: headLR,
			L2Weight:         l2,
			Seed:             seed,
		},
	)
	if err != nil {
		log.Fatal(err)
	}

	res, err := trainer.Train(context.Background(), trainC)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Done training, %d embedding steps, took %v\n", res.Steps, time.Since(start))

	metrics, err := trainer.Evaluate(evalC)
	if err != nil {
		log.Fatal(err)
	}
	for name, value := range metrics {
		fmt.Printf("%s: %f\n", name, value)
	}

	fout, err := os.Create(outPath)
	if err != nil {
		log.Fatal(err)
	}
	defer fout.Close()
	if err := trainer.Save(fout); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Done! took %v \n", time.Since(start))
}
