package train

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fewshotml/fewshot/corpus"
	"github.com/fewshotml/fewshot/embed"
	"github.com/fewshotml/fewshot/errors"
	"github.com/fewshotml/fewshot/head"
	"github.com/fewshotml/fewshot/pairs"
)

// two classes with disjoint vocabularies; duplicate texts give each class a
// positive pair and make centroids coincide with sample embeddings
func sentimentCorpus(t *testing.T) *corpus.Corpus {
	c, err := corpus.FromTexts(
		[]string{
			"happy joyful glad", "happy joyful glad",
			"sad gloomy blue", "sad gloomy blue",
		},
		[]string{"positive", "positive", "negative", "negative"},
	)
	require.NoError(t, err)
	return c
}

func newBody(seed int64) *embed.HashEmbedder {
	return embed.NewHashEmbedder(256, 16, seed)
}

func TestTrainCentroid(t *testing.T) {
	trainer, err := New(newBody(1), head.NewCentroid(), Options{Seed: 5})
	require.NoError(t, err)
	require.Equal(t, Idle, trainer.State().Phase)

	res, err := trainer.Train(context.Background(), sentimentCorpus(t))
	require.NoError(t, err)
	assert.Equal(t, Trained, trainer.State().Phase)
	assert.NotEmpty(t, res.EmbeddingLoss)
	assert.Positive(t, res.Steps)
	assert.Empty(t, res.HeadLoss, "one-shot heads have no gradient loop")

	metrics, err := trainer.Evaluate(sentimentCorpus(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, metrics["accuracy"])

	preds, err := trainer.Predict([]string{"happy joyful glad", "sad gloomy blue"})
	require.NoError(t, err)
	assert.Equal(t, []string{"positive", "negative"}, preds)

	probas, err := trainer.PredictProba([]string{"happy joyful glad"})
	require.NoError(t, err)
	require.Len(t, probas, 1)
	require.Len(t, probas[0], 2)
}

func TestTrainSoftmax(t *testing.T) {
	trainer, err := New(newBody(1), head.NewSoftmax(16, 2), Options{
		Seed:             5,
		NumEpochs:        IntPair{Embedding: 1, Head: 100},
		HeadLearningRate: 1.0,
	})
	require.NoError(t, err)

	res, err := trainer.Train(context.Background(), sentimentCorpus(t))
	require.NoError(t, err)
	assert.Len(t, res.HeadLoss, 100)
	assert.Less(t, res.HeadLoss[99], res.HeadLoss[0], "head loss must fall")

	metrics, err := trainer.Evaluate(sentimentCorpus(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, metrics["accuracy"])
}

func TestTrainLabelRange(t *testing.T) {
	// five classes but a three-class differentiable head
	c, err := corpus.FromTexts(
		[]string{"a", "b", "c", "d", "e"},
		[]string{"c0", "c1", "c2", "c3", "c4"},
	)
	require.NoError(t, err)

	hd := head.NewSoftmax(16, 3)
	trainer, err := New(newBody(1), hd, Options{Seed: 5})
	require.NoError(t, err)

	_, err = trainer.Train(context.Background(), c)
	require.Error(t, err)
	assert.IsType(t, errors.LabelRangeError{}, errors.Cause(err))
	// fail-fast: no gradient step ran
	for _, row := range hd.W {
		for _, w := range row {
			assert.Zero(t, w)
		}
	}
}

func TestTrainMaxSteps(t *testing.T) {
	trainer, err := New(newBody(1), head.NewCentroid(), Options{
		Seed:      5,
		BatchSize: IntPair{Embedding: 2, Head: 16},
		MaxSteps:  3,
	})
	require.NoError(t, err)

	res, err := trainer.Train(context.Background(), sentimentCorpus(t))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Steps, "max steps caps the embedding phase")
	assert.Equal(t, Trained, trainer.State().Phase)
}

func TestTrainDeterminism(t *testing.T) {
	run := func() *embed.HashEmbedder {
		body := newBody(7)
		trainer, err := New(body, head.NewCentroid(), Options{Seed: 9})
		require.NoError(t, err)
		_, err = trainer.Train(context.Background(), sentimentCorpus(t))
		require.NoError(t, err)
		return body
	}
	assert.Equal(t, run().Rows, run().Rows, "identical seeds must replay identically")
}

func TestTrainEndToEnd(t *testing.T) {
	run := func(endToEnd bool) *embed.HashEmbedder {
		body := newBody(7)
		trainer, err := New(body, head.NewSoftmax(16, 2), Options{Seed: 9, EndToEnd: endToEnd})
		require.NoError(t, err)
		_, err = trainer.Train(context.Background(), sentimentCorpus(t))
		require.NoError(t, err)
		return body
	}

	frozen := run(false)
	tuned := run(true)
	assert.NotEqual(t, frozen.Rows, tuned.Rows,
		"end-to-end head phase must keep updating the body")
}

func TestEvaluateDoesNotMutate(t *testing.T) {
	body := newBody(1)
	trainer, err := New(body, head.NewCentroid(), Options{Seed: 5})
	require.NoError(t, err)
	_, err = trainer.Train(context.Background(), sentimentCorpus(t))
	require.NoError(t, err)

	snapshot := make([][]float32, len(body.Rows))
	for i, row := range body.Rows {
		snapshot[i] = append([]float32(nil), row...)
	}

	_, err = trainer.Evaluate(sentimentCorpus(t))
	require.NoError(t, err)
	_, err = trainer.Predict([]string{"happy joyful glad"})
	require.NoError(t, err)
	assert.Equal(t, snapshot, body.Rows, "evaluation must not mutate trained state")
}

func TestTrainTwice(t *testing.T) {
	trainer, err := New(newBody(1), head.NewCentroid(), Options{Seed: 5})
	require.NoError(t, err)
	_, err = trainer.Train(context.Background(), sentimentCorpus(t))
	require.NoError(t, err)
	_, err = trainer.Train(context.Background(), sentimentCorpus(t))
	require.Error(t, err, "retraining requires a fresh trainer")
}

func TestTrainCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trainer, err := New(newBody(1), head.NewCentroid(), Options{Seed: 5})
	require.NoError(t, err)
	_, err = trainer.Train(ctx, sentimentCorpus(t))
	require.Error(t, err)
}

func TestNewConfigurationErrors(t *testing.T) {
	tests := []Options{
		{MaxSteps: -1},
		{NumIterations: -2, Strategy: pairs.NumIterations},
		{HeadLearningRate: -0.5},
		{L2Weight: -1},
		{Margin: 1.5},
		{BodyLearningRate: FloatPair{Embedding: -1, Head: 0.1}},
	}
	for _, opts := range tests {
		_, err := New(newBody(1), head.NewCentroid(), opts)
		require.Error(t, err, "%+v", opts)
		assert.IsType(t, errors.ConfigurationError{}, errors.Cause(err))
	}
}

func TestTrainInsufficientData(t *testing.T) {
	oneClass, err := corpus.FromTexts([]string{"a", "b"}, []string{"only", "only"})
	require.NoError(t, err)

	trainer, err := New(newBody(1), head.NewCentroid(), Options{Seed: 5})
	require.NoError(t, err)
	_, err = trainer.Train(context.Background(), oneClass)
	require.Error(t, err)
	assert.IsType(t, errors.InsufficientDataError{}, errors.Cause(err))
}

func TestPredictBeforeTraining(t *testing.T) {
	trainer, err := New(newBody(1), head.NewCentroid(), Options{Seed: 5})
	require.NoError(t, err)
	_, err = trainer.Predict([]string{"anything"})
	require.Error(t, err)
	_, err = trainer.Evaluate(sentimentCorpus(t))
	require.Error(t, err)
}
