package train

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fewshotml/fewshot/embed"
	"github.com/fewshotml/fewshot/errors"
	"github.com/fewshotml/fewshot/head"
)

// a smaller student body: fewer buckets than newBody's 256, same dimension
// so the reused head still fits
func embedBody(buckets, dims int) *embed.HashEmbedder {
	return embed.NewHashEmbedder(buckets, dims, 3)
}

func trainedTeacher(t *testing.T) *Trainer {
	teacher, err := New(newBody(1), head.NewCentroid(), Options{Seed: 5})
	require.NoError(t, err)
	_, err = teacher.Train(context.Background(), sentimentCorpus(t))
	require.NoError(t, err)
	return teacher
}

// unlabeled texts: no class information anywhere
var distillTexts = []string{
	"happy joyful glad",
	"mostly happy glad",
	"sad gloomy blue",
	"so sad so blue",
	"gloomy and glad",
}

func TestDistill(t *testing.T) {
	teacher := trainedTeacher(t)

	// the student reuses the teacher's fitted head and gets a smaller body
	studentBody := embedBody(64, 16)
	student, err := New(studentBody, teacher.Head(), Options{Seed: 11})
	require.NoError(t, err)

	teacherHead := teacher.Head().(*head.Centroid)
	centroidsBefore := snapshotCentroids(teacherHead)

	res, err := student.Distill(context.Background(), teacher, distillTexts)
	require.NoError(t, err)
	assert.Equal(t, Trained, student.State().Phase)
	assert.NotEmpty(t, res.EmbeddingLoss)
	assert.Positive(t, res.Steps)

	// the head was reused unchanged
	assert.Equal(t, centroidsBefore, snapshotCentroids(teacherHead))
	// label names come from the teacher, no ground truth involved
	assert.Equal(t, teacher.Classes(), student.Classes())

	preds, err := student.Predict([]string{"happy joyful glad", "sad gloomy blue"})
	require.NoError(t, err)
	require.Len(t, preds, 2)
}

// cloneBody copies a trained body through the gob round trip.
func cloneBody(t *testing.T, trainer *Trainer) *embed.HashEmbedder {
	var buf bytes.Buffer
	require.NoError(t, trainer.Save(&buf))
	loaded, err := Load(&buf, Options{})
	require.NoError(t, err)
	return loaded.Body().(*embed.HashEmbedder)
}

func TestDistillWarmStartDiscriminates(t *testing.T) {
	teacher := trainedTeacher(t)

	// a student warm-started from the teacher's weights already matches the
	// head's coordinate frame, so its predictions must not collapse to a
	// single class
	student, err := New(cloneBody(t, teacher), teacher.Head(), Options{Seed: 11})
	require.NoError(t, err)
	_, err = student.Distill(context.Background(), teacher, distillTexts)
	require.NoError(t, err)

	preds, err := student.Predict([]string{"happy joyful glad", "sad gloomy blue"})
	require.NoError(t, err)
	assert.Equal(t, []string{"positive", "negative"}, preds)
}

func TestDistillDimensionMismatch(t *testing.T) {
	teacher := trainedTeacher(t)

	// an 8-dim student cannot reuse a head fitted at 16 dims
	student, err := New(embedBody(64, 8), teacher.Head(), Options{Seed: 11})
	require.NoError(t, err)
	_, err = student.Distill(context.Background(), teacher, distillTexts)
	require.Error(t, err)
	assert.IsType(t, errors.ConfigurationError{}, errors.Cause(err))
}

func TestDistillDeterminism(t *testing.T) {
	teacher := trainedTeacher(t)

	run := func() [][]float32 {
		body := embedBody(64, 16)
		student, err := New(body, teacher.Head(), Options{Seed: 11})
		require.NoError(t, err)
		_, err = student.Distill(context.Background(), teacher, distillTexts)
		require.NoError(t, err)
		return body.Rows
	}
	assert.Equal(t, run(), run())
}

func TestDistillImprovesGeometryFit(t *testing.T) {
	teacher := trainedTeacher(t)
	body := embedBody(64, 16)
	student, err := New(body, teacher.Head(), Options{
		Seed:      11,
		NumEpochs: IntPair{Embedding: 10, Head: 1},
	})
	require.NoError(t, err)

	res, err := student.Distill(context.Background(), teacher, distillTexts)
	require.NoError(t, err)
	require.Len(t, res.EmbeddingLoss, 10)
	assert.Less(t, res.EmbeddingLoss[9], res.EmbeddingLoss[0],
		"the student's pairwise geometry must approach the teacher's")
}

func TestDistillErrors(t *testing.T) {
	teacher := trainedTeacher(t)

	student, err := New(embedBody(64, 16), teacher.Head(), Options{Seed: 11})
	require.NoError(t, err)
	_, err = student.Distill(context.Background(), teacher, []string{"just one"})
	require.Error(t, err)

	untrained, err := New(newBody(2), head.NewCentroid(), Options{Seed: 5})
	require.NoError(t, err)
	_, err = student.Distill(context.Background(), untrained, distillTexts)
	require.Error(t, err, "teacher must be trained")
}

func snapshotCentroids(c *head.Centroid) map[int][]float32 {
	out := make(map[int][]float32, len(c.Centroids))
	for label, vec := range c.Centroids {
		out[label] = append([]float32(nil), vec...)
	}
	return out
}
