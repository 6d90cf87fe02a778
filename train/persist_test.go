package train

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fewshotml/fewshot/head"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	trainer := trainedTeacher(t)

	var buf bytes.Buffer
	require.NoError(t, trainer.Save(&buf))

	loaded, err := Load(&buf, Options{})
	require.NoError(t, err)
	assert.Equal(t, Trained, loaded.State().Phase)
	assert.Equal(t, trainer.Classes(), loaded.Classes())

	texts := []string{"happy joyful glad", "sad gloomy blue"}
	want, err := trainer.Predict(texts)
	require.NoError(t, err)
	got, err := loaded.Predict(texts)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveUntrained(t *testing.T) {
	trainer, err := New(newBody(1), head.NewCentroid(), Options{Seed: 5})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.Error(t, trainer.Save(&buf))
}

func TestLoadGarbage(t *testing.T) {
	_, err := Load(bytes.NewBufferString("not a model"), Options{})
	require.Error(t, err)
}
