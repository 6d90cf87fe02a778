package train

import (
	"context"
	"fmt"
	"log"

	"github.com/montanaflynn/stats"

	"github.com/fewshotml/fewshot/errors"
	"github.com/fewshotml/fewshot/pairs"
)

// Distill trains this trainer's body so its pairwise cosine geometry
// approximates the teacher's, using only unlabeled texts: pair targets are
// the teacher's embedding similarities, not ground-truth labels. Only
// embedding-phase training runs; the student's pre-existing head is reused
// unchanged. The teacher is never mutated.
func (t *Trainer) Distill(ctx context.Context, teacher *Trainer, texts []string) (Result, error) {
	if teacher == nil || teacher.state.Phase != Trained {
		return Result{}, errors.Errorf("distillation teacher must be trained")
	}
	if t.state.Phase == EmbeddingPhase || t.state.Phase == HeadPhase {
		return Result{}, errors.Errorf("student is mid-phase (%s)", t.state.Phase)
	}
	if len(texts) < 2 {
		return Result{}, errors.InsufficientDataError{Reason: "need at least 2 texts to form pairs"}
	}
	// the reused head stays fitted at its original dimension, so the student
	// body must produce embeddings of that dimension
	if d, ok := t.hd.(interface{ Dim() int }); ok && d.Dim() > 0 && d.Dim() != t.body.Dim() {
		return Result{}, errors.ConfigurationError{
			Reason: fmt.Sprintf("student embeds at dim %d but the head is fitted at dim %d", t.body.Dim(), d.Dim()),
		}
	}

	teacherEmbs, err := teacher.embedAll(texts)
	if err != nil {
		return Result{}, errors.Wrapf(err, "unable to embed texts with teacher")
	}

	t.state = State{Phase: EmbeddingPhase}
	t.body.SetTrainable(true)

	var res Result
	count := len(texts) * t.opts.NumIterations
	for epoch := 0; t.opts.MaxSteps > 0 || epoch < t.opts.NumEpochs.Embedding; epoch++ {
		t.state.Epoch = epoch
		idx, err := pairs.UniformPairs(len(texts), count, t.opts.Seed+int64(epoch))
		if err != nil {
			return Result{}, err
		}

		var losses []float64
		stop := false
		for start := 0; start < len(idx) && !stop; start += t.opts.BatchSize.Embedding {
			if err := ctx.Err(); err != nil {
				return Result{}, errors.Wrapf(err, "cancelled at step %d", t.state.Step)
			}
			if t.opts.MaxSteps > 0 && t.state.Step >= t.opts.MaxSteps {
				stop = true
				break
			}

			end := start + t.opts.BatchSize.Embedding
			if end > len(idx) {
				end = len(idx)
			}
			loss, err := t.distillStep(texts, teacherEmbs, idx[start:end])
			if err != nil {
				return Result{}, err
			}
			losses = append(losses, loss)
			t.state.Step++
			res.Steps++
		}

		if len(losses) > 0 {
			mean, _ := stats.Mean(stats.Float64Data(losses))
			res.EmbeddingLoss = append(res.EmbeddingLoss, mean)
			log.Printf("distillation epoch %d: %d steps, mean loss %.4f", epoch, len(losses), mean)
		}
		if stop {
			break
		}
	}

	t.body.SetTrainable(false)
	t.classes = append([]string(nil), teacher.classes...)
	t.state = State{Phase: Trained, Step: res.Steps}
	return res, nil
}

// distillStep regresses student pair cosines onto the teacher's.
func (t *Trainer) distillStep(texts []string, teacherEmbs [][]float32, batch [][2]int) (float64, error) {
	aTexts := make([]string, len(batch))
	bTexts := make([]string, len(batch))
	for i, p := range batch {
		aTexts[i] = texts[p[0]]
		bTexts[i] = texts[p[1]]
	}

	embA, err := t.body.Embed(aTexts)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to embed distillation batch")
	}
	embB, err := t.body.Embed(bTexts)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to embed distillation batch")
	}

	gradsA := make([][]float32, len(batch))
	gradsB := make([][]float32, len(batch))
	var batchLoss float64
	inv := 1 / float64(len(batch))
	for i, p := range batch {
		target := cosineSimilarity(teacherEmbs[p[0]], teacherEmbs[p[1]])
		loss, ga, gb := regressionLoss(embA[i], embB[i], target)
		batchLoss += loss * inv
		scaleInPlace(ga, inv)
		scaleInPlace(gb, inv)
		gradsA[i] = ga
		gradsB[i] = gb
	}

	lr := t.opts.BodyLearningRate.Embedding
	if err := t.body.ApplyGradients(aTexts, gradsA, lr); err != nil {
		return 0, err
	}
	if err := t.body.ApplyGradients(bTexts, gradsB, lr); err != nil {
		return 0, err
	}
	return batchLoss, nil
}
