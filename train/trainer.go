// Package train sequences the two training phases of a few-shot text
// classifier: contrastive fine-tuning of the embedding body on sampled
// pairs, then fitting a classification head on the re-embedded corpus.
package train

import (
	"context"
	"log"
	"math/rand"
	"runtime"

	"github.com/montanaflynn/stats"

	"github.com/fewshotml/fewshot/corpus"
	"github.com/fewshotml/fewshot/embed"
	"github.com/fewshotml/fewshot/errors"
	"github.com/fewshotml/fewshot/head"
	"github.com/fewshotml/fewshot/pairs"
	"github.com/fewshotml/fewshot/workerpool"
)

// Phase is the trainer's position in its state machine.
type Phase int

const (
	// Idle means training has not started.
	Idle Phase = iota
	// EmbeddingPhase is contrastive fine-tuning of the body on pairs.
	EmbeddingPhase
	// HeadPhase is fitting or gradient-training the classification head.
	HeadPhase
	// Trained means both capabilities are fitted.
	Trained
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case EmbeddingPhase:
		return "embedding"
	case HeadPhase:
		return "head"
	case Trained:
		return "trained"
	}
	return "unknown"
}

// State tracks phase progress; it is mutated only by the Trainer.
type State struct {
	Phase Phase
	Epoch int
	Step  int
}

// Result summarizes a completed Train call.
type Result struct {
	// EmbeddingLoss and HeadLoss hold the mean loss per epoch of each phase.
	// HeadLoss is empty for one-shot fitted heads.
	EmbeddingLoss []float64
	HeadLoss      []float64
	// Steps is the number of embedding-phase gradient steps taken.
	Steps int
}

// Trainer owns the shared embedding body and the classification head and
// runs the Idle -> EmbeddingPhase -> HeadPhase -> Trained sequence. The body
// is a single shared mutable resource: only one phase updates it at a time,
// and head-phase updates happen only under Options.EndToEnd.
type Trainer struct {
	body embed.Trainable
	hd   head.Head
	opts Options

	state   State
	classes []string
}

// New validates the options and returns an untrained Trainer. Zero-valued
// knobs take their defaults.
func New(body embed.Trainable, hd head.Head, opts Options) (*Trainer, error) {
	if body == nil {
		return nil, errors.Errorf("embedding body is required")
	}
	if hd == nil {
		return nil, errors.Errorf("classification head is required")
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Trainer{body: body, hd: hd, opts: opts}, nil
}

// State returns the current phase state.
func (t *Trainer) State() State {
	return t.state
}

// Body returns the embedding capability.
func (t *Trainer) Body() embed.Trainable {
	return t.body
}

// Head returns the classification head.
func (t *Trainer) Head() head.Head {
	return t.hd
}

// Classes returns the label names captured from the training corpus, in
// class-ID order.
func (t *Trainer) Classes() []string {
	return t.classes
}

// Train runs both phases on the corpus. It can only be called on an Idle
// trainer; rebuild the trainer to retrain.
func (t *Trainer) Train(ctx context.Context, c *corpus.Corpus) (Result, error) {
	if t.state.Phase != Idle {
		return Result{}, errors.Errorf("trainer is %s, expected idle", t.state.Phase)
	}

	var res Result
	if err := t.embeddingPhase(ctx, c, &res); err != nil {
		return Result{}, errors.Wrapf(err, "embedding phase failed")
	}
	if err := t.headPhase(ctx, c, &res); err != nil {
		return Result{}, errors.Wrapf(err, "head phase failed")
	}

	t.body.SetTrainable(false)
	t.state = State{Phase: Trained, Step: res.Steps}
	return res, nil
}

func (t *Trainer) embeddingPhase(ctx context.Context, c *corpus.Corpus, res *Result) error {
	t.state = State{Phase: EmbeddingPhase}
	t.body.SetTrainable(true)

	// MaxSteps, when set, overrides the epoch count: epochs repeat until the
	// step budget runs out.
	for epoch := 0; t.opts.MaxSteps > 0 || epoch < t.opts.NumEpochs.Embedding; epoch++ {
		t.state.Epoch = epoch

		// reseed per epoch so epochs differ but the whole run replays
		plan, err := pairs.Generate(c, t.opts.Strategy, t.opts.Seed+int64(epoch), t.opts.NumIterations)
		if err != nil {
			return err
		}
		batcher := pairs.NewBatcher(plan, t.opts.BatchSize.Embedding)
		if plan.Len() == 0 {
			// degenerate corpus (e.g. undersampling with no positive pool)
			return nil
		}

		var losses []float64
		for {
			// budget checks happen at batch boundaries only
			if err := ctx.Err(); err != nil {
				return errors.Wrapf(err, "cancelled at step %d", t.state.Step)
			}
			if t.opts.MaxSteps > 0 && t.state.Step >= t.opts.MaxSteps {
				t.finishEmbeddingEpoch(losses, res)
				log.Printf("embedding phase stopped at max steps %d", t.opts.MaxSteps)
				return nil
			}

			batch, ok := batcher.Next()
			if !ok {
				break
			}
			loss, err := t.pairStep(batch)
			if err != nil {
				return err
			}
			losses = append(losses, loss)
			t.state.Step++
			res.Steps++
		}
		t.finishEmbeddingEpoch(losses, res)
	}
	return nil
}

func (t *Trainer) finishEmbeddingEpoch(losses []float64, res *Result) {
	if len(losses) == 0 {
		return
	}
	mean, _ := stats.Mean(stats.Float64Data(losses))
	stddev, _ := stats.StandardDeviation(stats.Float64Data(losses))
	res.EmbeddingLoss = append(res.EmbeddingLoss, mean)
	log.Printf("embedding epoch %d: %d steps, loss %.4f +/- %.4f", t.state.Epoch, len(losses), mean, stddev)
}

// pairStep runs one contrastive gradient step on a batch of pairs. The loss
// sees only the binary same-class indicator, never the original labels.
func (t *Trainer) pairStep(batch []pairs.Pair) (float64, error) {
	aTexts := make([]string, len(batch))
	bTexts := make([]string, len(batch))
	for i, p := range batch {
		aTexts[i] = p.A.Text
		bTexts[i] = p.B.Text
	}

	embA, err := t.body.Embed(aTexts)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to embed pair batch")
	}
	embB, err := t.body.Embed(bTexts)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to embed pair batch")
	}

	gradsA := make([][]float32, len(batch))
	gradsB := make([][]float32, len(batch))
	var batchLoss float64
	inv := 1 / float64(len(batch))
	for i, p := range batch {
		loss, ga, gb := contrastiveLoss(embA[i], embB[i], p.Positive, t.opts.Margin)
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

func (t *Trainer) headPhase(ctx context.Context, c *corpus.Corpus, res *Result) error {
	t.state = State{Phase: HeadPhase}
	t.classes = c.Classes()
	labels := c.Labels()

	// the body stays frozen during the head phase unless training end to end
	t.body.SetTrainable(t.opts.EndToEnd)

	switch h := t.hd.(type) {
	case head.Differentiable:
		// fail fast before any gradient step
		for _, label := range labels {
			if label < 0 || label >= h.NumClasses() {
				return errors.LabelRangeError{Label: label, NumClasses: h.NumClasses()}
			}
		}
		return t.trainHead(ctx, c, h, labels, res)
	case head.Fitter:
		embs, err := t.embedAll(c.Texts())
		if err != nil {
			return err
		}
		return errors.WrapfOrNil(h.Fit(embs, labels), "unable to fit head")
	}
	return errors.Errorf("head %T is neither one-shot fitted nor differentiable", t.hd)
}

// trainHead runs the gradient loop for differentiable heads, optionally
// propagating head input-gradients back into the body.
func (t *Trainer) trainHead(ctx context.Context, c *corpus.Corpus, h head.Differentiable, labels []int, res *Result) error {
	texts := c.Texts()
	r := rand.New(rand.NewSource(t.opts.Seed))

	for epoch := 0; epoch < t.opts.NumEpochs.Head; epoch++ {
		t.state.Epoch = epoch
		perm := r.Perm(len(texts))

		var losses []float64
		for start := 0; start < len(perm); start += t.opts.BatchSize.Head {
			if err := ctx.Err(); err != nil {
				return errors.Wrapf(err, "cancelled in head epoch %d", epoch)
			}

			end := start + t.opts.BatchSize.Head
			if end > len(perm) {
				end = len(perm)
			}
			batchTexts := make([]string, 0, end-start)
			batchLabels := make([]int, 0, end-start)
			for _, idx := range perm[start:end] {
				batchTexts = append(batchTexts, texts[idx])
				batchLabels = append(batchLabels, labels[idx])
			}

			// re-embed each batch: under EndToEnd the body is still moving
			embs, err := t.body.Embed(batchTexts)
			if err != nil {
				return errors.Wrapf(err, "unable to embed head batch")
			}
			loss, inputGrads, err := h.Step(embs, batchLabels, t.opts.HeadLearningRate, t.opts.L2Weight)
			if err != nil {
				return err
			}
			losses = append(losses, loss)
			t.state.Step++

			if t.opts.EndToEnd {
				if t.opts.L2Weight > 0 {
					for i, grad := range inputGrads {
						for j := range grad {
							grad[j] += float32(t.opts.L2Weight) * embs[i][j]
						}
					}
				}
				if err := t.body.ApplyGradients(batchTexts, inputGrads, t.opts.BodyLearningRate.Head); err != nil {
					return err
				}
			}
		}

		mean, _ := stats.Mean(stats.Float64Data(losses))
		res.HeadLoss = append(res.HeadLoss, mean)
	}
	return nil
}

// embedAll embeds texts in parallel chunks. Embed implementations must be
// safe for concurrent readers; the body is never mutated here.
func (t *Trainer) embedAll(texts []string) ([][]float32, error) {
	const chunk = 64
	out := make([][]float32, len(texts))

	var jobs []workerpool.Job
	for start := 0; start < len(texts); start += chunk {
		start := start
		end := start + chunk
		if end > len(texts) {
			end = len(texts)
		}
		jobs = append(jobs, workerpool.Job(func() error {
			embs, err := t.body.Embed(texts[start:end])
			if err != nil {
				return errors.Wrapf(err, "unable to embed texts %d..%d", start, end)
			}
			copy(out[start:end], embs)
			return nil
		}))
	}

	pool := workerpool.New(runtime.NumCPU())
	defer pool.Stop()
	pool.AddBlocking(jobs)
	if err := pool.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Evaluate re-embeds the corpus and scores predictions against its labels
// with the configured objective. No trained state is mutated.
func (t *Trainer) Evaluate(c *corpus.Corpus) (map[string]float64, error) {
	preds, err := t.Predict(c.Texts())
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, c.Len())
	for _, s := range c.Samples() {
		refs = append(refs, s.Class)
	}
	return t.opts.Objective(preds, refs), nil
}

// Predict embeds texts and returns predicted class names.
func (t *Trainer) Predict(texts []string) ([]string, error) {
	ids, err := t.predictIDs(texts)
	if err != nil {
		return nil, err
	}
	preds := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id >= len(t.classes) {
			return nil, errors.Errorf("head predicted unknown class id %d", id)
		}
		preds = append(preds, t.classes[id])
	}
	return preds, nil
}

func (t *Trainer) predictIDs(texts []string) ([]int, error) {
	if t.state.Phase != Trained {
		return nil, errors.Errorf("trainer is %s, expected trained", t.state.Phase)
	}
	embs, err := t.embedAll(texts)
	if err != nil {
		return nil, err
	}
	return t.hd.Predict(embs)
}

// PredictProba embeds texts and returns per-class probabilities in the
// head's label order.
func (t *Trainer) PredictProba(texts []string) ([][]float64, error) {
	if t.state.Phase != Trained {
		return nil, errors.Errorf("trainer is %s, expected trained", t.state.Phase)
	}
	embs, err := t.embedAll(texts)
	if err != nil {
		return nil, err
	}
	return t.hd.PredictProba(embs)
}
