package train

import (
	"encoding/gob"
	"io"

	"github.com/fewshotml/fewshot/embed"
	"github.com/fewshotml/fewshot/errors"
	"github.com/fewshotml/fewshot/head"
)

// savedModel is the gob payload for a trained model. Exactly one head field
// is set.
type savedModel struct {
	Body     *embed.HashEmbedder
	Centroid *head.Centroid
	Softmax  *head.Softmax
	Classes  []string
}

// Save writes a trained model as gob. Only HashEmbedder bodies and the
// built-in heads are supported.
func (t *Trainer) Save(w io.Writer) error {
	if t.state.Phase != Trained {
		return errors.Errorf("trainer is %s, expected trained", t.state.Phase)
	}
	body, ok := t.body.(*embed.HashEmbedder)
	if !ok {
		return errors.Errorf("cannot save embedding body of type %T", t.body)
	}

	saved := savedModel{Body: body, Classes: t.classes}
	switch h := t.hd.(type) {
	case *head.Centroid:
		saved.Centroid = h
	case *head.Softmax:
		saved.Softmax = h
	default:
		return errors.Errorf("cannot save head of type %T", t.hd)
	}
	return errors.WrapfOrNil(gob.NewEncoder(w).Encode(saved), "unable to encode model")
}

// Load reads a model written by Save and returns a Trained trainer ready
// for Predict and Evaluate.
func Load(r io.Reader, opts Options) (*Trainer, error) {
	var saved savedModel
	if err := gob.NewDecoder(r).Decode(&saved); err != nil {
		return nil, errors.Wrapf(err, "unable to decode model")
	}
	if saved.Body == nil {
		return nil, errors.Errorf("model has no embedding body")
	}

	var hd head.Head
	switch {
	case saved.Centroid != nil:
		hd = saved.Centroid
	case saved.Softmax != nil:
		hd = saved.Softmax
	default:
		return nil, errors.Errorf("model has no head")
	}

	t, err := New(saved.Body, hd, opts)
	if err != nil {
		return nil, err
	}
	t.classes = saved.Classes
	t.state = State{Phase: Trained}
	return t, nil
}
