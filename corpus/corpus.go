// Package corpus holds labeled text samples grouped by class, the input to
// pair sampling and head fitting.
package corpus

import (
	"math/rand"
	"sort"

	"github.com/fewshotml/fewshot/errors"
)

// Sample is a single labeled text.
type Sample struct {
	ID    int
	Text  string
	Class string
}

// Corpus partitions samples into disjoint groups by class. Every sample
// belongs to exactly one group; class IDs are assigned in sorted class-name
// order so they are stable across runs.
type Corpus struct {
	samples []Sample
	classes []string
	classID map[string]int
	members map[string][]int
}

// New builds a Corpus from samples. Sample IDs must be unique.
func New(samples []Sample) (*Corpus, error) {
	seen := make(map[int]bool, len(samples))
	members := make(map[string][]int)
	for i, s := range samples {
		if seen[s.ID] {
			return nil, errors.Errorf("duplicate sample id %d", s.ID)
		}
		seen[s.ID] = true
		members[s.Class] = append(members[s.Class], i)
	}

	classes := make([]string, 0, len(members))
	for class := range members {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	classID := make(map[string]int, len(classes))
	for i, class := range classes {
		classID[class] = i
	}

	return &Corpus{
		samples: samples,
		classes: classes,
		classID: classID,
		members: members,
	}, nil
}

// FromTexts builds a Corpus from parallel text/label slices, assigning
// sequential sample IDs.
func FromTexts(texts, labels []string) (*Corpus, error) {
	if len(texts) != len(labels) {
		return nil, errors.Errorf("len of texts (%d) != len of labels (%d)", len(texts), len(labels))
	}
	samples := make([]Sample, 0, len(texts))
	for i, text := range texts {
		samples = append(samples, Sample{ID: i, Text: text, Class: labels[i]})
	}
	return New(samples)
}

// Len returns the number of samples.
func (c *Corpus) Len() int {
	return len(c.samples)
}

// Sample returns the sample at index i.
func (c *Corpus) Sample(i int) Sample {
	return c.samples[i]
}

// Samples returns all samples in corpus order.
func (c *Corpus) Samples() []Sample {
	return c.samples
}

// Texts returns all sample texts in corpus order.
func (c *Corpus) Texts() []string {
	texts := make([]string, 0, len(c.samples))
	for _, s := range c.samples {
		texts = append(texts, s.Text)
	}
	return texts
}

// Classes returns the class names in class-ID order.
func (c *Corpus) Classes() []string {
	return c.classes
}

// NumClasses returns the number of distinct classes.
func (c *Corpus) NumClasses() int {
	return len(c.classes)
}

// ClassID returns the integer ID for a class name, or -1 if unknown.
func (c *Corpus) ClassID(class string) int {
	id, ok := c.classID[class]
	if !ok {
		return -1
	}
	return id
}

// Members returns the sample indices belonging to a class.
func (c *Corpus) Members(class string) []int {
	return c.members[class]
}

// Labels returns the class IDs aligned with the samples.
func (c *Corpus) Labels() []int {
	labels := make([]int, 0, len(c.samples))
	for _, s := range c.samples {
		labels = append(labels, c.classID[s.Class])
	}
	return labels
}

// Split shuffles the corpus with the given seed and splits it into train and
// test portions, with testRatio in (0, 1) going to the test side.
func (c *Corpus) Split(seed int64, testRatio float64) (*Corpus, *Corpus, error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.Errorf("testRatio must be in (0, 1), got %f", testRatio)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(len(c.samples))
	nTest := int(float64(len(c.samples)) * testRatio)
	if nTest == 0 {
		nTest = 1
	}

	var test, train []Sample
	for i, idx := range perm {
		if i < nTest {
			test = append(test, c.samples[idx])
		} else {
			train = append(train, c.samples[idx])
		}
	}

	trainC, err := New(train)
	if err != nil {
		return nil, nil, err
	}
	testC, err := New(test)
	if err != nil {
		return nil, nil, err
	}
	return trainC, testC, nil
}

// StratifiedSplit is Split with the ratio applied per class, so both sides
// keep the corpus's class proportions. Each class keeps at least one sample
// on each side; classes with a single sample go to the train side.
func (c *Corpus) StratifiedSplit(seed int64, testRatio float64) (*Corpus, *Corpus, error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.Errorf("testRatio must be in (0, 1), got %f", testRatio)
	}

	r := rand.New(rand.NewSource(seed))
	var test, train []Sample
	for _, class := range c.classes {
		members := c.members[class]
		if len(members) < 2 {
			for _, idx := range members {
				train = append(train, c.samples[idx])
			}
			continue
		}

		perm := r.Perm(len(members))
		nTest := int(float64(len(members)) * testRatio)
		if nTest == 0 {
			nTest = 1
		}
		if nTest == len(members) {
			nTest--
		}
		for i, pi := range perm {
			if i < nTest {
				test = append(test, c.samples[members[pi]])
			} else {
				train = append(train, c.samples[members[pi]])
			}
		}
	}
	if len(test) == 0 {
		return nil, nil, errors.Errorf("no class has enough samples to hold out")
	}

	trainC, err := New(train)
	if err != nil {
		return nil, nil, err
	}
	testC, err := New(test)
	if err != nil {
		return nil, nil, err
	}
	return trainC, testC, nil
}
