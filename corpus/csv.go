package corpus

import (
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/fewshotml/fewshot/errors"
)

type csvRecord struct {
	Text  string `csv:"text"`
	Label string `csv:"label"`
}

// FromCSV reads a corpus from CSV with "text" and "label" columns.
func FromCSV(r io.Reader) (*Corpus, error) {
	var records []csvRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, errors.Wrapf(err, "unable to parse corpus csv")
	}
	if len(records) == 0 {
		return nil, errors.Errorf("corpus csv contains no rows")
	}

	samples := make([]Sample, 0, len(records))
	for i, rec := range records {
		samples = append(samples, Sample{ID: i, Text: rec.Text, Class: rec.Label})
	}
	return New(samples)
}

// FromCSVFile reads a corpus from the CSV file at path.
func FromCSVFile(path string) (c *Corpus, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open corpus csv %s", path)
	}
	defer errors.Defer(&err, f.Close)
	return FromCSV(f)
}
