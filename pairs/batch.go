package pairs

// Batcher groups a plan's pairs into fixed-size batches. The final batch may
// be short; empty batches are never produced.
type Batcher struct {
	plan *Plan
	size int
}

// NewBatcher wraps a plan; batch sizes below 1 are clamped to 1.
func NewBatcher(plan *Plan, size int) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{plan: plan, size: size}
}

// Next returns the next batch, or ok == false once the plan is exhausted.
func (b *Batcher) Next() ([]Pair, bool) {
	batch := make([]Pair, 0, b.size)
	for len(batch) < b.size {
		pair, ok := b.plan.Next()
		if !ok {
			break
		}
		batch = append(batch, pair)
	}
	if len(batch) == 0 {
		return nil, false
	}
	return batch, true
}
