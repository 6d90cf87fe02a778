package train

// Objective scores predictions against references, returning one or more
// named metrics. The search driver reads a single metric out of the map.
type Objective func(predictions, references []string) map[string]float64

// Accuracy is the default objective: the fraction of exact label matches.
func Accuracy(predictions, references []string) map[string]float64 {
	if len(predictions) == 0 || len(predictions) != len(references) {
		return map[string]float64{"accuracy": 0}
	}
	var correct int
	for i, p := range predictions {
		if p == references[i] {
			correct++
		}
	}
	return map[string]float64{"accuracy": float64(correct) / float64(len(predictions))}
}
