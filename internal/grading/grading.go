// Package grading scores multiple-choice answers.
//
// A question is all-or-nothing: the selected options must equal the stored
// correct answers element by element, in order. There is no partial credit.
package grading

const (
	FullMarks float64 = 100
	NoMarks   float64 = 0
)

// Score returns FullMarks when selected equals correct (same length, same
// elements in the same order) and NoMarks otherwise.
func Score(selected, correct []string) float64 {
	if len(selected) != len(correct) {
		return NoMarks
	}
	for i := range correct {
		if selected[i] != correct[i] {
			return NoMarks
		}
	}
	return FullMarks
}

// Mean returns the arithmetic mean of scores, or 0 for an empty slice.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
