package grading_test

import (
	"testing"

	"github.com/garnizeh/skilltrials/internal/grading"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		selected []string
		correct  []string
		want     float64
	}{
		{name: "exact single", selected: []string{"B"}, correct: []string{"B"}, want: 100},
		{name: "exact multi", selected: []string{"A", "C"}, correct: []string{"A", "C"}, want: 100},
		{name: "wrong option", selected: []string{"A"}, correct: []string{"B"}, want: 0},
		{name: "order matters", selected: []string{"C", "A"}, correct: []string{"A", "C"}, want: 0},
		{name: "missing option", selected: []string{"A"}, correct: []string{"A", "C"}, want: 0},
		{name: "extra option", selected: []string{"A", "C", "D"}, correct: []string{"A", "C"}, want: 0},
		{name: "nothing selected", selected: nil, correct: []string{"A"}, want: 0},
		{name: "case sensitive", selected: []string{"a"}, correct: []string{"A"}, want: 0},
		{name: "both empty", selected: []string{}, correct: nil, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := grading.Score(tt.selected, tt.correct); got != tt.want {
				t.Fatalf("Score(%v, %v) = %v, want %v", tt.selected, tt.correct, got, tt.want)
			}
		})
	}
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{name: "empty", scores: nil, want: 0},
		{name: "one full", scores: []float64{100}, want: 100},
		{name: "half", scores: []float64{100, 0}, want: 50},
		{name: "two of four", scores: []float64{100, 100, 0, 0}, want: 50},
		{name: "all zero", scores: []float64{0, 0, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := grading.Mean(tt.scores); got != tt.want {
				t.Fatalf("Mean(%v) = %v, want %v", tt.scores, got, tt.want)
			}
		})
	}
}
