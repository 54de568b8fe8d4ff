package retrieval

import "testing"

func TestRerankCandidates(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		{Text: "item1", Score: 0.9},
		{Text: "item2", Score: 0.5},
		{Text: "item3", Score: 0.7},
	}

	tests := []struct {
		name     string
		scores   []float64
		keepTopN int
		checkFn  func(t *testing.T, result []RerankedCandidate)
	}{
		{
			name:     "reorders by rerank score descending",
			scores:   []float64{0.1, 0.9, 0.5},
			keepTopN: 10,
			checkFn: func(t *testing.T, result []RerankedCandidate) {
				if len(result) != 3 {
					t.Fatalf("Expected 3 candidates, got %d", len(result))
				}
				want := []string{"item2", "item3", "item1"}
				for i, w := range want {
					if result[i].Text != w {
						t.Errorf("Position %d: expected %q, got %q", i, w, result[i].Text)
					}
				}
			},
		},
		{
			name:     "keeps first-stage score for inspection",
			scores:   []float64{0.1, 0.9, 0.5},
			keepTopN: 10,
			checkFn: func(t *testing.T, result []RerankedCandidate) {
				if result[0].Score != 0.5 {
					t.Errorf("Expected first-stage score 0.5 retained, got %f", result[0].Score)
				}
				if result[0].RerankScore != 0.9 {
					t.Errorf("Expected rerank score 0.9, got %f", result[0].RerankScore)
				}
			},
		},
		{
			name:     "ties keep first-stage order",
			scores:   []float64{0.5, 0.5, 0.5},
			keepTopN: 10,
			checkFn: func(t *testing.T, result []RerankedCandidate) {
				want := []string{"item1", "item2", "item3"}
				for i, w := range want {
					if result[i].Text != w {
						t.Errorf("Position %d: expected %q, got %q", i, w, result[i].Text)
					}
				}
			},
		},
		{
			name:     "truncates to keepTopN",
			scores:   []float64{0.1, 0.9, 0.5},
			keepTopN: 2,
			checkFn: func(t *testing.T, result []RerankedCandidate) {
				if len(result) != 2 {
					t.Fatalf("Expected 2 candidates, got %d", len(result))
				}
				if result[0].Text != "item2" || result[1].Text != "item3" {
					t.Errorf("Unexpected top 2: %q, %q", result[0].Text, result[1].Text)
				}
			},
		},
		{
			name:     "keepTopN zero keeps all",
			scores:   []float64{0.1, 0.9, 0.5},
			keepTopN: 0,
			checkFn: func(t *testing.T, result []RerankedCandidate) {
				if len(result) != 3 {
					t.Errorf("Expected 3 candidates, got %d", len(result))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.checkFn(t, RerankCandidates(candidates, tt.scores, tt.keepTopN))
		})
	}
}

func TestRerankCandidatesEmpty(t *testing.T) {
	t.Parallel()

	result := RerankCandidates(nil, nil, 10)
	if len(result) != 0 {
		t.Errorf("Expected no candidates, got %d", len(result))
	}
}
