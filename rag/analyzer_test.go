package rag

import "testing"

func TestAnalyzeQuery(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		wantCategory   string
		wantMinMatches int
	}{
		{
			name:           "vietnamese labor terms",
			query:          "Quy định về sa thải nhân viên",
			wantCategory:   "労働",
			wantMinMatches: 1,
		},
		{
			name:           "japanese labor terms",
			query:          "残業時間の上限と時間外労働の規制",
			wantCategory:   "労働",
			wantMinMatches: 2,
		},
		{
			name:           "insurance",
			query:          "bảo hiểm xã hội cho người nước ngoài",
			wantCategory:   "社会保険",
			wantMinMatches: 2,
		},
		{
			name:           "tax",
			query:          "cách khai thuế thu nhập cá nhân",
			wantCategory:   "国税",
			wantMinMatches: 2,
		},
		{
			name:           "workplace accident",
			query:          "tai nạn lao động và bồi thường",
			wantCategory:   "災害補償",
			wantMinMatches: 2,
		},
		{
			name:         "no category",
			query:        "労働基準法の構成を教えて",
			wantCategory: "",
		},
		{
			name:         "empty query",
			query:        "",
			wantCategory: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeQuery(tt.query)
			if got.Category != tt.wantCategory {
				t.Errorf("AnalyzeQuery(%q).Category = %q, want %q", tt.query, got.Category, tt.wantCategory)
			}
			if len(got.Keywords) < tt.wantMinMatches {
				t.Errorf("matched %d keywords, want at least %d", len(got.Keywords), tt.wantMinMatches)
			}
		})
	}
}

func TestAnalyzeQueryLowConfidence(t *testing.T) {
	// One labor match and one insurance match split the vote 50/50, so
	// the earlier category still clears the floor.
	got := AnalyzeQuery("lương và bảo hiểm")
	if got.Category != "労働" {
		t.Errorf("tie should resolve to the earlier category, got %q", got.Category)
	}
	if got.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", got.Confidence)
	}

	// Two insurance matches against one labor match flip the winner.
	got = AnalyzeQuery("lương và bảo hiểm y tế")
	if got.Category != "社会保険" {
		t.Errorf("category = %q, want 社会保険", got.Category)
	}
}

func TestSuggestedFilters(t *testing.T) {
	got := AnalyzeQuery("làm thêm giờ có giới hạn không").SuggestedFilters()
	if got["category"] != "労働" {
		t.Errorf("filters = %v, want category 労働", got)
	}

	if f := AnalyzeQuery("xin chào").SuggestedFilters(); f != nil {
		t.Errorf("expected nil filters, got %v", f)
	}
}
