package rag

import "strings"

// Analysis is the result of keyword-based category detection.
type Analysis struct {
	// Category is the detected statute domain, empty when unclear.
	Category string
	// Keywords are the terms that matched the detected category.
	Keywords []string
	// Confidence is bestMatches / totalMatches across all categories.
	Confidence float64
}

// categoryConfidenceFloor is the minimum share of matches the best
// category must hold before a filter is suggested.
const categoryConfidenceFloor = 0.5

// categoryKeywords maps statute domains to the Vietnamese and Japanese
// terms that signal them. Declaration order breaks score ties.
var categoryKeywords = []struct {
	category string
	terms    []string
}{
	{
		category: "労働",
		terms: []string{
			"thời gian làm việc", "giờ làm việc", "làm thêm giờ", "tăng ca", "nghỉ phép",
			"phép năm", "sa thải", "giải thuê", "nghỉ việc", "hợp đồng lao động",
			"nghỉ giữa ca", "ngày nghỉ", "lương", "tiền công", "làm đêm", "ca đêm",
			"điều kiện lao động", "lao động",
			"労働時間", "残業", "時間外労働", "有給休暇", "年次休暇", "解雇", "退職",
			"労働契約", "休憩時間", "休日", "賃金", "深夜労働", "労働条件",
		},
	},
	{
		category: "社会保険",
		terms: []string{
			"bảo hiểm", "bảo hiểm xã hội", "bảo hiểm y tế", "hưu trí", "thất nghiệp",
			"社会保険", "健康保険", "年金", "失業", "保険",
		},
	},
	{
		category: "国税",
		terms: []string{
			"thuế", "thuế thu nhập", "thuế doanh nghiệp", "khai thuế",
			"税", "所得税", "法人税", "申告",
		},
	},
	{
		category: "災害補償",
		terms: []string{
			"tai nạn lao động", "bồi thường", "chấn thương", "bệnh nghề nghiệp",
			"災害補償", "労災", "業務上", "負傷", "疾病", "療養",
		},
	},
}

// AnalyzeQuery detects the statute category a query belongs to by
// counting keyword matches per category. The category is returned only
// when it holds at least half of all matches, so mixed-domain queries
// stay unfiltered. Matching is case-insensitive substring containment,
// deterministic, and makes no model calls.
func AnalyzeQuery(query string) Analysis {
	lower := strings.ToLower(query)

	var (
		best         string
		bestMatches  []string
		totalMatches int
	)
	for _, ck := range categoryKeywords {
		var matches []string
		for _, term := range ck.terms {
			if strings.Contains(lower, strings.ToLower(term)) {
				matches = append(matches, term)
			}
		}
		totalMatches += len(matches)
		if len(matches) > len(bestMatches) {
			best = ck.category
			bestMatches = matches
		}
	}

	if totalMatches == 0 {
		return Analysis{}
	}
	confidence := float64(len(bestMatches)) / float64(totalMatches)
	if confidence < categoryConfidenceFloor {
		return Analysis{Confidence: confidence}
	}
	return Analysis{
		Category:   best,
		Keywords:   bestMatches,
		Confidence: confidence,
	}
}

// SuggestedFilters returns the payload filter implied by the detected
// category, or nil when no category is confident enough.
func (a Analysis) SuggestedFilters() map[string]string {
	if a.Category == "" {
		return nil
	}
	return map[string]string{"category": a.Category}
}
