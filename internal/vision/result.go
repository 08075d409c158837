package vision

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Category is the kind of image the model decided it was looking at.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryContext  Category = "context"
)

// AnalysisResult is the model's classification and the text to be spoken.
type AnalysisResult struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
	Hazard   bool     `json:"hazard"`
}

var (
	categoryPrefixes = []string{"thể loại:", "category:"}
	documentMarkers  = []string{"tài liệu", "document"}
	hazardPrefixes   = []string{"cảnh báo:", "warning:"}
)

// ParseAnalysis classifies raw model output. The first category line decides;
// output without a recognizable document marker is treated as a scene.
// Lines are compared in NFC so decomposed Vietnamese still matches.
func ParseAnalysis(raw string) AnalysisResult {
	text := strings.TrimSpace(raw)
	res := AnalysisResult{Category: CategoryContext, Text: text}

	categorySeen := false
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(norm.NFC.String(strings.TrimSpace(line)))
		if !categorySeen {
			if value, ok := cutAnyPrefix(lower, categoryPrefixes); ok {
				categorySeen = true
				if containsAny(value, documentMarkers) {
					res.Category = CategoryDocument
				}
				continue
			}
		}
		if _, ok := cutAnyPrefix(lower, hazardPrefixes); ok {
			res.Hazard = true
		}
	}
	return res
}

func cutAnyPrefix(s string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return rest, true
		}
	}
	return "", false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
