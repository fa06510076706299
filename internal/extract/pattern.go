// Package extract recovers Cypher queries from free-form assistant answers.
//
// Extraction is layered: a deterministic line scanner handles answers that
// quote their query verbatim, and an LLM regeneration pass with schema
// context covers answers that only describe what they did. A legacy
// regeneration prompt remains as a fallback for when the schema-aware pass
// cannot be reached at all.
package extract

import "strings"

// PatternNotes marks a query recovered by the deterministic scanner.
const PatternNotes = "Automatically extracted query"

// continuation keywords keep an open query region alive once a MATCH line
// has started one.
var continuationKeywords = []string{"MATCH", "RETURN", "WHERE", "WITH", "ORDER", "LIMIT"}

// Extraction is the outcome of one extraction attempt. Query is only usable
// when IsValid is true.
type Extraction struct {
	Query   string `json:"query"`
	IsValid bool   `json:"is_valid"`
	Notes   string `json:"notes"`
}

// ScanText recovers a Cypher query quoted inline in an answer. The text
// must mention both MATCH and RETURN somewhere for a region to open at
// all. A region opens on the first line containing MATCH, stays open while
// subsequent lines contain a continuation keyword, and closes on the first
// line without one. Region lines are joined with single spaces.
//
// The empty string means no query region was found.
func ScanText(text string) string {
	whole := strings.ToUpper(text)
	if !strings.Contains(whole, "MATCH") || !strings.Contains(whole, "RETURN") {
		return ""
	}

	var region []string
	open := false

	for _, line := range strings.Split(text, "\n") {
		upper := strings.ToUpper(line)

		if !open {
			if strings.Contains(upper, "MATCH") {
				open = true
				region = append(region, strings.TrimSpace(line))
			}
			continue
		}

		if hasContinuation(upper) {
			region = append(region, strings.TrimSpace(line))
			continue
		}
		break
	}

	if len(region) == 0 {
		return ""
	}
	return strings.Join(strings.Fields(strings.Join(region, " ")), " ")
}

func hasContinuation(upperLine string) bool {
	for _, kw := range continuationKeywords {
		if strings.Contains(upperLine, kw) {
			return true
		}
	}
	return false
}
