package answer

import (
	"regexp"
	"strings"
)

// FallbackAnswer is the fixed string returned when neither the provider nor
// extraction can produce a grounded answer. It is also the string the
// provider is instructed to emit when the context holds no answer.
const FallbackAnswer = "I could not find that in your saved memory."

// reLineNumber strips the "[n] " numbering the controller prepends to
// context lines.
var reLineNumber = regexp.MustCompile(`^\[\d+\]\s*`)

var extractiveStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "do": true, "does": true,
	"for": true, "i": true, "in": true, "is": true, "it": true, "my": true,
	"of": true, "the": true, "to": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "you": true,
}

var (
	reExtractName  = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b|\b[A-Z]{2,}(?:\s+[A-Z]{2,})+\b`)
	reExtractPhone = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	reExtractEmail = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	reWordSplit    = regexp.MustCompile(`[^a-z0-9]+`)
)

// ExtractBestLine returns the context line with the highest tokenized
// lexical overlap with the query, honoring personal-intent heuristics.
// ok is false when no line scores above zero.
func ExtractBestLine(systemContext, userQuery string) (line string, ok bool) {
	queryTokens := splitTokens(userQuery)
	wantName := containsAny(queryTokens, "name")
	wantPhone := containsAny(queryTokens, "phone", "mobile", "contact")
	wantEmail := containsAny(queryTokens, "email")

	best := ""
	bestScore := 0
	for _, raw := range strings.Split(systemContext, "\n") {
		candidate := strings.TrimSpace(reLineNumber.ReplaceAllString(strings.TrimSpace(raw), ""))
		if candidate == "" {
			continue
		}

		score := overlapScore(queryTokens, splitTokens(candidate))
		if wantName && reExtractName.MatchString(candidate) {
			score += 2
		}
		if wantPhone && reExtractPhone.MatchString(candidate) {
			score += 2
		}
		if wantEmail && reExtractEmail.MatchString(candidate) {
			score += 2
		}

		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	return best, bestScore > 0
}

func splitTokens(s string) []string {
	fields := strings.Fields(reWordSplit.ReplaceAllString(strings.ToLower(s), " "))
	var tokens []string
	for _, f := range fields {
		if len(f) < 2 || extractiveStopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func overlapScore(queryTokens, lineTokens []string) int {
	score := 0
	for _, qt := range queryTokens {
		for _, lt := range lineTokens {
			if qt == lt || strings.HasPrefix(lt, qt) {
				score++
				break
			}
		}
	}
	return score
}

func containsAny(tokens []string, wanted ...string) bool {
	for _, t := range tokens {
		for _, w := range wanted {
			if t == w {
				return true
			}
		}
	}
	return false
}
