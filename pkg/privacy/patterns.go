package privacy

import (
	"regexp"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Placeholder literals substituted for sensitive matches.
const (
	PlaceholderEmail           = "[REDACTED_EMAIL]"
	PlaceholderPhone           = "[REDACTED_PHONE]"
	PlaceholderSSN             = "[REDACTED_SSN]"
	PlaceholderCreditCard      = "[REDACTED_CREDIT_CARD]"
	PlaceholderFinancialAmount = "[REDACTED_FINANCIAL_AMOUNT]"
	PlaceholderAPIKey          = "[REDACTED_API_KEY]"
	PlaceholderAWSAccessKey    = "[REDACTED_AWS_ACCESS_KEY]"
	PlaceholderJWT             = "[REDACTED_JWT]"
	PlaceholderSecret          = "[REDACTED_SECRET]"
	PlaceholderPassword        = "[REDACTED_PASSWORD]"
	PlaceholderAccountNumber   = "[REDACTED_ACCOUNT_NUMBER]"
	PlaceholderProjectCode     = "[REDACTED_PROJECT_CODE]"
)

type severity int

const (
	severityLow severity = iota
	severityMedium
	severityHigh
)

// Pattern names, used for per-pattern counts.
const (
	patternEmail       = "email"
	patternPhone       = "phone"
	patternSSN         = "ssn"
	patternCreditCard  = "credit_card"
	patternFinancial   = "financial_amount"
	patternAPIKey      = "api_key"
	patternAWSKey      = "aws_access_key"
	patternJWT         = "jwt"
	patternSecret      = "secret_assignment"
	patternAccount     = "account_number"
	patternProjectCode = "project_code"
)

// pattern is one entry in the ordered redaction table. replace receives the
// submatches and returns the full replacement text; value extracts the
// sensitive sub-match recorded in the synthetic map.
type pattern struct {
	name     string
	re       *regexp.Regexp
	severity severity
	replace  func(sub []string) string
	value    func(sub []string) string
}

// Go's regexp engine has no lookbehind, so number-shaped patterns consume an
// explicit boundary group on each side and restore it in the replacement.
var (
	reEmail = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	rePhone = regexp.MustCompile(`(^|[^\d-])(\+?\d{1,3}[-. ]?)?(\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4})([^\d-]|$)`)
	reSSN   = regexp.MustCompile(`(^|[^\d-])(\d{3}-\d{2}-\d{4})([^\d-]|$)`)
	reCard  = regexp.MustCompile(`(^|[^\d-])(\d(?:[ -]?\d){12,15})([^\d-]|$)`)
	reMoney = regexp.MustCompile(`[$₹€£]\s?\d+(?:,\d{3})*(?:\.\d+)?[kKmMbB]?\b`)
	reKey   = regexp.MustCompile(`\b(?:sk|pk)_(?:live|test)_[A-Za-z0-9]{8,}\b|\bsk-[A-Za-z0-9_-]{16,}\b`)
	reAWS   = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)
	reJWT   = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`)

	reAssign  = regexp.MustCompile(`(?i)\b(api[ _-]?key|access[ _-]?key|password|pwd|token|secret)(\s*[:=]\s*)["']?([^\s"',;\[\]]{8,})["']?`)
	reAccount = regexp.MustCompile(`(?i)\b(account)(\s*[:=]\s*)(\d{7,})\b`)
	reProject = regexp.MustCompile(`(?i)\b(project\s+code)(\s*[:=]\s*)([A-Za-z]+-\d{3,})\b`)

	rePlaceholder = regexp.MustCompile(`\[REDACTED_[A-Z_]+\]`)
)

// residualDetectors flag sensitive shapes that survive the pattern pass.
var residualDetectors = []struct {
	name string
	re   *regexp.Regexp
}{
	{"ssn", regexp.MustCompile(`\d{3}-\d{2}-\d{4}`)},
	{"card_digit_run", regexp.MustCompile(`\d(?:[ -]?\d){12,15}`)},
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"secret_assignment", reAssign},
}

// defaultPatterns returns the ordered pattern table. Order matters: broader
// patterns run before narrow structural ones.
func defaultPatterns() []pattern {
	literal := func(ph string) func([]string) string {
		return func([]string) string { return ph }
	}
	whole := func(sub []string) string { return sub[0] }
	boundary := func(ph string, valueIdx, suffixIdx int) pattern {
		return pattern{
			replace: func(sub []string) string { return sub[1] + ph + sub[suffixIdx] },
			value:   func(sub []string) string { return sub[valueIdx] },
		}
	}

	phone := boundary(PlaceholderPhone, 3, 4)
	phone.name, phone.re, phone.severity = patternPhone, rePhone, severityMedium
	phone.value = func(sub []string) string { return sub[2] + sub[3] }

	ssn := boundary(PlaceholderSSN, 2, 3)
	ssn.name, ssn.re, ssn.severity = patternSSN, reSSN, severityHigh

	card := boundary(PlaceholderCreditCard, 2, 3)
	card.name, card.re, card.severity = patternCreditCard, reCard, severityHigh

	return []pattern{
		{patternEmail, reEmail, severityMedium, literal(PlaceholderEmail), whole},
		phone,
		ssn,
		card,
		{patternFinancial, reMoney, severityMedium, literal(PlaceholderFinancialAmount), whole},
		{patternAPIKey, reKey, severityHigh, literal(PlaceholderAPIKey), whole},
		{patternAWSKey, reAWS, severityHigh, literal(PlaceholderAWSAccessKey), whole},
		{patternJWT, reJWT, severityHigh, literal(PlaceholderJWT), whole},
		{
			name:     patternSecret,
			re:       reAssign,
			severity: severityHigh,
			replace: func(sub []string) string {
				return sub[1] + sub[2] + assignmentPlaceholder(sub[1])
			},
			value: func(sub []string) string { return sub[3] },
		},
		{
			name:     patternAccount,
			re:       reAccount,
			severity: severityHigh,
			replace: func(sub []string) string {
				return sub[1] + sub[2] + PlaceholderAccountNumber
			},
			value: func(sub []string) string { return sub[3] },
		},
		{
			name:     patternProjectCode,
			re:       reProject,
			severity: severityHigh,
			replace: func(sub []string) string {
				return sub[1] + sub[2] + PlaceholderProjectCode
			},
			value: func(sub []string) string { return sub[3] },
		},
	}
}

// assignmentPlaceholder picks the label-aware placeholder for a
// label = secret assignment.
func assignmentPlaceholder(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "access"):
		return PlaceholderAWSAccessKey
	case strings.Contains(l, "key"):
		return PlaceholderAPIKey
	case strings.Contains(l, "password") || strings.Contains(l, "pwd"):
		return PlaceholderPassword
	default:
		return PlaceholderSecret
	}
}

// apply runs one pattern over text until a pass finds nothing, recording
// sensitive values in the synthetic map. Returns the rewritten text and the
// replacement count. The boundary-consuming patterns eat the separator
// between two adjacent values, so a single pass can leave the second value
// unmatched; placeholders never re-match, so the loop terminates.
func (p *Pipeline) applyPattern(pat pattern, text string, synthetic map[string]string) (string, int) {
	total := 0
	for {
		hits := 0
		out := pat.re.ReplaceAllStringFunc(text, func(m string) string {
			sub := pat.re.FindStringSubmatch(m)
			repl := pat.replace(sub)
			hits++

			value := pat.value(sub)
			if ph := rePlaceholder.FindString(repl); ph != "" {
				synthetic[value] = ph
			}

			if pat.name == patternJWT {
				if tok, _, err := jwt.NewParser().ParseUnverified(value, jwt.MapClaims{}); err == nil {
					p.logger.Debug("redacted well-formed JWT", "alg", tok.Method.Alg())
				}
			}

			return repl
		})
		total += hits
		if hits == 0 || out == text {
			return out, total
		}
		text = out
	}
}
