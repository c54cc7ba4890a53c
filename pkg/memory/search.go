package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// Boost multipliers applied to the vector distance. Lower distance ranks
// higher, so boosts scale the distance downward.
const (
	phraseBoost    = 0.5
	keywordBoost   = 0.1
	keywordFloor   = 0.6
	minTokenLength = 2
)

// stopwords excluded from keyword matching.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "do": true, "does": true, "for": true,
	"from": true, "has": true, "have": true, "how": true, "i": true,
	"in": true, "is": true, "it": true, "me": true, "my": true, "of": true,
	"on": true, "or": true, "our": true, "the": true, "that": true,
	"this": true, "to": true, "was": true, "we": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "why": true,
	"with": true, "you": true, "your": true,
}

// Personal-intent row shapes: a multi-word title-case or all-caps name, a
// phone-like digit run with optional punctuation, or an email pattern.
var (
	reNameShape  = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b|\b[A-Z]{2,}(?:\s+[A-Z]{2,})+\b`)
	rePhoneShape = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	reEmailShape = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

type intent int

const (
	intentNone  intent = 0
	intentName  intent = 1
	intentPhone intent = 2
	intentEmail intent = 4
)

// searchRow is one candidate carrying its vector distance and lexical
// signals against the query.
type searchRow struct {
	record      Record
	distance    float64
	phraseMatch bool
	keywordHits int
}

// Search embeds the query, runs a per-table vector scan, applies lexical
// reranking and the lexical guardrail, and returns up to k result texts.
func (s *Store) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = 5
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(qvec) == 0 {
		return nil, nil
	}

	var rows []searchRow
	for _, table := range s.tablesInScope() {
		tableRows, err := s.scanTable(ctx, table, qvec, k)
		if err != nil {
			// Per-table read failures degrade to an empty contribution.
			s.logger.Warn("table scan failed, degrading to empty contribution",
				"table", table,
				"error", err,
			)
			continue
		}
		rows = append(rows, tableRows...)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	normalizedQuery := normalizeText(query)
	tokens := queryTokens(query)

	for i := range rows {
		rows[i].phraseMatch = rowPhraseMatch(rows[i].record, normalizedQuery)
		rows[i].keywordHits = rowKeywordHits(rows[i].record, tokens)

		if rows[i].phraseMatch {
			rows[i].distance *= phraseBoost
		} else if rows[i].keywordHits > 0 {
			mult := 1 - keywordBoost*float64(rows[i].keywordHits)
			if mult < keywordFloor {
				mult = keywordFloor
			}
			rows[i].distance *= mult
		}
	}

	if len(tokens) > 0 {
		rows = s.applyGuardrail(rows, query)
		if len(rows) == 0 {
			return nil, nil
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].distance < rows[j].distance
	})

	seen := map[string]bool{}
	results := make([]string, 0, k)
	for _, row := range rows {
		if seen[row.record.Text] {
			continue
		}
		seen[row.record.Text] = true
		results = append(results, row.record.Text)
		if len(results) == k {
			break
		}
	}

	s.logger.Debug("search completed",
		"query", query,
		"candidates", len(rows),
		"results", len(results),
	)
	return results, nil
}

// applyGuardrail restricts results to lexically related rows. Vector-only
// matches on unrelated content must not leak into a privacy-sensitive
// response.
func (s *Store) applyGuardrail(rows []searchRow, query string) []searchRow {
	var lexical []searchRow
	for _, row := range rows {
		if row.phraseMatch || row.keywordHits > 0 {
			lexical = append(lexical, row)
		}
	}
	if len(lexical) > 0 {
		return lexical
	}

	if in := detectIntent(query); in != intentNone {
		var shaped []searchRow
		for _, row := range rows {
			if rowMatchesIntent(row.record.Text, in) {
				shaped = append(shaped, row)
			}
		}
		if len(shaped) > 0 {
			return shaped
		}
	}

	if s.strictMatch {
		return nil
	}
	return rows
}

// scanTable runs a brute-force vector similarity scan over one table and
// returns the k closest rows with their raw distance.
func (s *Store) scanTable(ctx context.Context, table string, qvec []float32, k int) ([]searchRow, error) {
	if !s.tableExists(table) {
		return nil, nil
	}

	var recs []Record
	if err := s.db.WithContext(ctx).Table(table).Find(&recs).Error; err != nil {
		return nil, err
	}

	rows := make([]searchRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, searchRow{
			record:   rec,
			distance: cosineDistance(qvec, decodeVector(rec.Vector)),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].distance < rows[j].distance
	})
	if len(rows) > k {
		rows = rows[:k]
	}
	return rows, nil
}

func (s *Store) tablesInScope() []string {
	switch s.scope {
	case ScopeFactsOnly:
		return []string{TableUserFacts}
	case ScopeDocumentsOnly:
		return []string{TableDocuments}
	default:
		return []string{TableDocuments, TableUserFacts}
	}
}

// normalizeText lowercases and collapses whitespace.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// rowPhraseMatch reports whether the normalized query appears as a
// substring of the normalized concatenation of (text, category, source).
func rowPhraseMatch(rec Record, normalizedQuery string) bool {
	if normalizedQuery == "" {
		return false
	}
	haystack := normalizeText(rec.Text + " " + rec.Category + " " + rec.Source)
	return strings.Contains(haystack, normalizedQuery)
}

// queryTokens returns distinct lowercased query tokens of length >= 2 that
// are not stopwords.
func queryTokens(query string) []string {
	seen := map[string]bool{}
	var tokens []string
	for _, tok := range tokenize(query) {
		if len(tok) < minTokenLength || stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

var reNonWord = regexp.MustCompile(`[^a-z0-9]+`)

func tokenize(s string) []string {
	return strings.Fields(reNonWord.ReplaceAllString(strings.ToLower(s), " "))
}

// rowKeywordHits counts distinct query tokens matching any row token via
// prefix-or-equality with a light morphological expansion.
func rowKeywordHits(rec Record, tokens []string) int {
	if len(tokens) == 0 {
		return 0
	}
	rowTokens := tokenize(rec.Text + " " + rec.Category + " " + rec.Source)

	hits := 0
	for _, qt := range tokens {
		if anyTokenMatches(qt, rowTokens) {
			hits++
		}
	}
	return hits
}

func anyTokenMatches(queryToken string, rowTokens []string) bool {
	qvars := morphVariants(queryToken)
	for _, rt := range rowTokens {
		for _, rv := range morphVariants(rt) {
			for _, qv := range qvars {
				if qv == rv || strings.HasPrefix(rv, qv) {
					return true
				}
			}
		}
	}
	return false
}

// morphVariants strips common suffixes: trailing s, es, ies->y, ed, ing,
// ence(s).
func morphVariants(tok string) []string {
	variants := []string{tok}
	add := func(v string) {
		if len(v) >= minTokenLength {
			variants = append(variants, v)
		}
	}

	switch {
	case strings.HasSuffix(tok, "ies"):
		add(strings.TrimSuffix(tok, "ies") + "y")
	case strings.HasSuffix(tok, "es"):
		add(strings.TrimSuffix(tok, "es"))
		add(strings.TrimSuffix(tok, "s"))
	case strings.HasSuffix(tok, "s"):
		add(strings.TrimSuffix(tok, "s"))
	}
	if strings.HasSuffix(tok, "ed") {
		add(strings.TrimSuffix(tok, "ed"))
	}
	if strings.HasSuffix(tok, "ing") {
		add(strings.TrimSuffix(tok, "ing"))
	}
	if strings.HasSuffix(tok, "ences") {
		add(strings.TrimSuffix(tok, "ences") + "ence")
	}
	if strings.HasSuffix(tok, "ence") {
		add(strings.TrimSuffix(tok, "ence"))
	}
	return variants
}

// detectIntent classifies a query as expressing a personal intent by the
// presence of the words name, phone/mobile/contact, or email.
func detectIntent(query string) intent {
	in := intentNone
	for _, tok := range tokenize(query) {
		switch tok {
		case "name":
			in |= intentName
		case "phone", "mobile", "contact":
			in |= intentPhone
		case "email":
			in |= intentEmail
		}
	}
	return in
}

func rowMatchesIntent(text string, in intent) bool {
	if in&intentName != 0 && reNameShape.MatchString(text) {
		return true
	}
	if in&intentPhone != 0 && rePhoneShape.MatchString(text) {
		return true
	}
	if in&intentEmail != 0 && reEmailShape.MatchString(text) {
		return true
	}
	return false
}
