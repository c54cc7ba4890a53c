// Package answer wraps an external generative provider in strict grounding
// enforcement, with a deterministic extractive fallback. The orchestrator
// never surfaces provider failures: rejected or failed generations degrade
// to extractive selection over the sanitized context.
package answer

import (
	"fmt"
	"regexp"
	"strings"
)

// ProviderKind is the resolved provider family.
type ProviderKind string

// Provider kinds. Aliases normalize onto these two branches.
const (
	KindOpenAI ProviderKind = "openai"
	KindGemini ProviderKind = "gemini"
)

// NormalizeAlias maps a configured provider alias onto a provider kind.
func NormalizeAlias(alias string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(alias)) {
	case "gemini", "google":
		return KindGemini, nil
	case "", "openai", "openai-compatible", "chatgpt", "claude", "anthropic":
		return KindOpenAI, nil
	default:
		return "", fmt.Errorf("answer: unsupported provider alias %q", alias)
	}
}

var reProfileSegment = regexp.MustCompile(`/profiles/([^/]+)`)

// ExtractProfileID returns the profile segment embedded in a proxy base
// URL, or "".
func ExtractProfileID(baseURL string) string {
	m := reProfileSegment.FindStringSubmatch(baseURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// ResolveBaseURL accepts either a fully-composed proxy URL containing the
// profile segment, or a base plus a separate profile id to be joined.
// Gemini URLs are normalized to end in the versioned endpoint path.
func ResolveBaseURL(kind ProviderKind, baseURL, profileID string) (string, error) {
	url := strings.TrimRight(strings.TrimSpace(baseURL), "/")

	if url != "" && ExtractProfileID(url) == "" && profileID != "" {
		url = url + "/profiles/" + profileID
	}

	switch kind {
	case KindGemini:
		if url == "" {
			url = "https://generativelanguage.googleapis.com"
		}
		if !strings.HasSuffix(url, "/v1beta") {
			url = url + "/v1beta"
		}
	case KindOpenAI:
		if url == "" {
			url = "https://api.openai.com/v1"
		}
	default:
		return "", fmt.Errorf("answer: unknown provider kind %q", kind)
	}

	return url, nil
}
