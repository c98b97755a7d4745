// Package redact masks credentials that leak into provider error text.
package redact

import (
	"regexp"
	"sort"
)

// SecretType names the kind of credential a pattern matched
type SecretType string

const (
	SecretTypeOpenAIKey    SecretType = "openai_key"
	SecretTypeAnthropicKey SecretType = "anthropic_key"
	SecretTypeXAIKey       SecretType = "xai_key"
	SecretTypeGCPKey       SecretType = "gcp_key"
	SecretTypeBearer       SecretType = "bearer_token"
	SecretTypeQueryKey     SecretType = "query_key"
	SecretTypeJWT          SecretType = "jwt"
	SecretTypeDatabaseURL  SecretType = "database_url"
)

// Detection is one matched secret within a text
type Detection struct {
	Type     SecretType
	StartPos int
	EndPos   int
}

type pattern struct {
	kind SecretType
	re   *regexp.Regexp
	// group selects the submatch to mask; 0 masks the whole match
	group int
}

// Order matters: the more specific prefixes come first so overlaps resolve to them
var patterns = []pattern{
	{SecretTypeAnthropicKey, regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{20,}`), 0},
	{SecretTypeOpenAIKey, regexp.MustCompile(`\bsk-(?:proj-|svcacct-|admin-)?[A-Za-z0-9_\-*]{16,}`), 0},
	{SecretTypeXAIKey, regexp.MustCompile(`\bxai-[A-Za-z0-9_\-]{20,}`), 0},
	{SecretTypeGCPKey, regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{30,}`), 0},
	{SecretTypeJWT, regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`), 0},
	{SecretTypeBearer, regexp.MustCompile(`(?i)\bbearer\s+([A-Za-z0-9_\-.=]{16,})`), 1},
	{SecretTypeQueryKey, regexp.MustCompile(`(?i)[?&](?:key|api_key|apikey)=([^&\s"']+)`), 1},
	{SecretTypeDatabaseURL, regexp.MustCompile(`(?i)\b(?:postgres|postgresql|mysql|redis)://[^\s:/@]+:([^\s@]+)@`), 1},
}

// Detect returns every non-overlapping secret in text, ordered by position
func Detect(text string) []Detection {
	var detections []Detection
	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*p.group], m[2*p.group+1]
			if start < 0 || overlaps(detections, start, end) {
				continue
			}
			detections = append(detections, Detection{Type: p.kind, StartPos: start, EndPos: end})
		}
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].StartPos < detections[j].StartPos
	})
	return detections
}

// HasSecrets reports whether text contains anything Secrets would mask
func HasSecrets(text string) bool {
	return len(Detect(text)) > 0
}

// Secrets replaces every detected secret with a typed placeholder
func Secrets(text string) string {
	detections := Detect(text)
	if len(detections) == 0 {
		return text
	}

	// Replace back to front so earlier offsets stay valid
	result := text
	for i := len(detections) - 1; i >= 0; i-- {
		d := detections[i]
		result = result[:d.StartPos] + placeholder(d.Type) + result[d.EndPos:]
	}
	return result
}

func placeholder(kind SecretType) string {
	switch kind {
	case SecretTypeOpenAIKey, SecretTypeAnthropicKey, SecretTypeXAIKey, SecretTypeGCPKey, SecretTypeQueryKey:
		return "[API_KEY_REDACTED]"
	case SecretTypeBearer, SecretTypeJWT:
		return "[TOKEN_REDACTED]"
	case SecretTypeDatabaseURL:
		return "[PASSWORD_REDACTED]"
	}
	return "[REDACTED]"
}

func overlaps(detections []Detection, start, end int) bool {
	for _, d := range detections {
		if start < d.EndPos && end > d.StartPos {
			return true
		}
	}
	return false
}
