// Package logging keeps credentials out of cadence logs and journals.
//
// Collaborator output, escalation details and commit messages are free text
// produced by agents, so anything written to disk passes through Redact or
// a FilteringWriter first.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue replaces every detected secret.
const RedactedValue = "[REDACTED]"

// secretPatterns match common API key, token and credential formats.
var secretPatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // compiled once
	regexp.MustCompile(`sk-ant-api[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?([a-zA-Z0-9_-]{16,})["']?`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)authorization\s*[:=]\s*["']?[a-zA-Z0-9_-]{20,}["']?`),
	regexp.MustCompile(`(?i)(secret|password|credential|passwd|pwd)\s*[:=]\s*["']?[^\s"']{8,}["']?`),
	regexp.MustCompile(`(?i)-----BEGIN[A-Z\s]+PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)(token|auth)\s*[:=]\s*["']?[a-zA-Z0-9+/=]{32,}["']?`),
}

// secretFields are payload keys whose values are always redacted.
var secretFields = map[string]struct{}{ //nolint:gochecknoglobals // lookup table
	"api_key":       {},
	"apikey":        {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"password":      {},
	"secret":        {},
	"credential":    {},
	"credentials":   {},
	"private_key":   {},
	"authorization": {},
}

// ContainsSecret reports whether s matches any secret pattern.
func ContainsSecret(s string) bool {
	for _, p := range secretPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Redact replaces every secret in s with RedactedValue.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, RedactedValue)
	}
	return s
}

// IsSecretField reports whether a payload key names a secret. The key
// matches exactly or as an underscore-separated word, so "github_token" is
// a secret and "tokenizer" is not.
func IsSecretField(key string) bool {
	key = strings.ToLower(key)
	if _, ok := secretFields[key]; ok {
		return true
	}
	for _, part := range strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' }) {
		if _, ok := secretFields[part]; ok {
			return true
		}
	}
	return false
}

// RedactPayload returns a copy of payload with secret fields blanked and
// secret values filtered. A nil payload stays nil.
func RedactPayload(payload map[string]string) map[string]string {
	if payload == nil {
		return nil
	}
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		if IsSecretField(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = Redact(v)
	}
	return out
}

// SecretHook marks log events whose message carries a secret. zerolog hooks
// cannot rewrite the message, so the FilteringWriter does the redaction.
type SecretHook struct{}

// Run implements zerolog.Hook.
func (SecretHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSecret(msg) {
		e.Bool("redacted", true)
	}
}

// FilteringWriter redacts secrets from everything written through it.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter wraps w.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer. It reports len(p) on success so callers do
// not see a short write when redaction changes the length.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(fw.w, Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
