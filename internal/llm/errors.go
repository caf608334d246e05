package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/seoinsight/seoinsight/internal/apperrors"
)

// checkKeyFormat rejects keys that can never authenticate. The key itself
// is never part of the returned error.
func checkKeyFormat(p Provider, apiKey string) error {
	if apiKey == "" {
		return apperrors.LLMProvider(string(p), "API key is empty", nil)
	}
	for _, r := range apiKey {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return apperrors.LLMProvider(string(p), "API key has an invalid format", nil)
		}
	}
	return nil
}

// classify turns an upstream failure into a provider error. The cause text
// is scrubbed of the key since some vendors echo it back.
func classify(p Provider, apiKey string, status int, err error) error {
	cause := errors.New(redact(err.Error(), apiKey))

	var msg string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	case errors.Is(err, context.Canceled):
		msg = "request cancelled"
	case status == 401 || status == 403:
		msg = "authentication failed, check your API key"
	case status == 404:
		msg = "model or endpoint not found"
	case status == 429:
		msg = "rate limited or quota exceeded"
	case status >= 500:
		msg = fmt.Sprintf("upstream error (status %d)", status)
	case status > 0:
		msg = fmt.Sprintf("request rejected (status %d)", status)
	default:
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "timeout") {
			msg = "request timed out"
		} else {
			msg = "request failed"
		}
	}
	return apperrors.LLMProvider(string(p), msg, cause)
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "[redacted]")
}
