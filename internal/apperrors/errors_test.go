package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/seoinsight/seoinsight/internal/apperrors"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("load credential: %w", apperrors.Decryption("tag mismatch", nil))
	if !errors.Is(err, apperrors.ErrDecryption) {
		t.Error("wrapped decryption error should match ErrDecryption")
	}
	if errors.Is(err, apperrors.ErrConfiguration) {
		t.Error("decryption error should not match ErrConfiguration")
	}
}

func TestPublicMessageHidesConfiguration(t *testing.T) {
	err := apperrors.Configuration("CREDENTIAL_ENCRYPTION_KEY must be 64 hex characters", nil)
	msg := apperrors.PublicMessage(err)
	if strings.Contains(msg, "CREDENTIAL_ENCRYPTION_KEY") {
		t.Errorf("configuration details leaked: %q", msg)
	}
	if got := apperrors.HTTPStatus(err); got != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", got)
	}
}

func TestPublicMessageNamesProvider(t *testing.T) {
	err := apperrors.LLMProvider("anthropic", "rate limited", errors.New("429"))
	msg := apperrors.PublicMessage(err)
	if !strings.Contains(msg, "anthropic") {
		t.Errorf("provider missing from %q", msg)
	}
	if got := apperrors.HTTPStatus(err); got != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.SQLValidation("DROP statements are not allowed"), http.StatusBadRequest},
		{apperrors.Decryption("bad", nil), http.StatusBadRequest},
		{apperrors.Execution("syntax error", nil), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := apperrors.HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSQLValidationMessageVerbatim(t *testing.T) {
	err := apperrors.SQLValidation("Only SELECT statements are allowed")
	if got := apperrors.PublicMessage(err); got != "Only SELECT statements are allowed" {
		t.Errorf("PublicMessage = %q", got)
	}
}
