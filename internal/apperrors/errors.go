// Package apperrors holds the error taxonomy shared by the query pipeline
// components and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindDecryption        Kind = "decryption"
	KindCredentialMissing Kind = "credential_missing"
	KindLLMProvider       Kind = "llm_provider"
	KindPlanParse         Kind = "plan_parse"
	KindSQLValidation     Kind = "sql_validation"
	KindExecution         Kind = "execution"
	KindSummarization     Kind = "summarization"
	KindPersistence       Kind = "persistence"
	KindInvalidInput      Kind = "invalid_input"
)

// Error is a classified failure. Message is safe to show to the tenant for
// the kinds that surface it; Cause is for logs only.
type Error struct {
	Kind     Kind
	Message  string
	Provider string
	Cause    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg += " (" + e.Provider + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind so errors.Is(err, ErrDecryption) works for any
// decryption failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Provider == ""
}

// Sentinels for errors.Is checks.
var (
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrDecryption        = &Error{Kind: KindDecryption}
	ErrCredentialMissing = &Error{Kind: KindCredentialMissing}
	ErrLLMProvider       = &Error{Kind: KindLLMProvider}
	ErrPlanParse         = &Error{Kind: KindPlanParse}
	ErrSQLValidation     = &Error{Kind: KindSQLValidation}
	ErrExecution         = &Error{Kind: KindExecution}
	ErrSummarization     = &Error{Kind: KindSummarization}
	ErrPersistence       = &Error{Kind: KindPersistence}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
)

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Configuration(message string, cause error) *Error {
	return New(KindConfiguration, message, cause)
}

func Decryption(message string, cause error) *Error {
	return New(KindDecryption, message, cause)
}

// LLMProvider builds a provider failure. The provider name is attached; the
// caller must never pass the API key in message or cause.
func LLMProvider(provider, message string, cause error) *Error {
	return &Error{Kind: KindLLMProvider, Provider: provider, Message: message, Cause: cause}
}

func SQLValidation(reason string) *Error {
	return New(KindSQLValidation, reason, nil)
}

// InvalidInput rejects a request before any model call. Message is shown
// to the caller.
func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message, nil)
}

func Execution(message string, cause error) *Error {
	return New(KindExecution, message, cause)
}

func Persistence(message string, cause error) *Error {
	return New(KindPersistence, message, cause)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PublicMessage returns the text shown to the caller for err. Configuration
// and unclassified failures never reveal their details.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	switch e.Kind {
	case KindConfiguration:
		return "server configuration error"
	case KindDecryption:
		return "stored API key could not be read, please re-enter your API key in settings"
	case KindCredentialMissing:
		return "AI provider not configured, please add your API key in settings"
	case KindLLMProvider:
		if e.Provider != "" {
			return fmt.Sprintf("AI provider %s request failed: %s", e.Provider, e.Message)
		}
		return "AI provider request failed: " + e.Message
	case KindSQLValidation, KindInvalidInput:
		return e.Message
	case KindExecution:
		return "query execution failed: " + e.Message
	default:
		return "internal server error"
	}
}

// HTTPStatus maps err to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindDecryption, KindCredentialMissing, KindSQLValidation, KindInvalidInput:
		return http.StatusBadRequest
	case KindLLMProvider:
		return http.StatusBadGateway
	case KindExecution:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
