package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxQuestionLength = 2000

// injectionPatterns catch attempts to rewrite the planner's instructions or
// smuggle a statement in through the question.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(the\s+)?(previous|prior|above)\s+(instructions|rules)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(the\s+)?(previous|prior|above)\s+(instructions|rules)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(the\s+)?(previous|prior|above)\s+(instructions|rules)`),
	regexp.MustCompile(`(?i)override\s+(all\s+)?(the\s+)?(previous|prior|above)\s+(instructions|rules)`),
	regexp.MustCompile(`(?i)(reveal|print|show)\s+(me\s+)?(your|the)\s+system\s+prompt`),
	regexp.MustCompile(`(?i)new\s+(context|instructions)\s*:`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)without\s+(the\s+)?user_id\s+filter`),
	regexp.MustCompile(`(?i)user_id\s*(=|!=|<>|in)\s*`),
	regexp.MustCompile(`(?i);\s*(drop|delete|insert|update|alter|truncate|grant|revoke|create)\b`),
	regexp.MustCompile(`(?i)\bpg_(sleep|read_file|ls_dir|shadow|authid)\b`),
	regexp.MustCompile(`(?i)\binformation_schema\b`),
}

// PromptValidator screens a tenant question before it reaches a model.
type PromptValidator struct {
	maxLength int
}

func NewPromptValidator() *PromptValidator {
	return &PromptValidator{maxLength: MaxQuestionLength}
}

// ValidationResult contains validation outcome
type ValidationResult struct {
	Valid   bool
	Message string
}

// Validate checks a question for length and instruction-injection phrasing.
func (v *PromptValidator) Validate(question string) ValidationResult {
	if strings.TrimSpace(question) == "" {
		return ValidationResult{Valid: false, Message: "message cannot be empty"}
	}

	if n := utf8.RuneCountInString(question); n > v.maxLength {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("message too long: %d characters (max %d)", n, v.maxLength),
		}
	}

	for _, p := range injectionPatterns {
		if p.MatchString(question) {
			return ValidationResult{
				Valid:   false,
				Message: "message contains instructions that cannot be processed, please ask about your analytics data",
			}
		}
	}

	return ValidationResult{Valid: true, Message: "ok"}
}
