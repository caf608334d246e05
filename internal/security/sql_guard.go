package security

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/corazawaf/libinjection-go"

	"github.com/seoinsight/seoinsight/internal/apperrors"
)

// Rejection reasons. They are returned to the caller verbatim.
const (
	ReasonNotSelect         = "Only SELECT statements are allowed"
	ReasonMultipleStatement = "Multiple statements are not allowed"
	ReasonMissingTenant     = "Query must be scoped to your account"
	ReasonInvalidTenant     = "Invalid account identifier"
	ReasonSessionSetting    = "Changing session settings is not allowed"
)

// deniedKeywords are checked in order as whole words anywhere in the
// statement, including inside literals and comments.
var deniedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "TRUNCATE",
	"ALTER", "CREATE", "GRANT", "REVOKE",
}

var (
	selectPrefixRe = regexp.MustCompile(`^SELECT\b`)
	// set_config could rewrite app.user_id, which row security filters by.
	setConfigRe    = regexp.MustCompile(`\bSET_CONFIG\b`)
	deniedRes      = compileDenied(deniedKeywords)
)

func compileDenied(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`\b` + w + `\b`)
	}
	return out
}

const maxTenantIDLength = 128

// SQLGuard is a textual filter over model-generated SQL. It does not parse
// the statement; the read-only execution channel is what actually prevents
// writes.
type SQLGuard struct {
	requireTenant bool
}

// NewSQLGuard builds a guard. With requireTenant set, statements must carry
// the literal user_id predicate for the calling tenant.
func NewSQLGuard(requireTenant bool) *SQLGuard {
	return &SQLGuard{requireTenant: requireTenant}
}

// Validate returns nil when the statement is acceptable, or a sql_validation
// error carrying the first rule it breaks.
func (g *SQLGuard) Validate(sql, tenantID string) error {
	upper := strings.ToUpper(strings.TrimSpace(sql))

	if !selectPrefixRe.MatchString(upper) {
		return apperrors.SQLValidation(ReasonNotSelect)
	}

	for i, re := range deniedRes {
		if re.MatchString(upper) {
			return apperrors.SQLValidation(deniedKeywords[i] + " statements are not allowed")
		}
	}

	if setConfigRe.MatchString(upper) {
		return apperrors.SQLValidation(ReasonSessionSetting)
	}

	code, statements := scanStatements(sql)
	if statements > 1 {
		return apperrors.SQLValidation(ReasonMultipleStatement)
	}

	if g.requireTenant {
		if err := ValidateTenantID(tenantID); err != nil {
			return err
		}
		if !tenantPredicate(tenantID).MatchString(code) {
			return apperrors.SQLValidation(ReasonMissingTenant)
		}
	}
	return nil
}

// ValidateTenantID screens an id before it is placed in a prompt or a
// predicate.
func ValidateTenantID(id string) error {
	if id == "" || len(id) > maxTenantIDLength {
		return apperrors.SQLValidation(ReasonInvalidTenant)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return apperrors.SQLValidation(ReasonInvalidTenant)
		}
	}
	if isSQLi, _ := libinjection.IsSQLi(id); isSQLi {
		return apperrors.SQLValidation(ReasonInvalidTenant)
	}
	return nil
}

func tenantPredicate(tenantID string) *regexp.Regexp {
	lit := regexp.QuoteMeta(strings.ReplaceAll(tenantID, "'", "''"))
	return regexp.MustCompile(`(?i)\buser_id\s*=\s*'` + lit + `'`)
}

// scanStatements walks sql outside of quoted text. It returns the
// statement with comments removed and the number of statements, ignoring
// one trailing semicolon.
func scanStatements(sql string) (string, int) {
	var (
		b        strings.Builder
		count    = 1
		inSingle bool
		inDouble bool
	)
	body := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case inSingle:
			b.WriteByte(c)
			if c == '\'' {
				if i+1 < len(body) && body[i+1] == '\'' {
					b.WriteByte(body[i+1])
					i++
				} else {
					inSingle = false
				}
			}
		case inDouble:
			b.WriteByte(c)
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
			b.WriteByte(c)
		case c == '"':
			inDouble = true
			b.WriteByte(c)
		case c == '-' && i+1 < len(body) && body[i+1] == '-':
			for i < len(body) && body[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < len(body) && body[i+1] == '*':
			end := strings.Index(body[i+2:], "*/")
			if end == -1 {
				i = len(body)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		case c == ';':
			count++
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), count
}
