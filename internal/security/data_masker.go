package security

import (
	"fmt"
	"regexp"
	"strings"
)

// maskRule hides the value of a column whose name matches.
type maskRule struct {
	column *regexp.Regexp
	mask   func(string) string
}

var builtinRules = []maskRule{
	{regexp.MustCompile(`(?i)e_?mail`), maskEmail},
	{regexp.MustCompile(`(?i)phone|mobile_number|msisdn`), maskPhone},
	{regexp.MustCompile(`(?i)ip_address|client_ip|^ip$`), maskIP},
	{regexp.MustCompile(`(?i)password|secret|token|api_key|access_key|private_key|encrypted`), fullMask},
}

// DataMasker masks sensitive column values in result rows before they are
// summarised or returned. Column order and row order are untouched.
type DataMasker struct {
	extra []string
}

// NewDataMasker takes substrings of column names to mask fully, on top of
// the built-in rules.
func NewDataMasker(sensitiveColumns []string) *DataMasker {
	extra := make([]string, 0, len(sensitiveColumns))
	for _, c := range sensitiveColumns {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			extra = append(extra, c)
		}
	}
	return &DataMasker{extra: extra}
}

// MaskRows returns masked copies of rows. Nil values stay nil.
func (m *DataMasker) MaskRows(rows []map[string]any) []map[string]any {
	if rows == nil {
		return nil
	}
	masks := make(map[string]func(string) string)
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		masked := make(map[string]any, len(row))
		for col, val := range row {
			fn, seen := masks[col]
			if !seen {
				fn = m.maskFor(col)
				masks[col] = fn
			}
			if fn == nil || val == nil {
				masked[col] = val
				continue
			}
			masked[col] = fn(fmt.Sprint(val))
		}
		out[i] = masked
	}
	return out
}

func (m *DataMasker) maskFor(col string) func(string) string {
	for _, r := range builtinRules {
		if r.column.MatchString(col) {
			return r.mask
		}
	}
	lower := strings.ToLower(col)
	for _, s := range m.extra {
		if strings.Contains(lower, s) {
			return fullMask
		}
	}
	return nil
}

func fullMask(string) string { return "***" }

// maskEmail: "john.doe@example.com" → "jo***@***.com"
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "***"
	}
	if len(local) > 2 {
		local = local[:2]
	}
	ext := domain[strings.LastIndexByte(domain, '.')+1:]
	return local + "***@***." + ext
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	digits := keepDigits(phone)
	if len(digits) < 4 {
		return "***-***-****"
	}
	return "***-***-" + digits[len(digits)-4:]
}

// maskIP hides the host part: "203.0.113.7" → "203.0.113.*"
func maskIP(ip string) string {
	if i := strings.LastIndexByte(ip, '.'); i > 0 && !strings.Contains(ip, ":") {
		return ip[:i] + ".*"
	}
	return "***"
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
