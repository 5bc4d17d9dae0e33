// Package assistant is the read-only SQL console and the natural-language
// front end that writes SQL for it.
package assistant

import (
	"regexp"
	"strings"
)

var (
	lineComment  = regexp.MustCompile(`(?m)--.*?$`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// forbiddenKeywords are matched as whole space-delimited words.
var forbiddenKeywords = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE", "TRUNCATE", "EXEC", "EXECUTE",
}

const (
	msgOnlySelect    = "Only SELECT queries are allowed."
	msgForbidden     = "Query contains forbidden keyword: "
	msgEmptyQuery    = "Please enter a query."
	msgEmptyQuestion = "Please enter a question."
)

// ValidationError is a rejected query or question. Reason is shown to the
// user as is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ValidateSelect accepts only statements that start with SELECT once
// comments are stripped and whitespace collapsed, and that contain none of
// the forbidden keywords. It is a guard for the UI; the database role must
// still be read-only.
func ValidateSelect(query string) error {
	clean := lineComment.ReplaceAllString(query, "")
	clean = blockComment.ReplaceAllString(clean, "")
	clean = strings.Join(strings.Fields(clean), " ")

	upper := strings.ToUpper(clean)
	if !strings.HasPrefix(upper, "SELECT") {
		return &ValidationError{Reason: msgOnlySelect}
	}
	for _, kw := range forbiddenKeywords {
		if strings.Contains(upper, " "+kw+" ") || strings.HasPrefix(upper, kw+" ") {
			return &ValidationError{Reason: msgForbidden + kw}
		}
	}
	return nil
}
