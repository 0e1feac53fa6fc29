// Package datefmt expands strftime directives embedded in filename prefixes
// and directory templates.
package datefmt

import (
	"regexp"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// directive matches a run of strftime verbs and the punctuation commonly
// placed between them, e.g. "%Y-%m-%d".
var directive = regexp.MustCompile(`%[YymbBdHIMSpjaAwUWcxXzZ%+-]+`)

// Expand formats every directive run in text at now. A run that fails to
// format is kept verbatim, as is all text outside a run.
func Expand(text string, now time.Time) string {
	return directive.ReplaceAllStringFunc(text, func(run string) string {
		out, err := strftime.Format(run, now)
		if err != nil {
			return run
		}
		return out
	})
}

// Now expands text against the current local time.
func Now(text string) string {
	return Expand(text, time.Now())
}

// Contains reports whether text holds at least one directive run.
func Contains(text string) bool {
	return directive.MatchString(text)
}

// ExpandExcept is Expand with every occurrence of the keep tokens copied
// through verbatim, so placeholders such as "%batch_num%" survive.
func ExpandExcept(text string, now time.Time, keep ...string) string {
	var sb strings.Builder
	for text != "" {
		at, token := -1, ""
		for _, k := range keep {
			if k == "" {
				continue
			}
			if i := strings.Index(text, k); i >= 0 && (at < 0 || i < at) {
				at, token = i, k
			}
		}
		if at < 0 {
			sb.WriteString(Expand(text, now))
			break
		}
		sb.WriteString(Expand(text[:at], now))
		sb.WriteString(token)
		text = text[at+len(token):]
	}
	return sb.String()
}
