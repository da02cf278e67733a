package ingest

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName capitalizes the first letter of each word of a raw exercise
// name and keeps the rest as typed: "DB row" becomes "DB Row". Casers are
// stateful, so each call builds its own.
func DisplayName(raw string) string {
	return cases.Title(language.Und, cases.NoLower).String(strings.Join(strings.Fields(raw), " "))
}
