package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/hyperengineering/liftlog/internal/types"
)

var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDate resolves a --date value to a calendar day. It accepts
// YYYY-MM-DD or phrases such as "yesterday" and "last monday", relative to
// base. An empty value means base's day.
func parseDate(value string, base time.Time) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return base.Format(types.DateLayout), nil
	}
	if _, err := time.Parse(types.DateLayout, value); err == nil {
		return value, nil
	}

	r, err := dateParser.Parse(value, base)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", value, err)
	}
	if r == nil {
		return "", fmt.Errorf("unrecognized date %q (use YYYY-MM-DD or e.g. \"yesterday\")", value)
	}
	return r.Time.Format(types.DateLayout), nil
}
