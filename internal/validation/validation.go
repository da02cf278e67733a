package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hyperengineering/liftlog/internal/types"
)

// Limits applied to raw input and interpreted observations.
const (
	InputMaxLength = 300
	QueryMaxLength = 500
	WeightMin      = 0
	WeightMax      = 500
	RepsMin        = 1
	RepsMax        = 100
	SetsMin        = 1
	SetsMax        = 50
	NameMaxLength  = 100
	NotesMaxLength = 1000
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Errors is a non-empty list of field failures returned as one error.
type Errors []ValidationError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Field + " " + v.Message
	}
	return strings.Join(msgs, "; ")
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// First returns the first accumulated error, or nil.
func (c *Collector) First() *ValidationError {
	if len(c.errors) == 0 {
		return nil
	}
	return &c.errors[0]
}

// Err returns the accumulated errors as Errors, or nil when there are none.
func (c *Collector) Err() error {
	if len(c.errors) == 0 {
		return nil
	}
	return Errors(c.errors)
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateULID returns an error if the value is not a valid ULID.
// ULIDs are 26 characters of Crockford Base32 (no I, L, O, U).
func ValidateULID(field, value string) *ValidationError {
	if len(value) != 26 {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid ULID (26 characters)",
		}
	}

	const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	for _, r := range strings.ToUpper(value) {
		if !strings.ContainsRune(crockfordBase32, r) {
			return &ValidationError{
				Field:   field,
				Message: "must be a valid ULID (invalid character)",
			}
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateInput checks raw free-text input before it is sent to an interpreter.
func ValidateInput(value string) *ValidationError {
	return validateText("input", "Input", InputMaxLength, value)
}

// ValidateQuery checks a question about the workout history.
func ValidateQuery(value string) *ValidationError {
	return validateText("query", "Query", QueryMaxLength, value)
}

func validateText(field, label string, max int, value string) *ValidationError {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return &ValidationError{Field: field, Message: label + " cannot be empty"}
	}
	if utf8.RuneCountInString(trimmed) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s exceeds %d characters", label, max),
		}
	}
	if err := ValidateNoNullBytes(field, value); err != nil {
		err.Message = label + " " + err.Message
		return err
	}
	if err := ValidateUTF8(field, value); err != nil {
		err.Message = label + " " + err.Message
		return err
	}
	return nil
}

// ValidateSessionPatch checks the free-text fields of a session patch and
// reports every failure at once.
func ValidateSessionPatch(p types.SessionPatch) error {
	c := &Collector{}
	if p.Name != nil {
		c.Add(ValidateRequired("name", *p.Name))
		c.Add(ValidateMaxLength("name", *p.Name, NameMaxLength))
		c.Add(ValidateUTF8("name", *p.Name))
	}
	if p.Notes != nil {
		c.Add(ValidateMaxLength("notes", *p.Notes, NotesMaxLength))
		c.Add(ValidateUTF8("notes", *p.Notes))
	}
	return c.Err()
}

// RawObservation is an observation as decoded from an interpreter reply,
// before bounds and integer checks. Counts are floats so that "8.5" reps is
// caught here instead of by the JSON decoder.
type RawObservation struct {
	Exercise *string  `json:"exercise"`
	Weight   *float64 `json:"weight"`
	Unit     *string  `json:"unit"`
	Reps     *float64 `json:"reps"`
	Sets     *float64 `json:"sets"`
}

// ValidateObservation checks one raw observation and converts it.
func ValidateObservation(field string, raw RawObservation) (*types.Observation, *ValidationError) {
	fail := func(msg string) (*types.Observation, *ValidationError) {
		return nil, &ValidationError{Field: field, Message: msg}
	}

	if raw.Exercise == nil || strings.TrimSpace(*raw.Exercise) == "" {
		return fail("Exercise name is required")
	}
	obs := types.Observation{Exercise: *raw.Exercise}

	if raw.Weight != nil {
		if *raw.Weight < WeightMin || *raw.Weight > WeightMax {
			return fail(fmt.Sprintf("Weight must be between %d and %d kg", WeightMin, WeightMax))
		}
		w := *raw.Weight
		obs.Weight = &w
	}

	if raw.Unit != nil {
		u := types.Unit(*raw.Unit)
		if u == types.UnitNone || !u.Valid() {
			return fail(`Unit must be "kg", "lbs", or null`)
		}
		obs.Unit = u
	}

	reps, verr := validateCount("Reps", raw.Reps, RepsMin, RepsMax)
	if verr != nil {
		return fail(verr.Message)
	}
	obs.Reps = reps

	sets, verr := validateCount("Sets", raw.Sets, SetsMin, SetsMax)
	if verr != nil {
		return fail(verr.Message)
	}
	obs.Sets = sets

	return &obs, nil
}

// ValidateObservations checks an interpreter reply as a whole. The message of
// the returned error names the 1-based position of the offending observation.
func ValidateObservations(raw []RawObservation) ([]types.Observation, *ValidationError) {
	if len(raw) == 0 {
		return nil, &ValidationError{Field: "exercises", Message: "No exercises parsed from input"}
	}

	out := make([]types.Observation, 0, len(raw))
	for i, r := range raw {
		obs, verr := ValidateObservation(fmt.Sprintf("exercises[%d]", i), r)
		if verr != nil {
			verr.Message = fmt.Sprintf("Exercise %d: %s", i+1, verr.Message)
			return nil, verr
		}
		out = append(out, *obs)
	}
	return out, nil
}

func validateCount(name string, v *float64, min, max int) (*int, *ValidationError) {
	if v == nil {
		return nil, nil
	}
	if math.IsNaN(*v) || math.Trunc(*v) != *v {
		return nil, &ValidationError{Message: name + " must be an integer"}
	}
	if *v < float64(min) || *v > float64(max) {
		return nil, &ValidationError{Message: fmt.Sprintf("%s must be between %d and %d", name, min, max)}
	}
	n := int(*v)
	return &n, nil
}

// ValidateEntry checks an edited entry against the observation limits. Weight
// and unit must be set or cleared together.
func ValidateEntry(e types.Entry) *ValidationError {
	if (e.Weight == nil) != (e.Unit == types.UnitNone) {
		return &ValidationError{Field: "unit", Message: "Weight and unit must be set together"}
	}
	if !e.Unit.Valid() {
		return &ValidationError{Field: "unit", Message: `Unit must be "kg", "lbs", or null`}
	}
	if e.Weight != nil && (*e.Weight < WeightMin || *e.Weight > WeightMax) {
		return &ValidationError{
			Field:   "weight",
			Message: fmt.Sprintf("Weight must be between %d and %d kg", WeightMin, WeightMax),
		}
	}
	if e.Reps != nil && (*e.Reps < RepsMin || *e.Reps > RepsMax) {
		return &ValidationError{
			Field:   "reps",
			Message: fmt.Sprintf("Reps must be between %d and %d", RepsMin, RepsMax),
		}
	}
	if e.Sets != nil && (*e.Sets < SetsMin || *e.Sets > SetsMax) {
		return &ValidationError{
			Field:   "sets",
			Message: fmt.Sprintf("Sets must be between %d and %d", SetsMin, SetsMax),
		}
	}
	return ValidateMaxLength("notes", e.Notes, NotesMaxLength)
}
