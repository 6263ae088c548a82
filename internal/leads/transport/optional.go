// Package transport defines the wire-level request and response types of the
// leads API. Update requests are partial: every field is an Optional that
// distinguishes "absent" from "present with a value" (including null).
package transport

import (
	"encoding/json"
	"time"

	"franchise_ops_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// OptionalString is a string field that may be absent from the request body.
// null decodes as an empty string.
type OptionalString struct {
	Value string
	Set   bool
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// OptionalFloat is a money/number field that may be absent. It accepts JSON
// numbers, numeric strings, empty strings and null; anything unparsable
// coerces to 0 rather than failing the request.
type OptionalFloat struct {
	Value float64
	Set   bool
}

func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = 0
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		o.Value = num
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		o.Value = domain.CoerceFloat(raw)
		return nil
	}

	// Booleans, objects, arrays: drop to zero, never reject.
	o.Value = 0
	return nil
}

// OptionalInt is a count field with the same permissive decoding as OptionalFloat.
type OptionalInt struct {
	Value int
	Set   bool
}

func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	var f OptionalFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	o.Set = f.Set
	o.Value = int(f.Value)
	return nil
}

// OptionalUUID is a reference field that may be absent, null or an empty
// string (both meaning "clear the reference").
type OptionalUUID struct {
	Value *uuid.UUID
	Set   bool
}

func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		if raw == "" {
			o.Value = nil
			return nil
		}

		parsed, err := uuid.Parse(raw)
		if err != nil {
			return err
		}

		o.Value = &parsed
		return nil
	}

	var parsed uuid.UUID
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}

	o.Value = &parsed
	return nil
}

const dateLayout = "2006-01-02"

// OptionalDate is a calendar-date field. It accepts "YYYY-MM-DD", RFC 3339
// timestamps (time-of-day discarded), empty string and null (both clearing
// the date).
type OptionalDate struct {
	Value *time.Time
	Set   bool
}

func (o *OptionalDate) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		o.Value = nil
		return nil
	}

	if parsed, err := time.Parse(dateLayout, raw); err == nil {
		o.Value = &parsed
		return nil
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return err
	}
	day := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	o.Value = &day
	return nil
}
