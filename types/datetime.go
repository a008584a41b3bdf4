package types

import (
	"encoding/json"
	"strings"
	"time"
)

// DateTimeFormat is the layout used when serializing DateTime values
var DateTimeFormat = time.RFC3339

// DateTime wraps a time.Time struct, allowing for improved dateTime JSON compatibility.
type DateTime struct {
	time.Time
}

// NewDateTime Creates a new DateTime struct, embedding a time.Time struct.
func NewDateTime(time time.Time) *DateTime {
	return &DateTime{Time: time}
}

func (dt *DateTime) UnmarshalJSON(input []byte) error {
	raw := strings.Trim(string(input), "\"")
	if raw == "" || raw == "null" {
		dt.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// some central systems omit the zone designator
		t, err = time.Parse("2006-01-02T15:04:05.999999999", raw)
		if err != nil {
			return err
		}
	}
	dt.Time = t
	return nil
}

func (dt *DateTime) MarshalJSON() ([]byte, error) {
	if DateTimeFormat == "" {
		return json.Marshal(dt.Time)
	}
	return json.Marshal(dt.FormatTimestamp())
}

// FormatTimestamp returns the UTC time in DateTimeFormat
func (dt *DateTime) FormatTimestamp() string {
	return dt.UTC().Format(DateTimeFormat)
}
