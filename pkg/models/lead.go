package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LeadRecord is a row read back from the lead store. The sheet adds its own
// columns so anything unrecognised is kept in Extra.
type LeadRecord struct {
	Timestamp  string         `json:"timestamp,omitempty"`
	Date       string         `json:"date,omitempty"`
	Name       string         `json:"name"`
	Phone      string         `json:"phone"`
	PlanType   string         `json:"planType"`
	Status     string         `json:"status,omitempty"`
	Occupation string         `json:"occupation,omitempty"`
	Age        string         `json:"age,omitempty"`
	DOB        string         `json:"dob,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// UnmarshalJSON accepts numbers where strings are expected; sheets turn phone numbers into numbers.
func (l *LeadRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("lead record is not an object")
	}

	take := func(key string) string {
		v, ok := fields[key]
		if !ok {
			return ""
		}
		delete(fields, key)
		return stringify(v)
	}

	*l = LeadRecord{
		Timestamp:  take("timestamp"),
		Date:       take("date"),
		Name:       take("name"),
		Phone:      take("phone"),
		PlanType:   take("planType"),
		Status:     take("status"),
		Occupation: take("occupation"),
		Age:        take("age"),
		DOB:        take("dob"),
	}
	if len(fields) > 0 {
		l.Extra = fields
	}
	return nil
}

// When reports the record time, preferring timestamp over date. Zero if neither parses.
func (l LeadRecord) When() time.Time {
	for _, v := range []string{l.Timestamp, l.Date} {
		if v == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "02/01/2006 15:04:05", "02/01/2006"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// DialablePhone strips everything but digits, for wa.me links
func (l LeadRecord) DialablePhone() string {
	return digitsOnly(l.Phone)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
