package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Candidate source keys per logical attribute, in priority order. Upstream
// payloads have renamed these columns several times; the first non-empty
// value wins.
var (
	DistrictKeys   = []string{"district", "district_name", "district_name_en"}
	YearKeys       = []string{"year"}
	MonthKeys      = []string{"month"}
	PersonsKeys    = []string{"persons_benefitted", "persons"}
	PersonDaysKeys = []string{"person_days", "persondays"}
	WagesKeys      = []string{"wages_paid", "wages"}
	HouseholdsKeys = []string{"households_worked", "households"}
)

var ErrNotInteger = errors.New("value is not an integer")

// Record is one loosely-typed upstream row. Numbers must be decoded as
// json.Number (see DecodeRecords).
type Record map[string]any

// Row is a record normalized into the monthly metric shape.
type Row struct {
	Year       int
	Month      int
	Persons    int64
	PersonDays int64
	Wages      int64
	Households int64
}

// District returns the trimmed district name, or "" when no candidate key
// holds a non-empty string.
func (r Record) District() string {
	for _, key := range DistrictKeys {
		s, ok := r[key].(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Int returns the first non-empty value among keys coerced to an integer.
// Absent, null, empty and zero values fall through to the next key; when
// every key is empty the result is 0.
func (r Record) Int(keys ...string) (int64, error) {
	for _, key := range keys {
		v, present := r[key]
		if !present || isEmpty(v) {
			continue
		}
		n, err := toInt(v)
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", key, err)
		}
		return n, nil
	}
	return 0, nil
}

// Normalize coerces r into a Row. It fails when any chosen value is not an
// integer; callers skip such records.
func (r Record) Normalize() (Row, error) {
	var row Row

	year, err := r.Int(YearKeys...)
	if err != nil {
		return row, err
	}
	month, err := r.Int(MonthKeys...)
	if err != nil {
		return row, err
	}
	row.Year, row.Month = int(year), int(month)

	if row.Persons, err = r.Int(PersonsKeys...); err != nil {
		return row, err
	}
	if row.PersonDays, err = r.Int(PersonDaysKeys...); err != nil {
		return row, err
	}
	if row.Wages, err = r.Int(WagesKeys...); err != nil {
		return row, err
	}
	if row.Households, err = r.Int(HouseholdsKeys...); err != nil {
		return row, err
	}
	return row, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	}
	return false
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, ErrNotInteger
		}
		return int64(f), nil
	case float64:
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		return n, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return 0, ErrNotInteger
}

// DecodeRecords extracts the records array from an upstream document,
// preferring "records" and falling back to "data" when records is absent
// or empty.
func DecodeRecords(doc []byte) ([]Record, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	for _, key := range []string{"records", "data"} {
		raw, ok := root[key]
		if !ok {
			continue
		}
		records, err := decodeArray(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", key, err)
		}
		if len(records) > 0 {
			return records, nil
		}
	}
	return nil, nil
}

func decodeArray(raw json.RawMessage) ([]Record, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}
