package models

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

type District struct {
	ID        int64
	Region    string
	Name      string
	Code      string
	UpdatedAt time.Time
}

type MonthlyMetric struct {
	ID                int64
	DistrictID        int64
	Year              int
	Month             int
	PersonsBenefitted int64
	PersonDays        int64
	WagesPaid         int64
	HouseholdsWorked  int64
	SourceDate        time.Time
	RawJSON           json.RawMessage
}

// UpsertResult tells whether an upsert created a new row.
type UpsertResult int

const (
	Updated UpsertResult = iota
	Created
)
