package rental

import (
	"fmt"
	"strings"
)

// CheckinMethod is how the driver checked in to the rental.
type CheckinMethod string

const (
	// Mobile rentals have the agreement signed on the owner's smartphone.
	Mobile CheckinMethod = "mobile"
	// Connect cars are unlocked by the driver's smartphone.
	Connect CheckinMethod = "connect"
)

// Methods is the full set of check-in methods, in display order.
var Methods = []CheckinMethod{Mobile, Connect}

// ParseCheckinMethod maps a raw cell value to a CheckinMethod.
func ParseCheckinMethod(s string) (CheckinMethod, error) {
	switch CheckinMethod(strings.ToLower(strings.TrimSpace(s))) {
	case Mobile:
		return Mobile, nil
	case Connect:
		return Connect, nil
	default:
		return "", fmt.Errorf("unknown checkin method %q: want mobile|connect", s)
	}
}

// Record is one row of the rental table.
type Record struct {
	// RentalID and CarID are read when the columns exist; zero otherwise.
	RentalID int64
	CarID    int64

	// State is "ended" or "canceled" in the source data; empty when absent.
	State string

	// CheckinMethod is mobile or connect.
	CheckinMethod CheckinMethod

	// CheckoutDelayMinutes is actual minus scheduled checkout time.
	// Zero or negative means the car came back on time or early.
	CheckoutDelayMinutes int

	// TimeDeltaPreviousMinutes is the gap between this rental's start and the
	// previous rental's end on the same car. Nil when there was no previous
	// rental within the observed window (capped at 720 minutes).
	TimeDeltaPreviousMinutes *int

	// PreviousRentalID is set iff the rental is chained to a preceding rental.
	PreviousRentalID *int64
}

// Late reports whether the driver checked out after the scheduled time.
func (r Record) Late() bool { return r.CheckoutDelayMinutes > 0 }

// Table is an immutable, in-memory set of rental records.
type Table struct {
	records []Record
}

// NewTable returns a Table holding a copy of records.
func NewTable(records []Record) Table {
	cp := make([]Record, len(records))
	copy(cp, records)
	return Table{records: cp}
}

// Len returns the number of records.
func (t Table) Len() int { return len(t.records) }

// At returns the i-th record by value.
func (t Table) At(i int) Record { return t.records[i] }

// Each calls fn for every record in order.
func (t Table) Each(fn func(Record)) {
	for _, r := range t.records {
		fn(r)
	}
}

// Records returns a copy of all records.
func (t Table) Records() []Record {
	cp := make([]Record, len(t.records))
	copy(cp, t.records)
	return cp
}

// Filter returns the records whose check-in method is m.
func (t Table) Filter(m CheckinMethod) Table {
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		if r.CheckinMethod == m {
			out = append(out, r)
		}
	}
	return Table{records: out}
}
