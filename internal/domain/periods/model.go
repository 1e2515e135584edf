// Package periods provides accounting period management.
package periods

import (
	"context"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/entity"
)

// Status is the lifecycle state of an accounting period.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Period is a date range into which journal entries may be posted while open.
// Periods never overlap; at most one period contains any given date.
type Period struct {
	entity.BaseEntity

	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
	Status    Status    `db:"status" json:"status"`
}

// NewPeriod creates a new open period.
func NewPeriod(name string, start, end time.Time) *Period {
	return &Period{
		BaseEntity: entity.NewBaseEntity(),
		Name:       name,
		StartDate:  start,
		EndDate:    end,
		Status:     StatusOpen,
	}
}

// Validate implements entity.Validatable.
func (p *Period) Validate(ctx context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return apperror.NewValidation("start and end dates are required")
	}
	if p.EndDate.Before(p.StartDate) {
		return apperror.NewValidation("end date must not precede start date").
			WithDetail("start", p.StartDate.Format("2006-01-02")).
			WithDetail("end", p.EndDate.Format("2006-01-02"))
	}
	return nil
}

// Contains reports whether the date falls inside the period (inclusive).
// Comparison is by calendar day.
func (p *Period) Contains(date time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(p.StartDate)) && !d.After(truncateDay(p.EndDate))
}

// IsOpen reports whether postings are accepted.
func (p *Period) IsOpen() bool {
	return p.Status == StatusOpen
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
