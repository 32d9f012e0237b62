// Package ficha provides the employee PPE record (ficha de EPI): the
// per-employee document that all issuances and returns hang off.
package ficha

import (
	"context"
	"strings"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/entity"
	"epitrack/internal/core/id"
)

// Status is the PPE record lifecycle state.
type Status string

const (
	// StatusActive accepts new issuances
	StatusActive Status = "active"
	// StatusSuspended blocks new issuances; returns still process
	StatusSuspended Status = "suspended"
	// StatusArchived is terminal (employee left); no open issuances allowed
	StatusArchived Status = "archived"
)

// Ficha is one employee's PPE record.
type Ficha struct {
	entity.BaseDocument

	EmployeeName         string `db:"employee_name" json:"employeeName"`
	EmployeeRegistration string `db:"employee_registration" json:"employeeRegistration"`
	Department           string `db:"department" json:"department,omitempty"`
	JobTitle             string `db:"job_title" json:"jobTitle,omitempty"`

	Status Status `db:"status" json:"status"`
}

// New creates an active PPE record.
func New(employeeName, employeeRegistration, department, jobTitle string) *Ficha {
	return &Ficha{
		BaseDocument:         entity.NewBaseDocument(),
		EmployeeName:         strings.TrimSpace(employeeName),
		EmployeeRegistration: strings.TrimSpace(employeeRegistration),
		Department:           strings.TrimSpace(department),
		JobTitle:             strings.TrimSpace(jobTitle),
		Status:               StatusActive,
	}
}

// Validate implements entity.Validatable.
func (f *Ficha) Validate(ctx context.Context) error {
	if f.EmployeeName == "" {
		return apperror.NewValidation("employee name is required").WithDetail("field", "employeeName")
	}
	if f.EmployeeRegistration == "" {
		return apperror.NewValidation("employee registration is required").WithDetail("field", "employeeRegistration")
	}
	return nil
}

// CanReceive reports whether new issuances may target this record.
func (f *Ficha) CanReceive() bool {
	return f.Status == StatusActive
}

// Suspend blocks new issuances.
func (f *Ficha) Suspend() error {
	if f.Status == StatusArchived {
		return apperror.NewBusinessRule(apperror.CodeRecordNotActive, "Archived PPE records cannot change state").
			WithDetail("ficha_id", f.ID.String())
	}
	f.Status = StatusSuspended
	f.Touch()
	return nil
}

// Reactivate re-enables issuances on a suspended record.
func (f *Ficha) Reactivate() error {
	if f.Status == StatusArchived {
		return apperror.NewBusinessRule(apperror.CodeRecordNotActive, "Archived PPE records cannot change state").
			WithDetail("ficha_id", f.ID.String())
	}
	f.Status = StatusActive
	f.Touch()
	return nil
}

// Archive closes the record permanently.
func (f *Ficha) Archive() {
	f.Status = StatusArchived
	f.Touch()
}

// Repository defines persistence operations for PPE records.
type Repository interface {
	Create(ctx context.Context, f *Ficha) error
	Update(ctx context.Context, f *Ficha) error
	GetByID(ctx context.Context, fichaID id.ID) (*Ficha, error)
	GetByRegistration(ctx context.Context, registration string) (*Ficha, error)
	List(ctx context.Context, filter ListFilter) ([]*Ficha, int64, error)
}

// ListFilter narrows PPE record listings.
type ListFilter struct {
	Status     *Status
	Department string
	Search     string
	Limit      int
	Offset     int
}

var _ entity.Validatable = (*Ficha)(nil)
