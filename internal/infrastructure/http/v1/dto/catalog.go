package dto

import (
	"epitrack/internal/core/types"
)

// --- Warehouses ---

// CreateWarehouseRequest registers a warehouse.
type CreateWarehouseRequest struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
}

// UpdateWarehouseRequest changes warehouse fields.
type UpdateWarehouseRequest struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
}

// --- EPI types ---

// CreateEPITypeRequest registers an equipment type.
type CreateEPITypeRequest struct {
	Name         string      `json:"name" binding:"required"`
	Description  string      `json:"description"`
	CANumber     string      `json:"caNumber"`
	LifespanDays int         `json:"lifespanDays" binding:"min=0"`
	WarningDays  int         `json:"warningDays" binding:"min=0"`
	UnitCost     types.Money `json:"unitCost"`
}

// UpdateEPITypeRequest changes equipment type fields. The CA number is
// immutable once set.
type UpdateEPITypeRequest struct {
	Name         *string      `json:"name"`
	Description  *string      `json:"description"`
	LifespanDays *int         `json:"lifespanDays"`
	WarningDays  *int         `json:"warningDays"`
	UnitCost     *types.Money `json:"unitCost"`
}

// --- PPE records ---

// CreateFichaRequest opens a PPE record for an employee.
type CreateFichaRequest struct {
	EmployeeName         string `json:"employeeName" binding:"required"`
	EmployeeRegistration string `json:"employeeRegistration" binding:"required"`
	Department           string `json:"department"`
	JobTitle             string `json:"jobTitle"`
}
