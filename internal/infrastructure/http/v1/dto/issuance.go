package dto

// IssueLineRequest is one EPI type and quantity in a delivery.
type IssueLineRequest struct {
	EPITypeID string `json:"epiTypeId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
}

// IssueRequest delivers equipment units to an employee.
type IssueRequest struct {
	FichaID     string             `json:"fichaId" binding:"required"`
	WarehouseID string             `json:"warehouseId" binding:"required"`
	Notes       string             `json:"notes"`
	Lines       []IssueLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReturnItemRequest classifies one returning unit.
type ReturnItemRequest struct {
	ItemID         string `json:"itemId" binding:"required"`
	Classification string `json:"classification" binding:"required"`
	Notes          string `json:"notes"`
}

// ReturnRequest processes the return of issued units.
type ReturnRequest struct {
	Items []ReturnItemRequest `json:"items" binding:"required,min=1,dive"`
}
