package dto

// AdjustRequest writes one counted quantity to a balance row.
type AdjustRequest struct {
	WarehouseID string `json:"warehouseId" binding:"required"`
	EPITypeID   string `json:"epiTypeId" binding:"required"`
	Target      int64  `json:"target" binding:"min=0"`
	Reason      string `json:"reason" binding:"required"`
}

// BulkAdjustRequest applies a batch of counted quantities.
type BulkAdjustRequest struct {
	Adjustments []AdjustRequest `json:"adjustments" binding:"required,min=1,dive"`
}
