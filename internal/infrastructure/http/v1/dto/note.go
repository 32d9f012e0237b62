package dto

import (
	"epitrack/internal/core/types"
)

// CreateNoteRequest opens a movement note draft.
type CreateNoteRequest struct {
	Kind              string  `json:"kind" binding:"required"`
	OriginWarehouseID *string `json:"originWarehouseId"`
	DestWarehouseID   *string `json:"destWarehouseId"`
	Notes             string  `json:"notes"`
}

// NoteItemRequest adds a line to a draft note.
type NoteItemRequest struct {
	EPITypeID string      `json:"epiTypeId" binding:"required"`
	Quantity  int64       `json:"quantity"`
	UnitCost  types.Money `json:"unitCost"`
}

// UpdateItemQuantityRequest changes a draft line quantity.
type UpdateItemQuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

// UpdateNotesRequest changes the free-text notes of a draft.
type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

// CancelRequest cancels a note or delivery with a reason.
type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}
