package issuance

import (
	"context"
	"time"

	"epitrack/internal/core/id"
)

// PossessionState classifies an open unit against its return deadline.
type PossessionState string

const (
	// PossessionActive is an open unit comfortably inside its deadline
	PossessionActive PossessionState = "active"
	// PossessionNearExpiry is inside the type's warning window
	PossessionNearExpiry PossessionState = "near_expiry"
	// PossessionOverdue is past the deadline
	PossessionOverdue PossessionState = "overdue"
)

// PossessionUnit is one open unit in an employee's possession.
type PossessionUnit struct {
	ItemID         id.ID           `json:"itemId"`
	EntregaID      id.ID           `json:"entregaId"`
	EntregaNumber  string          `json:"entregaNumber"`
	IssuedAt       time.Time       `json:"issuedAt"`
	ReturnDeadline *time.Time      `json:"returnDeadline,omitempty"`
	State          PossessionState `json:"state"`
}

// PossessionGroup aggregates an employee's open units of one EPI type.
type PossessionGroup struct {
	EPITypeID id.ID            `json:"epiTypeId"`
	Total     int              `json:"total"`
	Overdue   int              `json:"overdue"`
	Units     []PossessionUnit `json:"units"`
}

// CurrentPossession reports everything an employee currently holds,
// grouped by EPI type, each unit classified against its deadline at the
// service clock's now.
func (s *Service) CurrentPossession(ctx context.Context, fichaID id.ID) ([]PossessionGroup, error) {
	open, err := s.repo.ListOpenItemsByFicha(ctx, fichaID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	warnings, err := s.warningWindows(ctx, open)
	if err != nil {
		return nil, err
	}

	byType := make(map[id.ID]*PossessionGroup)
	var order []id.ID
	for _, oi := range open {
		g, ok := byType[oi.Item.EPITypeID]
		if !ok {
			g = &PossessionGroup{EPITypeID: oi.Item.EPITypeID}
			byType[oi.Item.EPITypeID] = g
			order = append(order, oi.Item.EPITypeID)
		}

		state := classify(oi.Item, now, warnings[oi.Item.EPITypeID])
		if state == PossessionOverdue {
			g.Overdue++
		}
		g.Total++
		g.Units = append(g.Units, PossessionUnit{
			ItemID:         oi.Item.ID,
			EntregaID:      oi.Entrega.ID,
			EntregaNumber:  oi.Entrega.Number,
			IssuedAt:       oi.Item.IssuedAt,
			ReturnDeadline: oi.Item.ReturnDeadline,
			State:          state,
		})
	}

	groups := make([]PossessionGroup, 0, len(order))
	for _, typeID := range order {
		groups = append(groups, *byType[typeID])
	}
	return groups, nil
}

// warningWindows fetches the warning window per EPI type in one query.
func (s *Service) warningWindows(ctx context.Context, open []*OpenItem) (map[id.ID]int, error) {
	seen := make(map[id.ID]bool)
	var typeIDs []id.ID
	for _, oi := range open {
		if !seen[oi.Item.EPITypeID] {
			seen[oi.Item.EPITypeID] = true
			typeIDs = append(typeIDs, oi.Item.EPITypeID)
		}
	}
	if len(typeIDs) == 0 {
		return nil, nil
	}

	types, err := s.types.GetByIDs(ctx, typeIDs)
	if err != nil {
		return nil, err
	}
	windows := make(map[id.ID]int, len(types))
	for _, t := range types {
		windows[t.ID] = t.WarningDays
	}
	return windows, nil
}

// classify places an open unit on the active / near-expiry / overdue scale.
func classify(it *Item, now time.Time, warningDays int) PossessionState {
	if it.ReturnDeadline == nil {
		return PossessionActive
	}
	if now.After(*it.ReturnDeadline) {
		return PossessionOverdue
	}
	if warningDays <= 0 {
		return PossessionActive
	}
	warningStart := it.ReturnDeadline.AddDate(0, 0, -warningDays)
	if !now.Before(warningStart) {
		return PossessionNearExpiry
	}
	return PossessionActive
}
