package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/core/id"
	"epitrack/internal/domain/balance"
	"epitrack/internal/domain/catalogs/epitype"
	"epitrack/internal/domain/ledger"
)

// StockHandler handles balance and movement history endpoints.
type StockHandler struct {
	*BaseHandler
	balances *balance.Store
	ledger   *ledger.Service
	epiTypes *epitype.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, balances *balance.Store, ledgerSvc *ledger.Service, epiTypes *epitype.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, balances: balances, ledger: ledgerSvc, epiTypes: epiTypes}
}

// WarehouseStock handles GET /stock/warehouses/:id.
// Lists balance rows for one warehouse across item statuses.
func (h *StockHandler) WarehouseStock(c *gin.Context) {
	warehouseID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	filter := balance.Filter{
		ExcludeZero: c.Query("excludeZero") == "true",
	}
	if status := c.Query("status"); status != "" {
		s := balance.ItemStatus(status)
		filter.Status = &s
	}
	if epiTypeID := h.ParseIDQuery(c, "epiTypeId"); epiTypeID != nil {
		filter.EPITypeIDs = append(filter.EPITypeIDs, *epiTypeID)
	}

	rows, err := h.balances.WarehouseStock(c.Request.Context(), warehouseID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	types, err := h.epiTypes.GetMany(c.Request.Context(), distinctTypeIDs(rows))
	if err != nil {
		h.Error(c, err)
		return
	}

	typeInfo := make(map[string]gin.H, len(types))
	for typeID, t := range types {
		typeInfo[typeID.String()] = gin.H{
			"name":     t.Name,
			"caNumber": t.CANumber,
		}
	}

	h.OK(c, gin.H{
		"warehouseId": warehouseID.String(),
		"balances":    rows,
		"epiTypes":    typeInfo,
	})
}

func distinctTypeIDs(rows []balance.Balance) []id.ID {
	seen := make(map[id.ID]bool, len(rows))
	ids := make([]id.ID, 0, len(rows))
	for _, b := range rows {
		if !seen[b.EPITypeID] {
			seen[b.EPITypeID] = true
			ids = append(ids, b.EPITypeID)
		}
	}
	return ids
}

// TypeStock handles GET /stock/epi-types/:id.
// Lists nonzero balance rows for one EPI type across warehouses.
func (h *StockHandler) TypeStock(c *gin.Context) {
	epiTypeID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	rows, err := h.balances.TypeStock(c.Request.Context(), epiTypeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"epiTypeId": epiTypeID.String(),
		"balances":  rows,
	})
}

// History handles GET /stock/warehouses/:id/epi-types/:typeId/history.
// Returns the ledger entries for one (warehouse, EPI type) pair, newest first.
func (h *StockHandler) History(c *gin.Context) {
	warehouseID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	epiTypeID, ok := h.ParseID(c, "typeId")
	if !ok {
		return
	}

	filter := ledger.HistoryFilter{
		FromDate: h.ParseTimeQuery(c, "fromDate"),
		ToDate:   h.ParseTimeQuery(c, "toDate"),
		Limit:    h.ParseIntQuery(c, "limit", 100),
		Offset:   h.ParseIntQuery(c, "offset", 0),
	}
	if kind := c.Query("kind"); kind != "" {
		k := ledger.Kind(kind)
		filter.Kind = &k
	}
	if status := c.Query("status"); status != "" {
		s := balance.ItemStatus(status)
		filter.Status = &s
	}

	entries, err := h.ledger.History(c.Request.Context(), warehouseID, epiTypeID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"warehouseId": warehouseID.String(),
		"epiTypeId":   epiTypeID.String(),
		"entries":     entries,
	})
}

// RegisterRoutes registers stock routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/warehouses/:id", h.WarehouseStock)
	rg.GET("/warehouses/:id/epi-types/:typeId/history", h.History)
	rg.GET("/epi-types/:id", h.TypeStock)
}
