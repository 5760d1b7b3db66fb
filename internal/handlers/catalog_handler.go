package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"supplier-engine-service/internal/services"
)

// CatalogHandler handles catalog endpoints
type CatalogHandler struct {
	scanner *services.CatalogScanner
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(scanner *services.CatalogScanner) *CatalogHandler {
	return &CatalogHandler{scanner: scanner}
}

// ListItems lists catalog items
func (h *CatalogHandler) ListItems(c *gin.Context) {
	filter := services.CatalogFilter{
		Category: c.Query("category"),
		Query:    c.Query("q"),
		Sort:     c.Query("sort"),
		Limit:    queryInt(c, "limit", 50),
		Offset:   queryInt(c, "offset", 0),
	}
	if enabled, err := strconv.ParseBool(c.Query("enabled")); err == nil {
		filter.EnabledOnly = enabled
	}
	if minScore, err := strconv.ParseFloat(c.Query("minScore"), 64); err == nil {
		filter.MinScore = minScore
	}

	items, total := h.scanner.ListCatalog(filter)
	c.JSON(http.StatusOK, gin.H{
		"data":   items,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetItem returns a catalog item by pid
func (h *CatalogHandler) GetItem(c *gin.Context) {
	item, err := h.scanner.GetCatalogItem(strings.TrimSpace(c.Param("pid")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// GetStats returns catalog statistics
func (h *CatalogHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.scanner.GetStats()})
}

// GetRuns returns recent scan runs
func (h *CatalogHandler) GetRuns(c *gin.Context) {
	runs := h.scanner.GetRunHistory()
	c.JSON(http.StatusOK, gin.H{"data": runs, "total": len(runs)})
}

// DisableItem hides an item from the storefront
func (h *CatalogHandler) DisableItem(c *gin.Context) {
	item, err := h.scanner.DisableItem(c.Request.Context(), c.Param("pid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// EnableItem puts an item back on the storefront
func (h *CatalogHandler) EnableItem(c *gin.Context) {
	item, err := h.scanner.EnableItem(c.Request.Context(), c.Param("pid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}
