// Package httpapi serves the validator over HTTP with gin. It exposes the
// same operations as the MCP tools, as JSON.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/sf86-validator/internal/pdf"
)

// Handler binds HTTP requests to the service
type Handler struct {
	service *pdf.Service
}

// NewHandler creates a handler for service
func NewHandler(service *pdf.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the API on router
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/files/validate", h.ValidateFile)
		v1.POST("/pages/extract", h.ExtractPage)
		v1.POST("/coverage", h.CheckCoverage)
		v1.POST("/audit", h.AuditSection)

		mappings := v1.Group("/mappings")
		{
			mappings.GET("/lookup", h.LookupMapping)
			mappings.GET("/pages/:page", h.PageMappings)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", h.StartSession)
			sessions.GET("/:id", h.GetSession)
			sessions.DELETE("/:id", h.DeleteSession)
			sessions.PUT("/:id/document", h.ReloadSession)
			sessions.POST("/:id/pages/:page/validate", h.ValidateSessionPage)
			sessions.POST("/:id/advance", h.AdvanceSession)
			sessions.POST("/:id/retreat", h.RetreatSession)
		}
	}
}

// Health reports liveness along with table, session and cache counters
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"mappings": h.service.Table().Len(),
		"table":    h.service.Table().Name(),
		"sessions": len(h.service.SessionIDs()),
		"cache":    h.service.CacheStats(),
	})
}

// ValidateFile checks a PDF in the configured directory
func (h *Handler) ValidateFile(c *gin.Context) {
	var req pdf.ValidateFileRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.ValidateFile(req)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// LookupMapping resolves ?uiPath= or ?pdfFieldId=
func (h *Handler) LookupMapping(c *gin.Context) {
	var req pdf.MapFieldRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, ErrorCodeValidation, err.Error())
		return
	}
	result, err := h.service.MapField(req)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PageMappings lists the entries declared for :page
func (h *Handler) PageMappings(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	result, err := h.service.PageMappings(pdf.PageMappingsRequest{Page: page})
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExtractPage extracts one page of a PDF
func (h *Handler) ExtractPage(c *gin.Context) {
	var req pdf.ExtractPageRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.ExtractPage(c.Request.Context(), req)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CheckCoverage runs a one-shot coverage check. Unreadable pages still
// answer 200 with success=false and the errors.
func (h *Handler) CheckCoverage(c *gin.Context) {
	var req pdf.CoverageRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.CheckCoverage(c.Request.Context(), req)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AuditSection audits a section against a reference inventory
func (h *Handler) AuditSection(c *gin.Context) {
	var req pdf.AuditRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.AuditSection(req)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StartSession opens a validation session
func (h *Handler) StartSession(c *gin.Context) {
	var req pdf.SessionStartRequest
	if !bindJSON(c, &req) {
		return
	}
	state, err := h.service.StartSession(req)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// GetSession returns a session's summary and manifest
func (h *Handler) GetSession(c *gin.Context) {
	state, err := h.service.SessionManifest(c.Param("id"))
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// DeleteSession closes a session
func (h *Handler) DeleteSession(c *gin.Context) {
	if !h.service.CloseSession(c.Param("id")) {
		RespondWithError(c, http.StatusNotFound, ErrorCodeNotFound, "session not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// ReloadSession points a session at a regenerated PDF
func (h *Handler) ReloadSession(c *gin.Context) {
	var req pdf.SessionReloadRequest
	if !bindJSON(c, &req) {
		return
	}
	req.SessionID = c.Param("id")
	state, err := h.service.ReloadSession(req)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// ValidateSessionPage validates :page of session :id
func (h *Handler) ValidateSessionPage(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	state, err := h.service.ValidateSessionPage(c.Request.Context(), pdf.SessionPageRequest{
		SessionID: c.Param("id"),
		Page:      page,
	})
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// AdvanceSession moves to the next page. A blocked advance is a 200 with
// navigation.moved=false.
func (h *Handler) AdvanceSession(c *gin.Context) {
	state, err := h.service.AdvanceSession(c.Param("id"))
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// RetreatSession moves back one page
func (h *Handler) RetreatSession(c *gin.Context) {
	state, err := h.service.RetreatSession(c.Param("id"))
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		RespondWithError(c, http.StatusBadRequest, ErrorCodeInvalidJSON, err.Error())
		return false
	}
	return true
}

func pageParam(c *gin.Context) (int, bool) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		RespondWithError(c, http.StatusBadRequest, ErrorCodeValidation, "page must be a positive integer")
		return 0, false
	}
	return page, true
}
