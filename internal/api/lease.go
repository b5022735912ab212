package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/lease"
	"github.com/leaselink/leaselink/internal/middleware"
	"go.uber.org/zap"
)

type LeaseHandler struct {
	engine *lease.Engine
	logger *zap.Logger
}

func NewLeaseHandler(engine *lease.Engine, logger *zap.Logger) *LeaseHandler {
	return &LeaseHandler{engine: engine, logger: logger}
}

type applyLeaseRequest struct {
	PropertyID uuid.UUID `json:"property_id" binding:"required"`
}

// Apply handles POST /v1/leases — the tenant is the authenticated caller.
func (h *LeaseHandler) Apply(c *gin.Context) {
	var req applyLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.engine.Apply(c.Request.Context(), req.PropertyID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Approve handles PUT /v1/leases/:id/approve — succeeds only for the
// landlord who owns the lease's property.
func (h *LeaseHandler) Approve(c *gin.Context) {
	leaseID, ok := h.leaseID(c)
	if !ok {
		return
	}
	updated, err := h.engine.Approve(c.Request.Context(), leaseID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Terminate handles PUT /v1/leases/:id/terminate — tenant or landlord.
func (h *LeaseHandler) Terminate(c *gin.Context) {
	leaseID, ok := h.leaseID(c)
	if !ok {
		return
	}
	updated, err := h.engine.Terminate(c.Request.Context(), leaseID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Get handles GET /v1/leases/:id
func (h *LeaseHandler) Get(c *gin.Context) {
	leaseID, ok := h.leaseID(c)
	if !ok {
		return
	}
	found, err := h.engine.Get(c.Request.Context(), leaseID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// ListMine handles GET /v1/leases/mine — the caller's leases as tenant.
func (h *LeaseHandler) ListMine(c *gin.Context) {
	leases, err := h.engine.ListByTenant(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, leases)
}

// ListByProperty handles GET /v1/properties/:id/leases
func (h *LeaseHandler) ListByProperty(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property ID"})
		return
	}
	leases, err := h.engine.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, leases)
}

func (h *LeaseHandler) leaseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lease ID"})
		return uuid.Nil, false
	}
	return id, true
}
