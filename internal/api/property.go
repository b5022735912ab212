package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/middleware"
	"github.com/leaselink/leaselink/internal/models"
	"github.com/leaselink/leaselink/internal/repository"
	"go.uber.org/zap"
)

// PropertyHandler is plumbing CRUD over the property catalog — it talks
// to the repository directly. Ownership checks (update, delete) compare
// the caller against the property's landlord, never the caller's role.
type PropertyHandler struct {
	properties repository.PropertyRepository
	logger     *zap.Logger
}

func NewPropertyHandler(properties repository.PropertyRepository, logger *zap.Logger) *PropertyHandler {
	return &PropertyHandler{properties: properties, logger: logger}
}

type propertyRequest struct {
	Title         string    `json:"title" binding:"required"`
	Description   string    `json:"description"`
	Address       string    `json:"address" binding:"required"`
	RentAmount    float64   `json:"rent_amount" binding:"min=0"`
	AvailableFrom time.Time `json:"available_from" binding:"required"`
}

// Create handles POST /v1/properties. The landlord is the caller — a
// property can only ever be listed by its own landlord.
func (h *PropertyHandler) Create(c *gin.Context) {
	var req propertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.properties.Create(c.Request.Context(), models.Property{
		Title:         req.Title,
		Description:   req.Description,
		Address:       req.Address,
		RentAmount:    req.RentAmount,
		AvailableFrom: req.AvailableFrom,
		LandlordID:    middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Get handles GET /v1/properties/:id
func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := h.propertyID(c)
	if !ok {
		return
	}
	property, err := h.properties.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if property == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "property not found"})
		return
	}
	c.JSON(http.StatusOK, property)
}

// List handles GET /v1/properties with optional filters:
// ?title=&address=&min_rent=&max_rent=&available_from=&landlord_id=
func (h *PropertyHandler) List(c *gin.Context) {
	if landlord := c.Query("landlord_id"); landlord != "" {
		landlordID, err := uuid.Parse(landlord)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid landlord ID"})
			return
		}
		properties, err := h.properties.ListByLandlord(c.Request.Context(), landlordID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, properties)
		return
	}

	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	properties, err := h.properties.Search(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, properties)
}

// Update handles PUT /v1/properties/:id — landlord only.
func (h *PropertyHandler) Update(c *gin.Context) {
	id, ok := h.propertyID(c)
	if !ok {
		return
	}
	existing, ok := h.requireOwned(c, id)
	if !ok {
		return
	}

	var req propertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.properties.Update(c.Request.Context(), models.Property{
		ID:            existing.ID,
		Title:         req.Title,
		Description:   req.Description,
		Address:       req.Address,
		RentAmount:    req.RentAmount,
		AvailableFrom: req.AvailableFrom,
		LandlordID:    existing.LandlordID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "property not found"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/properties/:id — landlord only.
func (h *PropertyHandler) Delete(c *gin.Context) {
	id, ok := h.propertyID(c)
	if !ok {
		return
	}
	if _, ok := h.requireOwned(c, id); !ok {
		return
	}
	if _, err := h.properties.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PropertyHandler) parseFilter(c *gin.Context) (repository.PropertyFilter, bool) {
	filter := repository.PropertyFilter{
		Title:   c.Query("title"),
		Address: c.Query("address"),
	}
	if v := c.Query("min_rent"); v != "" {
		rent, err := strconv.ParseFloat(v, 64)
		if err != nil || rent < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'min_rent' parameter"})
			return filter, false
		}
		filter.MinRent = &rent
	}
	if v := c.Query("max_rent"); v != "" {
		rent, err := strconv.ParseFloat(v, 64)
		if err != nil || rent < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'max_rent' parameter"})
			return filter, false
		}
		filter.MaxRent = &rent
	}
	if filter.MinRent != nil && filter.MaxRent != nil && *filter.MinRent > *filter.MaxRent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_rent cannot exceed max_rent"})
		return filter, false
	}
	if v := c.Query("available_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'available_from' parameter"})
			return filter, false
		}
		filter.AvailableFrom = &t
	}
	return filter, true
}

// requireOwned loads the property and rejects callers other than its
// landlord.
func (h *PropertyHandler) requireOwned(c *gin.Context, id uuid.UUID) (*models.Property, bool) {
	property, err := h.properties.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	if property == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "property not found"})
		return nil, false
	}
	if property.LandlordID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the property's landlord can modify it"})
		return nil, false
	}
	return property, true
}

func (h *PropertyHandler) propertyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property ID"})
		return uuid.Nil, false
	}
	return id, true
}
