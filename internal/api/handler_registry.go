package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parking-gate-backend/internal/mw"
	"parking-gate-backend/internal/registry"
)

const (
	gatesPath    = "/api/v1/gates"
	vehiclesPath = "/api/v1/vehicles"
)

// lotIDQuery parses the required parkingLotId query parameter.
func lotIDQuery(c *gin.Context) (int64, bool) {
	lotID, err := strconv.ParseInt(c.Query("parkingLotId"), 10, 64)
	if err != nil || lotID <= 0 {
		writeError(c, http.StatusBadRequest, codeBadRequest, "parkingLotId must be a positive integer")
		return 0, false
	}
	return lotID, true
}

func (h *Handler) registrationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrDuplicate):
		writeError(c, http.StatusConflict, codeDuplicate, err.Error())
	case errors.Is(err, registry.ErrInvalid):
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
	default:
		h.internalError(c, err)
	}
}

func (h *Handler) invalidate(prefix string) {
	if h.cache != nil {
		mw.InvalidatePrefix(h.cache, prefix)
	}
}

// RegisterGate handles POST /api/v1/gates/register.
func (h *Handler) RegisterGate(c *gin.Context) {
	var req registry.GateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	gate, err := h.registry.RegisterGate(c.Request.Context(), req)
	if err != nil {
		h.registrationError(c, err)
		return
	}
	h.invalidate(gatesPath)
	c.JSON(http.StatusCreated, gate)
}

// ListGates handles GET /api/v1/gates?parkingLotId=.
func (h *Handler) ListGates(c *gin.Context) {
	lotID, ok := lotIDQuery(c)
	if !ok {
		return
	}
	gates, err := h.registry.ListGates(c.Request.Context(), lotID)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gates)
}

// RegisterVehicle handles POST /api/v1/vehicles.
func (h *Handler) RegisterVehicle(c *gin.Context) {
	var req registry.VehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	vehicle, err := h.registry.RegisterVehicle(c.Request.Context(), req)
	if err != nil {
		h.registrationError(c, err)
		return
	}
	h.invalidate(vehiclesPath)
	c.JSON(http.StatusCreated, vehicle)
}

// ListVehicles handles GET /api/v1/vehicles?parkingLotId=.
func (h *Handler) ListVehicles(c *gin.Context) {
	lotID, ok := lotIDQuery(c)
	if !ok {
		return
	}
	vehicles, err := h.registry.ListVehicles(c.Request.Context(), lotID)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}
