package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Aidin1998/trailex/internal/engine/model"
)

// accountHeader carries the caller's account identity. Authentication sits
// in front of this service; the engine itself only needs the account id.
const accountHeader = "X-Account-ID"

type createStopRequest struct {
	VenueKey        string          `json:"venue_key" binding:"required"`
	Direction       string          `json:"direction" binding:"required,oneof=SELL_BASE SELL_QUOTE"`
	ThresholdMargin int64           `json:"threshold_margin" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	MinOutput       decimal.Decimal `json:"min_output"`
}

type setVenueTrustRequest struct {
	Trusted *bool `json:"trusted" binding:"required"`
}

func (s *Server) callerAccount(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetHeader(accountHeader))
	if err != nil || id == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + accountHeader + " header"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) orderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) createStop(c *gin.Context) {
	caller, ok := s.callerAccount(c)
	if !ok {
		return
	}
	var req createStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.engine.CreateStop(c.Request.Context(), caller,
		req.VenueKey, req.Direction, req.ThresholdMargin, req.Amount, req.MinOutput)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order_id": id})
}

func (s *Server) getStop(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	details, err := s.engine.GetOrderDetails(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (s *Server) cancelStop(c *gin.Context) {
	caller, ok := s.callerAccount(c)
	if !ok {
		return
	}
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	if err := s.engine.CancelStop(c.Request.Context(), caller, id); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": "cancelled"})
}

func (s *Server) claimProceeds(c *gin.Context) {
	caller, ok := s.callerAccount(c)
	if !ok {
		return
	}
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	payout, err := s.engine.ClaimProceeds(c.Request.Context(), caller, id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "payout": payout})
}

func (s *Server) executeStop(c *gin.Context) {
	caller, ok := s.callerAccount(c)
	if !ok {
		return
	}
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	if err := s.engine.ExecuteStop(c.Request.Context(), caller, id); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": "executed"})
}

func (s *Server) setVenueTrust(c *gin.Context) {
	var req setVenueTrustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.SetTrustedVenue(c.Param("key"), *req.Trusted); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"venue": c.Param("key"), "trusted": *req.Trusted})
}

// renderError maps engine errors onto HTTP statuses by taxonomy class.
func (s *Server) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrNotOwner),
		errors.Is(err, model.ErrInsufficientBacking):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrZeroAmount),
		errors.Is(err, model.ErrAmountTooLarge),
		errors.Is(err, model.ErrInvalidDirection),
		errors.Is(err, model.ErrInvalidMargin),
		errors.Is(err, model.ErrUntrustedVenue),
		errors.Is(err, model.ErrInvalidTick):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrAlreadyExecuted),
		errors.Is(err, model.ErrNotExecuted),
		errors.Is(err, model.ErrNotTriggered),
		errors.Is(err, model.ErrNoProceeds),
		errors.Is(err, model.ErrReentrantCall),
		errors.Is(err, model.ErrPoolAtCapacity):
		status = http.StatusConflict
	case errors.Is(err, model.ErrSlippageExceeded),
		errors.Is(err, model.ErrPartialFill),
		errors.Is(err, model.ErrSettlementIncomplete):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
