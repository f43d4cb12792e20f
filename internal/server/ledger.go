package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListLedger(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	entries, err := s.ledgerSvc.List(c.Request.Context(), houseID, parseLimitQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

type adjustmentRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) RecordLedgerAdjustment(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req adjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	entry, err := s.ledgerSvc.RecordAdjustment(c.Request.Context(), houseID, req.Amount, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}
