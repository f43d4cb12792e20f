package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	obsmetrics "github.com/splitnest/splitnest/internal/observability/metrics"
)

func (s *Server) GetAdvanceAllowance(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	allowance, err := s.advanceSvc.Allowance(c.Request.Context(), houseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"house_id": houseID.String(), "allowance": allowance})
}

func (s *Server) GetAdvanceUsage(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	usage, err := s.advanceSvc.Usage(c.Request.Context(), houseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !usage.AuditConsistent {
		obsmetrics.Risk().IncLedgerDrift()
	}
	c.JSON(http.StatusOK, usage)
}

func (s *Server) CheckAdvance(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	amount, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil || amount <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	decision, err := s.advanceSvc.CanAdvance(c.Request.Context(), houseID, amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (s *Server) AdvanceBill(c *gin.Context) {
	billID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := s.advanceSvc.AdvanceUnpaidCharges(c.Request.Context(), billID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	obsmetrics.Risk().AddAdvanced(result.AdvancedCount, result.AdvancedAmount)
	c.JSON(http.StatusOK, result)
}

func (s *Server) ListAdvancedCharges(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	charges, err := s.advanceSvc.AdvancedCharges(c.Request.Context(), houseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"charges": charges})
}

func (s *Server) SettleAdvancedCharge(c *gin.Context) {
	chargeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	charge, err := s.advanceSvc.SettleAdvancedCharge(c.Request.Context(), chargeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, charge)
}
