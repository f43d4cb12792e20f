package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
	"go.uber.org/zap"
)

func (s *Server) RecomputeRisk(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if s.recomputeLimiter.Enabled() {
		allowed, err := s.recomputeLimiter.Allow(c.Request.Context(), houseID)
		if err != nil {
			s.log.Warn("recompute rate limit check failed", zap.Error(err))
		} else if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
	}
	result, err := s.riskSvc.ComputeHSI(c.Request.Context(), houseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) GetRisk(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	current, err := s.riskSvc.Current(c.Request.Context(), houseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if current == nil {
		AbortWithError(c, riskdomain.ErrHouseNotFound)
		return
	}
	c.JSON(http.StatusOK, current)
}

func (s *Server) ListRiskHistory(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	snapshotType := riskdomain.SnapshotType(c.Query("type"))
	switch snapshotType {
	case "", riskdomain.SnapshotTypeWeekly, riskdomain.SnapshotTypeMonthly, riskdomain.SnapshotTypeQuarterly:
	default:
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	history, err := s.riskSvc.History(c.Request.Context(), houseID, snapshotType, parseLimitQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) CleanupRiskHistory(c *gin.Context) {
	deleted, err := s.riskSvc.CleanupOldRiskHistory(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
