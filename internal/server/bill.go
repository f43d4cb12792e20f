package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billdomain "github.com/splitnest/splitnest/internal/bill/domain"
)

type createBillShare struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

type createBillRequest struct {
	HouseID     string            `json:"house_id" binding:"required"`
	Description string            `json:"description"`
	TotalAmount int64             `json:"total_amount" binding:"required"`
	DueDate     time.Time         `json:"due_date" binding:"required"`
	Shares      []createBillShare `json:"shares"`
}

func (s *Server) CreateBill(c *gin.Context) {
	var req createBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	houseID, err := snowflake.ParseString(req.HouseID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	shares := make([]billdomain.Share, 0, len(req.Shares))
	for _, share := range req.Shares {
		userID, err := snowflake.ParseString(share.UserID)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		shares = append(shares, billdomain.Share{UserID: userID, Amount: share.Amount})
	}

	bill, charges, err := s.billSvc.Create(c.Request.Context(), billdomain.CreateBillRequest{
		HouseID:     houseID,
		Description: req.Description,
		TotalAmount: req.TotalAmount,
		DueDate:     req.DueDate,
		Shares:      shares,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bill": bill, "charges": charges})
}

func (s *Server) GetBill(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	bill, err := s.billSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	charges, err := s.billSvc.Charges(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bill": bill, "charges": charges})
}

func (s *Server) ListUnpaidCharges(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	charges, err := s.billSvc.UnpaidCharges(c.Request.Context(), houseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"charges": charges})
}

func (s *Server) PayCharge(c *gin.Context) {
	chargeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	charge, err := s.billSvc.MarkChargePaid(c.Request.Context(), chargeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, charge)
}
