package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type createHouseRequest struct {
	Name          string   `json:"name" binding:"required"`
	MemberUserIDs []string `json:"member_user_ids" binding:"required"`
}

func (s *Server) CreateHouse(c *gin.Context) {
	var req createHouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	memberIDs := make([]snowflake.ID, 0, len(req.MemberUserIDs))
	for _, raw := range req.MemberUserIDs {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		memberIDs = append(memberIDs, id)
	}

	house, err := s.houseSvc.Create(c.Request.Context(), req.Name, memberIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, house)
}

func (s *Server) ListHouses(c *gin.Context) {
	houses, err := s.houseSvc.List(c.Request.Context(), parseLimitQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"houses": houses})
}

func (s *Server) GetHouse(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	house, err := s.houseSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, house)
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) AddHouseMember(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	member, err := s.houseSvc.AddMember(c.Request.Context(), houseID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (s *Server) ListHouseMembers(c *gin.Context) {
	houseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	members, err := s.houseSvc.Members(c.Request.Context(), houseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}
