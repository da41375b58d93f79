package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invitationdomain "github.com/saasykit/atlas/internal/invitation/domain"
)

func (s *Server) ListInvitations(c *gin.Context) {
	invitations, err := s.invitationSvc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

func (s *Server) CreateInvitation(c *gin.Context) {
	var req invitationdomain.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.AccountID = c.Param("id")

	invitation, err := s.invitationSvc.Invite(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invitation)
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	var req invitationdomain.AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invitation, err := s.invitationSvc.Accept(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invitation)
}
