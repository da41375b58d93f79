package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	appeventdomain "github.com/saasykit/atlas/internal/appevent/domain"
)

func (s *Server) ListAppEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := s.eventRecorder.List(c.Request.Context(), appeventdomain.ListRequest{
		AccountID: c.Query("account_id"),
		Level:     appeventdomain.Level(c.Query("level")),
		Limit:     limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
