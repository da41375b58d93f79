package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
)

func (s *Server) ListSyncJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	jobs, err := s.syncSvc.List(c.Request.Context(), billingsyncdomain.ListJobsRequest{
		Queue:  c.Query("queue"),
		Status: billingsyncdomain.JobStatus(c.Query("status")),
		Kind:   billingsyncdomain.Kind(c.Query("kind")),
		Limit:  limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
