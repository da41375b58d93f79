package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	cancellationdomain "github.com/saasykit/atlas/internal/cancellation/domain"
)

func (s *Server) ListCancellationCategories(c *gin.Context) {
	categories, err := s.cancellationSvc.ListCategories(c.Request.Context(), boolQuery(c, "active"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (s *Server) CreateCancellationCategory(c *gin.Context) {
	var req cancellationdomain.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	category, err := s.cancellationSvc.CreateCategory(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (s *Server) UpdateCancellationCategory(c *gin.Context) {
	var req cancellationdomain.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	category, err := s.cancellationSvc.UpdateCategory(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (s *Server) DeleteCancellationCategory(c *gin.Context) {
	if err := s.cancellationSvc.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListCancellationReasons(c *gin.Context) {
	reasons, err := s.cancellationSvc.ListReasons(c.Request.Context(), c.Param("id"), boolQuery(c, "active"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reasons": reasons})
}

func (s *Server) CreateCancellationReason(c *gin.Context) {
	var req cancellationdomain.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reason, err := s.cancellationSvc.CreateReason(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reason)
}

func (s *Server) UpdateCancellationReason(c *gin.Context) {
	var req cancellationdomain.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reason, err := s.cancellationSvc.UpdateReason(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reason)
}

func (s *Server) DeleteCancellationReason(c *gin.Context) {
	if err := s.cancellationSvc.DeleteReason(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
