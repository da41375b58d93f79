package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
)

type accountResponse struct {
	accountdomain.Account
	Status accountdomain.Status `json:"status"`
}

func (s *Server) presentAccount(account *accountdomain.Account) accountResponse {
	return accountResponse{
		Account: *account,
		Status:  account.Status(s.clock.Now()),
	}
}

func (s *Server) ListAccounts(c *gin.Context) {
	accounts, err := s.accountSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, s.presentAccount(&accounts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (s *Server) CreateAccount(c *gin.Context) {
	var req accountdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.presentAccount(account))
}

func (s *Server) GetAccountByID(c *gin.Context) {
	account, err := s.accountSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.presentAccount(account))
}

func (s *Server) UpdateAccount(c *gin.Context) {
	var req accountdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.tenantResolver.Invalidate(account.ID)
	c.JSON(http.StatusOK, s.presentAccount(account))
}

func (s *Server) CancelAccount(c *gin.Context) {
	var req accountdomain.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Cancel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.tenantResolver.Invalidate(account.ID)
	c.JSON(http.StatusOK, s.presentAccount(account))
}

func (s *Server) PauseAccount(c *gin.Context) {
	account, err := s.accountSvc.Pause(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.tenantResolver.Invalidate(account.ID)
	c.JSON(http.StatusOK, s.presentAccount(account))
}

func (s *Server) UnpauseAccount(c *gin.Context) {
	account, err := s.accountSvc.Unpause(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.tenantResolver.Invalidate(account.ID)
	c.JSON(http.StatusOK, s.presentAccount(account))
}

func (s *Server) RestoreAccount(c *gin.Context) {
	account, err := s.accountSvc.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.tenantResolver.Invalidate(account.ID)
	c.JSON(http.StatusOK, s.presentAccount(account))
}

func (s *Server) DestroyAccount(c *gin.Context) {
	if err := s.accountSvc.Destroy(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Whoami answers with the resolved tenant, or the marketing scope when
// no strategy matched.
func (s *Server) Whoami(c *gin.Context) {
	account := currentTenant(c)
	if account == nil {
		c.JSON(http.StatusOK, gin.H{"tenant": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": s.presentAccount(account)})
}
