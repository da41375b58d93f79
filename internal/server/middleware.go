package server

import (
	"github.com/gin-gonic/gin"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	"github.com/saasykit/atlas/internal/account/resolver"
	"github.com/saasykit/atlas/internal/tenantctx"
)

const tenantContextKey = "tenant.account"

// TenantContext resolves the request to an account by path segment,
// hostname, or subdomain. An explicit path miss is a hard 404; a host
// miss marks the request untenanted and lets it through.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		segment := c.Param("slug")
		if segment == "" {
			segment = c.Query("account")
		}

		account, err := s.tenantResolver.Resolve(c.Request.Context(), resolver.Request{
			PathSegment: segment,
			Host:        c.Request.Host,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if account == nil {
			c.Header("X-Tenant", "none")
			c.Next()
			return
		}

		ctx := tenantctx.WithAccountID(c.Request.Context(), account.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(tenantContextKey, account)
		c.Next()
	}
}

// currentTenant returns the account resolved by TenantContext, if any.
func currentTenant(c *gin.Context) *accountdomain.Account {
	value, ok := c.Get(tenantContextKey)
	if !ok {
		return nil
	}
	account, _ := value.(*accountdomain.Account)
	return account
}
