// Package resolver maps incoming request addressing onto a tenant
// account. Resolution is read-only and cached briefly.
package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	"github.com/saasykit/atlas/internal/clock"
	"github.com/saasykit/atlas/internal/config"
	"github.com/saasykit/atlas/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrTenantNotFound is returned only for explicit path lookups. Host
// and subdomain misses fall through to the default (no tenant) scope.
var ErrTenantNotFound = errors.New("tenant_not_found")

const cacheTTL = 30 * time.Second

// Request carries the addressing facts extracted from an HTTP request.
type Request struct {
	// PathSegment is the first path component, already stripped of
	// slashes. Empty means no path-based lookup.
	PathSegment string
	// Host is the request host without port.
	Host string
}

type Resolver interface {
	// Resolve returns the matched account, or (nil, nil) when no
	// strategy matched and the request should proceed untenanted.
	Resolve(ctx context.Context, req Request) (*accountdomain.Account, error)
	// Invalidate drops any cached entry for the account.
	Invalidate(id snowflake.ID)
}

type cacheEntry struct {
	account  *accountdomain.Account
	expireAt time.Time
}

type resolver struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       accountdomain.Repository
	baseDomain string

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config
	Repo   accountdomain.Repository
}

func New(p Params) Resolver {
	return &resolver{
		db:         p.DB,
		log:        p.Log.Named("account.resolver"),
		clock:      p.Clock,
		repo:       p.Repo,
		baseDomain: strings.ToLower(strings.TrimSpace(p.Config.BaseDomain)),
		cache:      map[string]cacheEntry{},
	}
}

func (r *resolver) Resolve(ctx context.Context, req Request) (*accountdomain.Account, error) {
	if segment := strings.TrimSpace(req.PathSegment); segment != "" {
		account, err := r.byPath(ctx, segment)
		if err != nil {
			return nil, err
		}
		if account == nil {
			metrics.Default().IncTenantResolution("path", "miss")
			return nil, ErrTenantNotFound
		}
		metrics.Default().IncTenantResolution("path", "hit")
		return account, nil
	}

	host := normalizeHost(req.Host)
	if host == "" || host == r.baseDomain {
		return nil, nil
	}

	account, err := r.cached(ctx, "host:"+host, func(ctx context.Context) (*accountdomain.Account, error) {
		return r.repo.FindActiveByHostname(ctx, r.db, host)
	})
	if err != nil {
		return nil, err
	}
	if account != nil {
		metrics.Default().IncTenantResolution("hostname", "hit")
		return account, nil
	}

	if sub := subdomainOf(host, r.baseDomain); sub != "" {
		account, err = r.cached(ctx, "sub:"+sub, func(ctx context.Context) (*accountdomain.Account, error) {
			return r.repo.FindActiveBySubdomain(ctx, r.db, sub)
		})
		if err != nil {
			return nil, err
		}
		if account != nil {
			metrics.Default().IncTenantResolution("subdomain", "hit")
			return account, nil
		}
	}

	metrics.Default().IncTenantResolution("hostname", "miss")
	return nil, nil
}

// byPath resolves a path segment. Numeric segments are treated as a
// direct account id and are not plan-gated.
func (r *resolver) byPath(ctx context.Context, segment string) (*accountdomain.Account, error) {
	if isNumeric(segment) {
		id, err := snowflake.ParseString(segment)
		if err != nil {
			return nil, nil
		}
		return r.cached(ctx, "id:"+segment, func(ctx context.Context) (*accountdomain.Account, error) {
			return r.repo.FindActiveByID(ctx, r.db, id)
		})
	}
	return r.cached(ctx, "path:"+segment, func(ctx context.Context) (*accountdomain.Account, error) {
		return r.repo.FindActiveByCustomPath(ctx, r.db, segment)
	})
}

func (r *resolver) cached(ctx context.Context, key string, load func(context.Context) (*accountdomain.Account, error)) (*accountdomain.Account, error) {
	now := r.clock.Now()

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && entry.expireAt.After(now) {
		return entry.account, nil
	}

	account, err := load(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = cacheEntry{account: account, expireAt: now.Add(cacheTTL)}
	r.mu.Unlock()
	return account, nil
}

func (r *resolver) Invalidate(id snowflake.ID) {
	r.mu.Lock()
	for key, entry := range r.cache {
		if entry.account != nil && entry.account.ID == id {
			delete(r.cache, key)
		}
	}
	r.mu.Unlock()
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return host
}

// subdomainOf extracts the single label in front of the base domain, or
// "" when the host is not under it.
func subdomainOf(host, baseDomain string) string {
	if baseDomain == "" {
		return ""
	}
	suffix := "." + baseDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || strings.Contains(label, ".") {
		return ""
	}
	return label
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
