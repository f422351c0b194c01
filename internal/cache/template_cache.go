package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	gocache "github.com/patrickmn/go-cache"
	"github.com/smallbiznis/renewly/internal/calendar"
	"go.uber.org/fx"
)

const (
	defaultTemplateTTL     = 5 * time.Minute
	defaultCleanupInterval = 10 * time.Minute
)

var Module = fx.Module("cache",
	fx.Provide(NewTemplateCache),
)

// TemplateCache holds each tenant's validated template overrides so a pipeline
// run does not hit the database for them. Values are copied in and out.
type TemplateCache interface {
	Get(tenantID snowflake.ID) (map[calendar.Tier]string, bool)
	Set(tenantID snowflake.ID, overrides map[calendar.Tier]string)
	Invalidate(tenantID snowflake.ID)
}

type templateCache struct {
	c   *gocache.Cache
	ttl time.Duration
}

// NewTemplateCache returns an in-memory cache with the default TTL.
func NewTemplateCache() TemplateCache {
	return NewTemplateCacheWithTTL(defaultTemplateTTL)
}

func NewTemplateCacheWithTTL(ttl time.Duration) TemplateCache {
	if ttl <= 0 {
		ttl = defaultTemplateTTL
	}
	return &templateCache{
		c:   gocache.New(ttl, defaultCleanupInterval),
		ttl: ttl,
	}
}

func (t *templateCache) Get(tenantID snowflake.ID) (map[calendar.Tier]string, bool) {
	v, ok := t.c.Get(tenantID.String())
	if !ok {
		return nil, false
	}
	overrides, ok := v.(map[calendar.Tier]string)
	if !ok {
		return nil, false
	}
	return copyOverrides(overrides), true
}

func (t *templateCache) Set(tenantID snowflake.ID, overrides map[calendar.Tier]string) {
	t.c.Set(tenantID.String(), copyOverrides(overrides), t.ttl)
}

func (t *templateCache) Invalidate(tenantID snowflake.ID) {
	t.c.Delete(tenantID.String())
}

func copyOverrides(in map[calendar.Tier]string) map[calendar.Tier]string {
	out := make(map[calendar.Tier]string, len(in))
	for tier, body := range in {
		out[tier] = body
	}
	return out
}
