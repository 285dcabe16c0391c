package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// cacheRule maps a request path to a Cache-Control value. A rule with
// prefix set matches every path under it.
type cacheRule struct {
	path   string
	prefix bool
	value  string
}

// cacheRules are checked in order; the first match wins.
var cacheRules = []cacheRule{
	{path: "/metrics", value: "no-cache"},
	{path: "/v1/health", value: "no-cache"},
	{path: "/v1/ready", value: "no-cache"},
	{path: "/v1/scene", value: "no-store"},                           // changes every tick
	{path: "/v1/presences", value: "public, max-age=2"},              // brightness moves continuously
	{path: "/v1/pings", value: "public, max-age=2"},                  // new pings arrive constantly
	{path: "/v1/pings/", prefix: true, value: "public, max-age=300"}, // a stored ping never changes
	{path: "/docs", prefix: true, value: "public, max-age=3600"},
	{path: "/v1/", prefix: true, value: "public, max-age=5"},
}

func cacheControlFor(path string) string {
	path = strings.TrimSuffix(path, "/")
	for _, r := range cacheRules {
		if r.prefix {
			if strings.HasPrefix(path, r.path) {
				return r.value
			}
		} else if path == r.path {
			return r.value
		}
	}
	return ""
}

// CachingMiddleware sets Cache-Control on GET responses by route family.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if len(c.Response().Header.Peek(fiber.HeaderCacheControl)) > 0 {
			return err
		}
		if v := cacheControlFor(c.Path()); v != "" {
			c.Set(fiber.HeaderCacheControl, v)
			c.Vary(fiber.HeaderAcceptEncoding)
		}
		return err
	}
}
