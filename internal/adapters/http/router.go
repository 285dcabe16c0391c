package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/pkg/metrics"
)

const (
	reqTimeout = 15 * time.Second

	// Heartbeats arrive every few seconds per client, so the global budget
	// is generous; sending pings is limited separately.
	globalRateLimit = 600
	pingRateLimit   = 30
)

// SetupRoutes registers the REST, GraphQL and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())
	app.Use(rateLimit(globalRateLimit))
	app.Use(securityHeaders())
	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/scene", timeout.NewWithContext(SceneHandler(deps), reqTimeout))
	registerPresenceRoutes(v1.Group("/presences"), deps)
	registerPingRoutes(v1.Group("/pings"), deps)

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Use("/ws", wsUpgrade)
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS, deps.lookupPath)))
}

func registerPresenceRoutes(r fiber.Router, deps *Dependencies) {
	r.Get("/", timeout.NewWithContext(ListPresencesHandler(deps), reqTimeout))
	r.Post("/heartbeat", timeout.NewWithContext(HeartbeatHandler(deps), reqTimeout))
	r.Post("/:id/offline", timeout.NewWithContext(DisconnectHandler(deps), reqTimeout))
	r.Delete("/:id", timeout.NewWithContext(DeletePresenceHandler(deps), reqTimeout))
}

func registerPingRoutes(r fiber.Router, deps *Dependencies) {
	r.Get("/", timeout.NewWithContext(ListPingsHandler(deps), reqTimeout))
	r.Post("/", rateLimit(pingRateLimit), timeout.NewWithContext(SendPingHandler(deps), reqTimeout))
	r.Get("/:id", timeout.NewWithContext(GetPingHandler(deps), reqTimeout))
}

// rateLimit allows max requests per minute per client IP.
func rateLimit(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	})
}

func securityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", Version)
		return c.Next()
	}
}

// wsUpgrade rejects plain HTTP requests and malformed ?lat=&lon= before
// the connection is upgraded, while a proper error can still be returned.
func wsUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	lat, lon := c.Query("lat"), c.Query("lon")
	if lat == "" && lon == "" {
		return c.Next()
	}
	p, err := parseGeoPoint(lat, lon)
	if err != nil {
		return errBadRequest(c, err.Error())
	}
	c.Locals("locate", p)
	return c.Next()
}

func parseGeoPoint(lat, lon string) (domain.GeoPoint, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return domain.GeoPoint{}, fiber.NewError(fiber.StatusBadRequest, "lat must be a number")
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return domain.GeoPoint{}, fiber.NewError(fiber.StatusBadRequest, "lon must be a number")
	}
	p := domain.GeoPoint{Lat: la, Lon: lo}
	if err := p.Validate(); err != nil {
		return domain.GeoPoint{}, err
	}
	return p, nil
}
