package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// Version is reported by /v1/health and the X-API-Version header.
var Version = "1.0.0"

// HealthHandler returns a basic liveness check. With an in-process engine
// it also reports how many presences and pings are live.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": Version,
		}
		if deps.Scene != nil {
			presences, pings := deps.Scene.Counts()
			body["engine"] = fiber.Map{
				"mode":      "in-process",
				"presences": presences,
				"pings":     pings,
			}
		}
		return c.JSON(body)
	}
}

// readinessCheck is one dependency check. A non-required check that fails
// is reported but does not make the service unready.
type readinessCheck struct {
	name     string
	required bool
	check    func(ctx context.Context) error
}

var errNotConfigured = errors.New("not configured")

// maxFrameAge is how old the cached scene may be before API nodes without
// an engine report it as stale.
const maxFrameAge = 10 * time.Second

func readinessChecks(deps *Dependencies) []readinessCheck {
	checks := []readinessCheck{
		{name: "database", required: true, check: func(ctx context.Context) error {
			if deps.DB == nil {
				return errNotConfigured
			}
			return deps.DB.Pool.Ping(ctx)
		}},
		// NATS carries every presence and ping event.
		{name: "nats", required: true, check: func(context.Context) error {
			if deps.NATS == nil {
				return errNotConfigured
			}
			if !deps.NATS.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}},
		{name: "cache", check: func(ctx context.Context) error {
			if deps.Cache == nil {
				return errNotConfigured
			}
			return deps.Cache.Ping(ctx)
		}},
	}

	if deps.Scene == nil {
		checks = append(checks, readinessCheck{name: "frames", check: func(ctx context.Context) error {
			f, err := deps.Frames.Load(ctx)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return errors.New("no frame cached")
				}
				return err
			}
			if age := time.Since(f.Time); age > maxFrameAge {
				return errors.New("stale by " + age.Round(time.Second).String())
			}
			return nil
		}})
	}
	return checks
}

// ReadyHandler runs every readiness check and answers 503 when a required
// one fails.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	depChecks := readinessChecks(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string, len(depChecks))
		ready := true
		for _, p := range depChecks {
			err := p.check(ctx)
			switch {
			case err == nil:
				checks[p.name] = "ok"
			case errors.Is(err, errNotConfigured):
				checks[p.name] = err.Error()
			default:
				checks[p.name] = "error: " + err.Error()
			}
			if err != nil && p.required {
				ready = false
			}
		}

		status, code := "ready", fiber.StatusOK
		if !ready {
			status, code = "not ready", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
