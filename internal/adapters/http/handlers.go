package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

type heartbeatRequest struct {
	ID     string   `json:"id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Online *bool    `json:"online"`
}

type pingRequest struct {
	From               *domain.GeoPoint `json:"from"`
	To                 *domain.GeoPoint `json:"to"`
	InvolvesLocalActor bool             `json:"involves_local_actor"`
}

// SceneHandler returns the current scene frame. Pass paths=false to omit
// arc geometry, and bbox or near/radius_km to narrow it to an area.
func SceneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := parseBounds(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		frame, err := loadScene(c.UserContext(), deps, bounds, c.QueryBool("paths", true))
		if errors.Is(err, domain.ErrNotFound) {
			return errUnavailable(c, "no scene frame available, is the realtime engine running?")
		}
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(frame)
	}
}

// ListPresencesHandler returns every presence that is still visible,
// optionally within bbox or near/radius_km.
func ListPresencesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := parseBounds(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		list, err := deps.Presences.ListActive(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		if bounds != nil {
			kept := list[:0]
			for _, p := range list {
				if bounds.Contains(p.Location) {
					kept = append(kept, p)
				}
			}
			list = kept
		}
		return paginate(c, list)
	}
}

// HeartbeatHandler records presence activity. An omitted id allocates one.
func HeartbeatHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req heartbeatRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}
		online := true
		if req.Online != nil {
			online = *req.Online
		}

		p, err := deps.Presences.Heartbeat(c.UserContext(), req.ID, domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lon}, online)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(p)
	}
}

// DisconnectHandler marks a presence offline so it starts fading.
func DisconnectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := deps.Presences.Disconnect(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(p)
	}
}

// DeletePresenceHandler removes a presence immediately.
func DeletePresenceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Presences.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ListPingsHandler returns pings still within their lifetime, newest first.
func ListPingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pings, err := deps.Pings.Recent(c.UserContext(), 500)
		if err != nil {
			return errFromDomain(c, err)
		}
		if c.QueryBool("local", false) {
			local := pings[:0]
			for _, p := range pings {
				if p.InvolvesLocalActor {
					local = append(local, p)
				}
			}
			pings = local
		}
		return paginate(c, pings)
	}
}

// pingResponse is a stored ping with its arc while it is still live.
type pingResponse struct {
	*domain.Ping
	Path *domain.Path `json:"path,omitempty"`
}

// GetPingHandler returns a single ping. Live pings include their path.
func GetPingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := deps.Pings.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		resp := pingResponse{Ping: p}
		if path, err := deps.lookupPath(c.UserContext(), p.ID); err == nil {
			resp.Path = path
		}
		return c.JSON(resp)
	}
}

// SendPingHandler creates a ping between two coordinates.
func SendPingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req pingRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.From == nil || req.To == nil {
			return errBadRequest(c, "from and to are required")
		}

		p, err := deps.Pings.Send(c.UserContext(), *req.From, *req.To, req.InvolvesLocalActor)
		if err != nil {
			if p != nil {
				// Stored but not broadcast; scenes pick it up on their next warm start.
				LoggerFromCtx(c.UserContext()).Warn("ping not broadcast", "id", p.ID, "error", err)
				return c.Status(fiber.StatusAccepted).JSON(p)
			}
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}
