package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	vec3Type := graphql.NewObject(graphql.ObjectConfig{
		Name: "Vec3",
		Fields: graphql.Fields{
			"x": &graphql.Field{Type: graphql.Float},
			"y": &graphql.Field{Type: graphql.Float},
			"z": &graphql.Field{Type: graphql.Float},
		},
	})

	pathType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Path",
		Fields: graphql.Fields{
			"points":      &graphql.Field{Type: graphql.NewList(vec3Type)},
			"apex_height": &graphql.Field{Type: graphql.Float},
			"distance_km": &graphql.Field{Type: graphql.Float},
		},
	})

	presenceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Presence",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"location":       &graphql.Field{Type: geoPointType},
			"last_active_at": &graphql.Field{Type: graphql.String},
			"is_online":      &graphql.Field{Type: graphql.Boolean},
			"brightness":     &graphql.Field{Type: graphql.Float},
		},
	})

	pingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Ping",
		Fields: graphql.Fields{
			"id":                   &graphql.Field{Type: graphql.String},
			"from":                 &graphql.Field{Type: geoPointType},
			"to":                   &graphql.Field{Type: geoPointType},
			"created_at":           &graphql.Field{Type: graphql.String},
			"involves_local_actor": &graphql.Field{Type: graphql.Boolean},
			"phase":                &graphql.Field{Type: graphql.String},
			"reveal_fraction":      &graphql.Field{Type: graphql.Float},
			"primary_opacity":      &graphql.Field{Type: graphql.Float},
			"glow_opacity":         &graphql.Field{Type: graphql.Float},
			"color_blend":          &graphql.Field{Type: graphql.Float},
			"color":                &graphql.Field{Type: graphql.String},
			"path":                 &graphql.Field{Type: pathType},
		},
	})

	sceneType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Scene",
		Fields: graphql.Fields{
			"time":      &graphql.Field{Type: graphql.String},
			"presences": &graphql.Field{Type: graphql.NewList(presenceType)},
			"pings":     &graphql.Field{Type: graphql.NewList(pingType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"scene": &graphql.Field{
				Type:        sceneType,
				Description: "Current scene: every visible presence and ping",
				Args: graphql.FieldConfigArgument{
					"paths": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: true},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					withPaths, _ := p.Args["paths"].(bool)
					frame, err := loadScene(p.Context, deps, nil, withPaths)
					if err != nil {
						return nil, err
					}
					return frameToMap(frame), nil
				},
			},
			"presences": &graphql.Field{
				Type:        graphql.NewList(presenceType),
				Description: "Stored presences that are still visible",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					list, err := deps.Presences.ListActive(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(list))
					for _, ps := range list {
						out = append(out, presenceToMap(ps))
					}
					return out, nil
				},
			},
			"ping": &graphql.Field{
				Type:        pingType,
				Description: "Get a ping by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ping, err := deps.Pings.GetByID(p.Context, p.Args["id"].(string))
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return pingToMap(*ping), nil
				},
			},
			"recentPings": &graphql.Field{
				Type:        graphql.NewList(pingType),
				Description: "Pings still within their lifetime, newest first",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pings, err := deps.Pings.Recent(p.Context, p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(pings))
					for _, ping := range pings {
						out = append(out, pingToMap(ping))
					}
					return out, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"sendPing": &graphql.Field{
				Type:        pingType,
				Description: "Send a ping between two coordinates",
				Args: graphql.FieldConfigArgument{
					"fromLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"fromLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLon":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"local":   &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					from := domain.GeoPoint{Lat: p.Args["fromLat"].(float64), Lon: p.Args["fromLon"].(float64)}
					to := domain.GeoPoint{Lat: p.Args["toLat"].(float64), Lon: p.Args["toLon"].(float64)}
					ping, err := deps.Pings.Send(p.Context, from, to, p.Args["local"].(bool))
					if ping == nil {
						return nil, err
					}
					return pingToMap(*ping), err
				},
			},
			"heartbeat": &graphql.Field{
				Type:        presenceType,
				Description: "Record presence activity at a location",
				Args: graphql.FieldConfigArgument{
					"id":     &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"online": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: true},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					loc := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					presence, err := deps.Presences.Heartbeat(p.Context, p.Args["id"].(string), loc, p.Args["online"].(bool))
					if err != nil {
						return nil, err
					}
					return presenceToMap(domain.PresenceState{Presence: *presence, Brightness: 1}), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}

func geoToMap(g domain.GeoPoint) map[string]interface{} {
	return map[string]interface{}{"lat": g.Lat, "lon": g.Lon}
}

func presenceToMap(p domain.PresenceState) map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"location":       geoToMap(p.Location),
		"last_active_at": p.LastActiveAt.Format(time.RFC3339),
		"is_online":      p.IsOnline,
		"brightness":     p.Brightness,
	}
}

func pingToMap(p domain.Ping) map[string]interface{} {
	return map[string]interface{}{
		"id":                   p.ID,
		"from":                 geoToMap(p.From),
		"to":                   geoToMap(p.To),
		"created_at":           p.CreatedAt.Format(time.RFC3339Nano),
		"involves_local_actor": p.InvolvesLocalActor,
	}
}

func pingStateToMap(s domain.PingState) map[string]interface{} {
	m := pingToMap(s.Ping)
	m["phase"] = s.Phase.String()
	m["reveal_fraction"] = s.RevealFraction
	m["primary_opacity"] = s.PrimaryOpacity
	m["glow_opacity"] = s.GlowOpacity
	m["color_blend"] = s.ColorBlend
	m["color"] = s.Color
	if s.Path != nil {
		points := make([]map[string]interface{}, 0, len(s.Path.Points))
		for _, v := range s.Path.Points {
			points = append(points, map[string]interface{}{"x": v.X, "y": v.Y, "z": v.Z})
		}
		m["path"] = map[string]interface{}{
			"points":      points,
			"apex_height": s.Path.ApexHeight,
			"distance_km": s.Path.DistanceKm,
		}
	}
	return m
}

func frameToMap(f *domain.Frame) map[string]interface{} {
	presences := make([]map[string]interface{}, 0, len(f.Presences))
	for _, p := range f.Presences {
		presences = append(presences, presenceToMap(p))
	}
	pings := make([]map[string]interface{}, 0, len(f.Pings))
	for _, p := range f.Pings {
		pings = append(pings, pingStateToMap(p))
	}
	return map[string]interface{}{
		"time":      f.Time.Format(time.RFC3339Nano),
		"presences": presences,
		"pings":     pings,
	}
}
