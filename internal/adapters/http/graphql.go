package http

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the session service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	cameraType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Camera",
		Fields: graphql.Fields{
			"center": &graphql.Field{Type: geoPointType},
			"zoom":   &graphql.Field{Type: graphql.Float},
		},
	})

	layerSetType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LayerSet",
		Fields: graphql.Fields{
			"role":       &graphql.Field{Type: graphql.String},
			"source_id":  &graphql.Field{Type: graphql.String},
			"fill_id":    &graphql.Field{Type: graphql.String},
			"outline_id": &graphql.Field{Type: graphql.String},
			"color":      &graphql.Field{Type: graphql.String},
			"features":   &graphql.Field{Type: graphql.Int},
		},
	})

	paneType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pane",
		Fields: graphql.Fields{
			"name":      &graphql.Field{Type: graphql.String},
			"title":     &graphql.Field{Type: graphql.String},
			"crs_label": &graphql.Field{Type: graphql.String},
			"status":    &graphql.Field{Type: graphql.String},
			"camera":    &graphql.Field{Type: cameraType},
			"layers":    &graphql.Field{Type: graphql.NewList(layerSetType)},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":                &graphql.Field{Type: graphql.String},
			"kind":              &graphql.Field{Type: graphql.String},
			"analysis_id":       &graphql.Field{Type: graphql.String},
			"transformation_id": &graphql.Field{Type: graphql.String},
			"synchronized":      &graphql.Field{Type: graphql.Boolean},
			"panes":             &graphql.Field{Type: graphql.NewList(paneType)},
			"created_at":        &graphql.Field{Type: graphql.String},
		},
	})

	paneCameraType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PaneCamera",
		Fields: graphql.Fields{
			"pane":   &graphql.Field{Type: graphql.String},
			"camera": &graphql.Field{Type: cameraType},
		},
	})

	snapshotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SessionSnapshot",
		Fields: graphql.Fields{
			"id":                &graphql.Field{Type: graphql.String},
			"kind":              &graphql.Field{Type: graphql.String},
			"analysis_id":       &graphql.Field{Type: graphql.String},
			"transformation_id": &graphql.Field{Type: graphql.String},
			"cameras":           &graphql.Field{Type: graphql.NewList(paneCameraType)},
			"created_at":        &graphql.Field{Type: graphql.String},
			"updated_at":        &graphql.Field{Type: graphql.String},
			"closed_at":         &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"sessions": &graphql.Field{
				Type:        graphql.NewList(sessionType),
				Description: "List live viewer sessions",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					views := deps.Sessions.List()
					out := make([]map[string]interface{}, 0, len(views))
					for _, v := range views {
						out = append(out, sessionMap(v))
					}
					return out, nil
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Get a live session by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, err := deps.Sessions.Get(p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return sessionMap(*v), nil
				},
			},
			"sessionHistory": &graphql.Field{
				Type:        graphql.NewList(snapshotType),
				Description: "Persisted session snapshots, most recent first",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snaps, err := deps.Sessions.History(p.Context, p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(snaps))
					for _, s := range snaps {
						out = append(out, snapshotMap(s))
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func cameraMap(c domain.Camera) map[string]interface{} {
	return map[string]interface{}{
		"center": map[string]interface{}{"lat": c.Center.Lat, "lon": c.Center.Lon},
		"zoom":   c.Zoom,
	}
}

func sessionMap(v domain.SessionView) map[string]interface{} {
	panes := make([]map[string]interface{}, 0, len(v.Panes))
	for _, p := range v.Panes {
		layers := make([]map[string]interface{}, 0, len(p.Layers))
		for _, l := range p.Layers {
			layers = append(layers, map[string]interface{}{
				"role":       string(l.Role),
				"source_id":  l.SourceID,
				"fill_id":    l.FillID,
				"outline_id": l.OutlineID,
				"color":      string(l.Color),
				"features":   l.Features,
			})
		}
		panes = append(panes, map[string]interface{}{
			"name":      p.Name,
			"title":     p.Title,
			"crs_label": p.CRSLabel,
			"status":    p.Status.String(),
			"camera":    cameraMap(p.Camera),
			"layers":    layers,
		})
	}
	return map[string]interface{}{
		"id":                v.ID,
		"kind":              string(v.Kind),
		"analysis_id":       v.AnalysisID,
		"transformation_id": v.TransformationID,
		"synchronized":      v.Synchronized,
		"panes":             panes,
		"created_at":        v.CreatedAt.Format(time.RFC3339),
	}
}

func snapshotMap(s domain.SessionSnapshot) map[string]interface{} {
	names := make([]string, 0, len(s.Cameras))
	for name := range s.Cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	cams := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		cams = append(cams, map[string]interface{}{"pane": name, "camera": cameraMap(s.Cameras[name])})
	}

	m := map[string]interface{}{
		"id":                s.ID,
		"kind":              string(s.Kind),
		"analysis_id":       s.AnalysisID,
		"transformation_id": s.TransformationID,
		"cameras":           cams,
		"created_at":        s.CreatedAt.Format(time.RFC3339),
		"updated_at":        s.UpdatedAt.Format(time.RFC3339),
	}
	if s.ClosedAt != nil {
		m["closed_at"] = s.ClosedAt.Format(time.RFC3339)
	}
	return m
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
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
