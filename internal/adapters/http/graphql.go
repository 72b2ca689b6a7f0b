package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SamplePoint",
		Fields: graphql.Fields{
			"id":  &graphql.Field{Type: graphql.Int},
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	statType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PointStatistic",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.Int},
			"lat":       &graphql.Field{Type: graphql.Float},
			"lng":       &graphql.Field{Type: graphql.Float},
			"ndvi_mean": &graphql.Field{Type: graphql.Float},
			"evi_mean":  &graphql.Field{Type: graphql.Float},
		},
	})

	matchType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PointMatch",
		Fields: graphql.Fields{
			"point":      &graphql.Field{Type: pointType},
			"distance_m": &graphql.Field{Type: graphql.Float},
			"stat":       &graphql.Field{Type: statType},
		},
	})

	estimateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GridEstimate",
		Fields: graphql.Fields{
			"spacing_m": &graphql.Field{Type: graphql.Float},
			"area_ha":   &graphql.Field{Type: graphql.Float},
			"estimated": &graphql.Field{Type: graphql.Int},
			"actual":    &graphql.Field{Type: graphql.Int},
		},
	})

	tableType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StatsTable",
		Fields: graphql.Fields{
			"header": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"rows":   &graphql.Field{Type: graphql.NewList(graphql.NewList(graphql.String))},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"geometry_type": &graphql.Field{Type: graphql.String},
			"roi": &graphql.Field{
				Type:        graphql.String,
				Description: "ROI geometry as a GeoJSON string",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return string(p.Source.(*domain.GridSession).ROI), nil
				},
			},
			"area_ha":      &graphql.Field{Type: graphql.Float},
			"spacing_m":    &graphql.Field{Type: graphql.Float},
			"raster_layer": &graphql.Field{Type: graphql.String},
			"raster_ready": &graphql.Field{
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.GridSession).RasterReady(), nil
				},
			},
			"generation": &graphql.Field{Type: graphql.Int},
			"point_count": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return len(p.Source.(*domain.GridSession).Points), nil
				},
			},
			"density_per_ha": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.GridSession).Density(), nil
				},
			},
			"points":     &graphql.Field{Type: graphql.NewList(pointType)},
			"stats":      &graphql.Field{Type: graphql.NewList(statType)},
			"created_at": &graphql.Field{Type: graphql.DateTime},
			"updated_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	idArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Get a sampling session by ID",
				Args:        graphql.FieldConfigArgument{"id": idArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Get(p.Context, p.Args["id"].(string))
				},
			},
			"table": &graphql.Field{
				Type:        tableType,
				Description: "Statistics table of a session",
				Args:        graphql.FieldConfigArgument{"id": idArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Exports.Table(p.Context, p.Args["id"].(string))
				},
			},
			"estimate": &graphql.Field{
				Type:        estimateType,
				Description: "Estimated vs actual point count at a spacing",
				Args: graphql.FieldConfigArgument{
					"id":      idArg,
					"spacing": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					spacing := deps.Grid.DefaultSpacing
					if v, ok := p.Args["spacing"].(float64); ok {
						spacing = v
					}
					if err := checkSpacing(deps, spacing); err != nil {
						return nil, err
					}
					return deps.Sessions.EstimateGrid(p.Context, p.Args["id"].(string), spacing)
				},
			},
			"nearestPoint": &graphql.Field{
				Type:        matchType,
				Description: "Sample point closest to a location",
				Args: graphql.FieldConfigArgument{
					"id":  idArg,
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.NearestPoint(p.Context, p.Args["id"].(string),
						p.Args["lat"].(float64), p.Args["lng"].(float64))
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"generateGrid": &graphql.Field{
				Type: sessionType,
				Args: graphql.FieldConfigArgument{
					"id":              idArg,
					"spacing":         &graphql.ArgumentConfig{Type: graphql.Float},
					"fallbackSpacing": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					spacing := deps.Grid.DefaultSpacing
					if v, ok := p.Args["spacing"].(float64); ok {
						spacing = v
					}
					if err := checkSpacing(deps, spacing); err != nil {
						return nil, err
					}
					fallback := deps.Grid.FallbackSpacing
					if v, ok := p.Args["fallbackSpacing"].(float64); ok {
						fallback = v
						if fallback != 0 {
							if err := checkSpacing(deps, fallback); err != nil {
								return nil, fmt.Errorf("fallback %w", err)
							}
						}
					}
					return deps.Sessions.GenerateGrid(p.Context, p.Args["id"].(string), spacing, fallback)
				},
			},
			"clearGrid": &graphql.Field{
				Type: sessionType,
				Args: graphql.FieldConfigArgument{"id": idArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.ClearGrid(p.Context, p.Args["id"].(string))
				},
			},
			"extract": &graphql.Field{
				Type:        sessionType,
				Description: "Fetch statistics for the current grid",
				Args:        graphql.FieldConfigArgument{"id": idArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Extraction.Extract(p.Context, p.Args["id"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves POST /graphql.
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
