package http

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>GeoSampler API - Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box}*,*::before,*::after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// SpecPath is where the OpenAPI document is read from, relative to the working directory.
var SpecPath = "api/openapi.yaml"

type apiDocument struct {
	once sync.Once
	raw  []byte
	doc  *openapi3.T
}

// load reads and validates the document on first use. A missing or invalid
// file leaves raw nil, and the docs routes answer 404 from then on.
func (d *apiDocument) load() {
	d.once.Do(func() {
		data, err := os.ReadFile(SpecPath)
		if err != nil {
			slog.Warn("openapi document unavailable", "path", SpecPath, "error", err)
			return
		}
		loader := &openapi3.Loader{IsExternalRefsAllowed: false}
		doc, err := loader.LoadFromData(data)
		if err == nil {
			err = doc.Validate(context.Background())
		}
		if err != nil {
			slog.Warn("openapi document invalid", "path", SpecPath, "error", err)
			return
		}
		d.raw, d.doc = data, doc
	})
}

// SetupDocs registers Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml and /docs/openapi.json.
func SetupDocs(app *fiber.App) {
	doc := &apiDocument{}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		doc.load()
		if doc.raw == nil {
			return errNotFound(c, "openapi document not available")
		}
		c.Set("Content-Type", "application/yaml")
		return c.Send(doc.raw)
	})

	app.Get("/docs/openapi.json", func(c *fiber.Ctx) error {
		doc.load()
		if doc.doc == nil {
			return errNotFound(c, "openapi document not available")
		}
		return c.JSON(doc.doc)
	})
}
