// Package docs carries the OpenAPI document for the HTTP API. The JSON file
// is embedded and registered with swag so the swagger UI can serve it.
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

// OpenAPISpec is the raw OpenAPI document, also served at /openapi.json.
//
//go:embed openapi.json
var OpenAPISpec []byte

type spec struct{}

func (spec) ReadDoc() string { return string(OpenAPISpec) }

func init() {
	swag.Register(swag.Name, spec{})
}
