// Package api embeds inboxd's OpenAPI specification for the /api/openapi.yaml route.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
