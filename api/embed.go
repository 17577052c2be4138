// Package api holds the dashboard's OpenAPI document.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
