// Package api embeds the HTTP API description so binaries serve the same
// document regardless of their working directory.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
