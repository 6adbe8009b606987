// Package openapi embeds the OpenAPI document of the firecheck HTTP API for
// runtime distribution.
package openapi

import _ "embed"

// APISpec contains the OpenAPI document served at /api/v1/openapi.yaml.
//
//go:embed firecheck.yaml
var APISpec []byte

// Spec returns a defensive copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), APISpec...)
}
