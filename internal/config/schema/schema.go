// Package schema embeds the JSON schemas for formula and config files.
package schema

import _ "embed"

//go:embed formula.schema.json
var Formula []byte

//go:embed config.schema.json
var Config []byte
