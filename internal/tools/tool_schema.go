// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// OpenAITools returns the function schema of every operation in registration
// order. The output depends only on the registry contents, so two calls on the
// same registry always marshal to identical bytes.
func (r *Registry) OpenAITools() []openai.Tool {
	defs := make([]openai.Tool, 0, len(r.ops))
	for _, op := range r.ops {
		defs = append(defs, SchemaFor(op))
	}
	return defs
}

// SchemaJSON returns the canonical JSON encoding of OpenAITools.
func (r *Registry) SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(r.OpenAITools(), "", "  ")
}

// SchemaFor derives the model-facing function schema of a single operation.
// Every parameter is exposed as a required string; optional parameters say so
// in their description and may be sent empty.
func SchemaFor(op *Operation) openai.Tool {
	props := make(map[string]jsonschema.Definition, len(op.Params))
	required := make([]string, 0, len(op.Params))
	for _, p := range op.Params {
		props[p.Name] = jsonschema.Definition{
			Type:        jsonschema.String,
			Description: paramDescription(p),
			Enum:        p.Enum,
		}
		required = append(required, p.Name)
	}

	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        op.Name,
			Description: op.Description,
			Parameters: jsonschema.Definition{
				Type:                 jsonschema.Object,
				Properties:           props,
				Required:             required,
				AdditionalProperties: false,
			},
		},
	}
}

func paramDescription(p Param) string {
	var b strings.Builder
	b.WriteString(p.Description)
	switch p.Role {
	case RolePath:
		b.WriteString(". Absolute path inside the data directory")
	case RoleInteger:
		b.WriteString(". Decimal integer written as a string")
	}
	if !p.Required {
		if p.Default != "" {
			fmt.Fprintf(&b, ". Optional, defaults to %q; send an empty string to use the default", p.Default)
		} else {
			b.WriteString(". Optional; send an empty string to omit")
		}
	}
	return b.String()
}
