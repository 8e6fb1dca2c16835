// ABOUTME: User directory tool.

package tools

import (
	"context"
	"encoding/json"

	"github.com/2389/outline-mcp-gateway/internal/registry"
)

func userTools(c Caller) []registry.Definition {
	return []registry.Definition{
		{
			Name:        "listUsers",
			Description: "List workspace members, optionally filtered by name or email",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"query":{"type":"string","description":"Match against name or email"},
					"filter":{"type":"string","enum":["all","invited","active","suspended","admins","members","viewers"]},
					` + paginationProps + `
				},
				"additionalProperties":false
			}`),
			OutputSchema: listOutput("users"),
			Handler: func(ctx context.Context, input json.RawMessage) (any, error) {
				in, err := decode[listUsersInput](input)
				if err != nil {
					return nil, err
				}
				return list(ctx, c, "users.list", in, "users")
			},
		},
	}
}

type listUsersInput struct {
	Query  string `json:"query,omitempty"`
	Filter string `json:"filter,omitempty"`
	pagination
}
