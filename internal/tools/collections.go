// ABOUTME: Collection tools: create, get, list and update.

package tools

import (
	"context"
	"encoding/json"

	"github.com/2389/outline-mcp-gateway/internal/registry"
)

const collectionWritableProps = `"description":{"type":"string","description":"Markdown description"},
		"color":{"type":"string","pattern":"^#[0-9a-fA-F]{6}$","description":"Hex color, e.g. #4E5C6E"},
		"permission":{"type":"string","enum":["read","read_write"],"description":"Default workspace access"},
		"private":{"type":"boolean"}`

func collectionTools(c Caller) []registry.Definition {
	h := &collectionHandlers{c: c}
	return []registry.Definition{
		{
			Name:        "createCollection",
			Description: "Create a new collection",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"name":{"type":"string","minLength":1},
					` + collectionWritableProps + `
				},
				"required":["name"],
				"additionalProperties":false
			}`),
			OutputSchema: objectOutput("collection"),
			Handler:      h.Create,
		},
		{
			Name:         "getCollection",
			Description:  "Fetch a collection by id",
			InputSchema:  json.RawMessage(`{"type":"object","properties":{"id":{"type":"string","minLength":1}},"required":["id"],"additionalProperties":false}`),
			OutputSchema: objectOutput("collection"),
			Handler:      h.Get,
		},
		{
			Name:         "listCollections",
			Description:  "List the collections visible to the caller",
			InputSchema:  json.RawMessage(`{"type":"object","properties":{` + paginationProps + `},"additionalProperties":false}`),
			OutputSchema: listOutput("collections"),
			Handler:      h.List,
		},
		{
			Name:        "updateCollection",
			Description: "Update a collection's name, description, color or permission",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"id":{"type":"string","minLength":1},
					"name":{"type":"string","minLength":1},
					` + collectionWritableProps + `
				},
				"required":["id"],
				"additionalProperties":false
			}`),
			OutputSchema: objectOutput("collection"),
			Handler:      h.Update,
		},
	}
}

type collectionHandlers struct {
	c Caller
}

type createCollectionInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Permission  string `json:"permission,omitempty"`
	Private     bool   `json:"private,omitempty"`
}

func (h *collectionHandlers) Create(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[createCollectionInput](input)
	if err != nil {
		return nil, err
	}
	return object(ctx, h.c, "collections.create", in, "collection")
}

type collectionIDInput struct {
	ID string `json:"id"`
}

func (h *collectionHandlers) Get(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[collectionIDInput](input)
	if err != nil {
		return nil, err
	}
	return object(ctx, h.c, "collections.info", in, "collection")
}

func (h *collectionHandlers) List(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[pagination](input)
	if err != nil {
		return nil, err
	}
	return list(ctx, h.c, "collections.list", in, "collections")
}

type updateCollectionInput struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       string  `json:"color,omitempty"`
	Permission  string  `json:"permission,omitempty"`
	Private     *bool   `json:"private,omitempty"`
}

func (h *collectionHandlers) Update(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[updateCollectionInput](input)
	if err != nil {
		return nil, err
	}
	return object(ctx, h.c, "collections.update", in, "collection")
}
