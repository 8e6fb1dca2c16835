// ABOUTME: Comment tools: create, update and delete comments on documents.

package tools

import (
	"context"
	"encoding/json"

	"github.com/2389/outline-mcp-gateway/internal/registry"
)

func commentTools(c Caller) []registry.Definition {
	h := &commentHandlers{c: c}
	return []registry.Definition{
		{
			Name:        "createComment",
			Description: "Add a comment to a document, or reply to an existing comment",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"documentId":{"type":"string","minLength":1},
					"text":{"type":"string","minLength":1,"description":"Markdown comment body"},
					"parentCommentId":{"type":"string","description":"Reply to this comment"}
				},
				"required":["documentId","text"],
				"additionalProperties":false
			}`),
			OutputSchema: objectOutput("comment"),
			Handler:      h.Create,
		},
		{
			Name:         "deleteComment",
			Description:  "Delete a comment and its replies",
			InputSchema:  json.RawMessage(`{"type":"object","properties":{"id":{"type":"string","minLength":1}},"required":["id"],"additionalProperties":false}`),
			OutputSchema: json.RawMessage(deletedOutput),
			Handler:      h.Delete,
		},
		{
			Name:        "updateComment",
			Description: "Replace the body of a comment",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"id":{"type":"string","minLength":1},
					"text":{"type":"string","minLength":1}
				},
				"required":["id","text"],
				"additionalProperties":false
			}`),
			OutputSchema: objectOutput("comment"),
			Handler:      h.Update,
		},
	}
}

type commentHandlers struct {
	c Caller
}

type createCommentInput struct {
	DocumentID      string `json:"documentId"`
	Text            string `json:"text"`
	ParentCommentID string `json:"parentCommentId,omitempty"`
}

func (h *commentHandlers) Create(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[createCommentInput](input)
	if err != nil {
		return nil, err
	}
	return object(ctx, h.c, "comments.create", in, "comment")
}

type commentIDInput struct {
	ID string `json:"id"`
}

func (h *commentHandlers) Delete(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[commentIDInput](input)
	if err != nil {
		return nil, err
	}
	return deleted(ctx, h.c, "comments.delete", in, in.ID)
}

type updateCommentInput struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (h *commentHandlers) Update(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[updateCommentInput](input)
	if err != nil {
		return nil, err
	}
	return object(ctx, h.c, "comments.update", in, "comment")
}
