// ABOUTME: Document tools: create, read, update, move, archive, delete, search and Q&A.
// ABOUTME: getDocument can render the markdown body to HTML with goldmark.

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/outline-mcp-gateway/internal/registry"
)

func documentTools(c Caller) []registry.Definition {
	d := &documentHandlers{c: c}
	return []registry.Definition{
		{
			Name:         "archiveDocument",
			Description:  "Archive a document so it no longer appears in collections but can be restored",
			InputSchema:  json.RawMessage(`{"type":"object","properties":{"id":{"type":"string","minLength":1,"description":"Document id or url id"}},"required":["id"],"additionalProperties":false}`),
			OutputSchema: objectOutput("document"),
			Handler:      d.Archive,
		},
		{
			Name:        "askDocuments",
			Description: "Ask a natural-language question answered from the workspace's documents",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"query":{"type":"string","minLength":1,"description":"The question to answer"},
					"collectionId":{"type":"string","description":"Restrict to one collection"},
					"documentId":{"type":"string","description":"Restrict to one document"},
					"userId":{"type":"string","description":"Restrict to documents edited by a user"},
					"statusFilter":{"type":"string","enum":["draft","archived","published"]},
					"dateFilter":{"type":"string","enum":["day","week","month","year"]}
				},
				"required":["query"],
				"additionalProperties":false
			}`),
			Handler: d.Ask,
		},
		{
			Name:        "createDocument",
			Description: "Create a new document in a collection, optionally nested under a parent document",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"title":{"type":"string","minLength":1},
					"text":{"type":"string","description":"Markdown body"},
					"collectionId":{"type":"string","minLength":1},
					"parentDocumentId":{"type":"string"},
					"templateId":{"type":"string"},
					"template":{"type":"boolean","description":"Create as a template"},
					"publish":{"type":"boolean","description":"Publish immediately instead of saving a draft"}
				},
				"required":["title","collectionId"],
				"additionalProperties":false
			}`),
			OutputSchema: objectOutput("document"),
			Handler:      d.Create,
		},
		{
			Name:         "createTemplateFromDocument",
			Description:  "Create a reusable template from an existing document",
			InputSchema:  json.RawMessage(`{"type":"object","properties":{"id":{"type":"string","minLength":1}},"required":["id"],"additionalProperties":false}`),
			OutputSchema: objectOutput("document"),
			Handler:      d.Templatize,
		},
		{
			Name:        "deleteDocument",
			Description: "Delete a document, moving it to trash unless permanent is set",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"id":{"type":"string","minLength":1},
					"permanent":{"type":"boolean","description":"Skip trash and destroy the document"}
				},
				"required":["id"],
				"additionalProperties":false
			}`),
			OutputSchema: json.RawMessage(deletedOutput),
			Handler:      d.Delete,
		},
		{
			Name:        "getDocument",
			Description: "Fetch a document by id, with its markdown body or the body rendered as HTML",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"id":{"type":"string","minLength":1,"description":"Document id or url id"},
					"format":{"type":"string","enum":["markdown","html"],"default":"markdown"}
				},
				"required":["id"],
				"additionalProperties":false
			}`),
			OutputSchema: objectOutput("document"),
			Handler:      d.Get,
		},
		{
			Name:        "listDocuments",
			Description: "List documents, optionally filtered by collection, parent, author or backlinks",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"collectionId":{"type":"string"},
					"parentDocumentId":{"type":"string"},
					"userId":{"type":"string"},
					"backlinkDocumentId":{"type":"string"},
					"template":{"type":"boolean"},
					"sort":{"type":"string","enum":["createdAt","updatedAt","publishedAt","index","title"]},
					"direction":{"type":"string","enum":["ASC","DESC"]},
					` + paginationProps + `
				},
				"additionalProperties":false
			}`),
			OutputSchema: listOutput("documents"),
			Handler:      d.List,
		},
		{
			Name:        "moveDocument",
			Description: "Move a document to another collection or under another parent document",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"id":{"type":"string","minLength":1},
					"collectionId":{"type":"string"},
					"parentDocumentId":{"type":"string"}
				},
				"required":["id"],
				"anyOf":[{"required":["collectionId"]},{"required":["parentDocumentId"]}],
				"additionalProperties":false
			}`),
			Handler: d.Move,
		},
		{
			Name:        "searchDocuments",
			Description: "Full-text search across documents, returning matching snippets with ranking",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"query":{"type":"string","minLength":1},
					"collectionId":{"type":"string"},
					"userId":{"type":"string"},
					"dateFilter":{"type":"string","enum":["day","week","month","year"]},
					"statusFilter":{"type":"string","enum":["draft","archived","published"]},
					` + paginationProps + `
				},
				"required":["query"],
				"additionalProperties":false
			}`),
			OutputSchema: listOutput("results"),
			Handler:      d.Search,
		},
		{
			Name:        "updateDocument",
			Description: "Update a document's title or body, optionally appending instead of replacing",
			InputSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"id":{"type":"string","minLength":1},
					"title":{"type":"string"},
					"text":{"type":"string","description":"Markdown body"},
					"append":{"type":"boolean","description":"Append text to the existing body"},
					"publish":{"type":"boolean"},
					"done":{"type":"boolean","description":"Mark the editing session as finished"}
				},
				"required":["id"],
				"additionalProperties":false
			}`),
			OutputSchema: objectOutput("document"),
			Handler:      d.Update,
		},
	}
}

type documentHandlers struct {
	c Caller
}

type documentIDInput struct {
	ID string `json:"id"`
}

func (d *documentHandlers) Archive(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[documentIDInput](input)
	if err != nil {
		return nil, err
	}
	return object(ctx, d.c, "documents.archive", in, "document")
}

type askInput struct {
	Query        string `json:"query"`
	CollectionID string `json:"collectionId,omitempty"`
	DocumentID   string `json:"documentId,omitempty"`
	UserID       string `json:"userId,omitempty"`
	StatusFilter string `json:"statusFilter,omitempty"`
	DateFilter   string `json:"dateFilter,omitempty"`
}

func (d *documentHandlers) Ask(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[askInput](input)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := d.c.Call(ctx, "documents.answerQuestion", in, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

type createDocumentInput struct {
	Title            string `json:"title"`
	Text             string `json:"text,omitempty"`
	CollectionID     string `json:"collectionId"`
	ParentDocumentID string `json:"parentDocumentId,omitempty"`
	TemplateID       string `json:"templateId,omitempty"`
	Template         bool   `json:"template,omitempty"`
	Publish          bool   `json:"publish,omitempty"`
}

func (d *documentHandlers) Create(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[createDocumentInput](input)
	if err != nil {
		return nil, err
	}
	return object(ctx, d.c, "documents.create", in, "document")
}

func (d *documentHandlers) Templatize(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[documentIDInput](input)
	if err != nil {
		return nil, err
	}
	return object(ctx, d.c, "documents.templatize", in, "document")
}

type deleteDocumentInput struct {
	ID        string `json:"id"`
	Permanent bool   `json:"permanent,omitempty"`
}

func (d *documentHandlers) Delete(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[deleteDocumentInput](input)
	if err != nil {
		return nil, err
	}
	return deleted(ctx, d.c, "documents.delete", in, in.ID)
}

type getDocumentInput struct {
	ID     string `json:"id"`
	Format string `json:"format"`
}

func (d *documentHandlers) Get(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[getDocumentInput](input)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := d.c.Call(ctx, "documents.info", documentIDInput{ID: in.ID}, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("documents.info returned no document")
	}

	if in.Format == "html" {
		text, _ := doc["text"].(string)
		html, err := renderHTML(text)
		if err != nil {
			return nil, fmt.Errorf("rendering document %s: %w", in.ID, err)
		}
		doc["html"] = html
	}
	return map[string]any{"document": doc}, nil
}

type listDocumentsInput struct {
	CollectionID       string `json:"collectionId,omitempty"`
	ParentDocumentID   string `json:"parentDocumentId,omitempty"`
	UserID             string `json:"userId,omitempty"`
	BacklinkDocumentID string `json:"backlinkDocumentId,omitempty"`
	Template           *bool  `json:"template,omitempty"`
	Sort               string `json:"sort,omitempty"`
	Direction          string `json:"direction,omitempty"`
	pagination
}

func (d *documentHandlers) List(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[listDocumentsInput](input)
	if err != nil {
		return nil, err
	}
	return list(ctx, d.c, "documents.list", in, "documents")
}

type moveDocumentInput struct {
	ID               string `json:"id"`
	CollectionID     string `json:"collectionId,omitempty"`
	ParentDocumentID string `json:"parentDocumentId,omitempty"`
}

func (d *documentHandlers) Move(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[moveDocumentInput](input)
	if err != nil {
		return nil, err
	}
	// documents.move answers with the affected documents and collections.
	var out map[string]any
	if err := d.c.Call(ctx, "documents.move", in, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

type searchDocumentsInput struct {
	Query        string `json:"query"`
	CollectionID string `json:"collectionId,omitempty"`
	UserID       string `json:"userId,omitempty"`
	DateFilter   string `json:"dateFilter,omitempty"`
	StatusFilter string `json:"statusFilter,omitempty"`
	pagination
}

func (d *documentHandlers) Search(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[searchDocumentsInput](input)
	if err != nil {
		return nil, err
	}
	return list(ctx, d.c, "documents.search", in, "results")
}

type updateDocumentInput struct {
	ID      string  `json:"id"`
	Title   *string `json:"title,omitempty"`
	Text    *string `json:"text,omitempty"`
	Append  bool    `json:"append,omitempty"`
	Publish bool    `json:"publish,omitempty"`
	Done    bool    `json:"done,omitempty"`
}

func (d *documentHandlers) Update(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decode[updateDocumentInput](input)
	if err != nil {
		return nil, err
	}
	return object(ctx, d.c, "documents.update", in, "document")
}

var (
	markdownOnce     sync.Once
	markdownRenderer goldmark.Markdown
)

func renderHTML(md string) (string, error) {
	markdownOnce.Do(func() {
		markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
