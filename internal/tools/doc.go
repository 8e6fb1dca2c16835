// Package tools is the static manifest of Outline tools served over MCP.
//
// # Overview
//
// Every tool is a thin adapter over one Outline API endpoint. Tools never
// hold an API key: the key arrives in the request context, placed there by
// the transport, and the Outline client reads it per call.
//
// # Tools
//
// The manifest registers 18 tools, in this order:
//
//   - archiveDocument: documents.archive
//   - askDocuments: documents.answerQuestion
//   - createCollection: collections.create
//   - createComment: comments.create
//   - createDocument: documents.create
//   - createTemplateFromDocument: documents.templatize
//   - deleteComment: comments.delete
//   - deleteDocument: documents.delete
//   - getCollection: collections.info
//   - getDocument: documents.info (optionally rendered to HTML)
//   - listCollections: collections.list
//   - listDocuments: documents.list
//   - listUsers: users.list
//   - moveDocument: documents.move
//   - searchDocuments: documents.search
//   - updateCollection: collections.update
//   - updateComment: comments.update
//   - updateDocument: documents.update
//
// # Registration
//
//	reg := registry.New(logger)
//	if err := tools.Register(reg, outlineClient); err != nil { ... }
//	reg.Seal()
//
// # Outputs
//
// Tool outputs are always JSON objects keyed by resource (for example
// {"collections": [...]}) so they can be carried as MCP structured content.
package tools
