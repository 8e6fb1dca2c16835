// Package mcp implements the Model Context Protocol endpoint for Outline tools.
//
// # Overview
//
// MCP clients (Claude Desktop, IDE agents, custom applications) talk JSON-RPC
// 2.0 over HTTP POST to /mcp. Three methods are served:
//
//   - initialize: protocol version negotiation and server info
//   - tools/list: metadata for every registered tool, in registration order
//   - tools/call: run one tool against Outline with the caller's API key
//
// Requests without an id are notifications. Those under notifications/ are
// acknowledged with HTTP 202 and no body.
//
// # Credentials
//
// The server holds no Outline key of its own unless one is configured as a
// fallback. Each request supplies one, checked in this order:
//
//	x-outline-api-key: <key>
//	outline-api-key: <key>
//	Authorization: Bearer <key>
//
// A request that resolves no key is refused with code -32000 before any
// method runs.
//
// # Execution units
//
// A request is handled on an execution unit leased from a bounded pool. The
// unit's credential context is set, the dispatcher runs with that context
// attached to the request's context.Context, and the credential context is
// reset before the unit goes back to the pool:
//
//	unit := pool.Acquire(ctx)
//	unit.Instance().SetCredential(key)
//	dispatcher.Dispatch(credential.WithContext(ctx, unit.Instance()), req)
//	unit.Reset()
//	pool.Release(unit)
//
// # Errors
//
// Every failure is a JSON-RPC error object. The HTTP status follows the code:
//
//	-32700 parse error          400
//	-32600 invalid request      400
//	-32601 method not found     400
//	-32602 invalid params       400  (unknown tool, bad tool arguments)
//	-32603 internal error       500  (tool failure, panic)
//	-32000 server error         405  (no credential, rate limited)
//
// # Tool results
//
// A successful tools/call returns the tool's output twice: as JSON text in
// a single content block and as structuredContent.
//
//	{
//	  "content": [{"type": "text", "text": "{\"collections\":[...]}"}],
//	  "structuredContent": {"collections": [...]}
//	}
package mcp
