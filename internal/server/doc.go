// Package server exposes the block store over the JSON API used by sync
// clients.
//
// Routes mount under /api by default:
//   - Blocks: PUT /blocks (save content or reorder), POST /blocks, GET /blocks/{id}
//   - Pages: GET /pages/{id}, GET /pages/{id}/events (websocket)
//   - Definitions: GET /definitions, POST /definitions
//
// Every response is an envelope {"success": bool, "data": ..., "error": code}.
package server
