// Package queueadmin exposes mail queue administration over HTTP.
//
// Routes, relative to the mount point:
//
//	GET  /stats             per-status counts
//	GET  /failed            failed items, oldest update first
//	GET  /items/{id}        one item
//	POST /items/{id}/reset  return a failed item to pending with a fresh retry budget
//	POST /items             enqueue, when an Enqueuer is configured
//
// Handlers are built with handler.Wrap and respond with handler.JSON, so every
// body is a {"data", "meta", "error"} envelope. Unknown ids answer 404 and
// malformed ids 400. Resetting an item that is not failed answers 409.
// Enqueue bodies must be a single JSON object sent as application/json.
package queueadmin
