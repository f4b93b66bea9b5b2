// Package ws implements the WebSocket hub for the delayboard server.
//
// Hub manages a set of connected clients and broadcasts the current dataset
// snapshot to all of them on a configurable interval (server.stream_interval)
// and whenever Notify is called after a dataset reload.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. The endpoint is mounted at /ws/stream.
package ws
