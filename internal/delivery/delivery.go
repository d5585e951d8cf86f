// Package delivery defines the contract shared by every inbound adapter of
// the application (HTTP server, background workers).
package delivery

import "context"

// Delivery is a long-running inbound adapter. Serve blocks until the adapter
// stops; shutdown is driven through the Fx lifecycle hooks each adapter
// registers at construction.
type Delivery interface {
	Serve(ctx context.Context) error
}
