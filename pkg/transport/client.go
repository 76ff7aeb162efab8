// Package transport defines the contract with the video-task API.
//
// Implementations cover listing with opaque cursor pagination, idempotent
// creation, and deletion. Authentication is the implementation's concern;
// the sync core only sees the typed error taxonomy defined in this package.
package transport

import (
	"context"

	"github.com/clipforge/vidsync/pkg/task"
)

// Client abstracts the video-task backend.
//
// Implementations should:
//   - Treat cursors as opaque tokens issued by the server
//   - Send the idempotency key with every create so server-side retries of
//     the same key are deduplicated
//   - Be safe for concurrent use
type Client interface {
	// FetchPage returns one page of tasks for the query.
	// Use Page.NextCursor for subsequent pages.
	FetchPage(ctx context.Context, q task.Query) (*task.Page, error)

	// CreateRecord creates a task. Repeating a call with the same
	// idempotency key and payload returns the original record instead of
	// creating a second one.
	CreateRecord(ctx context.Context, req task.CreateRequest, idempotencyKey string) (*task.Record, error)

	// GetRecord returns a single task by id.
	// Returns an error matching ErrNotFound if the task does not exist.
	GetRecord(ctx context.Context, id string) (*task.Record, error)

	// DeleteRecord deletes a task by id.
	DeleteRecord(ctx context.Context, id string) error

	// Close releases any resources held by the client.
	Close() error
}
