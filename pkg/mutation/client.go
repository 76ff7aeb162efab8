// Package mutation issues idempotent create operations with optimistic
// cache merges.
//
// Every create carries an idempotency key (caller-supplied or generated) so
// the backend deduplicates retries of the same logical request. The client
// prepends a best-effort placeholder record into the cache immediately, then
// reconciles it with the server-confirmed record, or rolls it back, once the
// request settles. Placeholders are keyed by the mutation key, not by a
// client-generated entity id, so a retry with the same key merges onto the
// same placeholder instead of double-inserting.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipforge/vidsync/pkg/synccache"
	"github.com/clipforge/vidsync/pkg/task"
	"github.com/clipforge/vidsync/pkg/transport"
)

// Status is the lifecycle state of a pending mutation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Pending is the tracked state of one create operation.
type Pending struct {
	// Key is the idempotency key carried by the request.
	Key string

	// Request is the payload, kept for retry diagnosis.
	Request task.CreateRequest

	// Status is pending until the request settles.
	Status Status

	// PlaceholderID is the provisional id of the optimistic record.
	PlaceholderID string

	// RecordID is the server-confirmed id, set once confirmed. It may
	// differ from PlaceholderID.
	RecordID string

	// CreatedAt is when the mutation was registered.
	CreatedAt time.Time
}

// Config configures the mutation client.
type Config struct {
	// Scope selects which cache entries receive optimistic writes.
	// Default: every entry.
	Scope synccache.KeyPredicate

	// PendingTTL is how long settled or abandoned mutations are retained
	// before eviction. Default: 24h, matching the backend's idempotency
	// window.
	PendingTTL time.Duration

	// Logger receives reconciliation diagnostics. Default: zap.NewNop().
	Logger *zap.Logger

	// Now overrides the clock, for tests. Default: time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Scope == nil {
		c.Scope = synccache.AllKeys()
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = 24 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Client performs idempotent creates with optimistic cache merges.
// Safe for concurrent use.
type Client struct {
	api   transport.Client
	cache *synccache.Cache
	cfg   Config

	mu      sync.Mutex
	pending map[string]*Pending
}

// NewClient creates a mutation client writing through the given cache.
func NewClient(api transport.Client, cache *synccache.Cache, cfg Config) *Client {
	return &Client{
		api:     api,
		cache:   cache,
		cfg:     cfg.withDefaults(),
		pending: make(map[string]*Pending),
	}
}

// GenerateKey returns a fresh idempotency key: a randomized token combined
// with a timestamp, unique with overwhelming probability.
func GenerateKey() string {
	return fmt.Sprintf("idem-%d-%s", time.Now().UnixNano(), uuid.New().String())
}

// placeholderID derives the provisional record id from the mutation key, so
// retries of the same key always project onto the same placeholder.
func placeholderID(key string) string {
	return "pending-" + key
}

// Create creates a task. When idempotencyKey is empty one is generated.
//
// The projected record is prepended into every in-scope cache entry before
// the request is issued. On success the placeholder is replaced by the
// server-confirmed record; on failure it is removed and the returned error
// carries the idempotency key and server request id for diagnosis.
func (c *Client) Create(ctx context.Context, req task.CreateRequest, idempotencyKey string) (*task.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, &transport.APIError{
			Op:      "CreateRecord",
			Message: err.Error(),
			Err:     fmt.Errorf("%w: %w", transport.ErrValidation, err),
		}
	}

	key := idempotencyKey
	if key == "" {
		key = GenerateKey()
	}

	now := c.cfg.Now()
	pend := c.register(key, req, now)

	projected := req.Projected(pend.PlaceholderID, now)
	c.cache.Prepend(c.cfg.Scope, projected)

	rec, err := c.api.CreateRecord(ctx, req, key)
	if err != nil {
		c.cache.Remove(c.cfg.Scope, pend.PlaceholderID)
		c.settle(key, StatusFailed, "")
		c.cfg.Logger.Warn("create failed, optimistic record rolled back",
			zap.String("idempotency_key", key),
			zap.Error(err))
		return nil, withKey(err, key)
	}

	// Replace the placeholder with the confirmed record. The confirmed id
	// may differ from the placeholder id, so remove-then-prepend; the
	// id-keyed merge absorbs the case where a poll already delivered it.
	c.cache.Remove(c.cfg.Scope, pend.PlaceholderID)
	c.cache.Prepend(c.cfg.Scope, *rec)
	c.settle(key, StatusConfirmed, rec.ID)

	c.cfg.Logger.Debug("create confirmed",
		zap.String("idempotency_key", key),
		zap.String("task_id", rec.ID))
	return rec, nil
}

// register records the mutation, reusing an existing pending entry for the
// same key so retries share one placeholder. Expired entries are evicted
// opportunistically here.
func (c *Client) register(key string, req task.CreateRequest, now time.Time) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, p := range c.pending {
		if now.Sub(p.CreatedAt) > c.cfg.PendingTTL {
			delete(c.pending, k)
		}
	}

	if p, ok := c.pending[key]; ok {
		p.Status = StatusPending
		return p
	}
	p := &Pending{
		Key:           key,
		Request:       req,
		Status:        StatusPending,
		PlaceholderID: placeholderID(key),
		CreatedAt:     now,
	}
	c.pending[key] = p
	return p
}

func (c *Client) settle(key string, status Status, recordID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[key]; ok {
		p.Status = status
		if recordID != "" {
			p.RecordID = recordID
		}
	}
}

// Pending returns the tracked state for an idempotency key.
func (c *Client) Pending(key string) (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[key]
	if !ok {
		return Pending{}, false
	}
	return *p, true
}

// PendingCount returns the number of tracked mutations.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// withKey ensures the returned error carries the idempotency key.
func withKey(err error, key string) error {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IdempotencyKey == "" {
			apiErr.IdempotencyKey = key
		}
		return err
	}
	return &transport.APIError{
		Op:             "CreateRecord",
		Message:        err.Error(),
		IdempotencyKey: key,
		Err:            fmt.Errorf("%w: %w", transport.ErrTransient, err),
	}
}
