package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipforge/vidsync/pkg/task"
)

// demoVideos are handed out round-robin as completed task URLs.
var demoVideos = []string{
	"https://www.w3schools.com/html/mov_bbb.mp4",
	"https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4",
	"https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/ElephantsDream.mp4",
	"https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/ForBiggerBlazes.mp4",
	"https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/ForBiggerFun.mp4",
}

// SimConfig controls the scripted task lifecycle.
type SimConfig struct {
	// ProcessingAfter is the delay from creation to the processing state.
	// Default: 5s.
	ProcessingAfter time.Duration

	// CompleteAfter is the delay from creation to completion.
	// Default: 20s.
	CompleteAfter time.Duration

	// IdempotencyTTL is how long idempotency keys are honored.
	// Default: 24h.
	IdempotencyTTL time.Duration
}

func (c SimConfig) withDefaults() SimConfig {
	if c.ProcessingAfter <= 0 {
		c.ProcessingAfter = 5 * time.Second
	}
	if c.CompleteAfter <= 0 {
		c.CompleteAfter = 20 * time.Second
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = 24 * time.Hour
	}
	return c
}

type idemEntry struct {
	payloadHash string
	taskID      string
	createdAt   time.Time
}

// errIdempotencyConflict signals key reuse with a different payload.
var errIdempotencyConflict = fmt.Errorf("idempotency key reused with different payload")

// Store is the in-memory task backend used by the dev server.
// Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	tasks   map[string]task.Record
	idem    map[string]idemEntry
	created int
	cfg     SimConfig
	logger  *zap.Logger
}

// NewStore creates an empty store with the given simulation config.
func NewStore(cfg SimConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		tasks:  make(map[string]task.Record),
		idem:   make(map[string]idemEntry),
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// listQuery is the parsed listing request.
type listQuery struct {
	limit  int
	cursor string
	search string
	status string
	sort   string
}

// hashPayload fingerprints a create payload for idempotency comparison.
func hashPayload(req task.CreateRequest) string {
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}

// Create inserts a task, honoring the idempotency key when present.
// Replays with the same key and payload return the original record.
func (s *Store) Create(req task.CreateRequest, idemKey string) (task.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	if idemKey != "" {
		if entry, ok := s.idem[idemKey]; ok && now.Sub(entry.createdAt) < s.cfg.IdempotencyTTL {
			if entry.payloadHash != hashPayload(req) {
				return task.Record{}, false, errIdempotencyConflict
			}
			if rec, ok := s.tasks[entry.taskID]; ok {
				s.logger.Debug("idempotent replay",
					zap.String("key", idemKey),
					zap.String("task_id", entry.taskID))
				return rec, true, nil
			}
		}
	}

	s.created++
	rec := task.Record{
		ID:        "vt_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8],
		Title:     strings.TrimSpace(req.Title),
		Prompt:    strings.TrimSpace(req.Prompt),
		Status:    task.StatusQueued,
		CreatedAt: now,
	}
	s.tasks[rec.ID] = rec

	if idemKey != "" {
		s.idem[idemKey] = idemEntry{
			payloadHash: hashPayload(req),
			taskID:      rec.ID,
			createdAt:   now,
		}
	}

	s.scheduleLifecycleLocked(rec.ID, s.created)
	return rec, false, nil
}

// scheduleLifecycleLocked scripts the queued -> processing -> completed
// progression for a task.
func (s *Store) scheduleLifecycleLocked(id string, seq int) {
	half := s.cfg.ProcessingAfter + (s.cfg.CompleteAfter-s.cfg.ProcessingAfter)/2
	videoURL := demoVideos[seq%len(demoVideos)]

	time.AfterFunc(s.cfg.ProcessingAfter, func() {
		s.transition(id, task.StatusProcessing, 25, "")
	})
	time.AfterFunc(half, func() {
		s.transition(id, task.StatusProcessing, 60, "")
	})
	time.AfterFunc(s.cfg.CompleteAfter, func() {
		s.transition(id, task.StatusCompleted, 100, videoURL)
	})
}

// transition applies a scripted status change, respecting monotonicity: a
// task deleted or already terminal is left alone.
func (s *Store) transition(id string, status task.Status, progress int, videoURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[id]
	if !ok || !task.CanTransition(rec.Status, status) || rec.Status.Terminal() {
		return
	}
	now := time.Now().UTC()
	rec.Status = status
	rec.Progress = progress
	rec.UpdatedAt = &now
	if videoURL != "" {
		rec.VideoURL = videoURL
	}
	s.tasks[id] = rec
}

// Get returns a task by id.
func (s *Store) Get(id string) (task.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[id]
	return rec, ok
}

// Delete removes a task by id.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// Seed inserts records directly, for tests and demo data.
func (s *Store) Seed(records ...task.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.tasks[rec.ID] = rec
	}
}

// List returns one page for the query plus the next-cursor, if any.
func (s *Store) List(q listQuery) ([]task.Record, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]task.Record, 0, len(s.tasks))
	for _, rec := range s.tasks {
		if q.status != "" && string(rec.Status) != q.status {
			continue
		}
		if q.search != "" && !matchesSearch(rec, q.search) {
			continue
		}
		matched = append(matched, rec)
	}

	asc := q.sort == task.SortCreatedAsc
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if asc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if asc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	start := 0
	if q.cursor != "" {
		cur, err := decodeCursor(q.cursor)
		if err != nil {
			return nil, "", err
		}
		// Seek just past the cursor position.
		for i, rec := range matched {
			if rec.CreatedAt.Equal(cur.CreatedAt) && rec.ID == cur.ID {
				start = i + 1
				break
			}
			past := rec.CreatedAt.Before(cur.CreatedAt)
			if asc {
				past = rec.CreatedAt.After(cur.CreatedAt)
			}
			if past {
				start = i
				break
			}
			start = i + 1
		}
	}

	end := start + q.limit
	if end > len(matched) {
		end = len(matched)
	}
	page := append([]task.Record(nil), matched[start:end]...)

	next := ""
	if end < len(matched) && len(page) > 0 {
		last := page[len(page)-1]
		next = encodeCursor(cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
			Search:    q.search,
			Status:    q.status,
			Sort:      q.sort,
		})
	}
	return page, next, nil
}

// matchesSearch implements the search contract: case-insensitive title
// substring, or exact id match.
func matchesSearch(rec task.Record, search string) bool {
	if rec.ID == search {
		return true
	}
	return strings.Contains(strings.ToLower(rec.Title), strings.ToLower(search))
}
