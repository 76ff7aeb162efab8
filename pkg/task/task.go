// Package task defines the video task domain model shared by the sync core.
//
// The JSON shapes here mirror the backend wire contract exactly (camelCase
// field names, optional fields omitted when empty) so records round-trip
// through the transport without translation.
package task

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a video task.
//
// NOTE: These values are part of the stable wire contract. Transitions are
// monotonic: queued -> processing -> {completed, failed, cancelled}. Terminal
// states never transition again.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a task may move from one status to another.
// Self-transitions are allowed (a re-fetch observing the same status).
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusQueued:
		return to == StatusProcessing || to.Terminal()
	case StatusProcessing:
		return to.Terminal()
	}
	return false
}

// DebugInfo carries optional server diagnostics attached to a record.
type DebugInfo struct {
	RequestID string `json:"requestId,omitempty"`
	Worker    string `json:"worker,omitempty"`
	Trace     string `json:"trace,omitempty"`
}

// Record is a single video task as returned by the backend.
//
// ID is globally unique and stable. Progress is meaningful only while the
// task is processing.
type Record struct {
	ID           string     `json:"id"`
	Title        string     `json:"title,omitempty"`
	Prompt       string     `json:"prompt,omitempty"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress,omitempty"`
	VideoURL     string     `json:"videoUrl,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	Debug        *DebugInfo `json:"debug,omitempty"`
}

// Page is one page of a task listing.
type Page struct {
	Data       []Record `json:"data"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

// AllTerminal reports whether every record on the page has settled.
// An empty page is considered terminal (nothing left to poll for).
func (p *Page) AllTerminal() bool {
	for i := range p.Data {
		if !p.Data[i].Status.Terminal() {
			return false
		}
	}
	return true
}

const (
	// MaxTitleLen bounds the title accepted by the backend.
	MaxTitleLen = 500
	// MaxPromptLen bounds the prompt accepted by the backend.
	MaxPromptLen = 2000
)

// CreateRequest is the body of a task creation call. All fields optional.
type CreateRequest struct {
	Title  string `json:"title,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// Validate checks field length limits before the request leaves the client.
func (r CreateRequest) Validate() error {
	if len(r.Title) > MaxTitleLen {
		return fmt.Errorf("title exceeds %d characters", MaxTitleLen)
	}
	if len(r.Prompt) > MaxPromptLen {
		return fmt.Errorf("prompt exceeds %d characters", MaxPromptLen)
	}
	return nil
}

// Projected builds the optimistic placeholder record for a pending create.
// The placeholder carries the given provisional id and a queued status; the
// server-confirmed record replaces it on reconciliation.
func (r CreateRequest) Projected(id string, now time.Time) Record {
	return Record{
		ID:        id,
		Title:     strings.TrimSpace(r.Title),
		Prompt:    strings.TrimSpace(r.Prompt),
		Status:    StatusQueued,
		CreatedAt: now.UTC(),
	}
}
