package models

import "time"

// SavedQuote is a named quote kept for a project.
type SavedQuote struct {
	ID        int64     `json:"id"`
	Project   string    `json:"project"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
