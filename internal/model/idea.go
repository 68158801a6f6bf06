package model

import (
	"time"

	"github.com/lib/pq"
)

type Idea struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description *string        `db:"description" json:"description,omitempty"`
	AuthorID    string         `db:"author_id" json:"authorId"`
	SessionIDs  pq.StringArray `db:"session_ids" json:"sessions"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}
