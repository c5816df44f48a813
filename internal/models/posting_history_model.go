package models

import "time"

// PostingHistory is one dispatch outcome for one platform.
type PostingHistory struct {
	ID           int64     `db:"id" json:"id"`
	PostID       string    `db:"post_id" json:"post_id"`
	Platform     string    `db:"platform" json:"platform"`
	Status       string    `db:"status" json:"status"`
	PostURL      string    `db:"post_url" json:"post_url"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	Attempt      int       `db:"attempt" json:"attempt"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
