package domain

import "time"

// Image is a persisted generation-history record. Prompt holds the
// user's original text, before any style suffix was applied.
type Image struct {
	ID         string
	UserID     string
	Prompt     string
	Model      string
	Resolution string
	Style      string
	ImageURL   string
	CreatedAt  time.Time
}
