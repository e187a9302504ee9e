package models

import (
	"time"
)

// StorySeen tracks which stories a viewer has had on screen (PostgreSQL)
type StorySeen struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	StoryID  string    `json:"story_id" gorm:"index;uniqueIndex:idx_story_viewer_seen"`
	ViewerID string    `json:"viewer_id" gorm:"index;uniqueIndex:idx_story_viewer_seen"`
	SeenAt   time.Time `json:"seen_at"`
}
