package models

import (
	"strings"
	"time"
)

// Kind identifies which feed a document belongs to
type Kind string

const (
	KindReel  Kind = "reel"
	KindPost  Kind = "post"
	KindStory Kind = "story"
)

// Valid reports whether k is one of the known feed kinds
func (k Kind) Valid() bool {
	switch k {
	case KindReel, KindPost, KindStory:
		return true
	}
	return false
}

// FeedItem is one unit of a paginated feed: a reel, a post or a story.
// Items are immutable once fetched apart from the optimistic like fields.
type FeedItem struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
	MediaRef     string    `json:"media_ref"`
	StreamID     string    `json:"stream_id,omitempty"`
	ImageRefs    []string  `json:"image_refs,omitempty"`
	Title        string    `json:"title,omitempty"`
	Caption      string    `json:"caption,omitempty"`
	AuthorName   string    `json:"author_name,omitempty"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
	LikeCount    int64     `json:"like_count"`
	Liked        bool      `json:"liked"`
}

// HasValidMedia is true only if the media reference is non-empty after trimming
func (i FeedItem) HasValidMedia() bool {
	return strings.TrimSpace(i.MediaRef) != ""
}

// IsVideo reports whether the item carries a stream that can be played
func (i FeedItem) IsVideo() bool {
	return strings.TrimSpace(i.StreamID) != ""
}

// Playable is what the playback gate checks before letting an item autoplay
func (i FeedItem) Playable() bool {
	return i.HasValidMedia() && i.IsVideo()
}
