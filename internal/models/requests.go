package models

// CreateFeedRequest mounts a new reel or post feed session
type CreateFeedRequest struct {
	Kind     Kind `json:"kind" validate:"required,oneof=reel post"`
	PageSize int  `json:"page_size,omitempty" validate:"omitempty,min=1,max=50"`
}

// CreateStoriesRequest mounts a story viewer session
type CreateStoriesRequest struct {
	PageSize int `json:"page_size,omitempty" validate:"omitempty,min=1,max=100"`
}

// ScrollRequest reports how far the rendered list bottom is from the viewport
type ScrollRequest struct {
	DistanceFromBottom float64 `json:"distance_from_bottom" validate:"gte=0"`
}

// VisibilityEntry is the geometry of one rendered item, relative to the viewport top
type VisibilityEntry struct {
	Index  int     `json:"index" validate:"gte=0"`
	Top    float64 `json:"top"`
	Height float64 `json:"height" validate:"gt=0"`
}

// VisibilityRequest carries one batch of intersection changes
type VisibilityRequest struct {
	ViewportHeight float64           `json:"viewport_height" validate:"gt=0"`
	Entries        []VisibilityEntry `json:"entries" validate:"dive"`
}

// PlaybackReport is sent by the client after it asked the media element to play
type PlaybackReport struct {
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty" validate:"max=200"`
}

// ImageErrorRequest reports that an image URL failed to load
type ImageErrorRequest struct {
	Image int `json:"image" validate:"gte=0"`
}

// OpenStoryRequest opens the viewer on a story
type OpenStoryRequest struct {
	StoryID string `json:"story_id" validate:"required"`
}

// TapRequest is a tap on the story surface
type TapRequest struct {
	X     float64 `json:"x" validate:"gte=0"`
	Width float64 `json:"width" validate:"gt=0"`
}

// ImageQuery selects the CDN transform for an image address
type ImageQuery struct {
	Preset string `query:"preset" validate:"omitempty,alphanum,max=32"`
	Width  int    `query:"w" validate:"omitempty,min=1,max=4096"`
	Height int    `query:"h" validate:"omitempty,min=1,max=4096"`
	Fit    string `query:"fit" validate:"omitempty,oneof=scale-down contain cover crop pad"`
}
