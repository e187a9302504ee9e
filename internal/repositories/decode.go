package repositories

import (
	"strings"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field aliases accepted per logical attribute. Documents written by different
// clients over time do not agree on casing.
var (
	createdAtFields = []string{"createdAt", "created_at", "timestamp"}
	streamFields    = []string{"videoId", "streamId", "video_id", "stream_id"}
	imageListFields = []string{"imageIds", "images", "image_ids"}
	imageFields     = []string{"imageId", "image_id", "thumbnailId"}
	titleFields     = []string{"title", "name"}
	captionFields   = []string{"caption", "description", "content"}
	authorFields    = []string{"creatorName", "userName", "username", "author"}
	avatarFields    = []string{"creatorAvatar", "avatarId", "profileImageId"}
	likeFields      = []string{"likes", "likeCount", "likes_count"}
)

// LikesField is the counter field incremented on like toggles
const LikesField = "likes"

// DecodeItem maps a raw document into a FeedItem of the given kind
func DecodeItem(kind models.Kind, id string, fields map[string]interface{}) models.FeedItem {
	item := models.FeedItem{
		ID:           id,
		Kind:         kind,
		CreatedAt:    timeField(fields, createdAtFields),
		Title:        stringField(fields, titleFields),
		Caption:      stringField(fields, captionFields),
		AuthorName:   stringField(fields, authorFields),
		AuthorAvatar: stringField(fields, avatarFields),
		LikeCount:    intField(fields, likeFields),
	}

	images := stringsField(fields, imageListFields)
	if len(images) == 0 {
		if single := stringField(fields, imageFields); single != "" {
			images = []string{single}
		}
	}
	item.ImageRefs = images

	switch kind {
	case models.KindReel:
		item.StreamID = strings.TrimSpace(stringField(fields, streamFields))
		item.MediaRef = item.StreamID
	case models.KindPost:
		item.StreamID = strings.TrimSpace(stringField(fields, streamFields))
		if item.StreamID != "" {
			item.MediaRef = item.StreamID
		} else if len(images) > 0 {
			item.MediaRef = images[0]
		}
	case models.KindStory:
		if len(images) > 0 {
			item.MediaRef = images[0]
		}
	}
	return item
}

func lookup(fields map[string]interface{}, names []string) (interface{}, bool) {
	for _, n := range names {
		if v, ok := fields[n]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringField(fields map[string]interface{}, names []string) string {
	v, ok := lookup(fields, names)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func stringsField(fields map[string]interface{}, names []string) []string {
	v, ok := lookup(fields, names)
	if !ok {
		return nil
	}
	var raw []interface{}
	switch t := v.(type) {
	case []string:
		raw = make([]interface{}, len(t))
		for i := range t {
			raw[i] = t[i]
		}
	case []interface{}:
		raw = t
	case primitive.A:
		raw = []interface{}(t)
	default:
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s, ok := r.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intField(fields map[string]interface{}, names []string) int64 {
	v, ok := lookup(fields, names)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func timeField(fields map[string]interface{}, names []string) time.Time {
	v, ok := lookup(fields, names)
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case primitive.DateTime:
		return t.Time().UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}
		}
		return parsed.UTC()
	case int64:
		return time.UnixMilli(t).UTC()
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	}
	return time.Time{}
}
