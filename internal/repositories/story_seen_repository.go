package repositories

import (
	"context"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StorySeenRepository records which stories a viewer has had on screen
type StorySeenRepository interface {
	MarkSeen(ctx context.Context, viewerID, storyID string) error
	SeenStoryIDs(ctx context.Context, viewerID string, storyIDs []string) (map[string]bool, error)
}

// PostgresStorySeenRepository implements StorySeenRepository with GORM
type PostgresStorySeenRepository struct {
	db *gorm.DB
}

// NewPostgresStorySeenRepository creates a new PostgresStorySeenRepository
func NewPostgresStorySeenRepository(db *gorm.DB) *PostgresStorySeenRepository {
	return &PostgresStorySeenRepository{db: db}
}

// MarkSeen inserts a seen row; repeated calls for the same pair are ignored
func (r *PostgresStorySeenRepository) MarkSeen(ctx context.Context, viewerID, storyID string) error {
	seen := &models.StorySeen{
		StoryID:  storyID,
		ViewerID: viewerID,
		SeenAt:   time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(seen).Error
}

// SeenStoryIDs returns the subset of storyIDs the viewer has seen
func (r *PostgresStorySeenRepository) SeenStoryIDs(ctx context.Context, viewerID string, storyIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(storyIDs) == 0 {
		return result, nil
	}
	var seen []models.StorySeen
	err := r.db.WithContext(ctx).Where("viewer_id = ? AND story_id IN ?", viewerID, storyIDs).Find(&seen).Error
	if err != nil {
		return nil, err
	}
	for _, s := range seen {
		result[s.StoryID] = true
	}
	return result, nil
}

// NoopStorySeenRepository is used when no relational database is configured
type NoopStorySeenRepository struct{}

func (NoopStorySeenRepository) MarkSeen(context.Context, string, string) error { return nil }

func (NoopStorySeenRepository) SeenStoryIDs(context.Context, string, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}
