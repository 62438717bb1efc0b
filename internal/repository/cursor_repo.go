package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mbeoliero/huddle/internal/entity"
)

// CursorRepo is the repository for read cursors
type CursorRepo struct {
	db *gorm.DB
}

// NewCursorRepo creates a new CursorRepo
func NewCursorRepo(db *gorm.DB) *CursorRepo {
	return &CursorRepo{db: db}
}

// Upsert creates the cursor or advances it. Both columns merge with GREATEST
// so a late, smaller write never moves the cursor backwards.
func (r *CursorRepo) Upsert(ctx context.Context, userId, conversationId string, count, at int64) error {
	cursor := &entity.ReadCursor{
		UserId:         userId,
		ConversationId: conversationId,
		Scope:          entity.ScopeOf(conversationId),
		LastReadCount:  count,
		LastReadAt:     at,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "conversation_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_read_count": gorm.Expr("GREATEST(last_read_count, ?)", count),
			"last_read_at":    gorm.Expr("GREATEST(last_read_at, ?)", at),
		}),
	}).Create(cursor).Error
}

// GetCursor gets a user's cursor; a missing cursor returns nil without error
func (r *CursorRepo) GetCursor(ctx context.Context, userId, conversationId string) (*entity.ReadCursor, error) {
	var cursor entity.ReadCursor
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ?", userId, conversationId).
		First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cursor, nil
}

// GetUserCursors gets every cursor of a user keyed by conversation Id
func (r *CursorRepo) GetUserCursors(ctx context.Context, userId string) (map[string]*entity.ReadCursor, error) {
	var cursors []*entity.ReadCursor
	err := r.db.WithContext(ctx).Where("user_id = ?", userId).Find(&cursors).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]*entity.ReadCursor, len(cursors))
	for _, c := range cursors {
		result[c.ConversationId] = c
	}
	return result, nil
}
