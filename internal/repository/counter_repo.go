package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mbeoliero/huddle/internal/entity"
)

// CounterRepo is the repository for conversation counters
type CounterRepo struct {
	db *gorm.DB
}

// NewCounterRepo creates a new CounterRepo
func NewCounterRepo(db *gorm.DB) *CounterRepo {
	return &CounterRepo{db: db}
}

// EnsureExistsWithTx creates the counter at zero if it is missing
func (r *CounterRepo) EnsureExistsWithTx(ctx context.Context, tx *gorm.DB, conversationId string) error {
	counter := &entity.ConversationCounter{
		ConversationId: conversationId,
		Scope:          entity.ScopeOf(conversationId),
	}

	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}},
		DoNothing: true,
	}).Create(counter).Error
}

// IncrementWithTx advances the counter by one and returns the new value. The
// row stays locked until tx ends, so concurrent senders serialize and the
// counter only moves when the message insert in the same tx commits.
func (r *CounterRepo) IncrementWithTx(ctx context.Context, tx *gorm.DB, conversationId string, at int64) (int64, error) {
	if err := r.EnsureExistsWithTx(ctx, tx, conversationId); err != nil {
		return 0, err
	}

	var counter entity.ConversationCounter
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("conversation_id = ?", conversationId).
		First(&counter).Error
	if err != nil {
		return 0, err
	}

	next := counter.MessageCount + 1
	err = tx.WithContext(ctx).
		Model(&entity.ConversationCounter{}).
		Where("conversation_id = ?", conversationId).
		Updates(map[string]interface{}{
			"message_count":   next,
			"last_message_at": gorm.Expr("GREATEST(last_message_at, ?)", at),
		}).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

// GetCounter gets a counter; a missing counter returns nil without error
func (r *CounterRepo) GetCounter(ctx context.Context, conversationId string) (*entity.ConversationCounter, error) {
	var counter entity.ConversationCounter
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationId).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &counter, nil
}

// GetCounters gets counters keyed by conversation Id; missing ones are absent
func (r *CounterRepo) GetCounters(ctx context.Context, conversationIds []string) (map[string]*entity.ConversationCounter, error) {
	result := make(map[string]*entity.ConversationCounter, len(conversationIds))
	if len(conversationIds) == 0 {
		return result, nil
	}

	var counters []*entity.ConversationCounter
	err := r.db.WithContext(ctx).Where("conversation_id IN ?", conversationIds).Find(&counters).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counters {
		result[c.ConversationId] = c
	}
	return result, nil
}
