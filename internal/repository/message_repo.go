package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mbeoliero/huddle/internal/entity"
)

// ErrCounterIncrement marks an Append that failed to advance the counter
var ErrCounterIncrement = errors.New("increment conversation counter")

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db       *gorm.DB
	counters *CounterRepo
}

// NewMessageRepo creates a new MessageRepo; counters allocates seqs in Append
func NewMessageRepo(db *gorm.DB, counters *CounterRepo) *MessageRepo {
	return &MessageRepo{db: db, counters: counters}
}

// Append advances the conversation counter and stores msg with the new
// value as its seq, in one transaction
func (r *MessageRepo) Append(ctx context.Context, msg *entity.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := r.counters.IncrementWithTx(ctx, tx, msg.ConversationId, msg.SendAt)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCounterIncrement, err)
		}
		msg.Seq = seq
		return r.CreateWithTx(ctx, tx, msg)
	})
}

// CreateWithTx creates a new message
func (r *MessageRepo) CreateWithTx(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	now := entity.NowUnixMilli()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	return tx.WithContext(ctx).Create(msg).Error
}

// GetByClientMsgId gets message by sender_id and client_msg_id (for idempotency check)
func (r *MessageRepo) GetByClientMsgId(ctx context.Context, senderId, clientMsgId string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND client_msg_id = ?", senderId, clientMsgId).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// GetById gets message by Id; a missing message returns nil without error
func (r *MessageRepo) GetById(ctx context.Context, id int64) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// PullMessages pulls messages in a conversation within seq range
// limit is capped at 100
func (r *MessageRepo) PullMessages(ctx context.Context, conversationId string, beginSeq, endSeq int64, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND seq >= ? AND seq <= ?", conversationId, beginSeq, endSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetLatestMessages gets the latest N messages in a conversation
func (r *MessageRepo) GetLatestMessages(ctx context.Context, conversationId string, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("seq DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse to ascending order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// GetThreadReplies gets replies of a thread in send order
func (r *MessageRepo) GetThreadReplies(ctx context.Context, threadId int64, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadId).
		Order("seq ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetThreadReplierIds gets the distinct senders of a thread's replies
func (r *MessageRepo) GetThreadReplierIds(ctx context.Context, threadId int64) ([]string, error) {
	var senderIds []string
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("thread_id = ?", threadId).
		Distinct("sender_id").
		Pluck("sender_id", &senderIds).Error
	if err != nil {
		return nil, err
	}
	return senderIds, nil
}
