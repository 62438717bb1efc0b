package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/pkg/constant"
)

// ChannelRepo is the repository for channels and their members
type ChannelRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewChannelRepo creates a new ChannelRepo
func NewChannelRepo(db *gorm.DB, rdb *redis.Client) *ChannelRepo {
	return &ChannelRepo{db: db, rdb: rdb}
}

// CreateWithTx creates a new channel
func (r *ChannelRepo) CreateWithTx(ctx context.Context, tx *gorm.DB, channel *entity.Channel) error {
	now := entity.NowUnixMilli()
	channel.CreatedAt = now
	channel.UpdatedAt = now
	return tx.WithContext(ctx).Create(channel).Error
}

// GetById gets channel by Id
func (r *ChannelRepo) GetById(ctx context.Context, id string) (*entity.Channel, error) {
	var channel entity.Channel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// ExistsByTitle checks whether a channel already uses title
func (r *ChannelRepo) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Channel{}).Where("title = ?", title).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListNormal lists every open channel, the roster for #channel mentions
func (r *ChannelRepo) ListNormal(ctx context.Context) ([]*entity.Channel, error) {
	var channels []*entity.Channel
	err := r.db.WithContext(ctx).
		Where("status = ?", constant.ChannelStatusNormal).
		Order("title ASC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// AddMemberWithTx adds a member, restoring the row if the user left before
func (r *ChannelRepo) AddMemberWithTx(ctx context.Context, tx *gorm.DB, member *entity.ChannelMember) error {
	now := entity.NowUnixMilli()
	member.CreatedAt = now
	member.UpdatedAt = now

	result := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     constant.ChannelMemberStatusNormal,
			"joined_at":  member.JoinedAt,
			"role_level": member.RoleLevel,
			"updated_at": now,
		}),
	}).Create(member)
	if result.Error != nil {
		return result.Error
	}

	r.invalidateMemberCache(ctx, member.ChannelId)
	return nil
}

// GetMember gets a channel member; a missing member returns nil without error
func (r *ChannelRepo) GetMember(ctx context.Context, channelId, userId string) (*entity.ChannelMember, error) {
	var member entity.ChannelMember
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelId, userId).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetActiveMembers gets all active members of a channel
func (r *ChannelRepo) GetActiveMembers(ctx context.Context, channelId string) ([]*entity.ChannelMember, error) {
	var members []*entity.ChannelMember
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND status = ?", channelId, constant.ChannelMemberStatusNormal).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// GetActiveMemberUserIds gets user Ids of all active members, served from the
// Redis roster cache when possible
func (r *ChannelRepo) GetActiveMemberUserIds(ctx context.Context, channelId string) ([]string, error) {
	key := fmt.Sprintf(constant.RedisKeyChannelMembers(), channelId)
	cached, err := r.rdb.SMembers(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		log.CtxWarn(ctx, "read channel roster cache failed: channel_id=%s, error=%v", channelId, err)
	}

	var userIds []string
	err = r.db.WithContext(ctx).
		Model(&entity.ChannelMember{}).
		Where("channel_id = ? AND status = ?", channelId, constant.ChannelMemberStatusNormal).
		Pluck("user_id", &userIds).Error
	if err != nil {
		return nil, err
	}

	if len(userIds) > 0 {
		members := make([]interface{}, len(userIds))
		for i, id := range userIds {
			members[i] = id
		}
		pipe := r.rdb.TxPipeline()
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, constant.ChannelMembersCacheTTL*time.Second)
		if _, err = pipe.Exec(ctx); err != nil {
			log.CtxWarn(ctx, "fill channel roster cache failed: channel_id=%s, error=%v", channelId, err)
		}
	}
	return userIds, nil
}

// IsActiveMember checks if user is an active member of the channel
func (r *ChannelRepo) IsActiveMember(ctx context.Context, channelId, userId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ChannelMember{}).
		Where("channel_id = ? AND user_id = ? AND status = ?", channelId, userId, constant.ChannelMemberStatusNormal).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateMemberStatusWithTx updates member status
func (r *ChannelRepo) UpdateMemberStatusWithTx(ctx context.Context, tx *gorm.DB, channelId, userId string, status int32) error {
	err := tx.WithContext(ctx).
		Model(&entity.ChannelMember{}).
		Where("channel_id = ? AND user_id = ?", channelId, userId).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": entity.NowUnixMilli(),
		}).Error
	if err != nil {
		return err
	}

	r.invalidateMemberCache(ctx, channelId)
	return nil
}

// GetUserChannels gets all channels that user is an active member of
func (r *ChannelRepo) GetUserChannels(ctx context.Context, userId string) ([]*entity.Channel, error) {
	var channels []*entity.Channel
	err := r.db.WithContext(ctx).
		Joins("JOIN channel_members ON channel_members.channel_id = channels.id").
		Where("channel_members.user_id = ? AND channel_members.status = ?", userId, constant.ChannelMemberStatusNormal).
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// invalidateMemberCache invalidates the channel roster cache
func (r *ChannelRepo) invalidateMemberCache(ctx context.Context, channelId string) {
	key := fmt.Sprintf(constant.RedisKeyChannelMembers(), channelId)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		log.CtxWarn(ctx, "invalidate channel roster cache failed: channel_id=%s, error=%v", channelId, err)
	}
}
