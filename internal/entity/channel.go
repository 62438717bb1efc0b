package entity

import "github.com/mbeoliero/huddle/pkg/constant"

// Channel represents a many-to-many conversation with a title
type Channel struct {
	Id            string `json:"id" gorm:"column:id;primaryKey;size:64"`
	Title         string `json:"title" gorm:"column:title;size:128;uniqueIndex:uk_channel_title"`
	Description   string `json:"description" gorm:"column:description"`
	Status        int32  `json:"status" gorm:"column:status"`
	CreatorUserId string `json:"creator_user_id" gorm:"column:creator_user_id"`
	CreatedAt     int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt     int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Channel
func (Channel) TableName() string {
	return "channels"
}

// IsNormal checks if channel is open for messages
func (c *Channel) IsNormal() bool {
	return c.Status == constant.ChannelStatusNormal
}

// ConversationId returns the channel's conversation Id
func (c *Channel) ConversationId() string {
	return GenChannelConversationId(c.Id)
}

// ChannelMember represents a user's membership in a channel
type ChannelMember struct {
	Id        int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ChannelId string `json:"channel_id" gorm:"column:channel_id;size:64;uniqueIndex:uk_channel_user,priority:1"`
	UserId    string `json:"user_id" gorm:"column:user_id;size:64;uniqueIndex:uk_channel_user,priority:2;index:idx_member_user"`
	RoleLevel int32  `json:"role_level" gorm:"column:role_level"`
	Status    int32  `json:"status" gorm:"column:status"`
	JoinedAt  int64  `json:"joined_at" gorm:"column:joined_at"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for ChannelMember
func (ChannelMember) TableName() string {
	return "channel_members"
}

// IsNormal checks if member status is normal
func (cm *ChannelMember) IsNormal() bool {
	return cm.Status == constant.ChannelMemberStatusNormal
}

// ChannelMemberInfo represents member info in channel, the mention roster entry
type ChannelMemberInfo struct {
	UserId    string `json:"user_id"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar"`
	RoleLevel int32  `json:"role_level"`
	JoinedAt  int64  `json:"joined_at"`
}

// ChannelInfo represents channel info for API response
type ChannelInfo struct {
	Id            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Status        int32  `json:"status"`
	CreatorUserId string `json:"creator_user_id"`
	MemberCount   int    `json:"member_count"`
	CreatedAt     int64  `json:"created_at"`
}

// ToChannelInfo converts Channel to ChannelInfo
func (c *Channel) ToChannelInfo(memberCount int) *ChannelInfo {
	return &ChannelInfo{
		Id:            c.Id,
		Title:         c.Title,
		Description:   c.Description,
		Status:        c.Status,
		CreatorUserId: c.CreatorUserId,
		MemberCount:   memberCount,
		CreatedAt:     c.CreatedAt,
	}
}
