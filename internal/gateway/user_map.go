package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"

	"github.com/mbeoliero/huddle/pkg/constant"
)

// UserMap tracks local connections per user and mirrors presence into Redis
type UserMap struct {
	mu    sync.RWMutex
	users map[string][]*Client // userId -> connections
	rdb   *redis.Client
}

// NewUserMap creates a new UserMap; rdb may be nil
func NewUserMap(rdb *redis.Client) *UserMap {
	return &UserMap{
		users: make(map[string][]*Client),
		rdb:   rdb,
	}
}

// Register adds a client and reports whether it is the user's first
func (m *UserMap) Register(ctx context.Context, client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients := m.users[client.UserId]
	m.users[client.UserId] = append(clients, client)
	m.setOnline(ctx, client.UserId)
	return len(clients) == 0
}

// Unregister removes a client and reports whether the user went offline
func (m *UserMap) Unregister(ctx context.Context, client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients, exists := m.users[client.UserId]
	if !exists {
		return false
	}

	remaining := make([]*Client, 0, len(clients))
	for _, c := range clients {
		if c.ConnId != client.ConnId {
			remaining = append(remaining, c)
		}
	}

	if len(remaining) == 0 {
		delete(m.users, client.UserId)
		m.setOffline(ctx, client.UserId)
		return true
	}
	m.users[client.UserId] = remaining
	return false
}

// GetAll gets a copy of the user's connections
func (m *UserMap) GetAll(userId string) ([]*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients, exists := m.users[userId]
	if !exists {
		return nil, false
	}
	result := make([]*Client, len(clients))
	copy(result, clients)
	return result, true
}

// UserIds returns the locally connected user Ids
func (m *UserMap) UserIds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userIds := make([]string, 0, len(m.users))
	for userId := range m.users {
		userIds = append(userIds, userId)
	}
	return userIds
}

// RefreshOnline extends the presence TTL of every locally connected user
func (m *UserMap) RefreshOnline(ctx context.Context) {
	if m.rdb == nil {
		return
	}
	userIds := m.UserIds()
	if len(userIds) == 0 {
		return
	}

	pipe := m.rdb.Pipeline()
	for _, userId := range userIds {
		pipe.Expire(ctx, onlineKey(userId), onlineTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.CtxWarn(ctx, "refresh online status failed: users=%d, error=%v", len(userIds), err)
	}
}

func (m *UserMap) setOnline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.Set(ctx, onlineKey(userId), "1", onlineTTL).Err(); err != nil {
		log.CtxWarn(ctx, "set online failed: user_id=%s, error=%v", userId, err)
	}
}

func (m *UserMap) setOffline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.Del(ctx, onlineKey(userId)).Err(); err != nil {
		log.CtxWarn(ctx, "set offline failed: user_id=%s, error=%v", userId, err)
	}
}

func onlineKey(userId string) string {
	return fmt.Sprintf(constant.RedisKeyOnline(), userId)
}
