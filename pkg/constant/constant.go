package constant

// Session types
const (
	SessionTypeDirect  = 1 // Direct message between two users
	SessionTypeChannel = 2 // Channel message
)

// Message types
const (
	MsgTypeText   = 1
	MsgTypeSystem = 10 // System-authored notice (mention notifications)
)

// Conversation scopes, persisted on counters and cursors
const (
	ScopeChannel = "channel"
	ScopeDirect  = "dm"
)

// SystemUserId is the reserved author of system-generated messages.
// It never logs in and is never listed in rosters.
const SystemUserId = "system"

// Channel status
const (
	ChannelStatusNormal   = 0
	ChannelStatusArchived = 1
)

// Channel member status
const (
	ChannelMemberStatusNormal = 0 // Normal
	ChannelMemberStatusLeft   = 1 // Left
)

// Channel member role levels
const (
	RoleLevelMember = 0
	RoleLevelOwner  = 2
)

// Platform Ids
const (
	PlatformIdUnknown = 0
	PlatformIdIOS     = 1
	PlatformIdAndroid = 2
	PlatformIdWindows = 3
	PlatformIdMacOS   = 4
	PlatformIdWeb     = 5
)

// PlatformIdToName converts platform Id to name
func PlatformIdToName(platformId int) string {
	switch platformId {
	case PlatformIdIOS:
		return "iOS"
	case PlatformIdAndroid:
		return "Android"
	case PlatformIdWindows:
		return "Windows"
	case PlatformIdMacOS:
		return "macOS"
	case PlatformIdWeb:
		return "Web"
	default:
		return "Unknown"
	}
}

// ChannelMembersCacheTTL is how long a cached channel roster lives, in seconds
const ChannelMembersCacheTTL = 300

// Conversation Id prefixes
const (
	DirectConversationPrefix  = "dm_"
	ChannelConversationPrefix = "ch_"
)

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyToken          = "token:"             // token:{user_id}:{platform_id}
	redisKeyOnline         = "online:%s"          // online:{user_id}
	redisKeyChannelMembers = "channel:members:%s" // channel:members:{channel_id}
	redisKeyWatchChannel   = "watch:%s"           // watch:{topic}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "huddle:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyToken() string          { return redisKeyPrefix + redisKeyToken }
func RedisKeyOnline() string         { return redisKeyPrefix + redisKeyOnline }
func RedisKeyChannelMembers() string { return redisKeyPrefix + redisKeyChannelMembers }
func RedisKeyWatchChannel() string   { return redisKeyPrefix + redisKeyWatchChannel }
