package local

// Origin-wide keys.
const (
	KeyChatSessions = "custompc_chat_sessions"
	KeyActiveUsers  = "custompc_active_users"
	KeyAdminChats   = "custompc_admin_chats"
	KeySubmissions  = "custompc_submissions"
	KeyVisitors     = "custompc_visitors"
)

// Per-client keys, stored under a client scope.
const (
	KeyCart             = "cart"
	KeyCartOwner        = "cart_synced_uid"
	KeyAdminSession     = "custompc_admin_session"
	KeyFailedAttempts   = "admin_failed_attempts"
	KeyLockoutUntil     = "admin_lockout_until"
	KeyAnonymousID      = "custompc_anon_id"
	KeyAnnouncementSeen = "announcementBarClosed"
)

const (
	userChatsPrefix    = "userChats_"
	buildReviewsPrefix = "buildReviews_"
	lastNotifiedPrefix = "last_notified_"
	unreadPrefix       = "unread_messages_"
	cloudCartPrefix    = "carts/"
)

// BuildReviewsPrefix is the key prefix shared by every build's review list.
const BuildReviewsPrefix = buildReviewsPrefix

func KeyUserChats(username string) string { return userChatsPrefix + username }

func KeyBuildReviews(buildID string) string { return buildReviewsPrefix + buildID }

func KeyLastNotified(chatID string) string { return lastNotifiedPrefix + chatID }

func KeyUnread(username string) string { return unreadPrefix + username }

func KeyCloudCart(uid string) string { return cloudCartPrefix + uid }
