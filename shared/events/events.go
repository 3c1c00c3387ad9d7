package events

import "time"

// Bus event names handled by the user facade
const (
	UserCurrent          = "user:current"
	UserEscape           = "user:escape"
	UserGet              = "user:get"
	UserGetHTTPSURL      = "user:get:https:url"
	UserIsCurrent        = "user:iscurrent"
	UserLogin            = "user:login"
	UserLogout           = "user:logout"
	UserPasswordReset    = "user:password:reset"
	UserSave             = "user:save"
	UserSet              = "user:set"
	UserSetAndSave       = "user:setandsave"
	UserSetAndSaveImages = "user:setandsave:images"
	UserSignup           = "user:signup"
	UserToJSON           = "user:tojson"
)

// Bus notifications emitted by the user facade
const (
	UserIdentity      = "user:current:identity"
	UserLoggedOut     = "user:current:loggedout"
	UserImagesChanged = "user:current:images:changed"
)

// Requests answered by the data controller
const (
	DataCtrlAdd    = "datactrl:add"
	DataCtrlRemove = "datactrl:remove"
	DataCtrlGet    = "datactrl:get"
)

// CurrentUserKey is the data controller key holding the current session.
const CurrentUserKey = UserCurrent

// Stream event types
const (
	PasswordResetRequested = "user.password_reset_requested"
)

// Stream names
const (
	UserEventsStream   = "user.events"
	UserCommandsStream = "user.commands"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// IdentityEvent summarises the public identity of the current user.
type IdentityEvent struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
	ID        string `json:"id"`
}

type ImagesChangedEvent struct {
	Keys []string `json:"keys"`
}

type LoggedOutEvent struct{}

// CacheEntry is the payload of a datactrl:add request.
type CacheEntry struct {
	Key   string        `json:"key"`
	Value any           `json:"value"`
	TTL   time.Duration `json:"ttl"`
}

type PasswordResetRequestedEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}
