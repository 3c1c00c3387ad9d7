package models

import (
	"encoding/json"
	"fmt"
	"html"
	"maps"
	"sync"
	"time"
)

const isoLayout = "2006-01-02T15:04:05.000Z"

// Reserved attribute keys
const (
	KeyObjectID    = "objectId"
	KeyUsername    = "username"
	KeyEmail       = "email"
	KeyCreatedAt   = "createdAt"
	KeyUpdatedAt   = "updatedAt"
	KeyLastLoginAt = "lastLoginAt"
)

// User is a live account session as handed out by the account backend.
// Its mutable state is safe for concurrent use; concurrent writers are not
// coordinated and the last write wins.
type User struct {
	mu  sync.RWMutex
	rec UserRecord
}

// NewUser builds a session object from a persisted record.
func NewUser(rec UserRecord) *User {
	u := &User{rec: rec}
	if u.rec.Attributes == nil {
		u.rec.Attributes = make(map[string]any)
	}
	if u.rec.Files == nil {
		u.rec.Files = make(map[string]File)
	}
	return u
}

func (u *User) ID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.rec.ID
}

func (u *User) Username() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.rec.Username
}

func (u *User) Email() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.rec.Email
}

func (u *User) CreatedAt() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.rec.CreatedAt
}

func (u *User) SessionToken() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.rec.SessionToken
}

func (u *User) SetSessionToken(token string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rec.SessionToken = token
}

// Get returns the value stored under key: a reserved field, an attribute or
// a File. Unknown keys return nil.
func (u *User) Get(key string) any {
	u.mu.RLock()
	defer u.mu.RUnlock()

	switch key {
	case KeyObjectID:
		return u.rec.ID
	case KeyUsername:
		return u.rec.Username
	case KeyEmail:
		return u.rec.Email
	case KeyCreatedAt:
		return u.rec.CreatedAt
	case KeyUpdatedAt:
		return u.rec.UpdatedAt
	}
	if f, ok := u.rec.Files[key]; ok {
		return f
	}
	return u.rec.Attributes[key]
}

// Escape returns the HTML-escaped string form of the value under key, or ""
// when nothing is stored there.
func (u *User) Escape(key string) string {
	v := u.Get(key)
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return html.EscapeString(t)
	case time.Time:
		return html.EscapeString(t.UTC().Format(isoLayout))
	case File:
		return html.EscapeString(t.URL)
	default:
		return html.EscapeString(fmt.Sprint(t))
	}
}

// GetHTTPSURL returns the https URL of the file stored under key, or "" when
// key does not hold a file.
func (u *User) GetHTTPSURL(key string) string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	f, ok := u.rec.Files[key]
	if !ok {
		return ""
	}
	return f.HTTPSURL()
}

// Set stores value under key. The username is routed to its field; every
// other key, reserved or not, lands in the attributes.
func (u *User) Set(key string, value any) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if key == KeyUsername {
		if s, ok := value.(string); ok {
			u.rec.Username = s
			return
		}
	}
	delete(u.rec.Files, key)
	u.rec.Attributes[key] = value
}

func (u *User) SetEmail(email string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rec.Email = email
}

// SetFile attaches file under key, replacing any attribute of that name.
func (u *User) SetFile(key string, file File) {
	u.mu.Lock()
	defer u.mu.Unlock()

	delete(u.rec.Attributes, key)
	file.Data = nil
	u.rec.Files[key] = file
}

// Touch records a persisted write.
func (u *User) Touch(at time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rec.UpdatedAt = at
}

// Record returns a copy of the user's persisted shape.
func (u *User) Record() UserRecord {
	u.mu.RLock()
	defer u.mu.RUnlock()

	rec := u.rec
	rec.Attributes = maps.Clone(u.rec.Attributes)
	rec.Files = maps.Clone(u.rec.Files)
	return rec
}

func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Record())
}

// ToJSON renders the user as a flat plain object: reserved fields, then
// attributes and files keyed by name.
func (u *User) ToJSON() map[string]any {
	rec := u.Record()

	out := make(map[string]any, len(rec.Attributes)+len(rec.Files)+6)
	for k, v := range rec.Attributes {
		out[k] = plainValue(v)
	}
	for k, f := range rec.Files {
		out[k] = map[string]any{"__type": "File", "name": f.Name, "url": f.URL}
	}
	out[KeyObjectID] = rec.ID
	out[KeyUsername] = rec.Username
	out[KeyEmail] = rec.Email
	out[KeyCreatedAt] = rec.CreatedAt.UTC().Format(isoLayout)
	out[KeyUpdatedAt] = rec.UpdatedAt.UTC().Format(isoLayout)
	out["ACL"] = rec.ACL.ToJSON()
	return out
}

func plainValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return map[string]any{"__type": "Date", "iso": t.UTC().Format(isoLayout)}
	}
	return v
}
