package models

import (
	"net/url"
	"slices"
	"time"
)

// ACL describes who may read and write an object. Readers and Writers hold
// user IDs; the public flags apply to everyone.
type ACL struct {
	PublicRead  bool     `json:"publicRead"`
	PublicWrite bool     `json:"publicWrite"`
	Readers     []string `json:"readers,omitempty"`
	Writers     []string `json:"writers,omitempty"`
}

// NewDefaultACL returns the ACL given to freshly registered accounts:
// publicly readable, writable by nobody until an owner is granted.
func NewDefaultACL() ACL {
	return ACL{PublicRead: true}
}

// WithOwner returns a copy of the ACL granting read and write to userID.
func (a ACL) WithOwner(userID string) ACL {
	out := ACL{PublicRead: a.PublicRead, PublicWrite: a.PublicWrite}
	out.Readers = appendUnique(slices.Clone(a.Readers), userID)
	out.Writers = appendUnique(slices.Clone(a.Writers), userID)
	return out
}

func (a ACL) CanWrite(userID string) bool {
	return a.PublicWrite || slices.Contains(a.Writers, userID)
}

// ToJSON renders the ACL keyed by principal ("*" for public access).
func (a ACL) ToJSON() map[string]any {
	out := make(map[string]any)
	perms := func(id string) map[string]bool {
		p, ok := out[id].(map[string]bool)
		if !ok {
			p = make(map[string]bool)
			out[id] = p
		}
		return p
	}
	if a.PublicRead {
		perms("*")["read"] = true
	}
	if a.PublicWrite {
		perms("*")["write"] = true
	}
	for _, id := range a.Readers {
		perms(id)["read"] = true
	}
	for _, id := range a.Writers {
		perms(id)["write"] = true
	}
	return out
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

// File is a stored binary attachment. Data is only populated on upload and
// when serving the file; it never appears in JSON.
type File struct {
	Name      string    `json:"name"`
	MimeType  string    `json:"mimeType"`
	URL       string    `json:"url"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// HTTPSURL returns the file URL with its scheme forced to https.
func (f File) HTTPSURL() string {
	if f.URL == "" {
		return ""
	}
	u, err := url.Parse(f.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = "https"
	return u.String()
}

// Image is an uploaded picture given as a data URL.
type Image struct {
	Src   string `json:"src"`
	Width int    `json:"width"`
}

// UserRecord is the persisted shape of a user account.
type UserRecord struct {
	ID           string          `json:"objectId"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	Attributes   map[string]any  `json:"attributes,omitempty"`
	Files        map[string]File `json:"files,omitempty"`
	ACL          ACL             `json:"ACL"`
	SessionToken string          `json:"sessionToken,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}
