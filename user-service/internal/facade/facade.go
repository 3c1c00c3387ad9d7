// Package facade exposes the account backend's user operations on the
// in-process event bus.
package facade

import (
	"context"
	"log"
	"time"

	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/events"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
)

// CurrentUserTTL is how long the data controller keeps the current user.
const CurrentUserTTL = 60 * time.Second

// Bus is the publish/subscribe surface the facade registers on and emits to.
type Bus interface {
	On(name string, handler events.BusHandler) events.Subscription
	Off(sub events.Subscription)
	Trigger(ctx context.Context, name string, payload any)
	TriggerFirst(ctx context.Context, name string, payload any) (any, error)
}

// SessionProvider reports the backend's current session, if any.
type SessionProvider interface {
	CurrentSession() (*models.User, bool)
}

// Backend is the remote account service.
type Backend interface {
	SessionProvider
	LogIn(ctx context.Context, username, password string) (*models.User, error)
	LogOut(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	Save(ctx context.Context, user *models.User) error
	SignUp(ctx context.Context, username, password, email string, acl models.ACL) (*models.User, error)
	SaveAll(ctx context.Context, files []models.File) ([]models.File, error)
}

// Recorder observes bus dispatches.
type Recorder interface {
	RecordDispatch(event, status string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordDispatch(string, string, time.Duration) {}

type Option func(*Facade)

// WithClock overrides the time source used for lastLoginAt.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) { f.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(f *Facade) { f.recorder = r }
}

// Facade translates bus events into backend calls. It keeps no session of its
// own: every operation asks the backend for the current session.
type Facade struct {
	bus      Bus
	backend  Backend
	now      func() time.Time
	recorder Recorder
	subs     []events.Subscription
}

// New registers the facade on bus. When the backend already has a session it
// is handed to the data controller and announced as the current identity.
func New(ctx context.Context, bus Bus, backend Backend, opts ...Option) *Facade {
	f := &Facade{
		bus:      bus,
		backend:  backend,
		now:      time.Now,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(f)
	}

	f.register()

	if user, ok := backend.CurrentSession(); ok {
		f.cacheCurrent(ctx, user)
		f.emitIdentity(ctx, user)
	}
	return f
}

// Close revokes every subscription made by New.
func (f *Facade) Close() {
	for _, sub := range f.subs {
		f.bus.Off(sub)
	}
	f.subs = nil
}

func (f *Facade) register() {
	handlers := map[string]events.BusHandler{
		events.UserCurrent:          f.onCurrent,
		events.UserEscape:           f.onEscape,
		events.UserGet:              f.onGet,
		events.UserGetHTTPSURL:      f.onGetHTTPSURL,
		events.UserIsCurrent:        f.onIsCurrent,
		events.UserLogin:            f.onLogin,
		events.UserLogout:           f.onLogout,
		events.UserPasswordReset:    f.onPasswordReset,
		events.UserSave:             f.onSave,
		events.UserSet:              f.onSet,
		events.UserSetAndSave:       f.onSetAndSave,
		events.UserSetAndSaveImages: f.onSetAndSaveImages,
		events.UserSignup:           f.onSignup,
		events.UserToJSON:           f.onToJSON,
	}
	for name, h := range handlers {
		f.subs = append(f.subs, f.bus.On(name, f.instrument(name, h)))
	}
}

func (f *Facade) instrument(name string, h events.BusHandler) events.BusHandler {
	return func(ctx context.Context, payload any) (any, error) {
		start := time.Now()
		v, err := h(ctx, payload)
		status := "ok"
		if err != nil {
			status = "error"
		}
		f.recorder.RecordDispatch(name, status, time.Since(start))
		return v, err
	}
}

func (f *Facade) cacheCurrent(ctx context.Context, user *models.User) {
	entry := events.CacheEntry{Key: events.CurrentUserKey, Value: user, TTL: CurrentUserTTL}
	if _, err := f.bus.TriggerFirst(ctx, events.DataCtrlAdd, entry); err != nil {
		log.Printf("Failed to cache current user %s: %v", user.ID(), err)
	}
}

func (f *Facade) emitIdentity(ctx context.Context, user *models.User) {
	f.bus.Trigger(ctx, events.UserIdentity, events.IdentityEvent{
		Email:     user.Email(),
		Name:      user.Escape(models.KeyUsername),
		CreatedAt: user.CreatedAt().UnixMilli(),
		ID:        user.ID(),
	})
}
