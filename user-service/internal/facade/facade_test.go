package facade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/cqrs"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/events"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
)

var facadeEvents = []string{
	events.UserCurrent, events.UserEscape, events.UserGet, events.UserGetHTTPSURL,
	events.UserIsCurrent, events.UserLogin, events.UserLogout, events.UserPasswordReset,
	events.UserSave, events.UserSet, events.UserSetAndSave, events.UserSetAndSaveImages,
	events.UserSignup, events.UserToJSON,
}

var observedEvents = []string{
	events.DataCtrlAdd, events.DataCtrlRemove,
	events.UserIdentity, events.UserLoggedOut, events.UserImagesChanged,
}

type fixture struct {
	bus     *events.Bus
	backend *mockBackend
	seen    *busRecorder
	facade  *Facade
}

func newFixture(t *testing.T, current *models.User) *fixture {
	t.Helper()
	bus := events.NewBus()
	backend := newMockBackend(current)
	seen := recordBus(bus, observedEvents...)
	f := New(context.Background(), bus, backend, WithClock(func() time.Time { return testCreatedAt.Add(time.Hour) }))
	t.Cleanup(f.Close)
	return &fixture{bus: bus, backend: backend, seen: seen, facade: f}
}

func awaitSave(t *testing.T, b *mockBackend) *models.User {
	t.Helper()
	select {
	case u := <-b.saved:
		return u
	case <-time.After(time.Second):
		t.Fatal("expected the backend to persist the user")
		return nil
	}
}

func TestNew(t *testing.T) {
	t.Run("announces an existing session", func(t *testing.T) {
		fx := newFixture(t, newTestUser("alice@example.com"))

		adds := fx.seen.Get(events.DataCtrlAdd)
		require.Len(t, adds, 1)
		entry := adds[0].(events.CacheEntry)
		assert.Equal(t, events.CurrentUserKey, entry.Key)
		assert.Equal(t, 60*time.Second, entry.TTL)

		ids := fx.seen.Get(events.UserIdentity)
		require.Len(t, ids, 1)
		assert.Equal(t, events.IdentityEvent{
			Email:     "alice@example.com",
			Name:      "alice",
			CreatedAt: testCreatedAt.UnixMilli(),
			ID:        "usr-001",
		}, ids[0])
	})

	t.Run("stays quiet without a session", func(t *testing.T) {
		fx := newFixture(t, nil)

		assert.Empty(t, fx.seen.Get(events.DataCtrlAdd))
		assert.Empty(t, fx.seen.Get(events.UserIdentity))
	})

	t.Run("registers once and revokes on close", func(t *testing.T) {
		fx := newFixture(t, nil)
		for _, name := range facadeEvents {
			assert.Equal(t, 1, fx.bus.Count(name), name)
		}

		fx.facade.Close()
		for _, name := range facadeEvents {
			assert.Equal(t, 0, fx.bus.Count(name), name)
		}
	})
}

func TestOperationsRequireSession(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		call func(f *Facade) error
	}{
		{"escape", func(f *Facade) error { _, err := f.Escape("username"); return err }},
		{"get", func(f *Facade) error { _, err := f.Get("username"); return err }},
		{"getHTTPSUrl", func(f *Facade) error { _, err := f.GetHTTPSURL("image64px"); return err }},
		{"save", func(f *Facade) error { _, err := f.Save(ctx); return err }},
		{"set", func(f *Facade) error { return f.Set(map[string]any{"nickname": "x"}) }},
		{"setAndSave", func(f *Facade) error { _, err := f.SetAndSave(ctx, map[string]any{"nickname": "x"}); return err }},
		{"setAndSaveImages", func(f *Facade) error { _, err := f.SetAndSaveImages(ctx, []models.Image{testImage(64)}); return err }},
		{"toJSON", func(f *Facade) error { _, err := f.ToJSON(); return err }},
		{"requestPasswordReset", func(f *Facade) error {
			_, err := f.RequestPasswordReset(ctx, cqrs.PasswordResetCommand{UseCurrentUserEmail: true})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, nil)

			err := tt.call(fx.facade)

			assert.ErrorIs(t, err, ErrNoSession)
			assert.Empty(t, fx.backend.Calls())
		})
	}
}

func TestCurrentUserQueries(t *testing.T) {
	fx := newFixture(t, nil)
	assert.False(t, fx.facade.IsCurrentUser())
	_, ok := fx.facade.GetCurrentUser()
	assert.False(t, ok)

	user := newTestUser("alice@example.com")
	fx.backend.setCurrent(user)

	assert.True(t, fx.facade.IsCurrentUser())
	got, ok := fx.facade.GetCurrentUser()
	require.True(t, ok)
	assert.Same(t, user, got)
}

func TestAttributeReads(t *testing.T) {
	user := newTestUser("alice@example.com")
	user.Set("bio", "<b>hi</b>")
	user.SetFile("image64px", models.File{Name: "a_photo-64px.png", URL: "http://files.example.com/v1/files/a_photo-64px.png"})
	fx := newFixture(t, user)

	escaped, err := fx.facade.Escape("bio")
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", escaped)

	raw, err := fx.facade.Get("bio")
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", raw)

	url, err := fx.facade.GetHTTPSURL("image64px")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/v1/files/a_photo-64px.png", url)

	out, err := fx.facade.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, "usr-001", out["objectId"])

	var verr *ValidationError
	_, err = fx.facade.Get("")
	assert.ErrorAs(t, err, &verr)
	_, err = fx.facade.Escape("")
	assert.ErrorAs(t, err, &verr)
	_, err = fx.facade.GetHTTPSURL("")
	assert.ErrorAs(t, err, &verr)
}

func TestLogInUser(t *testing.T) {
	ctx := context.Background()

	t.Run("success establishes the session", func(t *testing.T) {
		fx := newFixture(t, nil)
		user := newTestUser("alice@example.com")
		fx.backend.loginFn = func(username, password string) (*models.User, error) {
			assert.Equal(t, "alice", username)
			assert.Equal(t, "securepass123", password)
			return user, nil
		}

		res, err := fx.facade.LogInUser(ctx, cqrs.LoginCommand{Name: "alice", Password: "securepass123"})
		require.NoError(t, err)
		ok, err := res.Await(ctx)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, fx.seen.Get(events.UserIdentity), 1)
		assert.Len(t, fx.seen.Get(events.DataCtrlAdd), 1)

		saved := awaitSave(t, fx.backend)
		assert.Same(t, user, saved)
		assert.Equal(t, testCreatedAt.Add(time.Hour), saved.Get(models.KeyLastLoginAt))
	})

	t.Run("backend rejection propagates unchanged", func(t *testing.T) {
		fx := newFixture(t, nil)
		invalid := errors.New("invalid username/password")
		fx.backend.loginFn = func(string, string) (*models.User, error) { return nil, invalid }

		res, err := fx.facade.LogInUser(ctx, cqrs.LoginCommand{Name: "alice", Password: "wrong"})
		require.NoError(t, err)
		_, err = res.Await(ctx)

		assert.Equal(t, invalid, err)
		assert.Empty(t, fx.seen.Get(events.UserIdentity))
		assert.Empty(t, fx.seen.Get(events.DataCtrlAdd))
	})

	t.Run("no session resolves false", func(t *testing.T) {
		fx := newFixture(t, nil)
		fx.backend.loginFn = func(string, string) (*models.User, error) { return nil, nil }

		res, err := fx.facade.LogInUser(ctx, cqrs.LoginCommand{Name: "alice", Password: "pw"})
		require.NoError(t, err)
		ok, err := res.Await(ctx)

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, fx.seen.Get(events.UserIdentity))
	})

	t.Run("lastLoginAt persist failure is not surfaced", func(t *testing.T) {
		fx := newFixture(t, nil)
		fx.backend.loginFn = func(string, string) (*models.User, error) { return newTestUser("a@b.com"), nil }
		fx.backend.saveFn = func(*models.User) error { return errors.New("write failed") }

		res, err := fx.facade.LogInUser(ctx, cqrs.LoginCommand{Name: "alice", Password: "pw"})
		require.NoError(t, err)
		ok, err := res.Await(ctx)

		require.NoError(t, err)
		assert.True(t, ok)
		awaitSave(t, fx.backend)
	})

	t.Run("empty credentials are left to the backend", func(t *testing.T) {
		fx := newFixture(t, nil)
		invalid := errors.New("username is required")
		fx.backend.loginFn = func(username, password string) (*models.User, error) {
			assert.Empty(t, username)
			return nil, invalid
		}

		res, err := fx.facade.LogInUser(ctx, cqrs.LoginCommand{Password: "pw"})
		require.NoError(t, err)
		_, err = res.Await(ctx)

		assert.ErrorIs(t, err, invalid)
		assert.Equal(t, []string{"login"}, fx.backend.Calls())
	})
}

func TestSignUpUser(t *testing.T) {
	ctx := context.Background()

	t.Run("success establishes the session", func(t *testing.T) {
		fx := newFixture(t, nil)
		var gotACL models.ACL
		fx.backend.signupFn = func(username, password, email string, acl models.ACL) (*models.User, error) {
			gotACL = acl
			return newTestUser(email), nil
		}

		res, err := fx.facade.SignUpUser(ctx, cqrs.SignUpCommand{Name: "alice", Password: "pw", Email: "alice@example.com"})
		require.NoError(t, err)
		ok, err := res.Await(ctx)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, models.NewDefaultACL(), gotACL)
		ids := fx.seen.Get(events.UserIdentity)
		require.Len(t, ids, 1)
		assert.Equal(t, "alice@example.com", ids[0].(events.IdentityEvent).Email)
		assert.Len(t, fx.seen.Get(events.DataCtrlAdd), 1)
		awaitSave(t, fx.backend)
	})

	t.Run("backend rejection propagates unchanged", func(t *testing.T) {
		fx := newFixture(t, nil)
		taken := errors.New("username taken")
		fx.backend.signupFn = func(string, string, string, models.ACL) (*models.User, error) { return nil, taken }

		res, err := fx.facade.SignUpUser(ctx, cqrs.SignUpCommand{Name: "alice", Password: "pw", Email: "alice@example.com"})
		require.NoError(t, err)
		_, err = res.Await(ctx)

		assert.ErrorIs(t, err, taken)
		assert.Empty(t, fx.seen.Get(events.UserIdentity))
	})

	t.Run("email is passed through unchanged", func(t *testing.T) {
		fx := newFixture(t, nil)
		var gotEmail string
		fx.backend.signupFn = func(_, _, email string, _ models.ACL) (*models.User, error) {
			gotEmail = email
			return nil, nil
		}

		res, err := fx.facade.SignUpUser(ctx, cqrs.SignUpCommand{Name: "alice", Password: "pw", Email: "nope"})
		require.NoError(t, err)
		ok, err := res.Await(ctx)

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "nope", gotEmail)
	})
}

func TestLogOutUser(t *testing.T) {
	ctx := context.Background()

	t.Run("success clears the cached user", func(t *testing.T) {
		fx := newFixture(t, newTestUser("alice@example.com"))

		ok, err := fx.facade.LogOutUser(ctx).Await(ctx)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []any{events.CurrentUserKey}, fx.seen.Get(events.DataCtrlRemove))
		assert.Len(t, fx.seen.Get(events.UserLoggedOut), 1)
		assert.False(t, fx.facade.IsCurrentUser())
	})

	t.Run("backend failure rejects", func(t *testing.T) {
		fx := newFixture(t, newTestUser("alice@example.com"))
		offline := errors.New("offline")
		fx.backend.logoutFn = func() error { return offline }

		_, err := fx.facade.LogOutUser(ctx).Await(ctx)

		assert.ErrorIs(t, err, offline)
		assert.Empty(t, fx.seen.Get(events.DataCtrlRemove))
		assert.Empty(t, fx.seen.Get(events.UserLoggedOut))
	})
}

func TestRequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("uses the current user's email", func(t *testing.T) {
		fx := newFixture(t, newTestUser("e@x.com"))

		res, err := fx.facade.RequestPasswordReset(ctx, cqrs.PasswordResetCommand{UseCurrentUserEmail: true})
		require.NoError(t, err)
		ok, err := res.Await(ctx)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"reset:e@x.com"}, fx.backend.Calls())
	})

	t.Run("explicit email", func(t *testing.T) {
		fx := newFixture(t, nil)

		res, err := fx.facade.RequestPasswordReset(ctx, cqrs.PasswordResetCommand{Email: "bob@example.com"})
		require.NoError(t, err)
		_, err = res.Await(ctx)

		require.NoError(t, err)
		assert.Equal(t, []string{"reset:bob@example.com"}, fx.backend.Calls())
	})

	t.Run("empty email is left to the backend", func(t *testing.T) {
		fx := newFixture(t, nil)

		res, err := fx.facade.RequestPasswordReset(ctx, cqrs.PasswordResetCommand{})
		require.NoError(t, err)
		_, err = res.Await(ctx)

		require.NoError(t, err)
		assert.Equal(t, []string{"reset:"}, fx.backend.Calls())
	})

	t.Run("backend failure rejects", func(t *testing.T) {
		fx := newFixture(t, nil)
		unknown := errors.New("no user found with email")
		fx.backend.resetFn = func(string) error { return unknown }

		res, err := fx.facade.RequestPasswordReset(ctx, cqrs.PasswordResetCommand{Email: "ghost@example.com"})
		require.NoError(t, err)
		_, err = res.Await(ctx)

		assert.ErrorIs(t, err, unknown)
	})
}

func TestSet(t *testing.T) {
	t.Run("routes email through the dedicated setter", func(t *testing.T) {
		user := newTestUser("old@example.com")
		fx := newFixture(t, user)

		err := fx.facade.Set(map[string]any{"email": "a@b.com", "nickname": "x"})

		require.NoError(t, err)
		rec := user.Record()
		assert.Equal(t, "a@b.com", rec.Email)
		assert.Equal(t, "x", rec.Attributes["nickname"])
		assert.NotContains(t, rec.Attributes, "email")
		assert.Empty(t, fx.backend.Calls())
	})

	t.Run("nil data is a validation error", func(t *testing.T) {
		fx := newFixture(t, newTestUser("a@b.com"))

		var verr *ValidationError
		assert.ErrorAs(t, fx.facade.Set(nil), &verr)
	})

	t.Run("non-string email value is rejected", func(t *testing.T) {
		user := newTestUser("a@b.com")
		fx := newFixture(t, user)

		var verr *ValidationError
		assert.ErrorAs(t, fx.facade.Set(map[string]any{"email": 5, "nickname": "x"}), &verr)
		assert.NotContains(t, user.Record().Attributes, "nickname")
	})

	t.Run("bus skips non-string keys", func(t *testing.T) {
		user := newTestUser("a@b.com")
		fx := newFixture(t, user)

		_, err := fx.bus.TriggerFirst(context.Background(), events.UserSet, map[any]any{1: "ignored", "nickname": "x"})

		require.NoError(t, err)
		rec := user.Record()
		assert.Equal(t, map[string]any{"nickname": "x"}, rec.Attributes)
	})
}

func TestSaveAndSetAndSave(t *testing.T) {
	ctx := context.Background()

	t.Run("save resolves true", func(t *testing.T) {
		fx := newFixture(t, newTestUser("a@b.com"))

		res, err := fx.facade.Save(ctx)
		require.NoError(t, err)
		ok, err := res.Await(ctx)

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("save failure rejects", func(t *testing.T) {
		fx := newFixture(t, newTestUser("a@b.com"))
		conflict := errors.New("conflict")
		fx.backend.saveFn = func(*models.User) error { return conflict }

		res, err := fx.facade.Save(ctx)
		require.NoError(t, err)
		_, err = res.Await(ctx)

		assert.ErrorIs(t, err, conflict)
	})

	t.Run("setAndSave applies then persists", func(t *testing.T) {
		user := newTestUser("a@b.com")
		fx := newFixture(t, user)

		res, err := fx.facade.SetAndSave(ctx, map[string]any{"nickname": "x"})
		require.NoError(t, err)
		ok, err := res.Await(ctx)

		require.NoError(t, err)
		assert.True(t, ok)
		saved := awaitSave(t, fx.backend)
		assert.Equal(t, "x", saved.Get("nickname"))
	})

	t.Run("setAndSave propagates set failure", func(t *testing.T) {
		fx := newFixture(t, newTestUser("a@b.com"))

		_, err := fx.facade.SetAndSave(ctx, nil)

		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Empty(t, fx.backend.Calls())
	})
}
