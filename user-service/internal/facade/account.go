package facade

import (
	"context"
	"log"

	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/cqrs"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/deferred"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/events"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
)

// IsCurrentUser reports whether the backend has a current session.
func (f *Facade) IsCurrentUser() bool {
	_, ok := f.backend.CurrentSession()
	return ok
}

func (f *Facade) GetCurrentUser() (*models.User, bool) {
	return f.backend.CurrentSession()
}

// LogInUser authenticates with the backend. The result resolves true when a
// session was established and false when the backend returned none.
func (f *Facade) LogInUser(ctx context.Context, cmd cqrs.LoginCommand) (*deferred.Result[bool], error) {
	return deferred.Go(func() (bool, error) {
		user, err := f.backend.LogIn(ctx, cmd.Name, cmd.Password)
		if err != nil {
			return false, err
		}
		if user == nil {
			return false, nil
		}
		f.establish(ctx, user)
		return true, nil
	}), nil
}

// SignUpUser registers a new account and, on success, behaves like LogInUser.
func (f *Facade) SignUpUser(ctx context.Context, cmd cqrs.SignUpCommand) (*deferred.Result[bool], error) {
	return deferred.Go(func() (bool, error) {
		user, err := f.backend.SignUp(ctx, cmd.Name, cmd.Password, cmd.Email, models.NewDefaultACL())
		if err != nil {
			return false, err
		}
		if user == nil {
			return false, nil
		}
		f.establish(ctx, user)
		return true, nil
	}), nil
}

func (f *Facade) establish(ctx context.Context, user *models.User) {
	f.cacheCurrent(ctx, user)

	user.Set(models.KeyLastLoginAt, f.now().UTC())
	go func(ctx context.Context) {
		if err := f.backend.Save(ctx, user); err != nil {
			log.Printf("Failed to persist lastLoginAt for %s: %v", user.ID(), err)
		}
	}(context.WithoutCancel(ctx))

	f.emitIdentity(ctx, user)
}

// LogOutUser ends the backend session and drops the cached current user.
func (f *Facade) LogOutUser(ctx context.Context) *deferred.Result[bool] {
	return deferred.Go(func() (bool, error) {
		if err := f.backend.LogOut(ctx); err != nil {
			return false, err
		}
		if _, err := f.bus.TriggerFirst(ctx, events.DataCtrlRemove, events.CurrentUserKey); err != nil {
			log.Printf("Failed to drop cached current user: %v", err)
		}
		f.bus.Trigger(ctx, events.UserLoggedOut, events.LoggedOutEvent{})
		return true, nil
	})
}

// RequestPasswordReset asks the backend to mail a reset link, optionally to
// the current user's address.
func (f *Facade) RequestPasswordReset(ctx context.Context, cmd cqrs.PasswordResetCommand) (*deferred.Result[bool], error) {
	const op = "requestPasswordReset"

	if cmd.UseCurrentUserEmail {
		user, ok := f.backend.CurrentSession()
		if !ok {
			return nil, noSession(op)
		}
		cmd.Email = user.Email()
	}

	return deferred.Go(func() (bool, error) {
		if err := f.backend.RequestPasswordReset(ctx, cmd.Email); err != nil {
			return false, err
		}
		return true, nil
	}), nil
}
