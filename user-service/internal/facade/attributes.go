package facade

import (
	"context"
	"fmt"

	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/deferred"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
)

func (f *Facade) session(op string) (*models.User, error) {
	user, ok := f.backend.CurrentSession()
	if !ok {
		return nil, noSession(op)
	}
	return user, nil
}

func (f *Facade) sessionForKey(op, key string) (*models.User, error) {
	if key == "" {
		return nil, &ValidationError{Op: op, Message: "key is empty"}
	}
	return f.session(op)
}

// Escape returns the HTML-escaped value of key on the current user.
func (f *Facade) Escape(key string) (string, error) {
	user, err := f.sessionForKey("escape", key)
	if err != nil {
		return "", err
	}
	return user.Escape(key), nil
}

func (f *Facade) Get(key string) (any, error) {
	user, err := f.sessionForKey("get", key)
	if err != nil {
		return nil, err
	}
	return user.Get(key), nil
}

// GetHTTPSURL returns the https URL of the file stored under key.
func (f *Facade) GetHTTPSURL(key string) (string, error) {
	user, err := f.sessionForKey("getHTTPSUrl", key)
	if err != nil {
		return "", err
	}
	return user.GetHTTPSURL(key), nil
}

// Set applies data to the current user in memory. The email key goes through
// the dedicated setter. Nothing is persisted until Save.
func (f *Facade) Set(data map[string]any) error {
	const op = "set"

	if data == nil {
		return &ValidationError{Op: op, Message: "data is undefined or null"}
	}
	user, err := f.session(op)
	if err != nil {
		return err
	}

	var email *string
	if v, ok := data[models.KeyEmail]; ok {
		s, isString := v.(string)
		if !isString {
			return &ValidationError{Op: op, Message: fmt.Sprintf("email is not a string: %T", v)}
		}
		email = &s
	}

	for key, value := range data {
		if key == models.KeyEmail {
			continue
		}
		user.Set(key, value)
	}
	if email != nil {
		user.SetEmail(*email)
	}
	return nil
}

// Save persists the current user.
func (f *Facade) Save(ctx context.Context) (*deferred.Result[bool], error) {
	user, err := f.session("save")
	if err != nil {
		return nil, err
	}
	return deferred.Go(func() (bool, error) {
		if err := f.backend.Save(ctx, user); err != nil {
			return false, err
		}
		return true, nil
	}), nil
}

func (f *Facade) SetAndSave(ctx context.Context, data map[string]any) (*deferred.Result[bool], error) {
	if err := f.Set(data); err != nil {
		return nil, err
	}
	return f.Save(ctx)
}

// ToJSON returns the plain-object form of the current user.
func (f *Facade) ToJSON() (map[string]any, error) {
	user, err := f.session("toJSON")
	if err != nil {
		return nil, err
	}
	return user.ToJSON(), nil
}
