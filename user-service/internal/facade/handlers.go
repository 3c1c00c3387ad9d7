package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/cqrs"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/deferred"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
)

// decode accepts T, *T, or the generic JSON shape delivered by the stream
// bridge (objects and arrays), and rejects everything else.
func decode[T any](op string, payload any) (T, error) {
	var zero T
	switch v := payload.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return zero, &ValidationError{Op: op, Message: fmt.Sprintf("data is not encodable: %v", err)}
		}
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return zero, &ValidationError{Op: op, Message: fmt.Sprintf("data does not match %T: %v", zero, err)}
		}
		return out, nil
	}
	return zero, &ValidationError{Op: op, Message: fmt.Sprintf("data is not an object: %T", payload)}
}

// decodeAttributes accepts string-keyed maps as well as maps with arbitrary
// keys, skipping keys that are not strings.
func decodeAttributes(op string, payload any) (map[string]any, error) {
	switch v := payload.(type) {
	case map[string]any:
		return v, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			s, ok := key.(string)
			if !ok {
				log.Printf("%s - skipping key as it is not a string: %v", op, key)
				continue
			}
			out[s] = value
		}
		return out, nil
	case nil:
		return nil, &ValidationError{Op: op, Message: "data is undefined or null"}
	}
	return nil, &ValidationError{Op: op, Message: fmt.Sprintf("data is not an object: %T", payload)}
}

func settle[T any](r *deferred.Result[T], err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (f *Facade) onCurrent(ctx context.Context, _ any) (any, error) {
	if user, ok := f.GetCurrentUser(); ok {
		return user, nil
	}
	return nil, nil
}

func (f *Facade) onIsCurrent(ctx context.Context, _ any) (any, error) {
	return f.IsCurrentUser(), nil
}

func (f *Facade) onEscape(ctx context.Context, payload any) (any, error) {
	key, err := decode[string]("escape", payload)
	if err != nil {
		return nil, err
	}
	return f.Escape(key)
}

func (f *Facade) onGet(ctx context.Context, payload any) (any, error) {
	key, err := decode[string]("get", payload)
	if err != nil {
		return nil, err
	}
	return f.Get(key)
}

func (f *Facade) onGetHTTPSURL(ctx context.Context, payload any) (any, error) {
	key, err := decode[string]("getHTTPSUrl", payload)
	if err != nil {
		return nil, err
	}
	return f.GetHTTPSURL(key)
}

func (f *Facade) onLogin(ctx context.Context, payload any) (any, error) {
	cmd, err := decode[cqrs.LoginCommand]("logInUser", payload)
	if err != nil {
		return nil, err
	}
	return settle(f.LogInUser(ctx, cmd))
}

func (f *Facade) onLogout(ctx context.Context, _ any) (any, error) {
	return f.LogOutUser(ctx), nil
}

func (f *Facade) onPasswordReset(ctx context.Context, payload any) (any, error) {
	cmd, err := decode[cqrs.PasswordResetCommand]("requestPasswordReset", payload)
	if err != nil {
		return nil, err
	}
	return settle(f.RequestPasswordReset(ctx, cmd))
}

func (f *Facade) onSave(ctx context.Context, _ any) (any, error) {
	return settle(f.Save(ctx))
}

func (f *Facade) onSet(ctx context.Context, payload any) (any, error) {
	data, err := decodeAttributes("set", payload)
	if err != nil {
		return nil, err
	}
	return nil, f.Set(data)
}

func (f *Facade) onSetAndSave(ctx context.Context, payload any) (any, error) {
	data, err := decodeAttributes("setAndSave", payload)
	if err != nil {
		return nil, err
	}
	return settle(f.SetAndSave(ctx, data))
}

func (f *Facade) onSetAndSaveImages(ctx context.Context, payload any) (any, error) {
	if payload == nil {
		return nil, &ValidationError{Op: "setAndSaveImages", Message: "images is undefined or is not an array"}
	}
	images, err := decode[[]models.Image]("setAndSaveImages", payload)
	if err != nil {
		return nil, err
	}
	return settle(f.SetAndSaveImages(ctx, images))
}

func (f *Facade) onSignup(ctx context.Context, payload any) (any, error) {
	cmd, err := decode[cqrs.SignUpCommand]("signUpUser", payload)
	if err != nil {
		return nil, err
	}
	return settle(f.SignUpUser(ctx, cmd))
}

func (f *Facade) onToJSON(ctx context.Context, _ any) (any, error) {
	return f.ToJSON()
}
