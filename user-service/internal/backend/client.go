// Package backend is the account service the user facade talks to: users and
// files in PostgreSQL, reset tokens in Redis, notifications on Redis streams.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/events"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/utils"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/user-service/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username or email already taken")
	ErrUserNotFound       = errors.New("no user found with email")
	ErrInvalidSession     = errors.New("invalid session token")
	ErrPermissionDenied   = errors.New("permission denied")
)

type UserStore interface {
	Create(ctx context.Context, rec models.UserRecord, passwordHash string) error
	GetByUsername(ctx context.Context, username string) (*models.UserRecord, string, error)
	GetByEmail(ctx context.Context, email string) (*models.UserRecord, string, error)
	GetByID(ctx context.Context, id string) (*models.UserRecord, string, error)
	Update(ctx context.Context, rec models.UserRecord) error
}

type FileStore interface {
	SaveAll(ctx context.Context, files []models.File) error
	Get(ctx context.Context, name string) (*models.File, error)
}

type ResetTokenStore interface {
	Store(ctx context.Context, token, userID string, ttl time.Duration) error
}

type Config struct {
	TokenSecret   []byte
	TokenTTL      time.Duration
	ResetTokenTTL time.Duration
	// FilesBaseURL prefixes the URL of every saved file, e.g. https://api.example.com.
	FilesBaseURL string
}

// Client implements the facade's backend. It holds at most one current
// session at a time.
type Client struct {
	users     UserStore
	files     FileStore
	resets    ResetTokenStore
	publisher events.StreamPublisher
	tokens    tokenIssuer
	resetTTL  time.Duration
	filesURL  string
	now       func() time.Time

	mu      sync.RWMutex
	current *models.User
}

type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
		c.tokens.now = now
	}
}

func New(users UserStore, files FileStore, resets ResetTokenStore, publisher events.StreamPublisher, cfg Config, opts ...Option) *Client {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.ResetTokenTTL == 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	c := &Client{
		users:     users,
		files:     files,
		resets:    resets,
		publisher: publisher,
		tokens:    tokenIssuer{secret: cfg.TokenSecret, ttl: cfg.TokenTTL, now: time.Now},
		resetTTL:  cfg.ResetTokenTTL,
		filesURL:  strings.TrimRight(cfg.FilesBaseURL, "/"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CurrentSession() (*models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.current != nil
}

func (c *Client) setCurrent(u *models.User) {
	c.mu.Lock()
	c.current = u
	c.mu.Unlock()
}

// Become restores the session identified by token.
func (c *Client) Become(ctx context.Context, token string) (*models.User, error) {
	claims, err := c.tokens.parse(token)
	if err != nil {
		return nil, err
	}
	rec, _, err := c.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}

	rec.SessionToken = token
	user := models.NewUser(*rec)
	c.setCurrent(user)
	return user, nil
}

func (c *Client) LogIn(ctx context.Context, username, password string) (*models.User, error) {
	rec, hash, err := c.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, hash) {
		return nil, ErrInvalidCredentials
	}
	return c.startSession(*rec)
}

func (c *Client) SignUp(ctx context.Context, username, password, email string, acl models.ACL) (*models.User, error) {
	if _, _, err := c.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := c.now().UTC()
	id := utils.GenerateID("usr")
	rec := models.UserRecord{
		ID:         id,
		Username:   username,
		Email:      email,
		Attributes: map[string]any{},
		Files:      map[string]models.File{},
		ACL:        acl.WithOwner(id),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.users.Create(ctx, rec, hash); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return c.startSession(rec)
}

func (c *Client) startSession(rec models.UserRecord) (*models.User, error) {
	token, err := c.tokens.issue(rec.ID, rec.Email)
	if err != nil {
		return nil, err
	}
	rec.SessionToken = token
	user := models.NewUser(rec)
	c.setCurrent(user)
	return user, nil
}

func (c *Client) LogOut(ctx context.Context) error {
	c.setCurrent(nil)
	return nil
}

// RequestPasswordReset stores a one-time token for the account registered
// under email and announces it on the user events stream.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	rec, _, err := c.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	token := uuid.NewString()
	if err := c.resets.Store(ctx, token, rec.ID, c.resetTTL); err != nil {
		return err
	}

	event := events.PasswordResetRequestedEvent{
		UserID: rec.ID,
		Email:  rec.Email,
		Token:  token,
	}
	if err := c.publisher.Publish(ctx, events.UserEventsStream, events.PasswordResetRequested, event); err != nil {
		return fmt.Errorf("failed to publish password reset: %w", err)
	}
	log.Printf("Password reset requested for user %s", rec.ID)
	return nil
}

// Save persists user. Only a session whose ID the user's ACL grants write
// access may save it.
func (c *Client) Save(ctx context.Context, user *models.User) error {
	session, ok := c.CurrentSession()
	if !ok {
		return ErrPermissionDenied
	}
	rec := user.Record()
	if !rec.ACL.CanWrite(session.ID()) {
		return ErrPermissionDenied
	}

	user.Touch(c.now().UTC())
	if err := c.users.Update(ctx, user.Record()); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

// SaveAll stores files under unique names and returns them with their URLs
// assigned, in input order.
func (c *Client) SaveAll(ctx context.Context, files []models.File) ([]models.File, error) {
	now := c.now().UTC()
	saved := make([]models.File, len(files))
	for i, f := range files {
		f.Name = uuid.NewString() + "_" + f.Name
		f.URL = c.filesURL + "/v1/files/" + f.Name
		f.CreatedAt = now
		saved[i] = f
	}
	if err := c.files.SaveAll(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func (c *Client) GetFile(ctx context.Context, name string) (*models.File, error) {
	return c.files.Get(ctx, name)
}
