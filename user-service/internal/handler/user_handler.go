package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/cqrs"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/deferred"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/events"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/middleware"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/utils"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/user-service/internal/backend"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/user-service/internal/facade"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/user-service/internal/repository"
)

// Dispatcher delivers a request to the first bus subscriber of an event.
type Dispatcher interface {
	TriggerFirst(ctx context.Context, name string, payload any) (any, error)
}

// FileReader serves stored files.
type FileReader interface {
	GetFile(ctx context.Context, name string) (*models.File, error)
}

// SessionProvider reports the account the facade currently acts for.
type SessionProvider interface {
	CurrentSession() (*models.User, bool)
}

// UserHandler exposes the user facade's bus events over HTTP.
//
// The facade acts for a single current session. Requests behind
// RequireSession hold mu for reading so that a concurrent login or signup,
// which holds it for writing, cannot swap the session mid-request.
type UserHandler struct {
	bus      Dispatcher
	files    FileReader
	sessions SessionProvider
	mu       sync.RWMutex
}

type LoginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SignUpRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type SessionResponse struct {
	SessionToken string         `json:"sessionToken"`
	User         map[string]any `json:"user"`
}

func NewUserHandler(bus Dispatcher, files FileReader, sessions SessionProvider) *UserHandler {
	return &UserHandler{bus: bus, files: files, sessions: sessions}
}

// RequireSession admits a request only when the user ID from its token is
// the current session's. It must run after middleware.AuthMiddleware.
func (h *UserHandler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok || !utils.ValidateUserID(userID) {
			middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid session token")
			c.Abort()
			return
		}

		h.mu.RLock()
		defer h.mu.RUnlock()

		current, ok := h.sessions.CurrentSession()
		if !ok || current.ID() != userID {
			middleware.RespondWithError(c, http.StatusUnauthorized, "Session is not the current user")
			c.Abort()
			return
		}
		c.Next()
	}
}

// dispatch triggers name and waits for a deferred result if one is returned.
// On failure the error response has already been written.
func (h *UserHandler) dispatch(c *gin.Context, name string, payload any) (any, bool) {
	ctx := c.Request.Context()
	result, err := h.bus.TriggerFirst(ctx, name, payload)
	if err == nil {
		if pending, ok := result.(deferred.Awaitable); ok {
			result, err = pending.AwaitAny(ctx)
		}
	}
	if err != nil {
		respondWithDispatchError(c, err)
		return nil, false
	}
	return result, true
}

func (h *UserHandler) LogIn(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.dispatch(c, events.UserLogin, cqrs.LoginCommand{Name: req.Name, Password: req.Password}); !ok {
		return
	}
	h.respondWithSession(c, http.StatusOK)
}

func (h *UserHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cmd := cqrs.SignUpCommand{Name: req.Name, Password: req.Password, Email: req.Email}
	if _, ok := h.dispatch(c, events.UserSignup, cmd); !ok {
		return
	}
	h.respondWithSession(c, http.StatusCreated)
}

func (h *UserHandler) respondWithSession(c *gin.Context, status int) {
	result, ok := h.dispatch(c, events.UserCurrent, nil)
	if !ok {
		return
	}
	user, _ := result.(*models.User)
	if user == nil {
		middleware.RespondWithError(c, http.StatusUnauthorized, "No current user")
		return
	}
	c.JSON(status, SessionResponse{SessionToken: user.SessionToken(), User: user.ToJSON()})
}

func (h *UserHandler) LogOut(c *gin.Context) {
	if _, ok := h.dispatch(c, events.UserLogout, nil); !ok {
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestPasswordReset sends a reset mail to an explicit address.
func (h *UserHandler) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	h.requestPasswordReset(c, cqrs.PasswordResetCommand{Email: req.Email})
}

// RequestCurrentPasswordReset sends a reset mail to the current user's address.
func (h *UserHandler) RequestCurrentPasswordReset(c *gin.Context) {
	h.requestPasswordReset(c, cqrs.PasswordResetCommand{UseCurrentUserEmail: true})
}

func (h *UserHandler) requestPasswordReset(c *gin.Context, cmd cqrs.PasswordResetCommand) {
	if _, ok := h.dispatch(c, events.UserPasswordReset, cmd); !ok {
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *UserHandler) GetCurrent(c *gin.Context) {
	result, ok := h.dispatch(c, events.UserToJSON, nil)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *UserHandler) CurrentExists(c *gin.Context) {
	result, ok := h.dispatch(c, events.UserIsCurrent, nil)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": result})
}

func (h *UserHandler) GetAttribute(c *gin.Context) {
	key := c.Param("key")
	name := events.UserGet
	if c.Query("escape") == "true" {
		name = events.UserEscape
	}

	result, ok := h.dispatch(c, name, key)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": result})
}

func (h *UserHandler) GetFileURL(c *gin.Context) {
	result, ok := h.dispatch(c, events.UserGetHTTPSURL, c.Param("key"))
	if !ok {
		return
	}
	url, _ := result.(string)
	if url == "" {
		middleware.RespondWithError(c, http.StatusNotFound, "File not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *UserHandler) UpdateCurrent(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, ok := h.dispatch(c, events.UserSetAndSave, data); !ok {
		return
	}
	h.GetCurrent(c)
}

func (h *UserHandler) PutImages(c *gin.Context) {
	var images []models.Image
	if err := c.ShouldBindJSON(&images); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, ok := h.dispatch(c, events.UserSetAndSaveImages, images)
	if !ok {
		return
	}
	keys, _ := result.([]string)
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (h *UserHandler) GetFile(c *gin.Context) {
	file, err := h.files.GetFile(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, repository.ErrFileNotFound) {
			middleware.RespondWithError(c, http.StatusNotFound, "File not found")
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to read file")
		return
	}
	c.Data(http.StatusOK, file.MimeType, file.Data)
}

func respondWithDispatchError(c *gin.Context, err error) {
	var validationErr *facade.ValidationError
	var imageErr *facade.ImageError

	switch {
	case errors.As(err, &validationErr):
		middleware.RespondWithError(c, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &imageErr):
		middleware.RespondWithError(c, http.StatusBadRequest, imageErr.Error())
	case errors.Is(err, facade.ErrNoSession):
		middleware.RespondWithError(c, http.StatusUnauthorized, "No current user")
	case errors.Is(err, backend.ErrInvalidCredentials):
		middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, backend.ErrPermissionDenied):
		middleware.RespondWithError(c, http.StatusForbidden, "Permission denied")
	case errors.Is(err, backend.ErrUsernameTaken):
		middleware.RespondWithError(c, http.StatusConflict, "Username or email already taken")
	case errors.Is(err, backend.ErrUserNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, events.ErrNoSubscriber):
		middleware.RespondWithError(c, http.StatusServiceUnavailable, "User service unavailable")
	default:
		middleware.RespondWithError(c, http.StatusBadGateway, "Account backend request failed")
	}
}
