package facade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/events"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
)

// ---- mock backend ----

type mockBackend struct {
	mu      sync.Mutex
	current *models.User
	calls   []string
	saved   chan *models.User

	loginFn   func(username, password string) (*models.User, error)
	logoutFn  func() error
	resetFn   func(email string) error
	saveFn    func(user *models.User) error
	signupFn  func(username, password, email string, acl models.ACL) (*models.User, error)
	saveAllFn func(files []models.File) ([]models.File, error)
}

func newMockBackend(current *models.User) *mockBackend {
	return &mockBackend{current: current, saved: make(chan *models.User, 16)}
}

func (m *mockBackend) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockBackend) CurrentSession() (*models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

func (m *mockBackend) setCurrent(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = u
}

func (m *mockBackend) LogIn(ctx context.Context, username, password string) (*models.User, error) {
	m.record("login")
	if m.loginFn != nil {
		u, err := m.loginFn(username, password)
		if u != nil {
			m.setCurrent(u)
		}
		return u, err
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockBackend) LogOut(ctx context.Context) error {
	m.record("logout")
	if m.logoutFn != nil {
		return m.logoutFn()
	}
	m.setCurrent(nil)
	return nil
}

func (m *mockBackend) RequestPasswordReset(ctx context.Context, email string) error {
	m.record("reset:" + email)
	if m.resetFn != nil {
		return m.resetFn(email)
	}
	return nil
}

func (m *mockBackend) Save(ctx context.Context, user *models.User) error {
	m.record("save")
	var err error
	if m.saveFn != nil {
		err = m.saveFn(user)
	}
	m.saved <- user
	return err
}

func (m *mockBackend) SignUp(ctx context.Context, username, password, email string, acl models.ACL) (*models.User, error) {
	m.record("signup")
	if m.signupFn != nil {
		u, err := m.signupFn(username, password, email, acl)
		if u != nil {
			m.setCurrent(u)
		}
		return u, err
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockBackend) SaveAll(ctx context.Context, files []models.File) ([]models.File, error) {
	m.record("saveAll")
	if m.saveAllFn != nil {
		return m.saveAllFn(files)
	}
	out := make([]models.File, len(files))
	for i, f := range files {
		f.Name = fmt.Sprintf("id%d_%s", i, f.Name)
		f.URL = "http://files.example.com/v1/files/" + f.Name
		out[i] = f
	}
	return out, nil
}

// ---- bus recorder ----

type busRecorder struct {
	mu       sync.Mutex
	received map[string][]any
}

func recordBus(bus *events.Bus, names ...string) *busRecorder {
	r := &busRecorder{received: make(map[string][]any)}
	for _, name := range names {
		name := name
		bus.On(name, func(ctx context.Context, payload any) (any, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.received[name] = append(r.received[name], payload)
			return nil, nil
		})
	}
	return r
}

func (r *busRecorder) Get(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received[name]
}

// ---- test data ----

var testCreatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestUser(email string) *models.User {
	return models.NewUser(models.UserRecord{
		ID:        "usr-001",
		Username:  "alice",
		Email:     email,
		CreatedAt: testCreatedAt,
		UpdatedAt: testCreatedAt,
	})
}

// 1x1 transparent PNG
const testPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func testImage(width int) models.Image {
	return models.Image{Src: "data:image/png;base64," + testPNG, Width: width}
}
