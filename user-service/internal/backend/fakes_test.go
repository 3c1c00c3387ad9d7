package backend

import (
	"context"
	"strings"
	"sync"

	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/user-service/internal/repository"
)

type storedUser struct {
	rec  models.UserRecord
	hash string
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]storedUser

	updateFn func(rec models.UserRecord) error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]storedUser)}
}

func (s *fakeUserStore) Create(ctx context.Context, rec models.UserRecord, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.rec.Username == rec.Username || strings.EqualFold(u.rec.Email, rec.Email) {
			return repository.ErrDuplicate
		}
	}
	s.users[rec.ID] = storedUser{rec: rec, hash: passwordHash}
	return nil
}

func (s *fakeUserStore) find(match func(models.UserRecord) bool) (*models.UserRecord, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u.rec) {
			rec := u.rec
			return &rec, u.hash, nil
		}
	}
	return nil, "", repository.ErrUserNotFound
}

func (s *fakeUserStore) GetByUsername(ctx context.Context, username string) (*models.UserRecord, string, error) {
	return s.find(func(r models.UserRecord) bool { return r.Username == username })
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.UserRecord, string, error) {
	return s.find(func(r models.UserRecord) bool { return strings.EqualFold(r.Email, email) })
}

func (s *fakeUserStore) GetByID(ctx context.Context, id string) (*models.UserRecord, string, error) {
	return s.find(func(r models.UserRecord) bool { return r.ID == id })
}

func (s *fakeUserStore) Update(ctx context.Context, rec models.UserRecord) error {
	if s.updateFn != nil {
		return s.updateFn(rec)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[rec.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.rec = rec
	s.users[rec.ID] = u
	return nil
}

type fakeFileStore struct {
	mu    sync.Mutex
	files map[string]models.File
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[string]models.File)}
}

func (s *fakeFileStore) SaveAll(ctx context.Context, files []models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range files {
		s.files[f.Name] = f
	}
	return nil
}

func (s *fakeFileStore) Get(ctx context.Context, name string) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[name]
	if !ok {
		return nil, repository.ErrFileNotFound
	}
	return &f, nil
}
