// Package memory — хранилище списка в памяти процесса.
// Используется в тестах сервиса и HTTP-слоя;
// семантика повторяет mongo-реализацию (уникальность пары, порядок, курсор).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pribylovaa/mylist-service/internal/cursor"
	"github.com/pribylovaa/mylist-service/internal/models"
	"github.com/pribylovaa/mylist-service/internal/storage"
)

type record struct {
	id   primitive.ObjectID
	item models.ListItem
}

// Storage хранит элементы по пользователям; срез каждого пользователя
// отсортирован по (created_at DESC, _id DESC).
type Storage struct {
	mu    sync.RWMutex
	users map[string][]record
	now   func() time.Time
}

var _ storage.Storage = (*Storage)(nil)

// Option настраивает Storage.
type Option func(*Storage)

// WithClock подменяет источник времени для created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Storage {
	s := &Storage{
		users: make(map[string][]record),
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Storage) UpsertItem(_ context.Context, item models.ListItem) (*models.ListItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.users[item.UserID]
	for _, r := range recs {
		if r.item.ContentID == item.ContentID {
			out := r.item
			return &out, false, nil
		}
	}

	oid := primitive.NewObjectID()
	item.ID = oid.Hex()
	item.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	recs = append(recs, record{id: oid, item: item})
	sort.Slice(recs, func(i, j int) bool { return less(recs[j], recs[i]) })
	s.users[item.UserID] = recs

	out := item
	return &out, true, nil
}

func (s *Storage) ListItems(_ context.Context, userID string, after *cursor.Cursor, limit int64) ([]models.ListItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ListItem, 0, limit)
	for _, r := range s.users[userID] {
		if int64(len(out)) >= limit {
			break
		}

		if after != nil && !after.Admits(r.item.CreatedAt, r.id) {
			continue
		}

		out = append(out, r.item)
	}

	return out, nil
}

func (s *Storage) DeleteItem(_ context.Context, userID, contentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.users[userID]
	for i, r := range recs {
		if r.item.ContentID != contentID {
			continue
		}

		recs = append(recs[:i], recs[i+1:]...)
		if len(recs) == 0 {
			delete(s.users, userID)
		} else {
			s.users[userID] = recs
		}

		return true, nil
	}

	return false, nil
}

func (s *Storage) CountItems(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.users[userID])), nil
}

func (s *Storage) Close(context.Context) error { return nil }

// less — порядок по возрастанию (created_at, _id).
func less(a, b record) bool {
	if !a.item.CreatedAt.Equal(b.item.CreatedAt) {
		return a.item.CreatedAt.Before(b.item.CreatedAt)
	}

	for i := range a.id {
		if a.id[i] != b.id[i] {
			return a.id[i] < b.id[i]
		}
	}

	return false
}
