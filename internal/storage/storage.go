package storage

//go:generate mockgen -destination=../../mocks/storage.go -package=mocks github.com/pribylovaa/mylist-service/internal/storage Storage

import (
	"context"
	"errors"

	"github.com/pribylovaa/mylist-service/internal/cursor"
	"github.com/pribylovaa/mylist-service/internal/models"
)

var (
	// ErrConflict — нарушение уникальности (user_id, content_id) при гонке вставок.
	ErrConflict = errors.New("conflict")
)

// Storage описывает операции над элементами списка.
type Storage interface {
	// UpsertItem добавляет элемент, если пары (UserID, ContentID) ещё нет.
	// Если есть — возвращает существующую запись без изменений и created=false.
	// Входной ListItem должен содержать UserID, ContentID, ContentType;
	// ID и CreatedAt назначает хранилище.
	// При гонке одинаковых вставок возможна ErrConflict; двух записей не бывает.
	UpsertItem(ctx context.Context, item models.ListItem) (out *models.ListItem, created bool, err error)

	// ListItems возвращает до limit элементов пользователя в порядке
	// (created_at DESC, _id DESC), строго после курсора after (nil — с начала).
	ListItems(ctx context.Context, userID string, after *cursor.Cursor, limit int64) ([]models.ListItem, error)

	// DeleteItem удаляет элемент по (userID, contentID). deleted=false — записи не было.
	DeleteItem(ctx context.Context, userID, contentID string) (deleted bool, err error)

	// CountItems возвращает число элементов в списке пользователя.
	CountItems(ctx context.Context, userID string) (int64, error)

	// Close закрывает соединения/ресурсы хранилища.
	Close(ctx context.Context) error
}
