// Package cache описывает key-value хранилище страниц списка и его реализации.
//
// Кэш не является источником истины: любые его ошибки вызывающий трактует как промах.
// Отсутствие кэша моделируется Nop-реализацией, а не nil-ом.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotInteger — значение по ключу нельзя инкрементировать.
var ErrNotInteger = errors.New("cache: value is not an integer")

// Store — минимальный контракт кэша.
// Реализации должны быть безопасны для конкурентного использования.
type Store interface {
	// Get возвращает (value, true, nil) при попадании и (nil, false, nil) при промахе.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set записывает значение с TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX записывает значение, только если ключа нет. ok=true — запись выполнена.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Del удаляет ключ (best-effort).
	Del(ctx context.Context, key string) error
	// Incr атомарно увеличивает целое по ключу и возвращает новое значение (отсутствие = 0).
	Incr(ctx context.Context, key string) (int64, error)
	// Close освобождает ресурсы.
	Close() error
}

// Nop — кэш выключен. Всегда промах, лок всегда «взят», счётчик версий всегда 0.
type Nop struct{}

var _ Store = Nop{}

func (Nop) Get(context.Context, string) ([]byte, bool, error)                  { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error           { return nil }
func (Nop) SetNX(context.Context, string, []byte, time.Duration) (bool, error) { return true, nil }
func (Nop) Del(context.Context, string) error                                  { return nil }
func (Nop) Incr(context.Context, string) (int64, error)                        { return 0, nil }
func (Nop) Close() error                                                       { return nil }
