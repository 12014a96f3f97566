package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // нулевое значение — без срока жизни
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory — кэш в памяти процесса с TTL.
// Подходит для одного инстанса и тестов; между процессами не разделяется.
// Просроченные ключи удаляются лениво при чтении и фоновой чисткой (если включена).
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Store = (*Memory)(nil)

// NewMemory создаёт кэш. cleanupInterval <= 0 отключает фоновую чистку.
func NewMemory(cleanupInterval time.Duration) *Memory {
	m := &Memory{
		items:  make(map[string]memoryEntry),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	if cleanupInterval > 0 {
		m.wg.Add(1)
		go m.cleanupLoop(cleanupInterval)
	}

	return m
}

func (m *Memory) cleanupLoop(every time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.deleteExpired()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) deleteExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
		}
	}
}

// lookup возвращает живую запись; просроченную удаляет. Вызывать под m.mu.
func (m *Memory) lookup(key string) (memoryEntry, bool) {
	e, ok := m.items[key]
	if !ok {
		return memoryEntry{}, false
	}

	if e.expired(m.now()) {
		delete(m.items, key)
		return memoryEntry{}, false
	}

	return e, true
}

func (m *Memory) entry(value []byte, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	return e
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil, false, nil
	}

	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = m.entry(value, ttl)
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); ok {
		return false, nil
	}

	m.items[key] = m.entry(value, ttl)
	return true, nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Incr повторяет семантику Redis INCR: отсутствующий ключ считается 0,
// существующий TTL сохраняется.
func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)

	var cur int64
	if ok {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		cur = n
	}

	cur++
	e.value = []byte(strconv.FormatInt(cur, 10))
	m.items[key] = e

	return cur, nil
}

// Close останавливает фоновую чистку. Повторные вызовы безопасны.
func (m *Memory) Close() error {
	m.once.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()

	return nil
}
