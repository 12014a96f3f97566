package cache

import (
	"context"
	"fmt"
	"strconv"
)

// Version возвращает текущую версию списка пользователя; отсутствующий ключ => 0.
func Version(ctx context.Context, s Store, userID string) (int64, error) {
	b, ok, err := s.Get(ctx, VersionKey(userID))
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, nil
	}

	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache version parse: %w", err)
	}

	return v, nil
}

// BumpVersion атомарно увеличивает версию и возвращает новое значение.
func BumpVersion(ctx context.Context, s Store, userID string) (int64, error) {
	return s.Incr(ctx, VersionKey(userID))
}
