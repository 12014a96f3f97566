package middleware

import (
	"context"
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/mylist-service/internal/errors"
)

// Источники идентификатора пользователя.
const (
	HeaderUserID = "X-User-Id"
	QueryUserID  = "userId"
)

// UserID достаёт уже аутентифицированный идентификатор пользователя
// (заголовок X-User-Id, иначе query-параметр userId) и кладёт его в контекст.
// Аутентификацию выполняет внешний слой; здесь значение не проверяется.
// Без идентификатора запрос завершается 400/missing_user_id.
func UserID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if id == "" {
				id = strings.TrimSpace(r.URL.Query().Get(QueryUserID))
			}

			if id == "" {
				apierrors.WriteError(w, r, apierrors.ErrMissingUserID)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
