// Package cursor кодирует непрозрачный токен keyset-пагинации.
//
// Токен — base64url (без паддинга) от строки "<unix-nanos>|<objectid-hex>".
// Соль не используется: токен стабилен между рестартами процесса.
package cursor

import (
	"bytes"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cursor — точка продолжения: (created_at, _id) последнего элемента предыдущей страницы.
type Cursor struct {
	CreatedAt time.Time
	ID        primitive.ObjectID
}

// Encode кодирует пару (created_at, _id) в непрозрачный токен для клиента.
func Encode(c Cursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UTC().UnixNano(), 10) + "|" + c.ID.Hex()

	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode декодирует токен обратно в пару ключей.
// Любой битый вход даёт ok=false; вызывающий трактует это как «курсора нет».
func Decode(token string) (Cursor, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, false
	}

	res, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, false
	}

	parts := strings.SplitN(string(res), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, false
	}

	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, false
	}

	oid, err := primitive.ObjectIDFromHex(parts[1])
	if err != nil {
		return Cursor{}, false
	}

	return Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: oid}, true
}

// Admits сообщает, попадает ли элемент (createdAt, id) в выдачу после курсора:
// в порядке (created_at DESC, _id DESC) он должен идти строго после точки продолжения.
// Тот же предикат хранилище Mongo выражает фильтром $or.
func (c Cursor) Admits(createdAt time.Time, id primitive.ObjectID) bool {
	if createdAt.Before(c.CreatedAt) {
		return true
	}

	return createdAt.Equal(c.CreatedAt) && bytes.Compare(id[:], c.ID[:]) < 0
}
