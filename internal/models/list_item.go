// Package models содержит доменные сущности mylist-сервиса.
package models

import "time"

// ContentType — тип контента в списке пользователя (закрытое множество).
type ContentType string

const (
	ContentMovie  ContentType = "movie"
	ContentTVShow ContentType = "tvshow"
	ContentOther  ContentType = "other"
)

// Valid сообщает, входит ли значение в допустимое множество.
func (c ContentType) Valid() bool {
	switch c {
	case ContentMovie, ContentTVShow, ContentOther:
		return true
	default:
		return false
	}
}

// ListItem — элемент списка «посмотреть позже».
// Важно:
//   - ID — ObjectID MongoDB (hex). Назначается хранилищем, задаёт tie-break при равных CreatedAt;
//   - пара (UserID, ContentID) уникальна;
//   - CreatedAt хранится с точностью до миллисекунд;
//   - ContentID — внешняя ссылка на контент, которым сервис не владеет.
type ListItem struct {
	ID          string      `json:"id"          msgpack:"id"`
	UserID      string      `json:"userId"      msgpack:"user_id"`
	ContentID   string      `json:"contentId"   msgpack:"content_id"`
	ContentType ContentType `json:"contentType" msgpack:"content_type"`
	CreatedAt   time.Time   `json:"createdAt"   msgpack:"created_at"`
}

// Page — страница выдачи. Именно эта структура кэшируется целиком.
// NextCursor == nil означает конец списка.
type Page struct {
	Data       []ListItem `json:"data"       msgpack:"data"`
	NextCursor *string    `json:"nextCursor" msgpack:"next_cursor"`
	Count      int        `json:"count"      msgpack:"count"`
	Limit      int        `json:"limit"      msgpack:"limit"`
}

// Source — откуда получена страница.
type Source string

const (
	SourceCache Source = "cache"
	SourceDB    Source = "db"
)

// ListResult — результат List: страница + источник.
type ListResult struct {
	Source Source
	Page   Page
}

// AddResult — результат Add. Created=false: элемент уже был в списке.
type AddResult struct {
	Item    ListItem
	Created bool
}
