package cache

import "strconv"

// StartCursorKey — сентинел первой страницы в ключах кэша.
const StartCursorKey = "start"

const keyPrefix = "mylist:"

// CursorKey возвращает сегмент ключа для курсора: сам токен или StartCursorKey.
func CursorKey(cursor string) string {
	if cursor == "" {
		return StartCursorKey
	}

	return cursor
}

// VersionKey — ключ счётчика версий пользователя.
func VersionKey(userID string) string {
	return keyPrefix + userID + ":version"
}

// PageKey — ключ закэшированной страницы. Версия входит в ключ: её инкремент
// делает все прежние страницы пользователя недостижимыми.
func PageKey(userID, cursorKey string, version int64) string {
	return keyPrefix + userID + ":page:" + cursorKey + ":v" + strconv.FormatInt(version, 10)
}

// LockKey — ключ advisory-лока пересборки. Версию не включает намеренно:
// лок, взятый при версии N, блокирует только тех, кто тоже видит N.
func LockKey(userID, cursorKey string) string {
	return keyPrefix + "lock:" + userID + ":" + cursorKey
}
