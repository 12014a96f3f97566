package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pribylovaa/mylist-service/internal/cache"
	"github.com/pribylovaa/mylist-service/internal/cursor"
	"github.com/pribylovaa/mylist-service/internal/metrics"
	"github.com/pribylovaa/mylist-service/internal/models"
	"github.com/pribylovaa/mylist-service/internal/pkg/log"
	"github.com/pribylovaa/mylist-service/internal/storage"
)

// Входные структуры сервисного слоя.

// ListInput — параметры постраничной выдачи списка.
// Limit <= 0 -> limits.default; больше limits.max -> limits.max.
// Битый Cursor трактуется как отсутствие курсора.
type ListInput struct {
	UserID string
	Limit  int32
	Cursor string
}

// AddInput — добавление контента в список.
type AddInput struct {
	UserID      string
	ContentID   string
	ContentType models.ContentType
}

// RemoveInput — удаление контента из списка.
type RemoveInput struct {
	UserID    string
	ContentID string
}

// List — страница списка пользователя.
//
// Порядок: версия -> ключ страницы -> кэш -> advisory-лок (при занятом локе
// одна пауза и повторная проверка кэша) -> пересборка из хранилища -> запись в кэш.
//
// Поведение/ошибки:
//   - ErrInvalidArgument — пустой UserID;
//   - ErrInternal — ошибка хранилища;
//   - context.Canceled/DeadlineExceeded — ctx запроса завершился раньше ответа;
//   - ошибки кэша не возвращаются никогда: они логируются и считаются промахом.
func (s *Service) List(ctx context.Context, in ListInput) (*models.ListResult, error) {
	const op = "service/mylist/List"

	in.UserID = strings.TrimSpace(in.UserID)
	lg := log.From(ctx).With("op", op, "user_id", in.UserID)

	if in.UserID == "" {
		lg.Warn("invalid argument: empty user_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	limit := limitOrDefault(s.cfg.Limits.Default, s.cfg.Limits.Max, in.Limit)

	token := strings.TrimSpace(in.Cursor)
	var after *cursor.Cursor
	if token != "" {
		c, ok := cursor.Decode(token)
		if !ok {
			lg.Warn("invalid cursor, serving first page")
			token = ""
		} else {
			after = &c
		}
	}

	cursorKey := cache.CursorKey(token)

	// Ошибка чтения версии выключает кэш для этого запроса:
	// иначе можно прочитать или записать страницу в устаревшем пространстве ключей.
	useCache := true
	version, err := cache.Version(ctx, s.cache, in.UserID)
	if err != nil {
		lg.Warn("cache version read failed", "err", err)
		s.metrics.CacheLookup(metrics.ResultError)
		useCache = false
	}

	pageKey := cache.PageKey(in.UserID, cursorKey, version)
	lg = lg.With("page_key", pageKey)

	if useCache {
		if page, ok := s.cachedPage(ctx, lg, pageKey, limit); ok {
			return &models.ListResult{Source: models.SourceCache, Page: page}, nil
		}

		lockKey := cache.LockKey(in.UserID, cursorKey)

		switch acquired, err := s.cache.SetNX(ctx, lockKey, []byte("1"), s.cfg.Cache.LockTTL); {
		case err != nil:
			lg.Warn("cache lock failed", "err", err)
			s.metrics.CacheLock(metrics.ResultError)
		case acquired:
			s.metrics.CacheLock(metrics.ResultAcquired)
			defer s.releaseLock(ctx, lg, lockKey)
		default:
			s.metrics.CacheLock(metrics.ResultContended)

			if err := sleepCtx(ctx, s.cfg.Cache.LockBackoff); err != nil {
				lg.Warn("context done while waiting for rebuild lock", "err", err)
				return nil, fmt.Errorf("%s: %w", op, err)
			}

			if page, ok := s.cachedPage(ctx, lg, pageKey, limit); ok {
				return &models.ListResult{Source: models.SourceCache, Page: page}, nil
			}
		}
	}

	page, err := s.rebuild(ctx, lg, rebuildRequest{
		userID:   in.UserID,
		after:    after,
		limit:    limit,
		pageKey:  pageKey,
		useCache: useCache,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			lg.Warn("context done on ListItems", "err", ctxErr)
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}

		lg.Error("storage error on ListItems", "err", err)
		return nil, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	return &models.ListResult{Source: models.SourceDB, Page: page}, nil
}

// Add — идемпотентное добавление контента в список.
//
// Валидация:
//   - UserID и ContentID нормализуются (TrimSpace) и не должны быть пустыми;
//   - ContentType — одно из movie, tvshow, other.
//
// Поведение/ошибки:
//   - повторное добавление возвращает существующий элемент и Created=false;
//   - ErrConflict — хранилище сообщило о нарушении уникальности (гонка вставок);
//   - ErrInternal — прочие ошибки стораджа;
//   - ошибка ctx — если ctx запроса завершился во время записи.
//
// После записи версия списка увеличивается; затем best-effort патч первой страницы.
func (s *Service) Add(ctx context.Context, in AddInput) (*models.AddResult, error) {
	const op = "service/mylist/Add"

	in.UserID = strings.TrimSpace(in.UserID)
	in.ContentID = strings.TrimSpace(in.ContentID)
	in.ContentType = models.ContentType(strings.ToLower(strings.TrimSpace(string(in.ContentType))))

	lg := log.From(ctx).With(
		"op", op,
		"user_id", in.UserID,
		"content_id", in.ContentID,
		"content_type", string(in.ContentType),
	)

	if in.UserID == "" {
		lg.Warn("invalid argument: empty user_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if in.ContentID == "" {
		lg.Warn("invalid argument: empty content_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if !in.ContentType.Valid() {
		lg.Warn("invalid argument: unknown content_type")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	item, created, err := s.storage.UpsertItem(ctx, models.ListItem{
		UserID:      in.UserID,
		ContentID:   in.ContentID,
		ContentType: in.ContentType,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			lg.Warn("conflict")
			s.metrics.Mutation(metrics.OpAdd, metrics.ResultConflict)
			return nil, fmt.Errorf("%s: %w", op, ErrConflict)
		case ctx.Err() != nil:
			lg.Warn("context done on UpsertItem", "err", ctx.Err())
			s.metrics.Mutation(metrics.OpAdd, metrics.ResultError)
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		default:
			lg.Error("storage error on UpsertItem", "err", err)
			s.metrics.Mutation(metrics.OpAdd, metrics.ResultError)
			return nil, fmt.Errorf("%s: %w", op, ErrInternal)
		}
	}

	if created {
		s.metrics.Mutation(metrics.OpAdd, metrics.ResultCreated)
	} else {
		s.metrics.Mutation(metrics.OpAdd, metrics.ResultExisting)
	}

	version, err := cache.BumpVersion(ctx, s.cache, in.UserID)
	if err != nil {
		lg.Warn("cache version bump failed", "err", err)
	} else if created {
		s.patchFirstPage(ctx, lg, in.UserID, version, *item)
	}

	return &models.AddResult{Item: *item, Created: created}, nil
}

// Remove — удаление контента из списка.
//
// Поведение/ошибки:
//   - отсутствие элемента — не ошибка: возвращается false;
//   - ErrInvalidArgument — пустые UserID/ContentID;
//   - ErrInternal — ошибка стораджа;
//   - ошибка ctx — если ctx запроса завершился во время удаления.
func (s *Service) Remove(ctx context.Context, in RemoveInput) (bool, error) {
	const op = "service/mylist/Remove"

	in.UserID = strings.TrimSpace(in.UserID)
	in.ContentID = strings.TrimSpace(in.ContentID)
	lg := log.From(ctx).With("op", op, "user_id", in.UserID, "content_id", in.ContentID)

	if in.UserID == "" {
		lg.Warn("invalid argument: empty user_id")
		return false, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if in.ContentID == "" {
		lg.Warn("invalid argument: empty content_id")
		return false, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	deleted, err := s.storage.DeleteItem(ctx, in.UserID, in.ContentID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			lg.Warn("context done on DeleteItem", "err", ctxErr)
			s.metrics.Mutation(metrics.OpRemove, metrics.ResultError)
			return false, fmt.Errorf("%s: %w", op, ctxErr)
		}

		lg.Error("storage error on DeleteItem", "err", err)
		s.metrics.Mutation(metrics.OpRemove, metrics.ResultError)
		return false, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	if deleted {
		s.metrics.Mutation(metrics.OpRemove, metrics.ResultDeleted)
	} else {
		s.metrics.Mutation(metrics.OpRemove, metrics.ResultNotFound)
	}

	if _, err := cache.BumpVersion(ctx, s.cache, in.UserID); err != nil {
		lg.Warn("cache version bump failed", "err", err)
	}

	return deleted, nil
}

type rebuildRequest struct {
	userID   string
	after    *cursor.Cursor
	limit    int64
	pageKey  string
	useCache bool
}

// rebuild читает страницу из хранилища и кладёт её в кэш.
// Одновременные пересборки одного ключа внутри процесса делят один запрос к БД.
// Общая работа выполняется на контексте без отмены: отмена запроса, начавшего
// пересборку, не должна ронять присоединившихся. Каждый вызывающий ждёт
// результат не дольше своего ctx.
func (s *Service) rebuild(ctx context.Context, lg *slog.Logger, req rebuildRequest) (models.Page, error) {
	flightKey := req.pageKey + "|" + strconv.FormatInt(req.limit, 10)

	ch := s.rebuilds.DoChan(flightKey, func() (any, error) {
		fctx, cancel := s.flightContext(ctx)
		defer cancel()

		s.metrics.PageRebuild()

		items, err := s.storage.ListItems(fctx, req.userID, req.after, req.limit+1)
		if err != nil {
			return models.Page{}, err
		}

		page := buildPage(items, req.limit)

		if req.useCache {
			s.storePage(fctx, lg, req.pageKey, page)
		}

		return page, nil
	})

	select {
	case <-ctx.Done():
		return models.Page{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.Page{}, res.Err
		}

		if res.Shared {
			lg.Debug("rebuild shared with concurrent request")
		}

		return clonePage(res.Val.(models.Page)), nil
	}
}

// flightContext — контекст общей пересборки: значения (логгер) от ctx,
// но без его отмены; верхняя граница — сервисный таймаут.
func (s *Service) flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if s.cfg.Timeouts.Service > 0 {
		return context.WithTimeout(base, s.cfg.Timeouts.Service)
	}

	return context.WithCancel(base)
}

// buildPage отрезает лишний (limit+1)-й элемент и вычисляет nextCursor.
func buildPage(items []models.ListItem, limit int64) models.Page {
	page := models.Page{Limit: int(limit)}

	if int64(len(items)) > limit {
		items = items[:limit]
		next := encodeItemCursor(items[len(items)-1])
		page.NextCursor = &next
	}

	if items == nil {
		items = []models.ListItem{}
	}

	page.Data = items
	page.Count = len(items)

	return page
}

// cachedPage — GET страницы из кэша. Ошибка, битый payload или страница
// другого размера считаются промахом.
func (s *Service) cachedPage(ctx context.Context, lg *slog.Logger, key string, limit int64) (models.Page, bool) {
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		lg.Warn("cache get failed", "err", err)
		s.metrics.CacheLookup(metrics.ResultError)
		return models.Page{}, false
	}

	if !ok {
		s.metrics.CacheLookup(metrics.ResultMiss)
		return models.Page{}, false
	}

	page, err := s.codec.Decode(b)
	if err != nil {
		lg.Warn("cache payload malformed", "err", err)
		s.metrics.CacheLookup(metrics.ResultError)
		return models.Page{}, false
	}

	if int64(page.Limit) != limit {
		s.metrics.CacheLookup(metrics.ResultMiss)
		return models.Page{}, false
	}

	normalizePage(&page)

	s.metrics.CacheLookup(metrics.ResultHit)
	return page, true
}

// storePage — best-effort SET страницы с TTL.
func (s *Service) storePage(ctx context.Context, lg *slog.Logger, key string, page models.Page) {
	b, err := s.codec.Encode(page)
	if err != nil {
		lg.Warn("cache payload encode failed", "err", err)
		return
	}

	if err := s.cache.Set(ctx, key, b, s.cfg.Cache.PageTTL); err != nil {
		lg.Warn("cache set failed", "err", err)
	}
}

// releaseLock снимает лок, взятый этим запросом. Отмена контекста запроса
// не должна мешать освобождению.
func (s *Service) releaseLock(ctx context.Context, lg *slog.Logger, key string) {
	if err := s.cache.Del(context.WithoutCancel(ctx), key); err != nil {
		lg.Warn("cache lock release failed", "err", err)
	}
}

// patchFirstPage — оптимистичный патч первой страницы новой версии.
// Срабатывает, только если страницу уже успел закэшировать параллельный читатель
// и нового элемента в ней нет. Все ошибки проглатываются.
func (s *Service) patchFirstPage(ctx context.Context, lg *slog.Logger, userID string, version int64, item models.ListItem) {
	key := cache.PageKey(userID, cache.StartCursorKey, version)

	b, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return
	}

	page, err := s.codec.Decode(b)
	if err != nil || page.Limit <= 0 {
		return
	}

	for _, it := range page.Data {
		if it.ID == item.ID {
			return
		}
	}

	data := make([]models.ListItem, 0, len(page.Data)+1)
	data = append(data, item)
	data = append(data, page.Data...)

	if len(data) > page.Limit {
		data = data[:page.Limit]
		next := encodeItemCursor(data[len(data)-1])
		page.NextCursor = &next
	}

	page.Data = data
	page.Count = len(data)

	lg.Debug("patching cached first page", "version", version)
	s.storePage(ctx, lg, key, page)
}

// encodeItemCursor строит курсор по элементу. ID всегда назначает хранилище,
// поэтому ошибка разбора hex невозможна для реальных данных.
func encodeItemCursor(it models.ListItem) string {
	oid, _ := primitive.ObjectIDFromHex(it.ID)
	return cursor.Encode(cursor.Cursor{CreatedAt: it.CreatedAt, ID: oid})
}

// normalizePage приводит декодированную из кэша страницу к виду, который отдаёт БД:
// непустой срез и время в UTC (msgpack возвращает локальную зону).
func normalizePage(p *models.Page) {
	if p.Data == nil {
		p.Data = []models.ListItem{}
	}

	for i := range p.Data {
		p.Data[i].CreatedAt = p.Data[i].CreatedAt.UTC()
	}
}

// clonePage копирует срез данных: страница из singleflight разделяется между вызывающими.
func clonePage(p models.Page) models.Page {
	p.Data = append([]models.ListItem{}, p.Data...)
	if p.NextCursor != nil {
		next := *p.NextCursor
		p.NextCursor = &next
	}

	return p
}

// limitOrDefault — нормализует размер страницы: <=0 -> def; >maxLimit -> maxLimit.
func limitOrDefault(def, maxLimit, in int32) int64 {
	if maxLimit <= 0 {
		maxLimit = 100
	}

	if def <= 0 || def > maxLimit {
		def = min(25, maxLimit)
	}

	switch {
	case in <= 0:
		return int64(def)
	case in > maxLimit:
		return int64(maxLimit)
	default:
		return int64(in)
	}
}

// sleepCtx ждёт d целиком; раньше возвращается только при отмене ctx.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
