// service содержит бизнес-логику mylist-сервиса: выдачу списка с кэшированием
// страниц и мутации, инвалидирующие кэш через счётчик версий.
package service

import (
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/mylist-service/internal/cache"
	"github.com/pribylovaa/mylist-service/internal/config"
	"github.com/pribylovaa/mylist-service/internal/metrics"
	"github.com/pribylovaa/mylist-service/internal/models"
	"github.com/pribylovaa/mylist-service/internal/storage"
)

var (
	// ErrInvalidArgument — неверные входные параметры запроса к сервису.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict — элемент уже существует (гонка одинаковых вставок).
	ErrConflict = errors.New("conflict")
	// ErrInternal — внутренняя ошибка (стораж/БД/и т.д.).
	ErrInternal = errors.New("internal")
)

// Service — описывает бизнес-логику mylist-service.
type Service struct {
	storage storage.Storage
	cache   cache.Store
	cfg     config.Config
	codec   cache.Codec[models.Page]
	metrics *metrics.Metrics

	// rebuilds объединяет одновременные пересборки одной страницы внутри процесса.
	rebuilds singleflight.Group
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics подключает счётчики Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCodec заменяет кодек страниц в кэше (по умолчанию msgpack).
func WithCodec(c cache.Codec[models.Page]) Option {
	return func(s *Service) {
		if c != nil {
			s.codec = c
		}
	}
}

// New создает новый экземпляр Service. nil-кэш заменяется на cache.Nop.
func New(storage storage.Storage, store cache.Store, cfg config.Config, opts ...Option) *Service {
	if store == nil {
		store = cache.Nop{}
	}

	s := &Service{
		storage: storage,
		cache:   store,
		cfg:     cfg,
		codec:   cache.Msgpack[models.Page]{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}
