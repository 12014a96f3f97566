package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pribylovaa/mylist-service/internal/models"
	"github.com/pribylovaa/mylist-service/internal/service"
)

// MyList — операции сервисного слоя, нужные хендлерам.
type MyList interface {
	List(ctx context.Context, in service.ListInput) (*models.ListResult, error)
	Add(ctx context.Context, in service.AddInput) (*models.AddResult, error)
	Remove(ctx context.Context, in service.RemoveInput) (bool, error)
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	MyList MyList
}

func New(svc MyList) *Handlers {
	return &Handlers{MyList: svc}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
