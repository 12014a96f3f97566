package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/mylist-service/internal/errors"
	"github.com/pribylovaa/mylist-service/internal/http/middleware"
	"github.com/pribylovaa/mylist-service/internal/models"
	"github.com/pribylovaa/mylist-service/internal/pkg/log"
	"github.com/pribylovaa/mylist-service/internal/service"
)

// addRequest — тело POST /my-list.
// Допустимость contentType (без учёта регистра) проверяет сервис.
type addRequest struct {
	ContentID   string `json:"contentId"   validate:"required,max=256"`
	ContentType string `json:"contentType" validate:"required,max=32"`
}

type listResponse struct {
	Source models.Source `json:"source"`
	models.Page
}

type addResponse struct {
	OK       bool            `json:"ok"`
	Item     models.ListItem `json:"item"`
	Existing bool            `json:"existing,omitempty"`
}

type removeResponse struct {
	OK      bool `json:"ok"`
	Deleted bool `json:"deleted"`
}

// ListMyList — GET /my-list?limit=&cursor=.
func (h *Handlers) ListMyList(w http.ResponseWriter, r *http.Request) {
	in := service.ListInput{
		UserID: middleware.UserIDFrom(r.Context()),
		Cursor: r.URL.Query().Get("cursor"),
	}

	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			apierrors.WriteError(w, r, apierrors.ErrBadRequest)
			return
		}

		in.Limit = int32(n)
	}

	res, err := h.MyList.List(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Source: res.Source, Page: res.Page})
}

// AddToMyList — POST /my-list {contentId, contentType}.
// 201 — элемент создан, 200 + existing=true — уже был в списке.
func (h *Handlers) AddToMyList(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeStrict(w, r, &req); err != nil {
		log.From(r.Context()).Warn("bad add request", "err", err)
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.MyList.Add(r.Context(), service.AddInput{
		UserID:      middleware.UserIDFrom(r.Context()),
		ContentID:   req.ContentID,
		ContentType: models.ContentType(req.ContentType),
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if !res.Created {
		writeJSON(w, http.StatusOK, addResponse{OK: true, Item: res.Item, Existing: true})
		return
	}

	writeJSON(w, http.StatusCreated, addResponse{OK: true, Item: res.Item})
}

// RemoveFromMyList — DELETE /my-list/{itemId}; itemId — contentId элемента.
func (h *Handlers) RemoveFromMyList(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	if strings.TrimSpace(itemID) == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	deleted, err := h.MyList.Remove(r.Context(), service.RemoveInput{
		UserID:    middleware.UserIDFrom(r.Context()),
		ContentID: itemID,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, removeResponse{OK: true, Deleted: deleted})
}
