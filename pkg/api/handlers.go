package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notifykit/pkg/binder"
	"github.com/dmitrymomot/notifykit/pkg/handler"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

const maxListLimit = 100

type createResponse struct {
	Success      bool                  `json:"success"`
	Notification *notifications.Record `json:"notification"`
}

type listRequest struct {
	UserID string `path:"id" query:"-"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
	Status string `query:"status"`
}

type listResponse struct {
	Notifications []notifications.Record `json:"notifications"`
}

type getRequest struct {
	ID string `path:"id"`
}

type handlers struct {
	notifier Notifier
	log      *slog.Logger
}

func (h *handlers) create() http.HandlerFunc {
	return handler.Wrap(
		func(ctx handler.Context, req notifications.Request) handler.Response {
			rec, err := h.notifier.Send(ctx, req)
			if err != nil {
				return handler.Failure(err)
			}
			return handler.JSON(createResponse{Success: true, Notification: rec},
				handler.WithJSONStatus(http.StatusCreated))
		},
		handler.WithBinders[handler.Context, notifications.Request](binder.JSON()),
		handler.WithErrorHandler[handler.Context, notifications.Request](handler.NewErrorHandler(h.log)),
	)
}

func (h *handlers) list() http.HandlerFunc {
	return handler.Wrap(
		func(ctx handler.Context, req listRequest) handler.Response {
			opts, err := req.options()
			if err != nil {
				return handler.Failure(handler.NewHTTPError(http.StatusBadRequest, err))
			}
			recs, err := h.notifier.List(ctx, req.UserID, opts)
			if err != nil {
				return handler.Failure(err)
			}
			if recs == nil {
				recs = []notifications.Record{}
			}
			return handler.JSON(listResponse{Notifications: recs})
		},
		handler.WithBinders[handler.Context, listRequest](binder.Path(chi.URLParam), binder.Query()),
		handler.WithErrorHandler[handler.Context, listRequest](handler.NewErrorHandler(h.log)),
	)
}

func (h *handlers) get() http.HandlerFunc {
	return handler.Wrap(
		func(ctx handler.Context, req getRequest) handler.Response {
			rec, err := h.notifier.Get(ctx, req.ID)
			if errors.Is(err, notifications.ErrNotFound) {
				return handler.Failure(handler.NewHTTPError(http.StatusNotFound, err))
			}
			if err != nil {
				return handler.Failure(err)
			}
			return handler.JSON(rec)
		},
		handler.WithBinders[handler.Context, getRequest](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, getRequest](handler.NewErrorHandler(h.log)),
	)
}

func (r listRequest) options() (notifications.ListOptions, error) {
	if r.Limit < 0 || r.Offset < 0 {
		return notifications.ListOptions{}, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidQuery)
	}
	limit := r.Limit
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	status := notifications.Status(r.Status)
	if status != "" && !status.Valid() {
		return notifications.ListOptions{}, fmt.Errorf("%w: unknown status %q", ErrInvalidQuery, r.Status)
	}
	return notifications.ListOptions{Limit: limit, Offset: r.Offset, Status: status}, nil
}
