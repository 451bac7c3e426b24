package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fabtrack/fabtrack/internal/authz"
	"github.com/fabtrack/fabtrack/internal/platform/httpx"
	"github.com/fabtrack/fabtrack/internal/shared"
)

const idempotencyModule = "orders"

// Renderer produces the work order sheet.
type Renderer interface {
	OrderPDF(ctx context.Context, order *Order) ([]byte, error)
}

// Handler exposes orders over JSON.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
	renderer    Renderer
	authz       authz.Middleware
}

// NewHandler builds the order handler. idempotency and renderer may be nil.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore, renderer Renderer, mw authz.Middleware) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		idempotency: idempotency,
		renderer:    renderer,
		authz:       mw,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())

	filter := ListFilter{
		Page: shared.Page{
			Limit:  httpx.QueryInt(r, "limit", 0),
			Offset: httpx.QueryInt(r, "offset", 0),
		},
	}
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		st := Status(raw)
		filter.Status = &st
	}
	if raw := q.Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid customer_id", shared.ErrValidation))
			return
		}
		filter.CustomerID = &id
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid active flag", shared.ErrValidation))
			return
		}
		filter.Active = &active
	}

	page, err := h.service.List(r.Context(), filter, actor)
	if err != nil {
		h.fail(w, "list orders failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	stats, err := h.service.Stats(r.Context(), actor)
	if err != nil {
		h.fail(w, "order stats failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())

	var req CreateOrderRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	key := r.Header.Get(shared.IdempotencyHeader)
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			h.fail(w, "idempotency check failed", err)
			return
		}
	}

	order, err := h.service.Create(r.Context(), req, actor)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(context.WithoutCancel(r.Context()), key, idempotencyModule); delErr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		h.fail(w, "create order failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	order, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		h.fail(w, "get order failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateOrderRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	order, err := h.service.Update(r.Context(), id, req, actor)
	if err != nil {
		h.fail(w, "update order failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id, actor); err != nil {
		h.fail(w, "delete order failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req TransitionRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	order, err := h.service.Transition(r.Context(), id, req.Status, actor, req.Note)
	if err != nil {
		h.fail(w, "order transition failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.service.Archive)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.service.Restore)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64, authz.Actor) (*Order, error)) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	order, err := fn(r.Context(), id, actor)
	if err != nil {
		h.fail(w, "change order activity failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req LineRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	line, err := h.service.AddLine(r.Context(), id, req, actor)
	if err != nil {
		h.fail(w, "add order line failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lineID, err := httpx.URLInt64(r, "lineID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req LineRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	line, err := h.service.UpdateLine(r.Context(), id, lineID, req, actor)
	if err != nil {
		h.fail(w, "update order line failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lineID, err := httpx.URLInt64(r, "lineID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.DeleteLine(r.Context(), id, lineID, actor); err != nil {
		h.fail(w, "delete order line failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	order, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		h.fail(w, "get order failed", err)
		return
	}
	if h.renderer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Rendering Unavailable", "document rendering is not configured")
		return
	}
	pdf, err := h.renderer.OrderPDF(r.Context(), order)
	if err != nil {
		h.logger.Error("render order pdf", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Rendering Failed", "")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", order.Code+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// fail logs unexpected errors before mapping them to a problem response.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
