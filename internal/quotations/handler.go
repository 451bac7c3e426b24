package quotations

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

const idempotencyModule = "quotations"

// Renderer produces the customer facing quotation document.
type Renderer interface {
	QuotationPDF(ctx context.Context, q *Quotation) ([]byte, error)
}

// Handler exposes quotations over JSON.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
	renderer    Renderer
	authz       authz.Middleware
}

// NewHandler builds the quotation handler. idempotency and renderer may be nil.
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
		h.fail(w, "list quotations failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())

	var req QuotationRequest
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

	q, err := h.service.Create(r.Context(), req, actor)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(context.WithoutCancel(r.Context()), key, idempotencyModule); delErr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		h.fail(w, "create quotation failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	q, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		h.fail(w, "get quotation failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req QuotationRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	q, err := h.service.Update(r.Context(), id, req, actor)
	if err != nil {
		h.fail(w, "update quotation failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) Clone(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CloneRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeAndValidate(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	actor, _ := authz.ActorFromContext(r.Context())
	q, err := h.service.Clone(r.Context(), id, req.CustomerID, actor)
	if err != nil {
		h.fail(w, "clone quotation failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
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
	q, err := h.service.Transition(r.Context(), id, req.Status, actor, req.Note)
	if err != nil {
		h.fail(w, "quotation transition failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.service.Archive)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.service.Restore)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64, authz.Actor) (*Quotation, error)) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	q, err := fn(r.Context(), id, actor)
	if err != nil {
		h.fail(w, "change quotation activity failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	groupID, err := httpx.URLInt64(r, "groupID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req ItemRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	q, err := h.service.CreateItem(r.Context(), id, groupID, req, actor)
	if err != nil {
		h.fail(w, "create quotation item failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID, err := httpx.URLInt64(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	q, err := h.service.DeleteItem(r.Context(), id, itemID, actor)
	if err != nil {
		h.fail(w, "delete quotation item failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	q, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		h.fail(w, "get quotation failed", err)
		return
	}
	if h.renderer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Rendering Unavailable", "document rendering is not configured")
		return
	}
	pdf, err := h.renderer.QuotationPDF(r.Context(), q)
	if err != nil {
		h.logger.Error("render quotation pdf", slog.Int64("quotation_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Rendering Failed", "")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", q.Code+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
