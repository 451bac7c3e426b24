package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabtrack/fabtrack/internal/authz"
	"github.com/fabtrack/fabtrack/internal/shared"
)

type stubProvider struct {
	actors map[int64]authz.Actor
}

func (p stubProvider) Resolve(_ context.Context, userID int64) (authz.Actor, error) {
	actor, ok := p.actors[userID]
	if !ok {
		return authz.Actor{}, fmt.Errorf("%w: unknown user %d", shared.ErrUnauthenticated, userID)
	}
	return actor, nil
}

type stubRenderer struct {
	err error
}

func (r stubRenderer) OrderPDF(_ context.Context, o *Order) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + o.Code), nil
}

func newTestRouter(f *serviceFixture, renderer Renderer) http.Handler {
	provider := stubProvider{actors: map[int64]authz.Actor{
		1:   adminActor(),
		100: commercialActor(100),
		201: fabricatorActor(201, 1),
		202: fabricatorActor(202, 2),
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := authz.Middleware{Provider: provider, Logger: logger}
	h := NewHandler(logger, f.service, nil, renderer, mw)

	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	h.MountRoutes(r)
	return r
}

func doRequest(router http.Handler, method, path string, actorID int64, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if actorID != 0 {
		req.Header.Set(authz.ActorHeader, strconv.FormatInt(actorID, 10))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateOrder(t *testing.T) {
	f := newServiceFixture()
	router := newTestRouter(f, nil)

	body := `{"customer_id":10,"fabricator_id":1,"lines":[{"environment":"Lobby","width":"1.5","height":"2"}]}`
	rec := doRequest(router, http.MethodPost, "/orders", 100, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "PED-0000001", got.Code)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "1.5", got.Lines[0].Width.String())
}

func TestHandlerCreateOrderRejectsBadBody(t *testing.T) {
	f := newServiceFixture()
	router := newTestRouter(f, nil)

	rec := doRequest(router, http.MethodPost, "/orders", 100, `{"customer_id":10,"unexpected":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = doRequest(router, http.MethodPost, "/orders", 100, `{"customer_id":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRequiresActor(t *testing.T) {
	f := newServiceFixture()
	router := newTestRouter(f, nil)

	rec := doRequest(router, http.MethodGet, "/orders", 0, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodGet, "/orders", 777, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerTransitionStatusCodes(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusAccepted)
	router := newTestRouter(f, nil)
	path := fmt.Sprintf("/orders/%d/transition", o.ID)

	rec := doRequest(router, http.MethodPost, path, 201, `{"status":"COMPLETED"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(router, http.MethodPost, path, 202, `{"status":"IN_FABRICATION"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(router, http.MethodPost, path, 201, `{"status":"IN_FABRICATION","note":"started"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, StatusInFabrication, got.Status)
}

func TestHandlerDeleteBoundary(t *testing.T) {
	f := newServiceFixture()
	router := newTestRouter(f, nil)

	inFab := f.seed(t, StatusInFabrication)
	rec := doRequest(router, http.MethodDelete, fmt.Sprintf("/orders/%d", inFab.ID), 1, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	cancelled := f.seed(t, StatusCancelled)
	rec = doRequest(router, http.MethodDelete, fmt.Sprintf("/orders/%d", cancelled.ID), 1, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(router, http.MethodDelete, fmt.Sprintf("/orders/%d", cancelled.ID), 1, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListAndStats(t *testing.T) {
	f := newServiceFixture()
	f.seed(t, StatusSubmitted)
	router := newTestRouter(f, nil)

	rec := doRequest(router, http.MethodGet, "/orders?status=SUBMITTED&limit=10", 100, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page shared.PageResult[Order]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 10, page.Limit)

	rec = doRequest(router, http.MethodGet, "/orders?active=maybe", 100, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodGet, "/orders/stats", 202, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.Total)
}

func TestHandlerPDF(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusSubmitted)
	path := fmt.Sprintf("/orders/%d/pdf", o.ID)

	rec := doRequest(newTestRouter(f, stubRenderer{}), http.MethodGet, path, 100, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-"+o.Code, rec.Body.String())

	rec = doRequest(newTestRouter(f, stubRenderer{err: errors.New("gotenberg down")}), http.MethodGet, path, 100, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = doRequest(newTestRouter(f, nil), http.MethodGet, path, 100, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
