package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/livedocs/internal/dom"
	"git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/fetch"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/server/responses"
	"git.home.luguber.info/inful/livedocs/internal/session"
)

// OutcomeHeader reports how the route was resolved.
const OutcomeHeader = "X-Livedocs-Outcome"

// SessionOpener opens a session rendered at a route.
type SessionOpener interface {
	Open(ctx context.Context, raw string) (*session.Session, fetch.Result, error)
}

// RenderHandlers serve server-side rendered routes.
type RenderHandlers struct {
	sessions     SessionOpener
	errorAdapter *errors.HTTPErrorAdapter
}

func NewRenderHandlers(sessions SessionOpener) *RenderHandlers {
	return &RenderHandlers{
		sessions:     sessions,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandlePage renders the route named by the request path and query as a
// complete HTML document.
func (h *RenderHandlers) HandlePage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Path
	if r.URL.RawQuery != "" {
		raw += "?" + r.URL.RawQuery
	}
	s, res, err := h.sessions.Open(r.Context(), raw)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	page, err := s.HTML()
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.RenderError("failed to serialize page").WithCause(err).WithContext("route", raw).Build())
		return
	}
	w.Header().Set(OutcomeHeader, string(res.Outcome))
	writeHTML(w, statusFor(res), page)
}

// HandleRenderAPI renders ?route= and returns the main content as JSON.
func (h *RenderHandlers) HandleRenderAPI(w http.ResponseWriter, r *http.Request) {
	route := r.URL.Query().Get("route")
	if route == "" {
		route = "/"
	}
	s, res, err := h.sessions.Open(r.Context(), route)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	payload := &responses.RenderResponse{
		Route:     s.Site().Router.Route().Path,
		Outcome:   string(res.Outcome),
		URL:       res.URL,
		Title:     s.Title(),
		Content:   s.Site().Document.InnerHTML(dom.SelectorMain),
		SessionID: s.ID(),
		Timestamp: time.Now().UTC(),
	}
	if err := writeJSONPretty(w, r, statusFor(res), payload); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.WrapError(err, errors.CategoryInternal, "failed to write render response").Build())
	}
}

func statusFor(res fetch.Result) int {
	switch res.Outcome {
	case metrics.OutcomeNotFound, metrics.OutcomePlaceholder:
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}
