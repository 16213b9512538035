package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"insured/internal/insured/models"
	dErrors "insured/pkg/domain-errors"
	"insured/pkg/platform/httputil"
	"insured/pkg/requestcontext"
)

// Pagination metadata travels in headers so the list body stays a plain array.
const (
	HeaderTotalCount  = "X-Total-Count"
	HeaderCurrentPage = "X-Current-Page"
	HeaderPageSize    = "X-Page-Size"
)

// Service is the registry contract the handler depends on.
type Service interface {
	Create(ctx context.Context, p *models.InsuredPerson) (*models.InsuredPerson, error)
	List(ctx context.Context, page, pageSize int) (*models.Page, error)
	Get(ctx context.Context, id int64) (*models.InsuredPerson, error)
	Update(ctx context.Context, id int64, p *models.InsuredPerson) error
	Delete(ctx context.Context, id int64, expectedVersion int64) error
}

// Handler exposes the insured registry over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the registry routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/insured", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleCreate registers a new insured person.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	p, ok := httputil.DecodeJSON[models.InsuredPerson](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.Create(ctx, p)
	if err != nil {
		h.writeError(ctx, w, err, "failed to create insured person")
		return
	}

	w.Header().Set("Location", "/insured/"+strconv.FormatInt(created.IdentificationNumber, 10))
	w.Header().Set("ETag", formatETag(created.Version))
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleList returns one page of the registry. page and pageSize default to
// 1 and 10 when absent.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := queryInt(r, "page", models.DefaultPage)
	if err != nil {
		h.writeError(ctx, w, err, "invalid pagination")
		return
	}
	pageSize, err := queryInt(r, "pageSize", models.DefaultPageSize)
	if err != nil {
		h.writeError(ctx, w, err, "invalid pagination")
		return
	}

	result, err := h.service.List(ctx, page, pageSize)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list insured persons")
		return
	}

	w.Header().Set(HeaderTotalCount, strconv.Itoa(result.Total))
	w.Header().Set(HeaderCurrentPage, strconv.Itoa(result.Page))
	w.Header().Set(HeaderPageSize, strconv.Itoa(result.PageSize))
	httputil.WriteJSON(w, http.StatusOK, result.Items)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid identification number")
		return
	}

	p, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err, "failed to get insured person")
		return
	}

	w.Header().Set("ETag", formatETag(p.Version))
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleUpdate replaces the record at the path identity. An If-Match header
// makes the write conditional on the version the client last saw.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := pathID(r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid identification number")
		return
	}
	version, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		h.writeError(ctx, w, err, "invalid If-Match header")
		return
	}

	p, ok := httputil.DecodeJSON[models.InsuredPerson](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p.Version = version

	if err := h.service.Update(ctx, id, p); err != nil {
		h.writeError(ctx, w, err, "failed to update insured person")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid identification number")
		return
	}
	version, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		h.writeError(ctx, w, err, "invalid If-Match header")
		return
	}

	if err := h.service.Delete(ctx, id, version); err != nil {
		h.writeError(ctx, w, err, "failed to delete insured person")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError logs at a level matching who is at fault and writes the mapped
// error response.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"code", string(dErrors.CodeOf(err)),
		"error", err,
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "identification number must be an integer")
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be an integer")
	}
	return n, nil
}
