package upload

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dropgate/service/internal/metrics"
	"github.com/dropgate/service/internal/response"
)

// Handler holds HTTP handlers for the upload endpoints.
type Handler struct {
	svc *Service
	log *zap.SugaredLogger
}

// NewHandler creates a new upload Handler.
func NewHandler(svc *Service, log *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the upload endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/credential", h.IssueCredential)
	r.Post("/credential", h.IssueCredential)
	r.Post("/inline", h.InlineUpload)
}

type credentialData struct {
	Key string `json:"key" example:"http://localhost:9000/uploads/report.pdf-0b0c...?X-Amz-Signature=..."`
}

// IssueCredential godoc
//
//	@Summary		Issue upload credential
//	@Description	Returns a write-only pre-signed URL for a fresh object named after filename. The URL is valid from five minutes ago for SAS_LIMIT_HOURS hours and, when SAS_IP_RANGE is set, carries a signed IP restriction.
//	@Tags			uploads
//	@Produce		json
//	@Param			filename		query		string	true	"Name prefix of the object"
//	@Param			X-Forwarded-For	header		string	true	"Client address set by the proxy"
//	@Success		200				{object}	credentialData
//	@Failure		400				{string}	string	"Filename is not defined"
//	@Failure		422				{string}	string	"Malformed request"
//	@Failure		500				{string}	string	"Unexpected error."
//	@Router			/uploads/credential [get]
//	@Router			/uploads/credential [post]
func (h *Handler) IssueCredential(w http.ResponseWriter, r *http.Request) {
	req := Request{
		Filename: r.URL.Query().Get("filename"),
		SourceIP: FirstForwardedIP(r.Header.Get(HeaderForwardedFor)),
	}
	if req.SourceIP == "" {
		h.log.Errorw("could not retrieve inbound ip", "headers", r.Header)
	}

	reply, err := h.svc.IssueCredential(r.Context(), req)
	if err != nil {
		h.misconfigured(w, r, err)
		return
	}
	response.Write(w, reply)
}

// InlineUpload godoc
//
//	@Summary		Upload a small file inline
//	@Description	Stores the first part of a multipart/form-data body under a fresh object named after filename.
//	@Tags			uploads
//	@Accept			mpfd
//	@Produce		plain
//	@Param			filename	query		string	true	"Name prefix of the object"
//	@Param			file		formData	file	true	"File to store"
//	@Success		200			{string}	string	"OK"
//	@Failure		400			{string}	string	"missing filename, empty or malformed body"
//	@Failure		413			{string}	string	"Request body too large"
//	@Failure		500			{string}	string	"Unexpected error."
//	@Router			/uploads/inline [post]
func (h *Handler) InlineUpload(w http.ResponseWriter, r *http.Request) {
	req := Request{
		Filename:    r.URL.Query().Get("filename"),
		SourceIP:    FirstForwardedIP(r.Header.Get(HeaderForwardedFor)),
		ContentType: r.Header.Get("Content-Type"),
	}
	if req.Filename == "" {
		response.Write(w, h.svc.StoreInline(r.Context(), req))
		return
	}

	limit, err := h.svc.InlineLimit()
	if err != nil {
		h.misconfigured(w, r, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.svc.metrics.InlineUpload(metrics.OutcomeOversized)
			h.log.Warnw("inline upload too large", "filename", req.Filename, "limit", limit)
			response.Write(w, response.Error(http.StatusRequestEntityTooLarge, msgTooLarge))
			return
		}
		h.log.Warnw("inline upload body unreadable", "filename", req.Filename, "error", err)
		response.Write(w, response.Error(http.StatusBadRequest, msgUnreadable))
		return
	}
	req.Body = body

	response.Write(w, h.svc.StoreInline(r.Context(), req))
}

// misconfigured fails the request without a formatted reply.
func (h *Handler) misconfigured(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Errorw("upload policy misconfigured", "path", r.URL.Path, "error", err)
	http.Error(w, msgMisconfig, http.StatusInternalServerError)
}
