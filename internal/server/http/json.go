package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/docshare/internal/errs"
)

// Error codes carried in the "code" field of error bodies.
const (
	codeInvalidCredentials = "invalid_credentials"
	codeUnauthenticated    = "unauthenticated"
	codeForbidden          = "forbidden"
	codeNotFound           = "not_found"
	codeUnsupportedType    = "unsupported_file_type"
	codeTooLarge           = "too_large"
	codeBadRequest         = "bad_request"
	codeInternal           = "internal"
)

type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, errorResponse{Detail: detail, Code: code})
}

// writeServiceError maps a service error onto a status code. notFound, when
// set, replaces the default 404 detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errs.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "Incorrect username or password")
	case errors.Is(err, errs.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "Could not validate credentials")
	case errors.Is(err, errs.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, "Not enough permissions")
	case errors.Is(err, errs.ErrNotFound):
		if notFound == "" {
			notFound = "Not found"
		}
		writeError(w, http.StatusNotFound, codeNotFound, notFound)
	case errors.Is(err, errs.ErrUnsupportedFileType):
		writeError(w, http.StatusBadRequest, codeUnsupportedType, "Only .pptx, .docx and .xlsx files are allowed")
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge, "Upload exceeds size limit")
	default:
		s.log.Error("request failed",
			zap.String("route", r.Pattern),
			zap.String("request_id", RequestIDFromCtx(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}
