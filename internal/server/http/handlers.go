package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/docshare/internal/blob"
	"github.com/and161185/docshare/internal/model"
	"github.com/and161185/docshare/internal/service"
)

const multipartMemory = 32 << 20

type messageResponse struct {
	Message string `json:"message"`
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type uploadResponse struct {
	Message string `json:"message"`
	FileID  string `json:"file_id"`
}

type grantResponse struct {
	DownloadLink string    `json:"download_link"`
	Message      string    `json:"message"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "File Sharing API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleToken accepts an OAuth2 password form or a JSON body.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid form body")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "username and password are required")
		return
	}

	tok, _, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresAt:   tok.ExpiresAt.UTC(),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromCtx(r.Context())
	writeJSON(w, http.StatusOK, id)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromCtx(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeServiceError(w, r, err, "")
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "expected multipart/form-data body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, `missing form field "file"`)
		return
	}
	defer file.Close()

	rec, err := s.files.Upload(r.Context(), caller, header.Filename, file, header.Size)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Message: "File uploaded successfully", FileID: rec.ID.String()})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.files.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	if list == nil {
		list = []model.FileRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromCtx(r.Context())
	g, err := s.files.CreateGrant(r.Context(), caller, r.PathValue("file_id"))
	if err != nil {
		s.writeServiceError(w, r, err, "File not found")
		return
	}
	s.log.Info("download grant issued",
		zap.String("file_id", g.FileID.String()),
		zap.String("grantee", g.Grantee),
		zap.Time("expires_at", g.ExpiresAt))
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, grantResponse{
		DownloadLink: service.DownloadPath(g.Token),
		Message:      "success",
		ExpiresAt:    g.ExpiresAt.UTC(),
	})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	f, rc, err := s.files.RedeemGrant(r.Context(), r.PathValue("token"))
	if err != nil {
		detail := "Invalid download link"
		if errors.Is(err, blob.ErrNotExist) {
			detail = "File not found"
		}
		s.writeServiceError(w, r, err, detail)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Filename}))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("download interrupted",
			zap.String("file_id", f.ID.String()),
			zap.String("request_id", RequestIDFromCtx(r.Context())),
			zap.Error(err))
	}
}
