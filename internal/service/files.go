package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/docshare/internal/blob"
	"github.com/and161185/docshare/internal/crypto"
	"github.com/and161185/docshare/internal/errs"
	"github.com/and161185/docshare/internal/model"
	"github.com/and161185/docshare/internal/repository"
)

// DownloadPrefix is the relative path under which grants are redeemed.
const DownloadPrefix = "/download-file/"

const grantTokenBytes = 32

var allowedExt = map[string]struct{}{
	".pptx": {},
	".docx": {},
	".xlsx": {},
}

// FileService defines the file registry and the download-grant flow.
type FileService interface {
	// Upload stores bytes and registers the file.
	Upload(ctx context.Context, caller model.Identity, filename string, r io.Reader, size int64) (model.FileRecord, error)
	// RegisterUpload records a file whose bytes already live at locator.
	RegisterUpload(ctx context.Context, caller model.Identity, filename, locator string, size int64) (model.FileRecord, error)
	// List returns every file in upload order.
	List(ctx context.Context) ([]model.FileRecord, error)
	// CreateGrant mints a short-lived download grant for one file.
	CreateGrant(ctx context.Context, caller model.Identity, fileID string) (model.Grant, error)
	// RedeemGrant resolves a grant token into the file it authorizes and
	// opens its bytes. The caller must close the returned reader.
	RedeemGrant(ctx context.Context, token string) (model.FileRecord, io.ReadCloser, error)
	// Open streams a registered file's bytes.
	Open(ctx context.Context, f model.FileRecord) (io.ReadCloser, error)
	// PurgeExpiredGrants deletes grants that can no longer be redeemed.
	PurgeExpiredGrants(ctx context.Context) (int, error)
}

type FileServiceImpl struct {
	files     repository.FileRepository
	grants    repository.GrantRepository
	blobs     blob.Store
	grantTTL  time.Duration
	singleUse bool
	now       func() time.Time
	log       *zap.Logger
}

// FileOption configures FileServiceImpl.
type FileOption func(*FileServiceImpl)

// WithGrantTTL sets the grant lifetime (default 30 minutes).
func WithGrantTTL(d time.Duration) FileOption {
	return func(s *FileServiceImpl) {
		if d > 0 {
			s.grantTTL = d
		}
	}
}

// WithSingleUse controls whether a grant is consumed by its first redemption
// (default true).
func WithSingleUse(v bool) FileOption { return func(s *FileServiceImpl) { s.singleUse = v } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) FileOption { return func(s *FileServiceImpl) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) FileOption { return func(s *FileServiceImpl) { s.log = l } }

// NewFileService constructs FileService.
func NewFileService(files repository.FileRepository, grants repository.GrantRepository, blobs blob.Store, opts ...FileOption) *FileServiceImpl {
	s := &FileServiceImpl{
		files:     files,
		grants:    grants,
		blobs:     blobs,
		grantTTL:  30 * time.Minute,
		singleUse: true,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ValidateFilename accepts exactly .pptx, .docx and .xlsx, case-insensitively,
// and requires a name before the extension.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty filename", errs.ErrUnsupportedFileType)
	}
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(base))
	if _, ok := allowedExt[ext]; !ok {
		return fmt.Errorf("%w: %q", errs.ErrUnsupportedFileType, ext)
	}
	if strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base))) == "" {
		return fmt.Errorf("%w: %q has no name before the extension", errs.ErrUnsupportedFileType, name)
	}
	return nil
}

// DownloadPath packages a grant token as its relative redemption path.
func DownloadPath(token string) string { return DownloadPrefix + token }

// Upload validates the caller and filename, writes r to blob storage and
// registers the record. The blob is removed again if registration fails.
func (s *FileServiceImpl) Upload(ctx context.Context, caller model.Identity, filename string, r io.Reader, size int64) (model.FileRecord, error) {
	if err := checkUploader(caller, filename); err != nil {
		return model.FileRecord{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.FileRecord{}, err
	}
	key := id.String() + strings.ToLower(filepath.Ext(filename))
	locator, err := s.blobs.Put(ctx, key, r, size)
	if err != nil {
		return model.FileRecord{}, fmt.Errorf("store bytes: %w", err)
	}
	rec, err := s.register(ctx, id, caller, filename, locator, size)
	if err != nil {
		if derr := s.blobs.Delete(ctx, locator); derr != nil {
			s.log.Warn("orphaned blob", zap.String("locator", locator), zap.Error(derr))
		}
		return model.FileRecord{}, err
	}
	return rec, nil
}

// RegisterUpload records a file whose bytes the caller already persisted.
func (s *FileServiceImpl) RegisterUpload(ctx context.Context, caller model.Identity, filename, locator string, size int64) (model.FileRecord, error) {
	if err := checkUploader(caller, filename); err != nil {
		return model.FileRecord{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.FileRecord{}, err
	}
	return s.register(ctx, id, caller, filename, locator, size)
}

func checkUploader(caller model.Identity, filename string) error {
	if caller.Role != model.RoleOps {
		return errs.ErrForbidden
	}
	return ValidateFilename(filename)
}

func (s *FileServiceImpl) register(ctx context.Context, id uuid.UUID, caller model.Identity, filename, locator string, size int64) (model.FileRecord, error) {
	rec := model.FileRecord{
		ID:         id,
		Filename:   filename,
		UploadedBy: caller.Username,
		UploadedAt: s.now().UTC(),
		Size:       size,
		Locator:    locator,
	}
	if err := s.files.Create(ctx, &rec); err != nil {
		return model.FileRecord{}, fmt.Errorf("register file: %w", err)
	}
	s.log.Info("file registered",
		zap.String("file_id", id.String()),
		zap.String("filename", filename),
		zap.String("uploaded_by", caller.Username))
	return rec, nil
}

// List returns all file records in insertion order.
func (s *FileServiceImpl) List(ctx context.Context) ([]model.FileRecord, error) {
	return s.files.List(ctx)
}

// CreateGrant mints a grant on fileID for a client-role caller. Malformed ids
// are reported as errs.ErrNotFound.
func (s *FileServiceImpl) CreateGrant(ctx context.Context, caller model.Identity, fileID string) (model.Grant, error) {
	if caller.Role != model.RoleClient {
		return model.Grant{}, errs.ErrForbidden
	}
	id, err := uuid.FromString(fileID)
	if err != nil {
		return model.Grant{}, errs.ErrNotFound
	}
	if _, err := s.files.GetByID(ctx, id); err != nil {
		return model.Grant{}, err
	}
	raw, err := crypto.RandBytes(grantTokenBytes)
	if err != nil {
		return model.Grant{}, err
	}
	now := s.now().UTC()
	g := model.Grant{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		FileID:    id,
		Grantee:   caller.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.grantTTL),
	}
	if err := s.grants.Create(ctx, &g); err != nil {
		return model.Grant{}, fmt.Errorf("store grant: %w", err)
	}
	return g, nil
}

// RedeemGrant returns the file a grant authorizes together with its opened
// bytes. Unknown, expired and (in single-use mode) already redeemed grants all
// yield errs.ErrNotFound, as does a grant whose file is no longer registered.
// A single-use grant is consumed only after the bytes were opened, so a
// storage fault leaves the link redeemable.
func (s *FileServiceImpl) RedeemGrant(ctx context.Context, token string) (model.FileRecord, io.ReadCloser, error) {
	if token == "" {
		return model.FileRecord{}, nil, errs.ErrNotFound
	}
	now := s.now().UTC()
	g, err := s.grants.GetByToken(ctx, token)
	if err != nil {
		return model.FileRecord{}, nil, err
	}
	if g.Expired(now) || (s.singleUse && g.RedeemedAt != nil) {
		return model.FileRecord{}, nil, errs.ErrNotFound
	}
	f, err := s.files.GetByID(ctx, g.FileID)
	if err != nil {
		return model.FileRecord{}, nil, err
	}
	rc, err := s.Open(ctx, *f)
	if err != nil {
		return model.FileRecord{}, nil, err
	}
	if s.singleUse {
		// Concurrent redemptions race here; the store lets exactly one win.
		if _, err := s.grants.Redeem(ctx, token, now); err != nil {
			_ = rc.Close()
			return model.FileRecord{}, nil, err
		}
	}
	return *f, rc, nil
}

// Open streams the bytes of f. Missing bytes yield errs.ErrNotFound wrapping
// blob.ErrNotExist.
func (s *FileServiceImpl) Open(ctx context.Context, f model.FileRecord) (io.ReadCloser, error) {
	rc, err := s.blobs.Open(ctx, f.Locator)
	if errors.Is(err, blob.ErrNotExist) {
		return nil, fmt.Errorf("%w: bytes of %s: %w", errs.ErrNotFound, f.ID, err)
	}
	return rc, err
}

// PurgeExpiredGrants deletes grants whose expiry has passed.
func (s *FileServiceImpl) PurgeExpiredGrants(ctx context.Context) (int, error) {
	return s.grants.DeleteExpired(ctx, s.now().UTC())
}

// RunGrantPurge calls PurgeExpiredGrants every interval until ctx is done.
func (s *FileServiceImpl) RunGrantPurge(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.PurgeExpiredGrants(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("grant purge failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				s.log.Info("expired grants purged", zap.Int("count", n))
			}
		}
	}
}
