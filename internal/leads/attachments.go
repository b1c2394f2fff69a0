package leads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"leadtracker/internal/notify"
	"leadtracker/pkg/logger"
)

const (
	DefaultScreenshotBucket = "screenshots"
	DefaultMaxUploadBytes   = 10 * 1024 * 1024 // 10 MB
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidMimeType = errors.New("file type not allowed")
	ErrUploadFailed    = errors.New("screenshot upload failed")
)

// allowedImageTypes are the screenshot formats accepted as proof.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type AttachmentOptions struct {
	Bucket   string
	MaxBytes int64
	Notifier Notifier
	Observer Observer
	// Clock is injectable for deterministic storage keys in tests.
	Clock func() time.Time
}

// Attachments binds uploaded screenshot files to persisted leads.
type Attachments struct {
	repo     *Repository
	blobs    BlobStore
	bucket   string
	maxBytes int64
	notifier Notifier
	observer Observer
	clock    func() time.Time
}

func NewAttachments(repo *Repository, blobs BlobStore, opts AttachmentOptions) *Attachments {
	a := &Attachments{
		repo:     repo,
		blobs:    blobs,
		bucket:   opts.Bucket,
		maxBytes: opts.MaxBytes,
		notifier: opts.Notifier,
		observer: opts.Observer,
		clock:    opts.Clock,
	}
	if a.bucket == "" {
		a.bucket = DefaultScreenshotBucket
	}
	if a.maxBytes <= 0 {
		a.maxBytes = DefaultMaxUploadBytes
	}
	if a.notifier == nil {
		a.notifier = nopNotifier{}
	}
	if a.observer == nil {
		a.observer = nopObserver{}
	}
	if a.clock == nil {
		a.clock = time.Now
	}
	return a
}

// Attach uploads a screenshot for a persisted lead and records its public
// URL and original file name on the lead. Drafts are rejected before any
// remote call; a failed upload leaves the lead unchanged.
func (a *Attachments) Attach(ctx context.Context, leadID, fileName string, data []byte) (Lead, error) {
	lead, ok := a.repo.Lead(leadID)
	if !ok {
		return Lead{}, fmt.Errorf("%w: %s", ErrNotFound, leadID)
	}
	if lead.IsDraft() {
		a.notifier.Notify(ctx, notify.Failure(OpUpload, leadID,
			"Please enter a name first to save the lead before uploading screenshots.", nil))
		return Lead{}, fmt.Errorf("%w: %s", ErrDraftNotSaved, leadID)
	}

	if len(data) == 0 {
		return Lead{}, ErrEmptyFile
	}
	if int64(len(data)) > a.maxBytes {
		return Lead{}, ErrFileTooLarge
	}
	contentType := strings.Split(http.DetectContentType(data), ";")[0]
	defaultExt, ok := allowedImageTypes[contentType]
	if !ok {
		return Lead{}, fmt.Errorf("%w: %s", ErrInvalidMimeType, contentType)
	}

	key := a.storageKey(lead, fileName, defaultExt)
	err := a.blobs.Upload(ctx, a.bucket, key, data, contentType)
	a.observer.ObserveStoreOp(OpUpload, err)
	if err != nil {
		logger.From(ctx).Error("screenshot upload failed", "lead_id", lead.ID, "key", key, "err", err)
		a.notifier.Notify(ctx, notify.Failure(OpUpload, lead.ID, "Failed to upload screenshot: "+err.Error(), err))
		return Lead{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	url := a.blobs.PublicURL(a.bucket, key)

	if _, err := a.repo.Update(ctx, lead.ID, FieldScreenshotURL, url); err != nil {
		return a.current(lead), err
	}
	updated, err := a.repo.Update(ctx, lead.ID, FieldScreenshotFileName, fileName)
	if err != nil {
		return a.current(lead), err
	}
	a.notifier.Notify(ctx, notify.Success(OpUpload, lead.ID, "Screenshot uploaded successfully"))
	return updated, nil
}

// storageKey is <owner>/<lead id>-<unix millis><ext>.
func (a *Attachments) storageKey(l Lead, fileName, defaultExt string) string {
	owner := l.UserID
	if owner == "" {
		owner = a.repo.Scope()
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(fileName)))
	if ext == "" || ext == "." {
		ext = defaultExt
	}
	return fmt.Sprintf("%s/%s-%d%s", owner, l.ID, a.clock().UnixMilli(), ext)
}

func (a *Attachments) current(fallback Lead) Lead {
	if l, ok := a.repo.Lead(fallback.ID); ok {
		return l
	}
	return fallback
}
