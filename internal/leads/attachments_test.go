package leads

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadtracker/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	fail    error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *fakeBlobs) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.objects[bucket+"/"+key] = append([]byte(nil), data...)
	b.types[bucket+"/"+key] = contentType
	return nil
}

func (b *fakeBlobs) PublicURL(bucket, key string) string {
	return "https://cdn.example.com/" + bucket + "/" + key
}

func newAttachmentFixture(t *testing.T) (*Attachments, *Repository, *MemoryStore, *fakeBlobs, *notify.Inbox) {
	t.Helper()
	store := NewMemoryStore()
	store.Seed(persisted("lead-1", "Acme", testNow))
	inbox := notify.NewInbox("test", 0)
	repo := NewRepository(store, Options{Notifier: inbox, Clock: func() time.Time { return testNow }})
	require.NoError(t, repo.Load(context.Background()))
	blobs := newFakeBlobs()
	att := NewAttachments(repo, blobs, AttachmentOptions{
		Notifier: inbox,
		Clock:    func() time.Time { return time.UnixMilli(1710496800123) },
	})
	return att, repo, store, blobs, inbox
}

func TestAttach_UploadsAndRecordsProof(t *testing.T) {
	att, repo, store, blobs, inbox := newAttachmentFixture(t)

	l, err := att.Attach(context.Background(), "lead-1", "Chat Proof.PNG", pngHeader)
	require.NoError(t, err)

	wantKey := DefaultUserID + "/lead-1-1710496800123.png"
	assert.Contains(t, blobs.objects, DefaultScreenshotBucket+"/"+wantKey)
	assert.Equal(t, "image/png", blobs.types[DefaultScreenshotBucket+"/"+wantKey])

	require.NotNil(t, l.ScreenshotURL)
	assert.Equal(t, "https://cdn.example.com/screenshots/"+wantKey, *l.ScreenshotURL)
	require.NotNil(t, l.ScreenshotFileName)
	assert.Equal(t, "Chat Proof.PNG", *l.ScreenshotFileName)
	assert.False(t, l.Invalid())

	local, _ := repo.Lead("lead-1")
	assert.Equal(t, *l.ScreenshotURL, *local.ScreenshotURL)
	row := store.Rows()[0]
	require.NotNil(t, row.ScreenshotURL)
	assert.Equal(t, *l.ScreenshotURL, *row.ScreenshotURL)
	assert.Equal(t, 2, store.Calls().Update)

	notices := inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.LevelSuccess, notices[0].Level)
	assert.Equal(t, "Screenshot uploaded successfully", notices[0].Message)
}

func TestAttach_RejectsDraftWithoutRemoteCalls(t *testing.T) {
	att, repo, store, blobs, inbox := newAttachmentFixture(t)
	d, err := repo.CreateDraft(context.Background(), nil)
	require.NoError(t, err)

	_, err = att.Attach(context.Background(), d.ID, "proof.png", pngHeader)
	require.ErrorIs(t, err, ErrDraftNotSaved)

	assert.Empty(t, blobs.objects)
	assert.Zero(t, store.Calls().Update)
	notices := inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.LevelError, notices[0].Level)
	assert.Contains(t, notices[0].Message, "enter a name first")
}

func TestAttach_UploadFailureLeavesLeadUnchanged(t *testing.T) {
	att, repo, store, blobs, inbox := newAttachmentFixture(t)
	blobs.fail = errors.New("bucket unavailable")

	_, err := att.Attach(context.Background(), "lead-1", "proof.png", pngHeader)
	require.ErrorIs(t, err, ErrUploadFailed)

	l, _ := repo.Lead("lead-1")
	assert.Nil(t, l.ScreenshotURL)
	assert.Nil(t, l.ScreenshotFileName)
	assert.Zero(t, store.Calls().Update)

	notices := inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, "Failed to upload screenshot: bucket unavailable", notices[0].Message)
}

func TestAttach_ValidatesPayload(t *testing.T) {
	att, _, _, blobs, _ := newAttachmentFixture(t)
	ctx := context.Background()

	_, err := att.Attach(ctx, "lead-1", "a.png", nil)
	require.ErrorIs(t, err, ErrEmptyFile)

	_, err = att.Attach(ctx, "lead-1", "a.txt", []byte("just some text"))
	require.ErrorIs(t, err, ErrInvalidMimeType)

	small := NewAttachments(att.repo, blobs, AttachmentOptions{MaxBytes: 4})
	_, err = small.Attach(ctx, "lead-1", "a.png", pngHeader)
	require.ErrorIs(t, err, ErrFileTooLarge)

	_, err = att.Attach(ctx, "missing", "a.png", pngHeader)
	require.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, blobs.objects)
}

func TestAttach_ExtensionFallsBackToContentType(t *testing.T) {
	att, _, _, blobs, _ := newAttachmentFixture(t)

	_, err := att.Attach(context.Background(), "lead-1", "screenshot", pngHeader)
	require.NoError(t, err)
	assert.Contains(t, blobs.objects, DefaultScreenshotBucket+"/"+DefaultUserID+"/lead-1-1710496800123.png")
}
