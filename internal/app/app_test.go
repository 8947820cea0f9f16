package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"wishwall/pkg/domain"
	"wishwall/pkg/store"
)

type fakeObjectStore struct {
	puts    []string
	deletes []string
	putErr  error
}

func (f *fakeObjectStore) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, key)
	return nil
}

func (f *fakeObjectStore) PublicURL(key string) string {
	return "https://cdn.example.test/" + key
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *fakeObjectStore) {
	t.Helper()
	st := store.NewMemoryStore()
	objects := &fakeObjectStore{}
	a, err := New(Config{Store: st, Objects: objects, HashSalt: "pepper"})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, st, objects
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func validSubmission() Submission {
	return Submission{
		Name:      "Alex",
		Wish:      "Happy birthday!!",
		Avatar:    "slyv1",
		IP:        "203.0.113.7",
		UserAgent: "test-agent",
	}
}

func requestStatus(t *testing.T, err error) (*RequestError, int) {
	t.Helper()
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	return reqErr, reqErr.Status
}

func TestCreateWishWithoutPhoto(t *testing.T) {
	a, st, objects := newTestApp(t)
	id, err := a.CreateWish(context.Background(), validSubmission())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}
	if len(objects.puts) != 0 {
		t.Fatalf("no blob should be written without a photo")
	}

	rows, err := st.ListRecent(10)
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.IPPlain != "203.0.113.7" || row.IPTruncated != "203.0.113.xxx" {
		t.Fatalf("ip columns = %q / %q", row.IPPlain, row.IPTruncated)
	}
	if row.IPHash == "" || strings.Contains(row.IPHash, ".") {
		t.Fatalf("expected hex ip hash, got %q", row.IPHash)
	}
	if row.PhotoKey != "" {
		t.Fatalf("photo key should stay empty, got %q", row.PhotoKey)
	}
}

func TestCreateWishValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Submission)
		wantMsg string
	}{
		{"empty name", func(s *Submission) { s.Name = "  " }, "Invalid name length"},
		{"long name", func(s *Submission) { s.Name = strings.Repeat("a", 61) }, "Invalid name length"},
		{"short wish", func(s *Submission) { s.Wish = "hi" }, "Invalid wish length"},
		{"long wish", func(s *Submission) { s.Wish = strings.Repeat("b", 1201) }, "Invalid wish length"},
		{"bogus avatar", func(s *Submission) { s.Avatar = "bogus" }, "Please pick a valid avatar."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, st, objects := newTestApp(t)
			sub := validSubmission()
			tc.mutate(&sub)
			_, err := a.CreateWish(context.Background(), sub)
			reqErr, status := requestStatus(t, err)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", status)
			}
			if reqErr.Message != tc.wantMsg {
				t.Fatalf("message = %q, want %q", reqErr.Message, tc.wantMsg)
			}
			rows, _ := st.ListRecent(10)
			if len(rows) != 0 || len(objects.puts) != 0 {
				t.Fatal("validation failures must have no side effects")
			}
		})
	}
}

func TestCreateWishUnicodeLengthCountsRunes(t *testing.T) {
	a, _, _ := newTestApp(t)
	sub := validSubmission()
	sub.Name = strings.Repeat("ü", 60) // 120 bytes, 60 runes
	if _, err := a.CreateWish(context.Background(), sub); err != nil {
		t.Fatalf("60-rune name should pass: %v", err)
	}
}

func TestCreateWishRateLimited(t *testing.T) {
	a, _, _ := newTestApp(t)
	for i := 0; i < 3; i++ {
		if _, err := a.CreateWish(context.Background(), validSubmission()); err != nil {
			t.Fatalf("submission %d: %v", i+1, err)
		}
	}
	_, err := a.CreateWish(context.Background(), validSubmission())
	reqErr, status := requestStatus(t, err)
	if status != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", status)
	}
	if reqErr.Message != "Too many requests. Try again in a minute." {
		t.Fatalf("message = %q", reqErr.Message)
	}

	// A different address is unaffected.
	other := validSubmission()
	other.IP = "198.51.100.9"
	if _, err := a.CreateWish(context.Background(), other); err != nil {
		t.Fatalf("other address should pass: %v", err)
	}
}

func TestCreateWishWithPhoto(t *testing.T) {
	a, st, objects := newTestApp(t)
	sub := validSubmission()
	sub.Photo = testJPEG(t)
	sub.PhotoType = "image/jpeg"

	if _, err := a.CreateWish(context.Background(), sub); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(objects.puts) != 1 {
		t.Fatalf("expected exactly one blob write, got %d", len(objects.puts))
	}
	key := objects.puts[0]
	if !strings.HasPrefix(key, "wishes/") || !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("unexpected blob key %q", key)
	}

	rows, _ := st.ListRecent(10)
	if len(rows) != 1 || rows[0].PhotoKey != key {
		t.Fatalf("row should reference the written blob key")
	}
}

func TestCreateWishUploadFailureLeavesNoRow(t *testing.T) {
	a, st, objects := newTestApp(t)
	objects.putErr = errors.New("bucket unavailable")
	sub := validSubmission()
	sub.Photo = testJPEG(t)
	sub.PhotoType = "image/jpeg"

	_, err := a.CreateWish(context.Background(), sub)
	reqErr, status := requestStatus(t, err)
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if reqErr.Message != "Upload failed" {
		t.Fatalf("message = %q", reqErr.Message)
	}
	rows, _ := st.ListRecent(10)
	if len(rows) != 0 {
		t.Fatal("no row may reference a blob that was never written")
	}
}

func TestCreateWishOversizePhotoRejectedBeforeStorage(t *testing.T) {
	a, st, objects := newTestApp(t)
	sub := validSubmission()
	sub.Photo = make([]byte, 21<<20)
	sub.PhotoType = "image/jpeg"

	_, err := a.CreateWish(context.Background(), sub)
	reqErr, status := requestStatus(t, err)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if reqErr.Message != "Image too large (max 20MB)" {
		t.Fatalf("message = %q", reqErr.Message)
	}
	rows, _ := st.ListRecent(10)
	if len(rows) != 0 || len(objects.puts) != 0 {
		t.Fatal("oversize photo must be rejected before any storage call")
	}
}

type failingCountStore struct {
	*store.MemoryStore
}

func (f *failingCountStore) CountByIPSince(string, time.Time) (int64, error) {
	return 0, errors.New("connection refused to db-primary")
}

func TestCreateWishGuardStoreFailureSurfacesCause(t *testing.T) {
	a, err := New(Config{Store: &failingCountStore{store.NewMemoryStore()}, Objects: &fakeObjectStore{}})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	_, err = a.CreateWish(context.Background(), validSubmission())
	reqErr, status := requestStatus(t, err)
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if !strings.HasPrefix(reqErr.Message, "DB error: ") || !strings.Contains(reqErr.Message, "connection refused to db-primary") {
		t.Fatalf("message = %q, want store cause appended", reqErr.Message)
	}
}

type failingInsertStore struct {
	*store.MemoryStore
}

func (f *failingInsertStore) InsertWish(domain.Wish) (string, error) {
	return "", errors.New("duplicate key value")
}

func TestCreateWishInsertFailureSurfacesDetailAndCleansBlob(t *testing.T) {
	objects := &fakeObjectStore{}
	a, err := New(Config{Store: &failingInsertStore{store.NewMemoryStore()}, Objects: objects})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	sub := validSubmission()
	sub.Photo = testJPEG(t)
	sub.PhotoType = "image/jpeg"

	_, err = a.CreateWish(context.Background(), sub)
	reqErr, status := requestStatus(t, err)
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if !strings.HasPrefix(reqErr.Message, "Insert failed: ") || !strings.Contains(reqErr.Message, "duplicate key") {
		t.Fatalf("message = %q", reqErr.Message)
	}
	if len(objects.deletes) != 1 {
		t.Fatal("orphaned blob should be cleaned up best-effort")
	}
}

func TestListWishesMapsDisplayFields(t *testing.T) {
	a, st, _ := newTestApp(t)
	if _, err := st.InsertWish(domain.Wish{Name: "Alex", Wish: "Happy birthday!!", AvatarID: "slyv1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := st.InsertWish(domain.Wish{Name: "Sam", Wish: "With a photo", AvatarID: "retired-avatar", PhotoKey: "wishes/123-abc.jpg"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items, err := a.ListWishes()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}

	// Newest first: the photo row was inserted last.
	withPhoto := items[0]
	if withPhoto.AvatarURL != nil {
		t.Fatalf("unknown avatar id must map to null, got %q", *withPhoto.AvatarURL)
	}
	if withPhoto.PhotoURL == nil || *withPhoto.PhotoURL != "https://cdn.example.test/wishes/123-abc.jpg" {
		t.Fatalf("photo url = %v", withPhoto.PhotoURL)
	}

	noPhoto := items[1]
	if noPhoto.AvatarURL == nil || *noPhoto.AvatarURL != "/slyv1.png" {
		t.Fatalf("avatar url = %v", noPhoto.AvatarURL)
	}
	if noPhoto.PhotoURL != nil {
		t.Fatalf("photo url should be null, got %q", *noPhoto.PhotoURL)
	}
}

func TestListWishesIdempotent(t *testing.T) {
	a, st, _ := newTestApp(t)
	for i := 0; i < 3; i++ {
		if _, err := st.InsertWish(domain.Wish{Name: "n", Wish: "hello there", AvatarID: "slyv2"}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	first, err := a.ListWishes()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := a.ListWishes()
	if err != nil {
		t.Fatalf("list again: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("order changed at %d", i)
		}
	}
}

type failingListStore struct {
	*store.MemoryStore
}

func (f *failingListStore) ListRecent(int) ([]domain.Wish, error) {
	return nil, errors.New("connection reset")
}

func TestListWishesReadFailure(t *testing.T) {
	a, err := New(Config{Store: &failingListStore{store.NewMemoryStore()}, Objects: &fakeObjectStore{}})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	_, err = a.ListWishes()
	reqErr, status := requestStatus(t, err)
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if reqErr.Message != "DB read error" {
		t.Fatalf("message = %q", reqErr.Message)
	}
}
