// Package app orchestrates wish submission and the public gallery read path.
package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"wishwall/internal/photo"
	"wishwall/internal/ratelimit"
	"wishwall/internal/util"
	"wishwall/pkg/domain"
	"wishwall/pkg/storage"
	"wishwall/pkg/store"
)

// Field length bounds, enforced before any I/O.
const (
	minNameLen = 1
	maxNameLen = 60
	minWishLen = 5
	maxWishLen = 1200

	defaultGalleryLimit = 200
)

// Config wires required dependencies for the application core.
type Config struct {
	Store        store.Store
	Objects      storage.ObjectStore
	Guard        *ratelimit.Guard
	HashSalt     string
	GalleryLimit int
}

// App is the application service wiring storage, guard, and photo pipeline.
type App struct {
	store        store.Store
	objects      storage.ObjectStore
	guard        *ratelimit.Guard
	hashSalt     string
	galleryLimit int
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	guard := cfg.Guard
	if guard == nil {
		guard = ratelimit.NewGuard(cfg.Store, 0, 0)
	}
	limit := cfg.GalleryLimit
	if limit <= 0 {
		limit = defaultGalleryLimit
	}
	return &App{
		store:        cfg.Store,
		objects:      cfg.Objects,
		guard:        guard,
		hashSalt:     cfg.HashSalt,
		galleryLimit: limit,
	}, nil
}

// Submission is one inbound wish as parsed from the request.
type Submission struct {
	Name      string
	Wish      string
	Avatar    string
	Photo     []byte
	PhotoType string
	IP        string
	UserAgent string
	Meta      map[string]string
}

// CreateWish runs the full submission pipeline:
// validate, rate-check, normalize photo, upload blob, insert row.
// Terminal on first rejection; the blob write happens strictly before the
// row insert so no row ever references an unwritten blob.
func (a *App) CreateWish(ctx context.Context, sub Submission) (string, error) {
	name := strings.TrimSpace(sub.Name)
	wish := strings.TrimSpace(sub.Wish)
	avatar := strings.TrimSpace(sub.Avatar)

	if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
		return "", badRequest("Invalid name length")
	}
	if n := utf8.RuneCountInString(wish); n < minWishLen || n > maxWishLen {
		return "", badRequest("Invalid wish length")
	}
	if !domain.ValidAvatar(avatar) {
		return "", badRequest("Please pick a valid avatar.")
	}

	if err := a.guard.Check(sub.IP, time.Now()); err != nil {
		reqErr := mapGuardError(err)
		if reqErr.Status == http.StatusInternalServerError {
			util.LoggerFromContext(ctx).Error("rate-limit count failed", "err", err)
		}
		return "", reqErr
	}

	photoKey := ""
	if len(sub.Photo) > 0 {
		res, err := photo.Normalize(sub.Photo, sub.PhotoType)
		if err != nil {
			return "", mapPhotoError(err)
		}
		key := util.NewPhotoKey(res.Ext)
		if err := a.objects.Put(ctx, key, bytes.NewReader(res.Data), int64(len(res.Data)), res.ContentType); err != nil {
			util.LoggerFromContext(ctx).Error("photo upload failed", "key", key, "err", err)
			return "", upstream("Upload failed", err)
		}
		photoKey = key
	}

	row := domain.Wish{
		Name:        name,
		Wish:        wish,
		AvatarID:    avatar,
		PhotoKey:    photoKey,
		IPPlain:     sub.IP,
		IPTruncated: util.TruncateIP(sub.IP),
		IPHash:      util.HashIP(sub.IP, a.hashSalt),
		UserAgent:   sub.UserAgent,
		ClientMeta:  sub.Meta,
	}
	id, err := a.store.InsertWish(row)
	if err != nil {
		if photoKey != "" {
			_ = a.objects.Delete(ctx, photoKey)
		}
		return "", upstream(fmt.Sprintf("Insert failed: %v", err), err)
	}
	util.LoggerFromContext(ctx).Info("wish created", "id", id, "has_photo", photoKey != "")
	return id, nil
}

// ListWishes returns display-ready records, newest first, capped at the
// gallery limit. Read-only and safe to call concurrently.
func (a *App) ListWishes() ([]domain.DisplayRecord, error) {
	rows, err := a.store.ListRecent(a.galleryLimit)
	if err != nil {
		return nil, upstream("DB read error", err)
	}
	items := make([]domain.DisplayRecord, 0, len(rows))
	for _, w := range rows {
		rec := domain.DisplayRecord{
			ID:        w.ID,
			Name:      w.Name,
			Wish:      w.Wish,
			CreatedAt: w.CreatedAt,
		}
		if url := domain.AvatarURL(w.AvatarID); url != "" {
			rec.AvatarURL = &url
		}
		if w.PhotoKey != "" {
			u := a.objects.PublicURL(w.PhotoKey)
			rec.PhotoURL = &u
		}
		items = append(items, rec)
	}
	return items, nil
}
