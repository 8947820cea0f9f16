package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns a URL-safe hex string ID.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewPhotoKey generates a fresh object key for an uploaded photo.
// The millisecond prefix keeps keys roughly time-ordered; the UUID
// component avoids collisions. ext must include the leading dot.
func NewPhotoKey(ext string) string {
	return fmt.Sprintf("wishes/%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), ext)
}
