package domain

import "time"

// AllowedAvatars is the fixed set of avatar identifiers the frontend offers.
// Submissions referencing anything else are rejected.
var AllowedAvatars = map[string]struct{}{
	"slyv1": {},
	"slyv2": {},
	"slyv3": {},
	"slyv4": {},
	"slyv5": {},
	"slyv6": {},
}

// ValidAvatar reports whether id is one of the allowed avatar identifiers.
func ValidAvatar(id string) bool {
	_, ok := AllowedAvatars[id]
	return ok
}

// AvatarURL returns the static asset path for an allowed avatar id,
// or "" when the id is not in the allow-set.
func AvatarURL(id string) string {
	if !ValidAvatar(id) {
		return ""
	}
	return "/" + id + ".png"
}

// Wish is a single submitted wish as persisted. Rows are immutable once inserted.
type Wish struct {
	ID          string
	Name        string
	Wish        string
	AvatarID    string
	PhotoKey    string // object store key, "" when no photo was attached
	IPPlain     string
	IPTruncated string
	IPHash      string
	UserAgent   string
	ClientMeta  map[string]string
	CreatedAt   time.Time
}

// DisplayRecord is the public, display-ready projection of a wish.
type DisplayRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Wish      string    `json:"wish"`
	CreatedAt time.Time `json:"created_at"`
	AvatarURL *string   `json:"avatar_url"`
	PhotoURL  *string   `json:"photo_url"`
}
