package store

import (
	"time"

	"gorm.io/datatypes"
)

// WishModel is the GORM model used for persistence.
// The composite (ip_plain, created_at) index serves the rate-limit window counts.
type WishModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Wish        string `gorm:"type:text;not null"`
	AvatarID    string `gorm:"not null"`
	PhotoKey    string
	IPPlain     string `gorm:"index:idx_wishes_ip_created,priority:1"`
	IPTruncated string
	IPHash      string
	UserAgent   string
	ClientMeta  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null;index;index:idx_wishes_ip_created,priority:2"`
}
