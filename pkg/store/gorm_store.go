package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"wishwall/pkg/domain"
)

const migrateLockID int64 = 91549154

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent instances do not race on schema changes.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&WishModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// InsertWish persists a wish, assigning id and creation timestamp.
func (s *GormStore) InsertWish(w domain.Wish) (string, error) {
	model := wishToModel(w)
	model.ID = NewID()
	model.CreatedAt = time.Now().UTC()
	if err := s.db.Create(&model).Error; err != nil {
		return "", err
	}
	return model.ID, nil
}

// CountByIPSince counts wishes from the given raw address created at or after since.
func (s *GormStore) CountByIPSince(ip string, since time.Time) (int64, error) {
	var count int64
	if err := s.db.Model(&WishModel{}).
		Where("ip_plain = ? AND created_at >= ?", ip, since.UTC()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListRecent returns the newest wishes first, capped at limit.
func (s *GormStore) ListRecent(limit int) ([]domain.Wish, error) {
	if limit <= 0 {
		return []domain.Wish{}, nil
	}
	var models []WishModel
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Wish, 0, len(models))
	for _, m := range models {
		res = append(res, wishFromModel(m))
	}
	return res, nil
}

func wishToModel(w domain.Wish) WishModel {
	var meta datatypes.JSON
	if len(w.ClientMeta) > 0 {
		raw, _ := json.Marshal(w.ClientMeta)
		meta = raw
	}
	return WishModel{
		ID:          w.ID,
		Name:        w.Name,
		Wish:        w.Wish,
		AvatarID:    w.AvatarID,
		PhotoKey:    w.PhotoKey,
		IPPlain:     w.IPPlain,
		IPTruncated: w.IPTruncated,
		IPHash:      w.IPHash,
		UserAgent:   w.UserAgent,
		ClientMeta:  meta,
		CreatedAt:   w.CreatedAt,
	}
}

func wishFromModel(m WishModel) domain.Wish {
	var meta map[string]string
	if len(m.ClientMeta) > 0 {
		_ = json.Unmarshal(m.ClientMeta, &meta)
	}
	return domain.Wish{
		ID:          m.ID,
		Name:        m.Name,
		Wish:        m.Wish,
		AvatarID:    m.AvatarID,
		PhotoKey:    m.PhotoKey,
		IPPlain:     m.IPPlain,
		IPTruncated: m.IPTruncated,
		IPHash:      m.IPHash,
		UserAgent:   m.UserAgent,
		ClientMeta:  meta,
		CreatedAt:   m.CreatedAt,
	}
}
