package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngineSnapshot is one persisted collection document
type EngineSnapshot struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	Document  []byte    `gorm:"type:jsonb;not null" json:"document"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for EngineSnapshot
func (EngineSnapshot) TableName() string {
	return "engine_snapshots"
}

// GormStore keeps snapshots as rows of the engine_snapshots table
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the snapshot table and returns the store
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&EngineSnapshot{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Load(ctx context.Context, name string) ([]byte, error) {
	var row EngineSnapshot
	err := s.db.WithContext(ctx).First(&row, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Document, nil
}

// Save upserts the document in a single statement
func (s *GormStore) Save(ctx context.Context, name string, data []byte) error {
	row := EngineSnapshot{Name: name, Document: data, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
	}).Create(&row).Error
}
