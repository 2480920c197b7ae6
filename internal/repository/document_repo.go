package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRecord stores one whole document as a row.
type DocumentRecord struct {
	Name      string    `gorm:"type:text;primaryKey"`
	Body      string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for DocumentRecord.
func (DocumentRecord) TableName() string {
	return "documents"
}

// GormBackend implements Backend on a SQL database through GORM.
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend creates a backend bound to db. The documents table must exist.
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

// Read implements Backend.
func (b *GormBackend) Read(ctx context.Context, name DocumentName) ([]byte, error) {
	var rec DocumentRecord
	if err := b.db.WithContext(ctx).First(&rec, "name = ?", string(name)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return []byte(rec.Body), nil
}

// Write implements Backend with a single upsert statement.
func (b *GormBackend) Write(ctx context.Context, name DocumentName, data []byte) error {
	rec := DocumentRecord{
		Name:      string(name),
		Body:      string(data),
		UpdatedAt: time.Now(),
	}
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&rec).Error
}

// Close implements Backend.
func (b *GormBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
