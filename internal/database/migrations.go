package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/nimbus/internal/notes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeNotePriorities = "2026-08-12_normalize_note_priorities"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeNotePriorities, apply: normalizeNotePriorities},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeNotePriorities backfills rows imported before the priority
// default was enforced, where priority landed as NULL or zero.
func normalizeNotePriorities(db *gorm.DB) error {
	return db.Model(&notes.Note{}).
		Where("priority IS NULL OR priority = 0").
		Update("priority", notes.DefaultPriority).Error
}
