package todo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore keeps todos in a SQL table through GORM.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// OpenSQLite connects to the SQLite database at path and migrates the todos table.
func OpenSQLite(path string, debug bool) (*GormStore, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return NewGormStore(db)
}

// NewGormStore wraps an open GORM connection and runs migrations.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Todo{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &GormStore{db: db}, nil
}

// FindAll returns every todo.
func (s *GormStore) FindAll(ctx context.Context) ([]Todo, error) {
	todos := make([]Todo, 0)
	if err := s.db.WithContext(ctx).Find(&todos).Error; err != nil {
		return nil, readError("failed to find todos", err)
	}
	return todos, nil
}

// FindByID returns the todo with the given id.
func (s *GormStore) FindByID(ctx context.Context, id string) (*Todo, error) {
	var t Todo
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, readError("failed to find todo", err)
	}
	return &t, nil
}

// Insert stores a new todo built from d.
func (s *GormStore) Insert(ctx context.Context, d Draft) (*Todo, error) {
	t := NewTodo(uuid.New().String(), d, time.Now().UTC())
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, writeError("failed to create todo", err)
	}
	return t, nil
}

// UpdateByID applies p to the todo and returns the stored result.
func (s *GormStore) UpdateByID(ctx context.Context, id string, p Patch) (*Todo, error) {
	var updated Todo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := p.Fields()
		fields["updated_at"] = time.Now().UTC()

		result := tx.Model(&Todo{}).Where("id = ?", id).Updates(fields)
		if result.Error != nil {
			return writeError("failed to update todo", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			return writeError("failed to reload todo", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteByID removes the todo permanently.
func (s *GormStore) DeleteByID(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Todo{}, "id = ?", id)
	if err := result.Error; err != nil {
		return readError("failed to delete todo", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *GormStore) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
