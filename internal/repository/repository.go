// Package repository persists the device registry, the weekly schedule,
// the event log and users in SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"radiator_control/internal/models"
	"radiator_control/internal/schedule"
)

var (
	// ErrNotFound is returned when the named row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique name is already taken.
	ErrConflict = errors.New("already exists")
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type DeviceRepo interface {
	List(ctx context.Context) ([]models.Device, error)
	Get(ctx context.Context, name string) (*models.Device, error)
	Create(ctx context.Context, d models.Device) error
	EnsureAll(ctx context.Context, names []string) error
	Rename(ctx context.Context, oldName, newName string) error
	Delete(ctx context.Context, name string) error
	SetDisabled(ctx context.Context, name string, disabled bool) error
}

type ScheduleRepo interface {
	Load(ctx context.Context) (schedule.Weekly, error)
	Save(ctx context.Context, w schedule.Weekly) error
}

// EventFilter narrows EventRepo.List. Zero fields match everything.
type EventFilter struct {
	From   time.Time
	To     time.Time
	Type   string
	Device string
	Limit  int
}

type EventRepo interface {
	Append(ctx context.Context, e models.DeviceEvent) error
	List(ctx context.Context, f EventFilter) ([]models.DeviceEvent, error)
}

type Repository struct {
	Devices  DeviceRepo
	Schedule ScheduleRepo
	Events   EventRepo
	Auth     Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Devices:  NewDeviceSQLite(db),
		Schedule: NewScheduleSQLite(db),
		Events:   NewEventSQLite(db),
		Auth:     NewUserRepository(db),
	}
}
