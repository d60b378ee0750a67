package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"radiator_control/internal/models"
)

type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite {
	return &DeviceSQLite{db: db}
}

var _ DeviceRepo = (*DeviceSQLite)(nil)

const (
	selectDevicesSQL = `SELECT name, ip_address, disabled, added_at FROM devices ORDER BY name`
	selectDeviceSQL  = `SELECT name, ip_address, disabled, added_at FROM devices WHERE name = ?`
	insertDeviceSQL  = `INSERT INTO devices (name, ip_address, disabled, added_at) VALUES (?, ?, ?, ?) ON CONFLICT(name) DO NOTHING`
	renameDeviceSQL  = `UPDATE devices SET name = ? WHERE name = ?`
	deleteDeviceSQL  = `DELETE FROM devices WHERE name = ?`
	disableDeviceSQL = `UPDATE devices SET disabled = ? WHERE name = ?`
	existsDeviceSQL  = `SELECT COUNT(1) FROM devices WHERE name = ?`
)

// List returns every registered device ordered by name.
func (r *DeviceSQLite) List(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevicesSQL)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	out := make([]models.Device, 0, 16)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return out, nil
}

// Get returns the device or ErrNotFound.
func (r *DeviceSQLite) Get(ctx context.Context, name string) (*models.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, selectDeviceSQL, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select device %q: %w", name, err)
	}
	return &d, nil
}

// Create inserts d, or returns ErrConflict if the name is taken.
func (r *DeviceSQLite) Create(ctx context.Context, d models.Device) error {
	if d.AddedAt.IsZero() {
		d.AddedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, insertDeviceSQL, d.Name, d.IPAddress, d.Disabled, d.AddedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert device %q: %w", d.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert device %q: %w", d.Name, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// EnsureAll registers each name that is not registered yet.
func (r *DeviceSQLite) EnsureAll(ctx context.Context, names []string) error {
	now := time.Now().UTC()
	for _, n := range names {
		if _, err := r.db.ExecContext(ctx, insertDeviceSQL, n, "", false, now); err != nil {
			return fmt.Errorf("seed device %q: %w", n, err)
		}
	}
	return nil
}

// Rename changes the primary key of a device. ErrNotFound if oldName is
// unknown, ErrConflict if newName is taken.
func (r *DeviceSQLite) Rename(ctx context.Context, oldName, newName string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rename: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var taken int
	if err := tx.QueryRowContext(ctx, existsDeviceSQL, newName).Scan(&taken); err != nil {
		return fmt.Errorf("check device %q: %w", newName, err)
	}
	if taken > 0 {
		return ErrConflict
	}

	res, err := tx.ExecContext(ctx, renameDeviceSQL, newName, oldName)
	if err != nil {
		return fmt.Errorf("rename device %q: %w", oldName, err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rename: %w", err)
	}
	return nil
}

// Delete removes a device or returns ErrNotFound.
func (r *DeviceSQLite) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, deleteDeviceSQL, name)
	if err != nil {
		return fmt.Errorf("delete device %q: %w", name, err)
	}
	return requireRow(res)
}

// SetDisabled updates the disabled flag or returns ErrNotFound.
func (r *DeviceSQLite) SetDisabled(ctx context.Context, name string, disabled bool) error {
	res, err := r.db.ExecContext(ctx, disableDeviceSQL, disabled, name)
	if err != nil {
		return fmt.Errorf("update device %q: %w", name, err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (models.Device, error) {
	var d models.Device
	if err := row.Scan(&d.Name, &d.IPAddress, &d.Disabled, &d.AddedAt); err != nil {
		return models.Device{}, err
	}
	d.AddedAt = d.AddedAt.UTC()
	return d, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
