package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// UpsertDevice records a device announcement. A known key keeps its
// first_seen and bumps connect_count.
func (s *Store) UpsertDevice(device Device) error {
	if strings.TrimSpace(device.Key) == "" {
		return ErrMissingKey
	}
	if device.LastSeen == 0 {
		device.LastSeen = nowUnixMilli()
	}
	if device.FirstSeen == 0 {
		device.FirstSeen = device.LastSeen
	}

	_, err := s.db.Exec(
		`INSERT INTO devices (
			device_key,
			device_name,
			ip_address,
			port,
			first_seen,
			last_seen,
			connect_count
		) VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(device_key) DO UPDATE SET
			device_name = excluded.device_name,
			ip_address = excluded.ip_address,
			port = excluded.port,
			last_seen = excluded.last_seen,
			connect_count = devices.connect_count + 1`,
		device.Key,
		device.Name,
		device.IPAddress,
		device.Port,
		device.FirstSeen,
		device.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("upsert device %q: %w", device.Key, err)
	}
	return nil
}

// GetDevice fetches a device by its name-ip key.
func (s *Store) GetDevice(key string) (*Device, error) {
	row := s.db.QueryRow(
		`SELECT
			device_key,
			device_name,
			ip_address,
			port,
			first_seen,
			last_seen,
			connect_count
		FROM devices
		WHERE device_key = ?`,
		key,
	)

	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device %q: %w", key, err)
	}
	return device, nil
}

// FindDeviceByName returns the most recently seen device with name.
func (s *Store) FindDeviceByName(name string) (*Device, error) {
	row := s.db.QueryRow(
		`SELECT
			device_key,
			device_name,
			ip_address,
			port,
			first_seen,
			last_seen,
			connect_count
		FROM devices
		WHERE device_name = ?
		ORDER BY last_seen DESC
		LIMIT 1`,
		name,
	)

	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find device %q: %w", name, err)
	}
	return device, nil
}

// ListDevices returns known devices, most recently seen first.
func (s *Store) ListDevices() ([]Device, error) {
	rows, err := s.db.Query(
		`SELECT
			device_key,
			device_name,
			ip_address,
			port,
			first_seen,
			last_seen,
			connect_count
		FROM devices
		ORDER BY last_seen DESC, device_key`,
	)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	devices := make([]Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device rows: %w", err)
	}
	return devices, nil
}

func scanDevice(row scanner) (*Device, error) {
	var device Device
	if err := row.Scan(
		&device.Key,
		&device.Name,
		&device.IPAddress,
		&device.Port,
		&device.FirstSeen,
		&device.LastSeen,
		&device.ConnectCount,
	); err != nil {
		return nil, err
	}
	return &device, nil
}
