package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SetNotificationRetention configures the notification history pruning horizon.
func (s *Store) SetNotificationRetention(retention time.Duration) {
	if retention <= 0 {
		retention = DefaultNotificationRetention
	}
	s.retentionMu.Lock()
	s.notificationRetention = retention
	s.retentionMu.Unlock()
}

// NotificationRetention returns the pruning horizon.
func (s *Store) NotificationRetention() time.Duration {
	s.retentionMu.RLock()
	defer s.retentionMu.RUnlock()
	return s.notificationRetention
}

// LogNotification inserts a received notification.
func (s *Store) LogNotification(record NotificationRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return ErrMissingKey
	}
	if record.ReceivedAt == 0 {
		record.ReceivedAt = nowUnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT INTO notifications (
			id,
			nid,
			device_key,
			title,
			body,
			app,
			package,
			received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.NID,
		nullString(record.DeviceKey),
		record.Title,
		record.Body,
		record.App,
		record.Package,
		record.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification %q: %w", record.ID, err)
	}
	return nil
}

// MarkNotificationDismissed stamps every open entry with nid. It returns
// how many rows changed; zero is not an error.
func (s *Store) MarkNotificationDismissed(nid string, dismissedAt int64) (int64, error) {
	if dismissedAt == 0 {
		dismissedAt = nowUnixMilli()
	}
	res, err := s.db.Exec(
		`UPDATE notifications
		SET dismissed_at = ?
		WHERE nid = ? AND dismissed_at IS NULL`,
		dismissedAt,
		nid,
	)
	if err != nil {
		return 0, fmt.Errorf("dismiss notification %q: %w", nid, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for dismiss %q: %w", nid, err)
	}
	return rowsAffected, nil
}

// GetNotification fetches one history entry by local id.
func (s *Store) GetNotification(id string) (*NotificationRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, nid, device_key, title, body, app, package, received_at, dismissed_at
		FROM notifications
		WHERE id = ?`,
		id,
	)
	record, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get notification %q: %w", id, err)
	}
	return record, nil
}

// ListNotifications returns up to limit entries, newest first. A limit <= 0
// returns everything.
func (s *Store) ListNotifications(limit int) ([]NotificationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, nid, device_key, title, body, app, package, received_at, dismissed_at
		FROM notifications
		ORDER BY received_at DESC, rowid DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	records := make([]NotificationRecord, 0)
	for rows.Next() {
		record, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}
	return records, nil
}

// PruneNotifications removes entries received before cutoffTimestamp.
func (s *Store) PruneNotifications(cutoffTimestamp int64) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM notifications WHERE received_at < ?`, cutoffTimestamp)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for notification prune: %w", err)
	}
	return rowsAffected, nil
}

func scanNotification(row scanner) (*NotificationRecord, error) {
	var (
		record      NotificationRecord
		deviceKey   sql.NullString
		dismissedAt sql.NullInt64
	)
	if err := row.Scan(
		&record.ID,
		&record.NID,
		&deviceKey,
		&record.Title,
		&record.Body,
		&record.App,
		&record.Package,
		&record.ReceivedAt,
		&dismissedAt,
	); err != nil {
		return nil, err
	}
	record.DeviceKey = stringPtr(deviceKey)
	record.DismissedAt = int64Ptr(dismissedAt)
	return &record, nil
}
