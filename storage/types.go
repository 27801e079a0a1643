package storage

import (
	"database/sql"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested row does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrMissingKey indicates a row without its identifying key.
	ErrMissingKey = errors.New("storage: key is required")
)

// Device is a phone seen at least once.
type Device struct {
	Key          string
	Name         string
	IPAddress    string
	Port         int
	FirstSeen    int64
	LastSeen     int64
	ConnectCount int
}

// NotificationRecord is one received notification in history.
type NotificationRecord struct {
	ID          string
	NID         string
	DeviceKey   *string
	Title       string
	Body        string
	App         string
	Package     string
	ReceivedAt  int64
	DismissedAt *int64
}

type scanner interface {
	Scan(dest ...any) error
}

func nullString(ptr *string) sql.NullString {
	if ptr == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *ptr, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
