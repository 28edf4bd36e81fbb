// Package storage keeps derived ticket artifacts (QR PNGs, event logos) keyed by path.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

const (
	// FolderQRCodes is the key prefix for ticket QR images.
	FolderQRCodes = "qr_codes"
	// FolderLogos is the key prefix for event logos.
	FolderLogos = "logos"
	// MediaPrefix is the HTTP path under which artifacts are proxied.
	MediaPrefix = "/media/"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("storage: object not found")

// Store is implemented by S3 and Postgres.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// QRKey returns the object key for a ticket's QR image: qr_codes/{ticket_uuid}.png.
func QRKey(ticketUUID string) string {
	return path.Join(FolderQRCodes, ticketUUID+".png")
}

// LogoKey returns the object key for an uploaded event logo.
func LogoKey(filename string) string {
	return path.Join(FolderLogos, path.Base(filename))
}

// MediaURL joins base (e.g. https://api.example.com) with the media path of key.
func MediaURL(base, key string) string {
	return strings.TrimRight(base, "/") + MediaPrefix + strings.TrimLeft(key, "/")
}

// ValidKey reports whether key is a clean relative key under a known folder.
func ValidKey(key string) bool {
	if key == "" || strings.Contains(key, "..") || path.Clean(key) != key {
		return false
	}
	return strings.HasPrefix(key, FolderQRCodes+"/") || strings.HasPrefix(key, FolderLogos+"/")
}
