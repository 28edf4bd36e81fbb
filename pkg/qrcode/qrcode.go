// Package qrcode encodes ticket identifiers into scannable PNG QR codes and decodes them back.
package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // scanned tickets may be photographed
	_ "image/png"
	"strings"

	"github.com/google/uuid"
	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	goqrcode "github.com/skip2/go-qrcode"
)

// PayloadPrefix marks a QR payload as a ticket reference.
const PayloadPrefix = "ticket:"

// DefaultSize is the rendered PNG width/height in pixels.
const DefaultSize = 256

var (
	// ErrEmptyPayload is returned when encoding an empty string.
	ErrEmptyPayload = errors.New("qrcode: empty payload")
	// ErrInvalidTicket is returned when a scanned value is not a ticket reference.
	ErrInvalidTicket = errors.New("qrcode: invalid ticket payload")
)

// Codec renders QR codes with fixed parameters so output is deterministic for a payload.
type Codec struct {
	Level goqrcode.RecoveryLevel
	Size  int
}

// NewCodec returns a Codec with medium error correction. size <= 0 uses DefaultSize.
func NewCodec(size int) *Codec {
	if size <= 0 {
		size = DefaultSize
	}
	return &Codec{Level: goqrcode.Medium, Size: size}
}

// Encode returns a PNG image of payload. Payloads over the symbol capacity return an error.
func (c *Codec) Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	png, err := goqrcode.Encode(payload, c.Level, c.Size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode %d bytes: %w", len(payload), err)
	}
	return png, nil
}

// Decode reads the first QR code found in a PNG or JPEG image.
func Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("qrcode: decode image: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("qrcode: binarize: %w", err)
	}
	res, err := zxingqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("qrcode: read symbol: %w", err)
	}
	return res.GetText(), nil
}

// Payload returns the QR payload for a ticket identifier.
func Payload(ticket uuid.UUID) string {
	return PayloadPrefix + ticket.String()
}

// ParsePayload accepts either a bare ticket UUID or the "ticket:<uuid>" payload form.
func ParsePayload(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, PayloadPrefix)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrInvalidTicket
	}
	return id, nil
}
