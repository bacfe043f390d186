// Package media turns user-selected files into inline data URIs.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"cardmint/internal/models"
)

const (
	// DefaultImageLimit is the still-image ceiling in bytes
	DefaultImageLimit int64 = 10 << 20
	// DefaultVideoLimit is the proof-video ceiling in bytes
	DefaultVideoLimit int64 = 50 << 20
)

var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrUnknownSlot      = errors.New("unknown media slot")
)

// Limits holds per-kind size ceilings
type Limits struct {
	Image int64
	Video int64
	// LogoSide bounds the longest side of the logo in pixels
	LogoSide uint
}

// Encoder validates and encodes captured files
type Encoder struct {
	limits  Limits
	logoMax uint
}

// NewEncoder creates an encoder; zero limits fall back to the defaults
func NewEncoder(limits Limits) *Encoder {
	if limits.Image <= 0 {
		limits.Image = DefaultImageLimit
	}
	if limits.Video <= 0 {
		limits.Video = DefaultVideoLimit
	}
	if limits.LogoSide == 0 {
		limits.LogoSide = DefaultLogoSize
	}
	return &Encoder{limits: limits, logoMax: limits.LogoSide}
}

// Limit returns the ceiling for a slot
func (e *Encoder) Limit(slot models.MediaSlot) int64 {
	if slot.IsVideo() {
		return e.limits.Video
	}
	return e.limits.Image
}

// AcceptFile encodes an uploaded multipart file. A nil header is a no-op.
func (e *Encoder) AcceptFile(fh *multipart.FileHeader, slot models.MediaSlot) (*models.EncodedMedia, error) {
	if fh == nil {
		return nil, nil
	}
	if _, ok := models.ParseMediaSlot(string(slot)); !ok {
		return nil, ErrUnknownSlot
	}
	if fh.Size > e.Limit(slot) {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, fh.Size, e.Limit(slot))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	return e.Accept(fh.Filename, f, slot)
}

// Accept reads r into a data URI for slot. Empty input is a no-op.
func (e *Encoder) Accept(fileName string, r io.Reader, slot models.MediaSlot) (*models.EncodedMedia, error) {
	if r == nil {
		return nil, nil
	}
	if _, ok := models.ParseMediaSlot(string(slot)); !ok {
		return nil, ErrUnknownSlot
	}

	limit := e.Limit(slot)
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, limit)
	}

	mimeType := http.DetectContentType(data)
	if err := checkMime(slot, mimeType); err != nil {
		return nil, err
	}

	if slot == models.SlotLogo {
		data, mimeType, err = NormalizeLogo(data, e.logoMax)
		if err != nil {
			return nil, err
		}
	}

	return &models.EncodedMedia{
		Slot:     slot,
		FileName: fileName,
		MimeType: mimeType,
		Size:     int64(len(data)),
		DataURI:  EncodeDataURI(mimeType, data),
	}, nil
}

func checkMime(slot models.MediaSlot, mimeType string) error {
	want := "image/"
	if slot.IsVideo() {
		want = "video/"
	}
	if !strings.HasPrefix(mimeType, want) {
		return fmt.Errorf("%w: %s for slot %s", ErrUnsupportedMedia, mimeType, slot)
	}
	return nil
}

// EncodeDataURI builds a base64 data URI
func EncodeDataURI(mimeType string, data []byte) string {
	var b strings.Builder
	b.Grow(len(mimeType) + 13 + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mimeType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// DecodeDataURI splits a base64 data URI back into MIME type and bytes
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data uri")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data uri")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return mimeType, []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("malformed data uri payload: %w", err)
	}
	return mimeType, data, nil
}

// Extension picks a file extension for a MIME type
func Extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	}
	return "bin"
}
