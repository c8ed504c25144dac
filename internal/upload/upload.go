// Package upload turns user uploads into raw media bytes.
package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize bounds an accepted upload.
const MaxSize = 512 << 20

var (
	// ErrEmpty is returned for a missing or zero-length upload.
	ErrEmpty = errors.New("upload is empty")

	// ErrNotVideo is returned when the payload is not a video container.
	ErrNotVideo = errors.New("upload is not a video")

	// ErrTooLarge is returned for uploads above MaxSize.
	ErrTooLarge = errors.New("upload is too large")
)

// Media is a decoded upload.
type Media struct {
	Data     []byte
	MimeType string
}

// DecodeDataURL decodes "data:<mime>;base64,<payload>" or bare base64.
func DecodeDataURL(raw string) ([]byte, error) {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return nil, ErrEmpty
	}
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URL")
		}
		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("data URL is not base64 encoded")
		}
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// FromDataURL decodes and validates a data URL upload.
func FromDataURL(raw string) (Media, error) {
	data, err := DecodeDataURL(raw)
	if err != nil {
		return Media{}, err
	}
	return FromBytes(data)
}

// FromFile reads and validates an upload from disk.
func FromFile(path string) (Media, error) {
	if strings.TrimSpace(path) == "" {
		return Media{}, ErrEmpty
	}
	info, err := os.Stat(path)
	if err != nil {
		return Media{}, fmt.Errorf("stat upload: %w", err)
	}
	if info.Size() > MaxSize {
		return Media{}, ErrTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Media{}, fmt.Errorf("read upload: %w", err)
	}
	return FromBytes(data)
}

// FromBytes sniffs the container and accepts only video payloads.
func FromBytes(data []byte) (Media, error) {
	if len(data) == 0 {
		return Media{}, ErrEmpty
	}
	if len(data) > MaxSize {
		return Media{}, ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !isVideo(mtype) {
		return Media{}, fmt.Errorf("%w: detected %s", ErrNotVideo, mtype.String())
	}
	return Media{Data: data, MimeType: mtype.String()}, nil
}

func isVideo(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}
	return false
}
