// Package photo enforces the type and size limits on profile photos.
package photo

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize is the largest accepted photo in bytes (2 MiB).
const MaxSize = 2 * 1024 * 1024

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

var (
	ErrUnsupportedType = errors.New("photo must be a JPG or PNG image")
	ErrTooLarge        = errors.New("photo must not exceed 2 MB")
)

// File is a selected image as declared by the uploader.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size is the byte length of the blob.
func (f *File) Size() int64 { return int64(len(f.Data)) }

// Accepted is a photo that passed Check, with its preview.
type Accepted struct {
	File    *File
	Preview string
}

// Allowed reports whether contentType is one of the accepted image types.
func Allowed(contentType string) bool {
	return allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
}

// Check validates f. A nil file means "no change" and yields (nil, nil).
func Check(f *File) (*Accepted, error) {
	if f == nil {
		return nil, nil
	}
	if !Allowed(f.ContentType) {
		return nil, ErrUnsupportedType
	}
	if f.Size() > MaxSize {
		return nil, ErrTooLarge
	}
	return &Accepted{File: f, Preview: DataURL(f)}, nil
}

// Message turns a Check error into the text shown under the photo widget.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return "The photo must be in JPG or PNG format."
	case errors.Is(err, ErrTooLarge):
		return "The photo must not be larger than 2 MB."
	}
	return "The selected photo is not valid. Choose another one."
}

// DataURL encodes f as a data: URL suitable for an <img> preview.
func DataURL(f *File) string {
	return "data:" + f.ContentType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// PreviewFor returns what the photo widget should show: the pending preview,
// or the last committed photo when nothing is pending.
func PreviewFor(pending *Accepted, committedURL string) string {
	if pending != nil {
		return pending.Preview
	}
	return committedURL
}

// DeclaredType resolves the MIME type of an uploaded part. The part header wins;
// generic or missing headers fall back to sniffing the content.
func DeclaredType(header string, data []byte) string {
	header = strings.TrimSpace(header)
	if i := strings.IndexByte(header, ';'); i >= 0 {
		header = strings.TrimSpace(header[:i])
	}
	if header != "" && header != "application/octet-stream" {
		return strings.ToLower(header)
	}
	return mimetype.Detect(data).String()
}
