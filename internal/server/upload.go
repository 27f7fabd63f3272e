package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/curaai/yolo-medverify/internal/scan"
)

const (
	// MaxUploadSize is the largest accepted request body (20MB).
	MaxUploadSize = 20 * 1024 * 1024

	// scanField carries the photo on /yolo-scan, ocrField on /scan.
	scanField   = "file"
	ocrField    = "img"
	memoryLimit = 8 << 20
)

// uploadError is a client mistake in the multipart request. Its text is
// returned to the caller as is.
type uploadError string

func (e uploadError) Error() string { return string(e) }

const (
	errFormParse uploadError = "Failed to parse form"
	errNoFile    uploadError = "No file uploaded"
	errFileRead  uploadError = "Failed to read file"
)

// readUpload reads the image file in field of a multipart request.
// The declared content type is passed on unchecked.
func readUpload(w http.ResponseWriter, r *http.Request, field string) (*scan.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, uploadError(fmt.Sprintf("File too large: exceeds limit of %d bytes", MaxUploadSize))
		}
		return nil, errFormParse
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errFileRead
	}

	return &scan.Upload{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}, nil
}
