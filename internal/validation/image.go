package validation

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// ImageTypes lists the content types accepted for photo uploads.
var ImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// SniffImage reads the first 512 bytes of r for magic number detection
// and returns the detected type plus a reader that replays the full
// stream. The detected type cannot be faked by a Content-Type header.
func SniffImage(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", nil, fmt.Errorf("empty upload")
	}

	detected := http.DetectContentType(head)
	if !ImageTypes[detected] {
		return "", nil, fmt.Errorf("invalid file type (detected: %s)", detected)
	}

	return detected, io.MultiReader(bytes.NewReader(head), r), nil
}
