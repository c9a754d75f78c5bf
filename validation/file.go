package validation

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

const MediaTypePDF = "application/pdf"

var pdfMagic = []byte{0x25, 0x50, 0x44, 0x46} // %PDF

// CheckPDF verifies that the reader holds a PDF by magic bytes, not only by
// the client-supplied media type. The reader is rewound afterwards.
func CheckPDF(file io.ReadSeeker) error {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if n == 0 {
		return ErrEmptyFile
	}

	if !bytes.HasPrefix(buffer[:n], pdfMagic) {
		return ErrInvalidFileType
	}

	return nil
}

// CheckMediaType validates the declared media type or, when absent, the
// filename extension.
func CheckMediaType(mediaType, filename string) error {
	if mediaType != "" {
		if strings.EqualFold(mediaType, MediaTypePDF) {
			return nil
		}
		return ErrInvalidFileType
	}

	if strings.ToLower(filepath.Ext(filename)) == ".pdf" {
		return nil
	}
	return ErrInvalidFileType
}
