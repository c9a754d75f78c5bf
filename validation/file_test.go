package validation

import (
	"bytes"
	"errors"
	"testing"
)

func TestCheckPDF(t *testing.T) {
	if err := CheckPDF(bytes.NewReader([]byte("%PDF-1.7 rest of file"))); err != nil {
		t.Errorf("Expected valid PDF header to pass, got %v", err)
	}

	if err := CheckPDF(bytes.NewReader([]byte("GIF89a"))); !errors.Is(err, ErrInvalidFileType) {
		t.Errorf("Expected ErrInvalidFileType for GIF header, got %v", err)
	}

	if err := CheckPDF(bytes.NewReader(nil)); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("Expected ErrEmptyFile, got %v", err)
	}
}

func TestCheckPDF_RewindsReader(t *testing.T) {
	r := bytes.NewReader([]byte("%PDF-1.7"))
	if err := CheckPDF(r); err != nil {
		t.Fatalf("CheckPDF failed: %v", err)
	}
	if pos, _ := r.Seek(0, 1); pos != 0 {
		t.Errorf("Expected reader rewound to 0, at %d", pos)
	}
}

func TestCheckMediaType(t *testing.T) {
	if err := CheckMediaType("application/pdf", "doc.bin"); err != nil {
		t.Errorf("Declared PDF media type should pass, got %v", err)
	}
	if err := CheckMediaType("Application/PDF", "doc.bin"); err != nil {
		t.Errorf("Media type check should be case-insensitive, got %v", err)
	}
	if err := CheckMediaType("", "report.PDF"); err != nil {
		t.Errorf("PDF extension should pass without a declared type, got %v", err)
	}
	if err := CheckMediaType("image/png", "doc.pdf"); !errors.Is(err, ErrInvalidFileType) {
		t.Errorf("Expected ErrInvalidFileType for png media type, got %v", err)
	}
	if err := CheckMediaType("", "doc.txt"); !errors.Is(err, ErrInvalidFileType) {
		t.Errorf("Expected ErrInvalidFileType for txt extension, got %v", err)
	}
}
