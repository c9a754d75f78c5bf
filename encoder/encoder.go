package encoder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aligoek/gpdf2/validation"
)

// ErrEncoding wraps any local read failure during payload encoding.
var ErrEncoding = errors.New("payload encoding failed")

const chunkSize = 64 * 1024

// ProgressFunc receives the fraction of bytes consumed, in [0,1]. It is
// called at least once with 0 before the first read and exactly once with 1
// on success.
type ProgressFunc func(fraction float64)

// Encode reads r to EOF and returns its contents base64-encoded. size is the
// total byte count used to scale progress; the caller suspends until the full
// input is consumed. No network or store access happens here.
func Encode(ctx context.Context, r io.Reader, size int64, onProgress ProgressFunc) (string, error) {
	if onProgress == nil {
		onProgress = func(float64) {}
	}
	onProgress(0)

	var sb strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &sb)

	buf := make([]byte, chunkSize)
	var consumed int64
	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrEncoding, err)
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := enc.Write(buf[:n]); werr != nil {
				return "", fmt.Errorf("%w: %v", ErrEncoding, werr)
			}
			consumed += int64(n)
			if size > 0 && consumed < size {
				onProgress(float64(consumed) / float64(size))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrEncoding, err)
		}
	}

	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if consumed == 0 {
		return "", fmt.Errorf("%w: %v", ErrEncoding, validation.ErrEmptyFile)
	}

	onProgress(1)
	return sb.String(), nil
}

// EncodeFile validates path as a PDF (declared media type plus magic bytes)
// and encodes its full contents.
func EncodeFile(ctx context.Context, path, mediaType string, maxSize int64, onProgress ProgressFunc) (string, error) {
	if err := validation.CheckMediaType(mediaType, path); err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if info.Size() == 0 {
		return "", validation.ErrEmptyFile
	}
	if maxSize > 0 && info.Size() > maxSize {
		return "", validation.ErrFileTooLarge
	}

	if err := validation.CheckPDF(file); err != nil {
		return "", err
	}

	return Encode(ctx, file, info.Size(), onProgress)
}
