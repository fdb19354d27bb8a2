package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os/exec"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"ragqa/internal/domain"
)

// Runner executes an external command feeding stdin and returning stdout.
type Runner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// Tesseract extracts text by piping a PNG rendition of the image into the
// tesseract CLI.
type Tesseract struct {
	command  string
	language string
	timeout  time.Duration
	maxBytes int
	run      Runner
}

type Options struct {
	Command  string
	Language string
	Timeout  time.Duration
	MaxBytes int
}

func NewTesseract(opts Options) *Tesseract {
	if opts.Command == "" {
		opts.Command = "tesseract"
	}
	if opts.Language == "" {
		opts.Language = "eng"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Tesseract{
		command:  opts.Command,
		language: opts.Language,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		run:      execRunner,
	}
}

// WithRunner swaps the command runner.
func (t *Tesseract) WithRunner(run Runner) *Tesseract {
	t.run = run
	return t
}

// Extract decodes payload and returns the recognised text. Every failure
// comes back as an Extraction wrapping domain.ErrImageDecode.
func (t *Tesseract) Extract(ctx context.Context, payload string) domain.Extraction {
	raw, err := DecodePayload(payload)
	if err != nil {
		return domain.ExtractionFailed(err)
	}
	if t.maxBytes > 0 && len(raw) > t.maxBytes {
		return domain.ExtractionFailed(fmt.Errorf("%w: image is %d bytes, limit %d", domain.ErrImageDecode, len(raw), t.maxBytes))
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return domain.ExtractionFailed(fmt.Errorf("%w: %v", domain.ErrImageDecode, err))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.ExtractionFailed(fmt.Errorf("%w: re-encode %s: %v", domain.ErrImageDecode, format, err))
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.run(ctx, t.command, []string{"stdin", "stdout", "-l", t.language}, buf.Bytes())
	if err != nil {
		return domain.ExtractionFailed(fmt.Errorf("%w: %s: %v", domain.ErrImageDecode, t.command, err))
	}

	return domain.Extraction{Text: strings.TrimSpace(string(out))}
}

// DecodePayload strips an optional data URL prefix and decodes base64 with
// or without padding.
func DecodePayload(payload string) ([]byte, error) {
	s := strings.TrimSpace(payload)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return nil, fmt.Errorf("%w: unsupported data URL", domain.ErrImageDecode)
		}
		s = s[comma+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrImageDecode)
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var rawErr error
		raw, rawErr = base64.RawStdEncoding.DecodeString(s)
		if rawErr != nil {
			return nil, fmt.Errorf("%w: invalid base64: %v", domain.ErrImageDecode, err)
		}
	}
	return raw, nil
}

func execRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Disabled is used when OCR is switched off. Every extraction fails, so
// callers fall back to the question text.
type Disabled struct{}

var errDisabled = errors.New("ocr disabled")

func (Disabled) Extract(context.Context, string) domain.Extraction {
	return domain.ExtractionFailed(fmt.Errorf("%w: %v", domain.ErrImageDecode, errDisabled))
}
