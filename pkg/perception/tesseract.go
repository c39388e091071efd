package perception

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"

	"friday/pkg/api"
)

const tesseractRemediation = "Install Tesseract OCR with its language packs: `brew install tesseract tesseract-lang` on macOS or `apt install tesseract-ocr tesseract-ocr-hin` on Linux."

// Tesseract runs the tesseract CLI, feeding a PNG on stdin.
type Tesseract struct {
	Binary string
	// Languages are combined with "+", so several scripts are recognized
	// in one pass.
	Languages []string
}

// NewTesseract creates a recognizer. An empty binary means "tesseract".
func NewTesseract(binary string, languages []string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	return &Tesseract{Binary: binary, Languages: languages}
}

// Args returns the command line arguments after the binary.
func (t *Tesseract) Args() []string {
	args := []string{"stdin", "stdout"}
	if len(t.Languages) > 0 {
		args = append(args, "-l", strings.Join(t.Languages, "+"))
	}
	return args
}

func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return "", fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.Binary, t.Args()...)
	cmd.Stdin = &in
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", api.Wrap(api.KindExternalUnavailable, err, "tesseract is not installed").
				WithRemediation(tesseractRemediation).AsPermanent()
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "Failed loading language") {
			return "", api.Errorf(api.KindExternalUnavailable, "tesseract language data missing for %s", strings.Join(t.Languages, "+")).
				WithRemediation(tesseractRemediation).AsPermanent()
		}
		return "", api.Wrap(api.KindExternalUnavailable, err, "tesseract failed: %s", msg)
	}
	return stdout.String(), nil
}
