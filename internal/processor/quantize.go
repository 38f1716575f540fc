package processor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Quantizer reduces a PNG to a palette image, reading src and writing dst.
type Quantizer interface {
	Quantize(ctx context.Context, src, dst string) error
}

// PNGQuant runs the pngquant command line tool.
type PNGQuant struct {
	Binary  string // default "pngquant"
	Quality string // min-max, default "50-100"
}

func (q PNGQuant) Quantize(ctx context.Context, src, dst string) error {
	bin := q.Binary
	if bin == "" {
		bin = "pngquant"
	}
	quality := q.Quality
	if quality == "" {
		quality = "50-100"
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%w: %s not found: %w", ErrExternalTool, bin, err)
	}

	cmd := exec.CommandContext(ctx, path, "--force", "--output", dst, "--quality", quality, "--", src)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%w: %s: %w", ErrExternalTool, bin, err)
		}
		return fmt.Errorf("%w: %s: %w: %s", ErrExternalTool, bin, err, msg)
	}
	return nil
}
