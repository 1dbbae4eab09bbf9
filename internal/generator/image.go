package generator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Thumbnail bounds, in pixels.
const (
	thumbWidth  = 300
	thumbHeight = 300
)

const maxImageSize = 20 * 1024 * 1024

// saveThumbnail downloads the image at url, shrinks it to fit the
// thumbnail bounds and writes it to path as PNG.
func (g *Generator) saveThumbnail(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
	}

	img, err := imaging.Decode(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create images dir: %w", err)
	}
	if err := imaging.Save(imaging.Fit(img, thumbWidth, thumbHeight, imaging.Lanczos), path); err != nil {
		return fmt.Errorf("save image: %w", err)
	}

	g.log.Debug("image saved", "path", path)
	return nil
}
