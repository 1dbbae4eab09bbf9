// Package generator rewrites channel posts and illustrates them with
// generated images.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"reposter/internal/model"
)

// ErrImageUnavailable reports that the text was transformed but no image
// could be produced for it.
var ErrImageUnavailable = errors.New("image unavailable")

// Prompts used when a model.Prompt leaves a field empty.
const (
	DefaultNamePrompt = "Extract the title of the following message. " +
		"Reply with the title only."
	DefaultMessagePrompt = "Rewrite the following message in other words, keeping its meaning. " +
		"Drop everything unrelated and keep only the library name, its description and installation. " +
		"Add a short usage example of up to 200 characters and a link to the documentation."
	DefaultImagePrompt = "Generate an image with the following text. " +
		"The text must be large and bright:"
)

const imageNameLen = 10

// TextModel completes a single prompt.
type TextModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ImageModel generates an image and returns a URL to download it from.
type ImageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is a transformed message.
type Result struct {
	Title     string
	Text      string
	ImagePath string
}

// Generator combines a text and an image model.
type Generator struct {
	text      TextModel
	image     ImageModel
	client    HTTPClient
	imagesDir string
	log       *slog.Logger
}

// New creates a Generator that stores images under imagesDir.
func New(text TextModel, image ImageModel, client HTTPClient, imagesDir string, log *slog.Logger) *Generator {
	return &Generator{
		text:      text,
		image:     image,
		client:    client,
		imagesDir: imagesDir,
		log:       log,
	}
}

// Transform extracts a title from text, rewrites the text and generates an
// image for it. When only the image step fails, the returned Result holds
// the title and text, and the error wraps ErrImageUnavailable.
func (g *Generator) Transform(ctx context.Context, text string, p model.Prompt) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty message text")
	}

	title, err := g.Title(ctx, text, p)
	if err != nil {
		return nil, err
	}

	rewritten, err := g.RegenerateText(ctx, text, p)
	if err != nil {
		return nil, err
	}
	res := &Result{Title: title, Text: rewritten}

	path, err := g.RegenerateImage(ctx, title, p)
	if err != nil {
		g.log.Warn("image generation failed", "title", title, "error", err)
		return res, fmt.Errorf("%w: %w", ErrImageUnavailable, err)
	}
	res.ImagePath = path

	g.log.Info("message transformed", "title", title, "image", path)
	return res, nil
}

// Title asks the text model for the message title.
func (g *Generator) Title(ctx context.Context, text string, p model.Prompt) (string, error) {
	out, err := g.text.Complete(ctx, compose(orDefault(p.NamePrompt, DefaultNamePrompt), text))
	if err != nil {
		return "", fmt.Errorf("extract title: %w", err)
	}
	title := strings.TrimSpace(out)
	if title == "" {
		return "", errors.New("extract title: empty response")
	}
	return title, nil
}

// RegenerateText rewrites text with the message prompt.
func (g *Generator) RegenerateText(ctx context.Context, text string, p model.Prompt) (string, error) {
	out, err := g.text.Complete(ctx, compose(orDefault(p.MessagePrompt, DefaultMessagePrompt), text))
	if err != nil {
		return "", fmt.Errorf("rewrite text: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("rewrite text: empty response")
	}
	return out, nil
}

// RegenerateImage generates an image for title and saves it to the images
// directory, returning its path.
func (g *Generator) RegenerateImage(ctx context.Context, title string, p model.Prompt) (string, error) {
	url, err := g.image.Generate(ctx, orDefault(p.ImagePrompt, DefaultImagePrompt)+" "+title)
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}

	path := filepath.Join(g.imagesDir, ImageName(title)+"_image.png")
	if err := g.saveThumbnail(ctx, url, path); err != nil {
		return "", err
	}
	return path, nil
}

// ImageName derives a file name from title: its first ten ASCII letters,
// lowercased. Titles without ASCII letters get a random name.
func ImageName(title string) string {
	var b strings.Builder
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
			if b.Len() == imageNameLen {
				break
			}
		}
	}
	if b.Len() > 0 {
		return strings.ToLower(b.String())
	}

	id := uuid.New()
	name := make([]byte, imageNameLen)
	for i := range name {
		name[i] = 'a' + id[i]%26
	}
	return string(name)
}

func compose(prompt, text string) string {
	return prompt + "\n\n" + text
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
