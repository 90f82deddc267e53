package classifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/encoding"
	"github.com/JaimeStill/document-context/pkg/image"
	"github.com/JaimeStill/go-agents/pkg/agent"
)

type agentModel struct {
	agent agent.Agent
}

func (m agentModel) Chat(ctx context.Context, prompt string) (string, error) {
	resp, err := m.agent.Chat(ctx, prompt)
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}

func (m agentModel) Vision(ctx context.Context, prompt string, images []string) (string, error) {
	resp, err := m.agent.Vision(ctx, prompt, images)
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}

// RenderPages rasterizes the first maxPages pages of a PDF through
// ImageMagick and returns them as PNG data URIs.
func RenderPages(ctx context.Context, data []byte, maxPages int) ([]string, error) {
	dir, err := os.MkdirTemp("", "tally-classify-*")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	pdfDoc, err := document.OpenPDF(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer pdfDoc.Close()

	renderer, err := image.NewImageMagickRenderer(config.DefaultImageConfig())
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	pages, err := pdfDoc.ExtractAllPages()
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	if len(pages) > maxPages {
		pages = pages[:maxPages]
	}

	uris := make([]string, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := page.ToImage(renderer, nil)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}

		uri, err := encoding.EncodeImageDataURI(img, document.PNG)
		if err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		uris = append(uris, uri)
	}

	return uris, nil
}
