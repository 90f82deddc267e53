package workflow

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/tally/pkg/pdf"
)

// FetchNode returns a state node that reads every part from the document
// store concurrently.
func FetchNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		req, err := extractRequest(s)
		if err != nil {
			return s, fmt.Errorf("fetch: %w", err)
		}

		parts := make([]partData, len(req.Parts))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workerCount(len(req.Parts)))

		for i, p := range req.Parts {
			parts[i].Part = p

			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}

				data, err := rt.Documents.Read(gctx, p.Key)
				if err != nil {
					return fmt.Errorf("part %d (%s): %w", i+1, p.Key, err)
				}
				parts[i].Data = data
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return s, fmt.Errorf("fetch: %w: %w", ErrFetchFailed, err)
		}

		rt.Logger.InfoContext(ctx, "fetch node complete", "cycle", req.CycleID, "parts", len(parts))

		return s.Set(KeyParts, parts), nil
	})
}

// RenderNode returns a state node that converts HTML parts to PDF pages and
// checks that PDF parts carry a PDF header.
func RenderNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		parts, err := extractParts(s)
		if err != nil {
			return s, fmt.Errorf("render: %w", err)
		}

		rendered := make([]partData, len(parts))
		copy(rendered, parts)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workerCount(len(parts)))

		converted := 0
		for i, p := range parts {
			if p.Kind == PartPDF {
				if !pdf.IsPDF(p.Data) {
					return s, fmt.Errorf("render: %w: part %d (%s) is not a PDF", ErrRenderFailed, i+1, p.Key)
				}
				continue
			}

			converted++
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}

				data, err := renderHTML(rt, p.Data)
				if err != nil {
					return fmt.Errorf("part %d (%s): %w", i+1, p.Key, err)
				}
				rendered[i].Data = data
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return s, fmt.Errorf("render: %w: %w", ErrRenderFailed, err)
		}

		rt.Logger.InfoContext(ctx, "render node complete", "converted", converted)

		return s.Set(KeyParts, rendered), nil
	})
}

// renderHTML lays the text of an HTML document onto PDF pages. The first
// line becomes the page title.
func renderHTML(rt *Runtime, data []byte) ([]byte, error) {
	text, err := pdf.HTMLText(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	lines := strings.Split(text, "\n")
	page := pdf.Page{Title: lines[0]}
	if len(lines) > 1 {
		page.Lines = lines[1:]
	}

	var buf bytes.Buffer
	if err := rt.render()(&buf, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MergeNode returns a state node that concatenates the rendered parts in
// request order.
func MergeNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		parts, err := extractParts(s)
		if err != nil {
			return s, fmt.Errorf("merge: %w", err)
		}

		docs := make([][]byte, len(parts))
		for i, p := range parts {
			docs[i] = p.Data
		}

		var buf bytes.Buffer
		if err := rt.merge()(&buf, docs...); err != nil {
			return s, fmt.Errorf("merge: %w: %w", ErrMergeFailed, err)
		}

		rt.Logger.InfoContext(ctx, "merge node complete", "parts", len(docs), "size", buf.Len())

		return s.Set(KeyMerged, buf.Bytes()), nil
	})
}

// StoreNode returns a state node that writes the merged document to the
// request's output key.
func StoreNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		req, err := extractRequest(s)
		if err != nil {
			return s, fmt.Errorf("store: %w", err)
		}

		merged, err := extractMerged(s)
		if err != nil {
			return s, fmt.Errorf("store: %w", err)
		}

		if err := rt.Documents.Store(ctx, req.Output, merged, pdf.ContentType); err != nil {
			return s, fmt.Errorf("store: %w: %w", ErrStoreFailed, err)
		}

		rt.Logger.InfoContext(ctx, "store node complete", "output", req.Output)

		return s, nil
	})
}
