package pdf

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	lpdf "github.com/ledongthuc/pdf"
)

// MinReadableRatio is the share of printable runes below which extracted
// text is treated as undecodable.
const MinReadableRatio = 0.85

// ExtractText returns the text of every page, pages separated by a blank
// line. Glyphs are decoded through each font's encoding and ToUnicode map and
// laid out by position. Scanned documents, and documents whose fonts cannot
// be decoded, yield an empty string.
func ExtractText(data []byte) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrExtractFailed, p)
		}
	}()

	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		if t := strings.TrimSpace(layoutText(page.Content().Text)); t != "" {
			pages = append(pages, t)
		}
	}

	text = strings.Join(pages, "\n\n")
	if !Readable(text) {
		return "", nil
	}
	return text, nil
}

// Readable reports whether at least MinReadableRatio of the non-space runes
// of text are printable. Subset fonts without a ToUnicode map decode to
// control characters and fail this check.
func Readable(text string) bool {
	var total, printable int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if r != unicode.ReplacementChar && unicode.IsPrint(r) {
			printable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(printable)/float64(total) >= MinReadableRatio
}

type line struct {
	y      float64
	glyphs []lpdf.Text
}

// layoutText groups glyphs into lines by baseline, orders lines top to
// bottom and glyphs left to right, and inserts a space where the gap between
// glyphs is wider than a fraction of the font size.
func layoutText(glyphs []lpdf.Text) string {
	var lines []*line
	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" || g.S == "\r" {
			continue
		}
		tolerance := math.Max(g.FontSize/2, 1)
		var target *line
		for _, l := range lines {
			if math.Abs(l.y-g.Y) <= tolerance {
				target = l
				break
			}
		}
		if target == nil {
			target = &line{y: g.Y}
			lines = append(lines, target)
		}
		target.glyphs = append(target.glyphs, g)
	}

	slices.SortStableFunc(lines, func(a, b *line) int {
		return cmp.Compare(b.y, a.y)
	})

	var sb strings.Builder
	for _, l := range lines {
		slices.SortStableFunc(l.glyphs, func(a, b lpdf.Text) int {
			return cmp.Compare(a.X, b.X)
		})

		for i, g := range l.glyphs {
			if i > 0 {
				prev := l.glyphs[i-1]
				gap := g.X - (prev.X + prev.W)
				if gap > math.Max(g.FontSize, 1)*0.25 && prev.S != " " && g.S != " " {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(g.S)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
