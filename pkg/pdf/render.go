package pdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// A4 portrait layout in points, origin lower left.
const (
	pageTop      = 800
	pageBottom   = 50
	marginLeft   = 50
	lineHeight   = 14
	titleHeight  = 22
	wrapColumn   = 95
	bodyFontSize = 10
	headFontSize = 14
)

// Page is a plain text document: a title line followed by body lines.
type Page struct {
	Title string
	Lines []string
}

type createFont struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type createFontRef struct {
	Name string `json:"name"`
}

type createText struct {
	Value string        `json:"value"`
	Pos   [2]int        `json:"pos"`
	Font  createFontRef `json:"font"`
}

type createContent struct {
	Text []createText `json:"text"`
}

type createPage struct {
	Content createContent `json:"content"`
}

type createDocument struct {
	Paper  string                `json:"paper"`
	Origin string                `json:"origin"`
	Fonts  map[string]createFont `json:"fonts"`
	Pages  map[string]createPage `json:"pages"`
}

// Render lays page out on as many A4 pages as needed and writes the PDF to w.
func Render(w io.Writer, page Page) error {
	desc, err := json.Marshal(layout(page))
	if err != nil {
		return fmt.Errorf("%w: encode layout: %w", ErrRenderFailed, err)
	}

	if err := api.Create(nil, bytes.NewReader(desc), w, configuration()); err != nil {
		return fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	return nil
}

// layout positions the title and wrapped body lines of page, starting a new
// page whenever the bottom margin is reached.
func layout(page Page) createDocument {
	doc := createDocument{
		Paper:  "A4P",
		Origin: "LowerLeft",
		Fonts: map[string]createFont{
			"head": {Name: "Helvetica-Bold", Size: headFontSize},
			"body": {Name: "Helvetica", Size: bodyFontSize},
		},
		Pages: make(map[string]createPage),
	}

	pageNum := 1
	y := pageTop
	var texts []createText

	flush := func() {
		doc.Pages[strconv.Itoa(pageNum)] = createPage{Content: createContent{Text: texts}}
		pageNum++
		texts = nil
		y = pageTop
	}

	if page.Title != "" {
		texts = append(texts, createText{
			Value: sanitize(page.Title),
			Pos:   [2]int{marginLeft, y},
			Font:  createFontRef{Name: "$head"},
		})
		y -= titleHeight
	}

	for _, line := range page.Lines {
		for _, wrapped := range Wrap(line, wrapColumn) {
			if y < pageBottom {
				flush()
			}
			if wrapped != "" {
				texts = append(texts, createText{
					Value: sanitize(wrapped),
					Pos:   [2]int{marginLeft, y},
					Font:  createFontRef{Name: "$body"},
				})
			}
			y -= lineHeight
		}
	}

	if len(texts) > 0 || len(doc.Pages) == 0 {
		flush()
	}

	return doc
}

// Wrap splits line on word boundaries into chunks of at most width runes.
// Words longer than width are split.
func Wrap(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{""}
	}

	var (
		lines   []string
		current []rune
	)
	for _, word := range words {
		w := []rune(word)
		for len(w) > width {
			if len(current) > 0 {
				lines = append(lines, string(current))
				current = nil
			}
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(current) == 0:
			current = w
		case len(current)+1+len(w) <= width:
			current = append(append(current, ' '), w...)
		default:
			lines = append(lines, string(current))
			current = w
		}
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	return lines
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// HTMLText converts an HTML document to plain text lines. Block elements
// and <br> start new lines; script and style content is dropped.
func HTMLText(r io.Reader) (string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	breakLine := func() {
		s := sb.String()
		if s != "" && !strings.HasSuffix(s, "\n") {
			sb.WriteByte('\n')
		}
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text := strings.Join(strings.Fields(n.Data), " ")
			if text == "" {
				return
			}
			s := sb.String()
			if s != "" && !strings.HasSuffix(s, "\n") && !strings.HasSuffix(s, " ") {
				sb.WriteByte(' ')
			}
			sb.WriteString(text)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Br:
				breakLine()
				return
			}
		}

		block := n.Type == html.ElementNode && isBlock(n.DataAtom)
		if block {
			breakLine()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			breakLine()
		}
	}
	walk(root)

	return strings.TrimSpace(sb.String()), nil
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Blockquote, atom.Pre, atom.Li, atom.Ul, atom.Ol,
		atom.Tr, atom.Table, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Hr, atom.Section, atom.Article, atom.Header, atom.Footer:
		return true
	}
	return false
}
