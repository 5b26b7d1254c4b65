package extract

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

func init() {
	Register(".txt", ExtractorFunc(extractPlainText))
	Register(".md", ExtractorFunc(extractMarkdown))
}

func extractPlainText(_ context.Context, data []byte) (string, error) {
	return sanitizeUTF8(string(data)), nil
}

// extractMarkdown keeps the readable text of every top-level block, one
// block per paragraph. Fenced code and raw HTML are kept verbatim,
// autolinks as their literal text.
func extractMarkdown(_ context.Context, data []byte) (string, error) {
	source := []byte(sanitizeUTF8(string(data)))
	reader := text.NewReader(source)
	doc := goldmark.New().Parser().Parse(reader)

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		var txt string
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			txt = blockLines(n, source)
		case *ast.CodeBlock:
			txt = blockLines(n, source)
		case *ast.HTMLBlock:
			txt = htmlBlockLines(n, source)
		default:
			txt = extractInlineText(n, source)
		}
		if txt == "" {
			continue
		}
		blocks = append(blocks, txt)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func blockLines(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func htmlBlockLines(n *ast.HTMLBlock, source []byte) string {
	txt := blockLines(n, source)
	if n.HasClosure() {
		closure := strings.TrimRight(string(n.ClosureLine.Value(source)), "\n")
		if txt != "" {
			txt += "\n"
		}
		txt += closure
	}
	return txt
}

func extractInlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.AutoLink:
			sb.Write(t.Label(source))
		case *ast.RawHTML:
			for i := 0; i < t.Segments.Len(); i++ {
				seg := t.Segments.At(i)
				sb.Write(seg.Value(source))
			}
		case *ast.HTMLBlock:
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(htmlBlockLines(t, source))
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
