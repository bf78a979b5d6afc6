package ui

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

var (
	headingStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	italicStyle    = lipgloss.NewStyle().Italic(true)
	strikeStyle    = lipgloss.NewStyle().Strikethrough(true)
	codeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	codeBlockStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	linkStyle      = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("75"))
)

// RenderMarkdown converts markdown to styled terminal text.
func RenderMarkdown(src string) string {
	extensions := parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	doc := markdown.Parse([]byte(src), parser.NewWithExtensions(extensions))
	out := markdown.Render(doc, &ansiRenderer{})
	return strings.TrimRight(string(out), "\n ") + "\n"
}

// ansiRenderer implements markdown.Renderer for terminals.
type ansiRenderer struct{}

func (r *ansiRenderer) RenderHeader(io.Writer, ast.Node) {}
func (r *ansiRenderer) RenderFooter(io.Writer, ast.Node) {}

func (r *ansiRenderer) RenderNode(w io.Writer, node ast.Node, entering bool) ast.WalkStatus {
	switch n := node.(type) {
	case *ast.Text:
		_, _ = w.Write(n.Literal)
	case *ast.Softbreak, *ast.Hardbreak:
		_, _ = io.WriteString(w, "\n")
	case *ast.Code:
		_, _ = io.WriteString(w, codeStyle.Render(string(n.Literal)))
	case *ast.HTMLSpan:
		_, _ = w.Write(n.Literal)
	case *ast.HTMLBlock:
		_, _ = w.Write(n.Literal)
		_, _ = io.WriteString(w, "\n\n")

	case *ast.Heading:
		text := strings.Repeat("#", n.Level) + " " + r.inline(n)
		_, _ = io.WriteString(w, headingStyle.Render(text)+"\n\n")
		return ast.SkipChildren
	case *ast.Strong:
		_, _ = io.WriteString(w, boldStyle.Render(r.inline(n)))
		return ast.SkipChildren
	case *ast.Emph:
		_, _ = io.WriteString(w, italicStyle.Render(r.inline(n)))
		return ast.SkipChildren
	case *ast.Del:
		_, _ = io.WriteString(w, strikeStyle.Render(r.inline(n)))
		return ast.SkipChildren
	case *ast.Link:
		text := r.inline(n)
		dest := string(n.Destination)
		_, _ = io.WriteString(w, linkStyle.Render(text))
		if dest != "" && dest != text {
			_, _ = io.WriteString(w, dimStyle.Render(" ("+dest+")"))
		}
		return ast.SkipChildren
	case *ast.Image:
		_, _ = io.WriteString(w, dimStyle.Render(fmt.Sprintf("[image: %s]", n.Destination)))
		return ast.SkipChildren

	case *ast.Paragraph:
		if !entering {
			_, _ = io.WriteString(w, "\n")
			if _, inItem := n.Parent.(*ast.ListItem); !inItem {
				_, _ = io.WriteString(w, "\n")
			}
		}
	case *ast.CodeBlock:
		r.codeBlock(w, n)
	case *ast.BlockQuote:
		body := strings.TrimRight(r.inline(n), "\n")
		for _, line := range strings.Split(body, "\n") {
			_, _ = io.WriteString(w, dimStyle.Render("│ ")+line+"\n")
		}
		_, _ = io.WriteString(w, "\n")
		return ast.SkipChildren
	case *ast.HorizontalRule:
		_, _ = io.WriteString(w, dimStyle.Render(strings.Repeat("─", 40))+"\n\n")

	case *ast.List:
		if !entering {
			if _, nested := n.Parent.(*ast.ListItem); !nested {
				_, _ = io.WriteString(w, "\n")
			}
		}
	case *ast.ListItem:
		if entering {
			_, _ = io.WriteString(w, strings.Repeat("  ", listDepth(n)-1)+listMarker(n)+" ")
		}

	case *ast.TableRow:
		cells := make([]string, 0, len(n.Children))
		header := false
		for _, child := range n.Children {
			if cell, ok := child.(*ast.TableCell); ok {
				header = header || cell.IsHeader
				cells = append(cells, strings.TrimSpace(r.inline(cell)))
			}
		}
		line := strings.Join(cells, dimStyle.Render(" │ "))
		if header {
			line = boldStyle.Render(line)
		}
		_, _ = io.WriteString(w, line+"\n")
		return ast.SkipChildren
	case *ast.Table:
		if !entering {
			_, _ = io.WriteString(w, "\n")
		}
	}
	return ast.GoToNext
}

// inline renders the children of node into a string.
func (r *ansiRenderer) inline(node ast.Node) string {
	var buf bytes.Buffer
	for _, child := range node.GetChildren() {
		ast.WalkFunc(child, func(n ast.Node, entering bool) ast.WalkStatus {
			return r.RenderNode(&buf, n, entering)
		})
	}
	return buf.String()
}

func (r *ansiRenderer) codeBlock(w io.Writer, n *ast.CodeBlock) {
	lang := strings.TrimSpace(string(n.Info))
	_, _ = io.WriteString(w, dimStyle.Render("```"+lang)+"\n")
	for _, line := range strings.Split(strings.TrimRight(string(n.Literal), "\n"), "\n") {
		_, _ = io.WriteString(w, codeBlockStyle.Render(line)+"\n")
	}
	_, _ = io.WriteString(w, dimStyle.Render("```")+"\n\n")
}

func listDepth(item ast.Node) int {
	depth := 0
	for p := item.GetParent(); p != nil; p = p.GetParent() {
		if _, ok := p.(*ast.List); ok {
			depth++
		}
	}
	if depth == 0 {
		depth = 1
	}
	return depth
}

func listMarker(item *ast.ListItem) string {
	if item.ListFlags&ast.ListTypeOrdered == 0 {
		return "•"
	}
	list, ok := item.Parent.(*ast.List)
	if !ok {
		return "1."
	}
	start := list.Start
	if start <= 0 {
		start = 1
	}
	for i, child := range list.Children {
		if child == ast.Node(item) {
			return fmt.Sprintf("%d.", start+i)
		}
	}
	return fmt.Sprintf("%d.", start)
}
