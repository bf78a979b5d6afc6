package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/openai/openai-go"
)

// MaxURLs is the most URLs one url_context call may fetch.
const MaxURLs = 20

type urlContextTool struct {
	ctx Context
}

type pageContent struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (t *urlContextTool) name() string {
	return "url_context"
}

func (t *urlContextTool) definition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        "url_context",
			Description: openai.String("Fetch web pages and return their readable text"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"urls": map[string]any{
						"type":        "array",
						"description": "http or https URLs to read, at most 20.",
						"items":       map[string]any{"type": "string"},
					},
				},
				"required": []string{"urls"},
			},
		},
	}
}

func (t *urlContextTool) execute(argText string) (string, error) {
	var args struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal([]byte(argText), &args); err != nil {
		t.ctx.debugf("[verbose] url_context: failed to parse arguments: %v", err)
		return marshalToolResponse("url_context", nil, err)
	}
	if len(args.URLs) == 0 {
		return marshalToolResponse("url_context", nil, errors.New("urls is required"))
	}
	if len(args.URLs) > MaxURLs {
		return marshalToolResponse("url_context", nil, fmt.Errorf("at most %d urls per request", MaxURLs))
	}

	pages := make([]pageContent, 0, len(args.URLs))
	for _, raw := range args.URLs {
		page, err := t.fetch(raw)
		if err != nil {
			t.ctx.debugf("[verbose] url_context: %s: %v", raw, err)
			page = pageContent{URL: raw, Error: err.Error()}
		}
		pages = append(pages, page)
	}
	return marshalToolResponse("url_context", pages, nil)
}

func (t *urlContextTool) fetch(raw string) (pageContent, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pageContent{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return pageContent{}, fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}

	doc, err := fetchDocument(t.ctx, u.String())
	if err != nil {
		return pageContent{}, err
	}
	doc.Find("script, style, noscript, svg, iframe, nav, footer").Remove()
	body := doc.Find("body")
	// Block boundaries carry no text node of their own.
	body.Find("p, div, li, h1, h2, h3, h4, h5, h6, br, tr, td, th, pre, blockquote, section, article").AfterHtml(" ")

	text := collapseWhitespace(body.Text())
	truncated := false
	if runes := []rune(text); len(runes) > t.ctx.MaxPageChars {
		text = string(runes[:t.ctx.MaxPageChars])
		truncated = true
	}
	return pageContent{
		URL:       u.String(),
		Title:     collapseWhitespace(doc.Find("title").First().Text()),
		Text:      text,
		Truncated: truncated,
	}, nil
}

func fetchDocument(ctx Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx.context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ai-cli (+https://github.com/minhyannv/ai-cli)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := ctx.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 4<<20))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
