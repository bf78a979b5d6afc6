package tools

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/openai/openai-go"
)

// DefaultSearchURL is an HTML search endpoint that needs no API key.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

const maxSearchResults = 8

type webSearchTool struct {
	ctx Context
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

func (t *webSearchTool) name() string {
	return "web_search"
}

func (t *webSearchTool) definition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        "web_search",
			Description: openai.String("Search the web for recent information and return result titles, links and snippets"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func (t *webSearchTool) execute(argText string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(argText), &args); err != nil {
		return marshalToolResponse("web_search", nil, err)
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return marshalToolResponse("web_search", nil, errors.New("query is required"))
	}
	t.ctx.debugf("[verbose] web_search: query=%q", query)

	endpoint, err := url.Parse(t.ctx.SearchURL)
	if err != nil {
		return marshalToolResponse("web_search", nil, err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	endpoint.RawQuery = q.Encode()

	doc, err := fetchDocument(t.ctx, endpoint.String())
	if err != nil {
		return marshalToolResponse("web_search", nil, err)
	}

	var results []searchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		results = append(results, searchResult{
			Title:   collapseWhitespace(link.Text()),
			URL:     resolveResultLink(href),
			Snippet: collapseWhitespace(s.Find(".result__snippet").First().Text()),
		})
		return len(results) < maxSearchResults
	})
	t.ctx.debugf("[verbose] web_search: %d result(s)", len(results))
	return marshalToolResponse("web_search", results, nil)
}

// resolveResultLink unwraps redirect links of the form /l/?uddg=<target>.
func resolveResultLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
