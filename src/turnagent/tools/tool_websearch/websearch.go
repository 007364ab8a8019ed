package tool_websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/turnagent/toolsutil"
)

// Tool name constant
const Name = "web_search"

// DefaultEndpoint is the DuckDuckGo HTML search page.
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

const (
	defaultMaxResults = 8
	maxResultsLimit   = 20
	maxPageSize       = 2 << 20
)

const webSearchPrompt = `Searches the web and returns result titles, URLs and snippets.

WHEN TO USE THIS TOOL:
- Use for current events or facts that may have changed recently
- Use to find a page worth reading in full with web_fetch

HOW TO USE:
- Provide a focused query
- Optionally limit the number of results (default 8, max 20)
- Cite the URLs of results you rely on`

// Config configures where searches are sent.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// WebSearchInput represents the parameters for web_search
type WebSearchInput struct {
	Query      string `json:"query" required:"true" minLength:"1" description:"The search query"`
	MaxResults int    `json:"max_results,omitempty" minimum:"0" maximum:"20" description:"Maximum number of results to return"`
}

// WebSearchOutput represents the response from web_search
type WebSearchOutput struct {
	Query   string            `json:"query"`
	Results []aisdk.SearchHit `json:"results"`
}

// ToolPayload summarizes the search for the tool's end event.
func (o WebSearchOutput) ToolPayload() aisdk.ToolPayload {
	return aisdk.WebSearchPayload{Query: o.Query, Results: o.Results}
}

// Tool returns the web_search tool definition using GenericTool
func Tool(cfg Config, opts ...agent.ToolOption) (agent.Tool, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	s := &searcher{cfg: cfg, client: toolsutil.NewHTTPClient(cfg.Timeout)}
	opts = append([]agent.ToolOption{agent.WithProvider(agent.ProviderWeb)}, opts...)
	return agent.NewGenericTool(Name, webSearchPrompt, s.search, opts...)
}

type searcher struct {
	cfg    Config
	client *http.Client
}

func (s *searcher) search(ctx context.Context, input WebSearchInput) (WebSearchOutput, error) {
	if err := toolsutil.CheckContext(ctx); err != nil {
		return WebSearchOutput{}, err
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return WebSearchOutput{}, fmt.Errorf("%w: query is required", toolsutil.ErrInvalidParams)
	}
	limit := input.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}
	limit = min(limit, maxResultsLimit)

	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return WebSearchOutput{}, err
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return WebSearchOutput{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", toolsutil.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return WebSearchOutput{}, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return WebSearchOutput{}, fmt.Errorf("search failed with status code: %d", resp.StatusCode)
	}

	body, err := toolsutil.ReadLimited(resp.Body, maxPageSize)
	if err != nil {
		return WebSearchOutput{}, fmt.Errorf("failed to read results: %w", err)
	}
	hits, err := parseResults(string(body), limit)
	if err != nil {
		return WebSearchOutput{}, err
	}

	toolsutil.GetLogger().Info("web search completed", "query", query, "results", len(hits))
	return WebSearchOutput{Query: query, Results: hits}, nil
}

// parseResults extracts up to limit hits from a DuckDuckGo HTML result page.
func parseResults(page string, limit int) ([]aisdk.SearchHit, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	hits := []aisdk.SearchHit{}
	seen := make(map[string]struct{})
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find(".result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := resolveRedirect(href)
		if target == "" {
			return true
		}
		if _, dup := seen[target]; dup {
			return true
		}
		seen[target] = struct{}{}
		hits = append(hits, aisdk.SearchHit{
			Title:   strings.TrimSpace(link.Text()),
			URL:     target,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return len(hits) < limit
	})
	return hits, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
