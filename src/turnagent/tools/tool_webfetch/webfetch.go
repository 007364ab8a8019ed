package tool_webfetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/turnagent/toolsutil"
)

// Tool name constant
const Name = "web_fetch"

const webFetchPrompt = `Fetches a web page and returns its content.

WHEN TO USE THIS TOOL:
- Use when the user gives you a URL, or a search result needs to be read in full
- Useful for documentation pages, articles and API responses

HOW TO USE:
- Provide the URL to fetch
- Choose the output format: markdown (default), text, or html

LIMITATIONS:
- Maximum response size is 5MB
- Only supports HTTP and HTTPS
- Cannot handle authentication or cookies
- Some websites block automated requests`

const maxBodySize = 5 << 20

// WebFetchInput represents the parameters for web_fetch
type WebFetchInput struct {
	URL     string `json:"url" required:"true" description:"The URL to fetch content from"`
	Format  string `json:"format,omitempty" enum:"markdown,text,html" description:"Output format, markdown by default"`
	Timeout int    `json:"timeout,omitempty" minimum:"0" maximum:"120" description:"Optional timeout in seconds (max 120, default 30)"`
}

// WebFetchOutput represents the response from web_fetch
type WebFetchOutput struct {
	Content     string `json:"content" description:"The fetched content in the requested format"`
	Title       string `json:"title,omitempty" description:"The page title, for HTML pages"`
	StatusCode  int    `json:"status_code" description:"HTTP status code of the response"`
	URL         string `json:"url" description:"The final URL after any redirects"`
	ContentType string `json:"content_type,omitempty" description:"Content-Type header from the response"`

	bytes int
}

// ToolPayload summarizes the fetch for the tool's end event.
func (o WebFetchOutput) ToolPayload() aisdk.ToolPayload {
	return aisdk.WebFetchPayload{
		URL:         o.URL,
		Title:       o.Title,
		StatusCode:  o.StatusCode,
		ContentType: o.ContentType,
		Bytes:       o.bytes,
	}
}

// Tool returns the web_fetch tool definition using GenericTool
func Tool(opts ...agent.ToolOption) (agent.Tool, error) {
	opts = append([]agent.ToolOption{agent.WithProvider(agent.ProviderWeb)}, opts...)
	return agent.NewGenericTool(Name, webFetchPrompt, webFetchHandler, opts...)
}

func webFetchHandler(ctx context.Context, input WebFetchInput) (WebFetchOutput, error) {
	if err := toolsutil.CheckContext(ctx); err != nil {
		return WebFetchOutput{}, err
	}

	if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
		return WebFetchOutput{}, fmt.Errorf("%w: URL must start with http:// or https://", toolsutil.ErrInvalidParams)
	}

	format := strings.ToLower(input.Format)
	if format == "" {
		format = "markdown"
	}
	if format != "text" && format != "markdown" && format != "html" {
		return WebFetchOutput{}, fmt.Errorf("%w: format must be one of: text, markdown, html", toolsutil.ErrInvalidParams)
	}

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = 30
	} else if timeout > 120 {
		timeout = 120
	}
	client := toolsutil.NewHTTPClient(time.Duration(timeout) * time.Second)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return WebFetchOutput{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", toolsutil.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return WebFetchOutput{}, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WebFetchOutput{}, fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}

	body, err := toolsutil.ReadLimited(resp.Body, maxBodySize)
	if err != nil {
		return WebFetchOutput{}, fmt.Errorf("failed to read response: %w", err)
	}
	if !toolsutil.IsTextFile(body) {
		return WebFetchOutput{}, fmt.Errorf("response from %s is not text", input.URL)
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")
	isHTML := strings.Contains(contentType, "text/html")

	var title string
	var processed string
	switch format {
	case "text":
		processed = content
		if isHTML {
			if text, t, err := extractTextFromHTML(content); err != nil {
				toolsutil.GetLogger().Warn("failed to extract text from HTML, returning raw content", "error", err)
			} else {
				processed, title = text, t
			}
		}
	case "markdown":
		switch {
		case isHTML:
			_, title, _ = extractTextFromHTML(content)
			markdown, err := convertHTMLToMarkdown(content)
			if err != nil {
				toolsutil.GetLogger().Warn("failed to convert HTML to markdown, wrapping in code block", "error", err)
				processed = "```html\n" + content + "\n```"
			} else {
				processed = markdown
			}
		case strings.Contains(contentType, "application/json"):
			processed = "```json\n" + content + "\n```"
		default:
			processed = "```\n" + content + "\n```"
		}
	case "html":
		processed = content
		if isHTML {
			_, title, _ = extractTextFromHTML(content)
		}
	}

	toolsutil.GetLogger().Info("fetched web content",
		"url", input.URL,
		"status", resp.StatusCode,
		"size", len(body),
		"format", format,
	)

	return WebFetchOutput{
		Content:     processed,
		Title:       title,
		StatusCode:  resp.StatusCode,
		URL:         resp.Request.URL.String(),
		ContentType: contentType,
		bytes:       len(body),
	}, nil
}

// extractTextFromHTML returns the visible text and the title of a page.
func extractTextFromHTML(html string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var cleanedLines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleanedLines = append(cleanedLines, trimmed)
		}
	}
	return strings.Join(cleanedLines, "\n"), title, nil
}

// convertHTMLToMarkdown converts HTML content to Markdown
func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	markdown = strings.TrimSpace(markdown)
	for strings.Contains(markdown, "\n\n\n") {
		markdown = strings.ReplaceAll(markdown, "\n\n\n", "\n\n")
	}
	return markdown, nil
}
