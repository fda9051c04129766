// Package scrape fetches web pages and extracts their readable content as
// Markdown, preserving tables as pipe tables.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Scraper fetches search result URLs in parallel. A failed URL is logged and
// dropped; the survivors are returned in result order.
type Scraper struct {
	HTTPClient *http.Client
	Workers    int
	Logger     *slog.Logger
}

func NewScraper(workers int) *Scraper {
	return &Scraper{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Workers:    workers,
		Logger:     slog.Default(),
	}
}

// ScrapeResults fetches every result URL with bounded concurrency.
func (s *Scraper) ScrapeResults(ctx context.Context, results []pipeline.SearchResult) []pipeline.ScrapedContent {
	log := s.logger()
	log.Info("Scraping search results", "urls", len(results))

	scraped := make([]*pipeline.ScrapedContent, len(results))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.workers())

	for i, result := range results {
		wg.Add(1)
		go func(i int, result pipeline.SearchResult) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			content, err := s.Scrape(ctx, result.URL)
			if err != nil {
				log.Warn("Scrape failed", "url", result.URL, "error", err)
				return
			}
			if content.Title == "" {
				content.Title = result.Title
			}
			scraped[i] = content
		}(i, result)
	}
	wg.Wait()

	out := make([]pipeline.ScrapedContent, 0, len(results))
	for _, c := range scraped {
		if c != nil {
			out = append(out, *c)
		}
	}
	log.Info("Scraping complete", "scraped", len(out), "failed", len(results)-len(out))
	return out
}

// Scrape fetches one URL and extracts its content.
func (s *Scraper) Scrape(ctx context.Context, url string) (*pipeline.ScrapedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	title, content, err := ExtractContent(string(body))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("no extractable content")
	}

	return &pipeline.ScrapedContent{
		URL:     url,
		Title:   title,
		Content: content,
		Metadata: map[string]string{
			"content_length": fmt.Sprintf("%d", len(content)),
		},
		RetrievedAt: time.Now().UTC(),
	}, nil
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// ExtractContent parses an HTML document and renders its readable content as
// Markdown. Script, style, and page chrome elements are dropped; tables come
// out as Markdown pipe tables.
func ExtractContent(htmlText string) (title, content string, err error) {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var sb strings.Builder
	renderNode(&sb, doc, &title)

	content = blankLines.ReplaceAllString(sb.String(), "\n\n")
	content = strings.TrimSpace(content)
	return title, content, nil
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "footer": true, "header": true, "aside": true,
	"iframe": true, "svg": true, "form": true, "button": true,
}

func renderNode(sb *strings.Builder, n *html.Node, title *string) {
	if n.Type == html.ElementNode {
		switch {
		case skippedElements[n.Data]:
			return
		case n.Data == "title":
			if *title == "" {
				*title = strings.TrimSpace(textContent(n))
			}
			return
		case n.Data == "h1", n.Data == "h2", n.Data == "h3",
			n.Data == "h4", n.Data == "h5", n.Data == "h6":
			level := int(n.Data[1] - '0')
			fmt.Fprintf(sb, "\n\n%s %s\n\n", strings.Repeat("#", level), collapseSpace(textContent(n)))
			return
		case n.Data == "p":
			sb.WriteString("\n\n")
			renderChildren(sb, n, title)
			sb.WriteString("\n\n")
			return
		case n.Data == "br":
			sb.WriteString("\n")
			return
		case n.Data == "a":
			text := collapseSpace(textContent(n))
			href := attr(n, "href")
			if href != "" && text != "" {
				fmt.Fprintf(sb, "[%s](%s)", text, href)
			} else {
				sb.WriteString(text)
			}
			return
		case n.Data == "strong", n.Data == "b":
			fmt.Fprintf(sb, "**%s**", collapseSpace(textContent(n)))
			return
		case n.Data == "em", n.Data == "i":
			fmt.Fprintf(sb, "*%s*", collapseSpace(textContent(n)))
			return
		case n.Data == "pre":
			fmt.Fprintf(sb, "\n\n```\n%s\n```\n\n", strings.TrimSpace(rawText(n)))
			return
		case n.Data == "code":
			fmt.Fprintf(sb, "`%s`", collapseSpace(textContent(n)))
			return
		case n.Data == "blockquote":
			var inner strings.Builder
			renderChildren(&inner, n, title)
			sb.WriteString("\n\n")
			for _, line := range strings.Split(strings.TrimSpace(inner.String()), "\n") {
				if strings.TrimSpace(line) == "" {
					sb.WriteString(">\n")
				} else {
					fmt.Fprintf(sb, "> %s\n", strings.TrimSpace(line))
				}
			}
			sb.WriteString("\n")
			return
		case n.Data == "hr":
			sb.WriteString("\n\n---\n\n")
			return
		case n.Data == "ul", n.Data == "ol":
			sb.WriteString("\n\n")
			renderList(sb, n, n.Data == "ol")
			sb.WriteString("\n")
			return
		case n.Data == "table":
			sb.WriteString("\n\n")
			sb.WriteString(tableToMarkdown(n))
			sb.WriteString("\n\n")
			return
		}
	}
	if n.Type == html.TextNode {
		// Collapse runs of whitespace but keep word-separating spaces.
		sb.WriteString(spaceRun.ReplaceAllString(n.Data, " "))
		return
	}
	renderChildren(sb, n, title)
}

func renderChildren(sb *strings.Builder, n *html.Node, title *string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(sb, c, title)
	}
}

func renderList(sb *strings.Builder, n *html.Node, ordered bool) {
	index := 1
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		if ordered {
			fmt.Fprintf(sb, "%d. %s\n", index, collapseSpace(textContent(c)))
			index++
		} else {
			fmt.Fprintf(sb, "- %s\n", collapseSpace(textContent(c)))
		}
	}
}

// tableToMarkdown converts a table element to a Markdown pipe table. The
// first row supplies the header; rowspan and colspan are ignored.
func tableToMarkdown(table *html.Node) string {
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, sanitizeCell(textContent(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)

	if len(rows) == 0 {
		return ""
	}

	header := rows[0]
	cols := len(header)
	var sb strings.Builder
	sb.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", cols) + "\n")
	for _, row := range rows[1:] {
		if len(row) < cols {
			row = append(row, make([]string, cols-len(row))...)
		} else if len(row) > cols {
			row = row[:cols]
		}
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sanitizeCell(s string) string {
	return strings.ReplaceAll(collapseSpace(s), "|", "\\|")
}

// attr returns the value of the named attribute on a node, or "" if absent.
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// textContent returns the concatenated text of a node with whitespace
// collapsed, skipping dropped elements.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// rawText preserves whitespace, for pre blocks.
func rawText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

var spaceRun = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func (s *Scraper) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return 5
}

func (s *Scraper) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return http.DefaultClient
}

func (s *Scraper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
