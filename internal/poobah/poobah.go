// Package poobah scrapes powderpoobah.com, a Pacific Northwest snow
// forecaster who posts narrative powder alerts. The latest post is located
// from the homepage and its forecast sections are pulled out of the text.
package poobah

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/tyemill/snowline-agent/internal/httpkit"
)

const defaultBaseURL = "https://www.powderpoobah.com"

// Scraper fetches and parses Powder Poobah forecast posts.
type Scraper struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Scraper. baseURL may be empty for the live site.
func New(baseURL string) *Scraper {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Scraper{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithRetry(2, time.Second),
		),
	}
}

// Forecast holds the sections extracted from the latest post. Sections the
// post does not carry are empty.
type Forecast struct {
	Title     string
	URL       string
	ShortTerm string
	Highlight string
	Extended  string
}

// Latest fetches the most recent powder alert post and extracts its
// forecast sections.
func (s *Scraper) Latest(ctx context.Context) (*Forecast, error) {
	home, err := s.fetch(ctx, s.baseURL+"/")
	if err != nil {
		return nil, fmt.Errorf("homepage: %w", err)
	}
	postURL := latestPostURL(home, s.baseURL)
	if postURL == "" {
		return nil, fmt.Errorf("no forecast posts found on homepage")
	}

	doc, err := s.fetch(ctx, postURL)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", postURL, err)
	}

	f := parsePost(doc)
	f.URL = postURL
	return f, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return html.Parse(resp.Body)
}

// postKeywords mark a link as a powder alert rather than site chrome.
var postKeywords = []string{"powder", "snow", "forecast", "coming"}

// latestPostURL walks the homepage for post links; the site lists posts
// newest first, so the first qualifying link wins.
func latestPostURL(doc *html.Node, baseURL string) string {
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			if isPostLink(href) {
				if !strings.HasPrefix(href, "http") {
					href = baseURL + href
				}
				found = href
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func isPostLink(href string) bool {
	if !strings.Contains(href, "/post/") {
		return false
	}
	lower := strings.ToLower(href)
	for _, kw := range postKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	// Real posts carry a slug after /post/.
	_, slug, _ := strings.Cut(href, "/post/")
	return strings.Trim(slug, "/") != ""
}

var (
	blankRuns = regexp.MustCompile(`\n\s*\n\s*\n+`)
	spaceRuns = regexp.MustCompile(`[ \t]+`)

	shortTermHeader = regexp.MustCompile(`(?i)^short\s+term\s+forecast\b`)
	highlightHeader = regexp.MustCompile(`(?i)^highlights?\b`)
	extendedHeader  = regexp.MustCompile(`(?i)^extended\s+outlook\b`)

	// stopLines mark the tail matter after the forecast sections.
	stopLines = regexp.MustCompile(`(?i)^(michael\s+fagin|meteorologist|forward\s+this|p\.s\.|event\s+alert|slope\s+stories?|riddle|daily\s+dose|recent\s+posts|the\s+perfect\s+gift|slopes?\s*[-–]|map\s+\d+)`)

	// junkLines are newsletter furniture inside sections.
	junkLines = regexp.MustCompile(`(?i)(image|email|subscribe|click here|shop our|sponsor shoutouts|meet larry|map\s+\d+)`)
)

// sectionLineCap bounds how much of a rambling section is kept.
const sectionLineCap = 15

// chromeTags hold no post content.
var chromeTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"header": true, "footer": true, "iframe": true,
}

func parsePost(doc *html.Node) *Forecast {
	f := &Forecast{Title: "Latest Forecast"}

	var title string
	var text strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && chromeTags[n.Data] {
			return
		}
		if n.Type == html.ElementNode && n.Data == "h1" && title == "" {
			title = strings.TrimSpace(textContent(n))
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				text.WriteString(t)
				text.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if title != "" {
		f.Title = title
	}

	body := spaceRuns.ReplaceAllString(text.String(), " ")
	body = blankRuns.ReplaceAllString(body, "\n\n")

	var current *[]string
	var shortTerm, highlights, extended []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case shortTermHeader.MatchString(line):
			current = &shortTerm
			continue
		case highlightHeader.MatchString(line):
			current = &highlights
			continue
		case extendedHeader.MatchString(line):
			current = &extended
			continue
		case stopLines.MatchString(line):
			current = nil
			continue
		}
		if current == nil || len(*current) >= sectionLineCap {
			continue
		}
		if len(line) <= 10 || junkLines.MatchString(line) {
			continue
		}
		*current = append(*current, line)
	}

	f.ShortTerm = strings.Join(shortTerm, "\n")
	f.Highlight = strings.Join(highlights, "\n")
	f.Extended = strings.Join(extended, "\n")
	return f
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Format renders the forecast as an expert-context block for prompts and
// tool results.
func Format(f *Forecast) string {
	rule := strings.Repeat("=", 70)

	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	b.WriteString("EXPERT CONTEXT: Powder Poobah Professional Snow Forecast\n")
	b.WriteString(rule + "\n\n")
	fmt.Fprintf(&b, "Post: %s\n", f.Title)
	fmt.Fprintf(&b, "Source: %s\n", f.URL)

	if f.ShortTerm != "" {
		fmt.Fprintf(&b, "\nSHORT TERM FORECAST:\n%s\n", f.ShortTerm)
	}
	if f.Highlight != "" {
		fmt.Fprintf(&b, "\nHIGHLIGHTS:\n%s\n", f.Highlight)
	}
	if f.Extended != "" {
		fmt.Fprintf(&b, "\nEXTENDED OUTLOOK:\n%s\n", f.Extended)
	}

	b.WriteString("\n" + rule + "\n")
	return b.String()
}
