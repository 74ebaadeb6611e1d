// Package research is a self-throttled client for the NCBI PubMed
// E-utilities API.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ai-fitness-planner/internal/config"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// NCBI allows 3 requests per second, or 10 with an API key.
	anonymousRPS = 3
	keyedRPS     = 10
)

// SearchResult is the esearch hit count and the returned ids.
type SearchResult struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// Article is a PubMed record. Abstract is only set by Details.
type Article struct {
	PMID     string   `json:"pmid"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Journal  string   `json:"journal"`
	PubDate  string   `json:"pubdate"`
	Year     string   `json:"year,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
}

// Client calls the E-utilities endpoints under a shared rate limit.
type Client struct {
	baseURL string
	apiKey  string
	tool    string
	email   string
	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a client; the rate limit follows whether an API key is set.
func NewClient(cfg config.ResearchConfig, opts ...Option) *Client {
	rps := anonymousRPS
	if cfg.APIKey != "" {
		rps = keyedRPS
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  cfg.APIKey,
		tool:    cfg.Tool,
		email:   cfg.Email,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs an esearch query against the pubmed database.
func (c *Client) Search(ctx context.Context, term string, maxResults int) (SearchResult, error) {
	var raw struct {
		ESearchResult struct {
			Count  string   `json:"count"`
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	err := c.getJSON(ctx, "esearch.fcgi", url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmax":  {strconv.Itoa(maxResults)},
		"retmode": {"json"},
	}, &raw)
	if err != nil {
		return SearchResult{}, fmt.Errorf("pubmed search failed: %w", err)
	}

	count, _ := strconv.Atoi(raw.ESearchResult.Count)
	ids := raw.ESearchResult.IDList
	if ids == nil {
		ids = []string{}
	}
	return SearchResult{Count: count, IDs: ids}, nil
}

type summaryAuthor struct {
	Name string `json:"name"`
}

type summary struct {
	Title           string          `json:"title"`
	Authors         []summaryAuthor `json:"authors"`
	FullJournalName string          `json:"fulljournalname"`
	Source          string          `json:"source"`
	PubDate         string          `json:"pubdate"`
}

// Summaries fetches esummary records in the order of ids. Ids the API does
// not return are skipped.
func (c *Client) Summaries(ctx context.Context, ids []string) ([]Article, error) {
	if len(ids) == 0 {
		return []Article{}, nil
	}

	var raw struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	err := c.getJSON(ctx, "esummary.fcgi", url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch summaries failed: %w", err)
	}

	articles := make([]Article, 0, len(ids))
	for _, id := range ids {
		msg, ok := raw.Result[id]
		if !ok {
			continue
		}
		var s summary
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, fmt.Errorf("failed to decode summary %s: %w", id, err)
		}

		a := Article{
			PMID:    id,
			Title:   firstNonEmpty(s.Title, "No title"),
			Authors: make([]string, 0, len(s.Authors)),
			Journal: firstNonEmpty(s.FullJournalName, s.Source, "Unknown"),
			PubDate: firstNonEmpty(s.PubDate, "Unknown date"),
			Year:    yearOf(s.PubDate),
		}
		for _, au := range s.Authors {
			a.Authors = append(a.Authors, au.Name)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// Details fetches full records, including abstracts, from efetch XML.
func (c *Client) Details(ctx context.Context, ids []string) ([]Article, error) {
	if len(ids) == 0 {
		return []Article{}, nil
	}

	body, err := c.get(ctx, "efetch.fcgi", url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
	})
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch details failed: %w", err)
	}
	defer body.Close()

	return parseArticles(body)
}

// SearchAndFetch searches and returns the summaries of the hits.
func (c *Client) SearchAndFetch(ctx context.Context, term string, maxResults int) ([]Article, error) {
	res, err := c.Search(ctx, term, maxResults)
	if err != nil {
		return nil, err
	}
	return c.Summaries(ctx, res.IDs)
}

// Query selects the articles Lookup returns. Related, when set, is a PMID
// whose similar articles replace the Term search.
type Query struct {
	Term      string
	Related   string
	Max       int
	Abstracts bool
}

// Lookup resolves ids by search or by elink, then fetches esummary records,
// or full efetch records when Abstracts is set.
func (c *Client) Lookup(ctx context.Context, q Query) ([]Article, error) {
	var ids []string
	if q.Related != "" {
		related, err := c.Related(ctx, q.Related, q.Max)
		if err != nil {
			return nil, err
		}
		ids = related
	} else {
		res, err := c.Search(ctx, q.Term, q.Max)
		if err != nil {
			return nil, err
		}
		ids = res.IDs
	}

	if q.Abstracts {
		return c.Details(ctx, ids)
	}
	return c.Summaries(ctx, ids)
}

// Related returns up to maxResults ids linked to pmid as similar articles.
func (c *Client) Related(ctx context.Context, pmid string, maxResults int) ([]string, error) {
	var raw struct {
		LinkSets []struct {
			LinkSetDBs []struct {
				LinkName string   `json:"linkname"`
				Links    []string `json:"links"`
			} `json:"linksetdbs"`
		} `json:"linksets"`
	}
	err := c.getJSON(ctx, "elink.fcgi", url.Values{
		"dbfrom":  {"pubmed"},
		"db":      {"pubmed"},
		"id":      {pmid},
		"retmode": {"json"},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("pubmed get related failed: %w", err)
	}

	related := []string{}
	if len(raw.LinkSets) > 0 {
		for _, db := range raw.LinkSets[0].LinkSetDBs {
			if db.LinkName == "pubmed_pubmed" {
				related = db.Links
				break
			}
		}
	}
	if len(related) > maxResults {
		related = related[:maxResults]
	}
	return related, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.tool != "" {
		params.Set("tool", c.tool)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// parseArticles reads PubmedArticle elements. The HTML parser lowercases
// element names, so selectors are lowercase.
func parseArticles(r io.Reader) ([]Article, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse efetch xml: %w", err)
	}

	articles := []Article{}
	doc.Find("pubmedarticle").Each(func(_ int, s *goquery.Selection) {
		a := Article{
			PMID:    strings.TrimSpace(s.Find("medlinecitation > pmid").First().Text()),
			Title:   strings.TrimSpace(s.Find("articletitle").First().Text()),
			Journal: strings.TrimSpace(s.Find("journal > title").First().Text()),
			Authors: []string{},
		}

		pubDate := s.Find("journal pubdate").First()
		a.Year = strings.TrimSpace(pubDate.Find("year").First().Text())
		if a.Year == "" {
			a.Year = yearOf(strings.TrimSpace(pubDate.Find("medlinedate").First().Text()))
		}
		a.PubDate = strings.Join(strings.Fields(pubDate.Text()), " ")

		var abstract []string
		s.Find("abstracttext").Each(func(_ int, t *goquery.Selection) {
			if text := strings.TrimSpace(t.Text()); text != "" {
				abstract = append(abstract, text)
			}
		})
		a.Abstract = strings.Join(abstract, "\n")

		s.Find("authorlist > author").Each(func(_ int, au *goquery.Selection) {
			name := strings.TrimSpace(au.Find("lastname").Text())
			if initials := strings.TrimSpace(au.Find("initials").Text()); initials != "" {
				name += " " + initials
			}
			if name == "" {
				name = strings.TrimSpace(au.Find("collectivename").Text())
			}
			if name != "" {
				a.Authors = append(a.Authors, name)
			}
		})

		articles = append(articles, a)
	})
	return articles, nil
}

func yearOf(date string) string {
	if len(date) >= 4 {
		if _, err := strconv.Atoi(date[:4]); err == nil {
			return date[:4]
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
