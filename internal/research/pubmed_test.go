package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/fitness"
	"ai-fitness-planner/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const efetchXML = `<?xml version="1.0" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2024//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_240101.dtd">
<PubmedArticleSet>
<PubmedArticle>
  <MedlineCitation Status="MEDLINE" Owner="NLM">
    <PMID Version="1">30153194</PMID>
    <Article PubModel="Print-Electronic">
      <Journal>
        <Title>Journal of sports sciences</Title>
        <JournalIssue CitedMedium="Internet">
          <PubDate><Year>2019</Year><Month>Mar</Month></PubDate>
        </JournalIssue>
      </Journal>
      <ArticleTitle>Resistance training volume enhances muscle hypertrophy.</ArticleTitle>
      <Abstract>
        <AbstractText Label="PURPOSE">To study volume.</AbstractText>
        <AbstractText Label="RESULTS">More volume helped.</AbstractText>
      </Abstract>
      <AuthorList CompleteYN="Y">
        <Author><LastName>Schoenfeld</LastName><Initials>BJ</Initials></Author>
        <Author><LastName>Contreras</LastName><Initials>B</Initials></Author>
      </AuthorList>
    </Article>
  </MedlineCitation>
</PubmedArticle>
<PubmedArticle>
  <MedlineCitation>
    <PMID Version="1">111</PMID>
    <Article>
      <Journal>
        <Title>Nutrients</Title>
        <JournalIssue><PubDate><MedlineDate>2020 Jan-Feb</MedlineDate></PubDate></JournalIssue>
      </Journal>
      <ArticleTitle>Protein needs.</ArticleTitle>
    </Article>
  </MedlineCitation>
</PubmedArticle>
</PubmedArticleSet>`

func newTestServer(t *testing.T, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		switch r.URL.Path {
		case "/esearch.fcgi":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"esearchresult": {"count": "42", "retmax": "2", "idlist": ["30153194", "111"]}}`))
		case "/esummary.fcgi":
			_, _ = w.Write([]byte(`{"result": {
				"uids": ["30153194", "111"],
				"30153194": {"title": "Resistance training volume", "authors": [{"name": "Schoenfeld BJ"}], "fulljournalname": "Journal of sports sciences", "pubdate": "2019 Mar"},
				"111": {"source": "Nutrients"}
			}}`))
		case "/efetch.fcgi":
			_, _ = w.Write([]byte(efetchXML))
		case "/elink.fcgi":
			_, _ = w.Write([]byte(`{"linksets": [{"linksetdbs": [
				{"linkname": "pubmed_pubmed_citedin", "links": ["9"]},
				{"linkname": "pubmed_pubmed", "links": ["1", "2", "3"]}
			]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, cfg config.ResearchConfig) *Client {
	c := NewClient(cfg, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "pubmed", q.Get("db"))
		assert.Equal(t, "secret", q.Get("api_key"))
		assert.Equal(t, "ai-fitness-planner", q.Get("tool"))
		assert.Equal(t, "dev@example.com", q.Get("email"))
	})
	c := newTestClient(srv, config.ResearchConfig{APIKey: "secret", Tool: "ai-fitness-planner", Email: "dev@example.com"})

	res, err := c.Search(context.Background(), "creatine", 2)
	require.NoError(t, err)
	assert.Equal(t, 42, res.Count)
	assert.Equal(t, []string{"30153194", "111"}, res.IDs)
}

func TestSummaries(t *testing.T) {
	c := newTestClient(newTestServer(t, nil), config.ResearchConfig{})

	articles, err := c.Summaries(context.Background(), []string{"30153194", "111", "missing"})
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, Article{
		PMID:    "30153194",
		Title:   "Resistance training volume",
		Authors: []string{"Schoenfeld BJ"},
		Journal: "Journal of sports sciences",
		PubDate: "2019 Mar",
		Year:    "2019",
	}, articles[0])
	assert.Equal(t, "No title", articles[1].Title)
	assert.Equal(t, "Nutrients", articles[1].Journal)
	assert.Equal(t, "Unknown date", articles[1].PubDate)

	empty, err := c.Summaries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDetails(t *testing.T) {
	c := newTestClient(newTestServer(t, nil), config.ResearchConfig{})

	articles, err := c.Details(context.Background(), []string{"30153194", "111"})
	require.NoError(t, err)
	require.Len(t, articles, 2)

	a := articles[0]
	assert.Equal(t, "30153194", a.PMID)
	assert.Equal(t, "Resistance training volume enhances muscle hypertrophy.", a.Title)
	assert.Equal(t, "Journal of sports sciences", a.Journal)
	assert.Equal(t, "2019", a.Year)
	assert.Equal(t, "To study volume.\nMore volume helped.", a.Abstract)
	assert.Equal(t, []string{"Schoenfeld BJ", "Contreras B"}, a.Authors)

	assert.Equal(t, "111", articles[1].PMID)
	assert.Equal(t, "2020", articles[1].Year)
}

func TestRelated(t *testing.T) {
	c := newTestClient(newTestServer(t, nil), config.ResearchConfig{})

	ids, err := c.Related(context.Background(), "30153194", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestLookup(t *testing.T) {
	var paths []string
	srv := newTestServer(t, func(r *http.Request) {
		paths = append(paths, r.URL.Path+"?id="+r.URL.Query().Get("id"))
	})
	c := newTestClient(srv, config.ResearchConfig{})

	t.Run("SearchWithAbstracts", func(t *testing.T) {
		paths = nil
		articles, err := c.Lookup(context.Background(), Query{Term: "volume", Max: 2, Abstracts: true})
		require.NoError(t, err)
		require.Len(t, articles, 2)
		assert.Equal(t, "To study volume.\nMore volume helped.", articles[0].Abstract)
		assert.Equal(t, []string{"/esearch.fcgi?id=", "/efetch.fcgi?id=30153194,111"}, paths)
	})

	t.Run("RelatedSummaries", func(t *testing.T) {
		paths = nil
		_, err := c.Lookup(context.Background(), Query{Related: "30153194", Max: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"/elink.fcgi?id=30153194", "/esummary.fcgi?id=1,2"}, paths)
	})

	t.Run("SearchSummaries", func(t *testing.T) {
		paths = nil
		articles, err := c.Lookup(context.Background(), Query{Term: "volume", Max: 2})
		require.NoError(t, err)
		require.Len(t, articles, 2)
		assert.Empty(t, articles[0].Abstract)
		assert.Equal(t, "/esummary.fcgi?id=30153194,111", paths[1])
	})
}

func TestUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := newTestClient(srv, config.ResearchConfig{})

	_, err := c.Search(context.Background(), "x", 1)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "429"))
}

func TestRateLimitFollowsAPIKey(t *testing.T) {
	assert.Equal(t, rate.Limit(3), NewClient(config.ResearchConfig{}).limiter.Limit())
	assert.Equal(t, rate.Limit(10), NewClient(config.ResearchConfig{APIKey: "k"}).limiter.Limit())
}

func TestRateLimiterHonorsContext(t *testing.T) {
	c := NewClient(config.ResearchConfig{}, WithBaseURL("http://127.0.0.1:0"))
	// drain the single burst token
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Search(ctx, "x", 1)
	assert.Error(t, err)
}

func TestEvidence(t *testing.T) {
	var term string
	srv := newTestServer(t, func(r *http.Request) {
		if r.URL.Path == "/esearch.fcgi" {
			term = r.URL.Query().Get("term")
		}
	})
	ev := NewEvidence(newTestClient(srv, config.ResearchConfig{}), 0)

	citations, err := ev.Evidence(context.Background(), planner.Meal, fitness.LoseWeight)
	require.NoError(t, err)
	assert.Equal(t, "caloric deficit protein fat loss", term)
	require.Len(t, citations, 2)
	assert.Equal(t, planner.Citation{PMID: "30153194", Title: "Resistance training volume", Journal: "Journal of sports sciences", Year: "2019"}, citations[0])
}

func TestTermFallsBackToMaintain(t *testing.T) {
	assert.Equal(t, workoutTerms[fitness.Maintain], Term(planner.Workout, "unknown"))
}
