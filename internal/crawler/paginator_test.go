package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kornews/internal/logger"
)

type stubFetcher struct {
	pages map[string]*FetchResult
	errs  map[string]error
	calls []string
	mu    sync.Mutex
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*FetchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if err, ok := f.errs[url]; ok {
		return f.pages[url], err
	}

	return f.pages[url], nil
}

func itemMarkup(id int) string {
	return fmt.Sprintf(`<li class="news_node"><a href="/news/%d"><h3 class="news_ttl">기사 %d</h3></a></li>`, id, id)
}

func pageBody(ids ...int) []byte {
	var sb strings.Builder

	sb.WriteString("<html><body><ul>")

	for _, id := range ids {
		sb.WriteString(itemMarkup(id))
	}

	sb.WriteString("</ul></body></html>")

	return []byte(sb.String())
}

func newTestPaginator(t *testing.T, f Fetcher) (*Paginator, *URLManager, *[]time.Duration) {
	t.Helper()

	urls, err := NewURLManager(testSite())
	require.NoError(t, err)

	p := NewPaginator(f, NewExtractor(testSite().Selectors, urls, logger.Discard()), urls, 250*time.Millisecond, logger.Discard())

	var slept []time.Duration

	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)

		return nil
	}

	return p, urls, &slept
}

func TestPaginator_ContinuesPastFailedPage(t *testing.T) {
	f := &stubFetcher{
		pages: map[string]*FetchResult{},
		errs:  map[string]error{},
	}

	p, urls, slept := newTestPaginator(t, f)

	f.pages[urls.SearchURL("삼성전자", 1)] = &FetchResult{StatusCode: http.StatusOK, Body: pageBody(1, 2)}
	f.pages[urls.SearchURL("삼성전자", 2)] = &FetchResult{StatusCode: http.StatusInternalServerError}
	f.errs[urls.SearchURL("삼성전자", 2)] = fmt.Errorf("%w: 500", ErrUnexpectedStatusCode)
	f.pages[urls.SearchURL("삼성전자", 3)] = &FetchResult{StatusCode: http.StatusOK, Body: pageBody(3)}

	var pages []Page
	for page := range p.Pages(context.Background(), "삼성전자", 3) {
		pages = append(pages, page)
	}

	require.Len(t, pages, 3)

	assert.NoError(t, pages[0].Err)
	assert.Len(t, pages[0].Candidates, 2)

	require.Error(t, pages[1].Err)
	assert.True(t, errors.Is(pages[1].Err, ErrUnexpectedStatusCode))
	assert.Equal(t, http.StatusInternalServerError, pages[1].StatusCode)
	assert.Empty(t, pages[1].Candidates)

	assert.NoError(t, pages[2].Err)
	require.Len(t, pages[2].Candidates, 1)
	assert.Equal(t, "https://www.mk.co.kr/news/3", pages[2].Candidates[0].Identity)

	// One delay before each page after the first
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, *slept)
	assert.Equal(t, []int{2}, urls.FailedPages())
}

func TestPaginator_AttemptLogCoversLatestWalk(t *testing.T) {
	f := &stubFetcher{pages: map[string]*FetchResult{}, errs: map[string]error{}}
	p, urls, _ := newTestPaginator(t, f)

	f.pages[urls.SearchURL("k", 1)] = &FetchResult{StatusCode: http.StatusOK, Body: pageBody(1), Attempts: 1}
	f.errs[urls.SearchURL("k", 2)] = fmt.Errorf("%w: dial tcp", ErrTransport)

	for range p.Pages(context.Background(), "k", 2) {
	}

	attempts := p.Attempts()
	require.Len(t, attempts, 2)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, 1, attempts[0].Attempts)
	assert.False(t, attempts[1].Success)
	assert.Equal(t, []int{2}, p.FailedPages())

	// A second walk does not carry the first walk's failures
	delete(f.errs, urls.SearchURL("k", 2))
	f.pages[urls.SearchURL("k", 2)] = &FetchResult{StatusCode: http.StatusOK, Body: pageBody(2)}

	for range p.Pages(context.Background(), "k", 2) {
	}

	assert.Len(t, p.Attempts(), 2)
	assert.Empty(t, p.FailedPages())
}

func TestPaginator_StopsWhenConsumerBreaks(t *testing.T) {
	f := &stubFetcher{pages: map[string]*FetchResult{}}
	p, urls, _ := newTestPaginator(t, f)

	for n := 1; n <= 3; n++ {
		f.pages[urls.SearchURL("k", n)] = &FetchResult{StatusCode: http.StatusOK, Body: pageBody(n)}
	}

	for page := range p.Pages(context.Background(), "k", 3) {
		if page.Number == 1 {
			break
		}
	}

	assert.Len(t, f.calls, 1)
}

func TestPaginator_StopsOnCancelledContext(t *testing.T) {
	f := &stubFetcher{pages: map[string]*FetchResult{}}
	p, urls, _ := newTestPaginator(t, f)

	f.pages[urls.SearchURL("k", 1)] = &FetchResult{StatusCode: http.StatusOK, Body: pageBody(1)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen int

	for range p.Pages(ctx, "k", 3) {
		seen++

		cancel()
	}

	assert.Equal(t, 1, seen)
	assert.Len(t, f.calls, 1)
}
