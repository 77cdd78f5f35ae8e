package uploader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kornews/internal/config"
	"kornews/internal/dedup"
	"kornews/internal/logger"
	"kornews/internal/models"
	"kornews/internal/store"
)

var errStoreDown = errors.New("store down")

func testFields() map[string]string {
	return map[string]string{
		config.FieldTitle:              "fldTitle",
		config.FieldCategory:           "fldCategory",
		config.FieldSummary:            "fldSummary",
		config.FieldDate:               "fldDate",
		config.FieldURL:                "fldURL",
		config.FieldImageURL:           "fldImage",
		config.FieldTitleTranslated:    "fldTitleEn",
		config.FieldCategoryTranslated: "fldCategoryEn",
		config.FieldSummaryTranslated:  "fldSummaryEn",
	}
}

// MockDedup implements dedup.Deduplicator with func fields.
type MockDedup struct {
	IsNewFunc func(identity string) (bool, error)
	marked    []string
	mu        sync.Mutex
}

func (m *MockDedup) Prepare(context.Context) error { return nil }

func (m *MockDedup) IsNew(_ context.Context, identity string) (bool, error) {
	return m.IsNewFunc(identity)
}

func (m *MockDedup) MarkUploaded(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.marked = append(m.marked, identity)
}

// failingCreateStore serves queries from memory but rejects writes.
type failingCreateStore struct {
	*store.Memory
}

func (failingCreateStore) Create(context.Context, map[string]any) (string, error) {
	return "", errStoreDown
}

func newArticle(t *testing.T, identity string) *models.Article {
	t.Helper()

	a, err := models.NewArticle(identity, "삼성전자 실적")
	require.NoError(t, err)

	return a
}

func newBulkUploader(t *testing.T, s store.Store) *Uploader {
	t.Helper()

	d := dedup.NewBulk(s, "fldURL", logger.Discard())
	require.NoError(t, d.Prepare(context.Background()))

	return NewUploader(s, d, testFields(), logger.Discard())
}

func TestUploader_UploadThenSkip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	u := newBulkUploader(t, s)
	a := newArticle(t, "https://www.mk.co.kr/news/it/1")

	first := u.Upload(ctx, a)
	require.NoError(t, first.Err)
	assert.Equal(t, Uploaded, first.Outcome)
	assert.NotEmpty(t, first.RecordID)

	second := u.Upload(ctx, a)
	require.NoError(t, second.Err)
	assert.Equal(t, Skipped, second.Outcome)

	assert.Equal(t, 1, s.Creates())
}

func TestUploader_ConcurrentUploadsOfSameIdentityCreateOnce(t *testing.T) {
	ctx := context.Background()

	for _, mode := range []string{config.DedupBulk, config.DedupOnline} {
		t.Run(mode, func(t *testing.T) {
			s := store.NewMemory()
			d, err := dedup.New(mode, s, "fldURL", logger.Discard())
			require.NoError(t, err)
			require.NoError(t, d.Prepare(ctx))

			u := NewUploader(s, d, testFields(), logger.Discard())
			a := newArticle(t, "https://www.mk.co.kr/news/it/1")

			var wg sync.WaitGroup

			results := make([]Result, 16)
			for i := range results {
				wg.Add(1)

				go func() {
					defer wg.Done()

					results[i] = u.Upload(ctx, a)
				}()
			}

			wg.Wait()

			uploaded := 0

			for _, r := range results {
				if r.Outcome == Uploaded {
					uploaded++
				} else {
					assert.Equal(t, Skipped, r.Outcome)
				}
			}

			assert.Equal(t, 1, uploaded)
			assert.Equal(t, 1, s.Creates())
			assert.Zero(t, u.locks.size())
		})
	}
}

func TestUploader_QueryFailureIsFailedWithoutWrite(t *testing.T) {
	s := store.NewMemory()
	d := &MockDedup{IsNewFunc: func(string) (bool, error) { return false, errStoreDown }}
	u := NewUploader(s, d, testFields(), logger.Discard())

	res := u.Upload(context.Background(), newArticle(t, "https://www.mk.co.kr/news/it/1"))
	assert.Equal(t, Failed, res.Outcome)
	assert.True(t, errors.Is(res.Err, errStoreDown))
	assert.Zero(t, s.Creates())
	assert.Empty(t, d.marked)
}

func TestUploader_CreateFailureIsFailedAndNotMarked(t *testing.T) {
	d := &MockDedup{IsNewFunc: func(string) (bool, error) { return true, nil }}
	u := NewUploader(failingCreateStore{store.NewMemory()}, d, testFields(), logger.Discard())

	res := u.Upload(context.Background(), newArticle(t, "https://www.mk.co.kr/news/it/1"))
	assert.Equal(t, Failed, res.Outcome)
	assert.True(t, errors.Is(res.Err, ErrCreateFailed))
	assert.True(t, errors.Is(res.Err, errStoreDown))
	assert.Empty(t, d.marked)
}

func TestUploader_FieldMap(t *testing.T) {
	u := NewUploader(store.NewMemory(), &MockDedup{}, testFields(), logger.Discard())

	t.Run("required only", func(t *testing.T) {
		a := newArticle(t, "https://www.mk.co.kr/news/it/1")

		assert.Equal(t, map[string]any{
			"fldURL":   "https://www.mk.co.kr/news/it/1",
			"fldTitle": "삼성전자 실적",
		}, u.FieldMap(a))
	})

	t.Run("all fields", func(t *testing.T) {
		a := newArticle(t, "https://www.mk.co.kr/news/it/2")
		cat, sum, img := "기업", "요약", "https://file.mk.co.kr/1.jpg"
		titleEn, catEn, sumEn := "Samsung results", "Business", "Summary"
		date := models.DateOf(time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC))

		a.Category, a.Summary, a.ImageURL = &cat, &sum, &img
		a.TitleTranslated, a.CategoryTranslated, a.SummaryTranslated = &titleEn, &catEn, &sumEn
		a.PublishedDate = &date

		fields := u.FieldMap(a)
		assert.Len(t, fields, 9)
		assert.Equal(t, "2025-06-09", fields["fldDate"])
		assert.Equal(t, "Business", fields["fldCategoryEn"])
		assert.Equal(t, img, fields["fldImage"])
	})
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "uploaded", Uploaded.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}

func TestKeyLock_SerializesPerKey(t *testing.T) {
	k := newKeyLock()

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")

	acquired := make(chan struct{})
	released := make(chan struct{})

	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder of key a acquired the lock early")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	<-released
	unlockB()

	assert.Zero(t, k.size())
}
