package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"kornews/internal/crawler"
	"kornews/internal/pipeline"
)

func TestTable(t *testing.T) {
	tests := []struct {
		name     string
		rows     [][]string
		expected string
	}{
		{
			name: "Basic table",
			rows: [][]string{{"Header 1", "Header 2"}, {"val 1", "val 2"}},
			expected: `| Header 1 | Header 2 |
| -------- | -------- |
| val 1    | val 2    |`,
		},
		{
			name: "Korean cells use display width",
			rows: [][]string{{"항목", "값"}, {"삼성전자", "1"}},
			expected: `| 항목     | 값  |
| -------- | --- |
| 삼성전자 | 1   |`,
		},
		{
			name: "Ragged rows are padded",
			rows: [][]string{{"A", "B", "C"}, {"x"}},
			expected: `| A   | B   | C   |
| --- | --- | --- |
| x   |     |     |`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(Table(tt.rows), "\n")
			if got != tt.expected {
				t.Errorf("Table() =\n%s\nwant\n%s", got, tt.expected)
			}
		})
	}

	if Table(nil) != nil {
		t.Error("Table(nil) should be nil")
	}
}

func TestStatusLine(t *testing.T) {
	uploaded := StatusLine(pipeline.ArticleStatus{
		Status:   pipeline.StatusUploaded,
		Page:     1,
		Title:    "삼성전자 실적",
		Identity: "https://www.mk.co.kr/news/1",
		RecordID: "rec1",
	}, 20)

	want := "[uploaded] p1 삼성전자 실적        https://www.mk.co.kr/news/1 -> rec1"
	if uploaded != want {
		t.Errorf("StatusLine() = %q, want %q", uploaded, want)
	}

	failed := StatusLine(pipeline.ArticleStatus{
		Status:   pipeline.StatusFailed,
		Page:     2,
		Title:    "아주 긴 제목이 들어가서 잘려야 하는 기사 제목입니다",
		Identity: "https://www.mk.co.kr/news/2",
		Err:      errors.New("create failed: 422"),
	}, 20)

	if !strings.HasPrefix(failed, "[failed  ] p2 ") {
		t.Errorf("unexpected prefix: %q", failed)
	}

	if !strings.HasSuffix(failed, "(create failed: 422)") {
		t.Errorf("error detail missing: %q", failed)
	}

	title := strings.TrimPrefix(failed, "[failed  ] p2 ")
	title = title[:strings.Index(title, " https://")]

	if w := runewidth.StringWidth(title); w != 20 {
		t.Errorf("title display width = %d, want 20 (%q)", w, title)
	}

	if !strings.HasSuffix(strings.TrimRight(title, " "), "…") {
		t.Errorf("truncated title should end with ellipsis: %q", title)
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer

	p := NewPrinter(&buf, 0)
	p.Print(pipeline.ArticleStatus{Status: pipeline.StatusSkipped, Page: 3, Title: "기사", Identity: "https://a/1"})

	start := time.Date(2025, time.June, 9, 9, 0, 0, 0, time.UTC)
	p.Summary(&pipeline.Stats{
		RunID:       "run-1",
		StartedAt:   start,
		FinishedAt:  start.Add(1500 * time.Millisecond),
		FailedPages: []int{2},
		Pages:       3,
		Fragments:   4,
		Uploaded:    2,
		Skipped:     1,
		Dropped:     1,
		Attempts: []crawler.AttemptResult{
			{Page: 1, StatusCode: 200, Attempts: 1, Duration: 120 * time.Millisecond, Success: true},
			{Page: 2, StatusCode: 503, Attempts: 1, Duration: 80 * time.Millisecond, Error: "unexpected status code: 503"},
		},
	})

	out := buf.String()

	for _, want := range []string{"[skipped ] p3 기사", "| Failed pages  | 2 ", "| Uploaded      | 2 ", "| Duration      | 1.5s",
		"| 2    | 503    | 1     | 80ms     | unexpected status code: 503 |"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAttempts(t *testing.T) {
	got := Attempts([]crawler.AttemptResult{
		{Page: 1, StatusCode: 200, Attempts: 1, Duration: 5 * time.Millisecond, Success: true},
		{Page: 2, Attempts: 2, Error: "transport failure"},
	})

	want := `| Page | Status | Tries | Duration | Error             |
| ---- | ------ | ----- | -------- | ----------------- |
| 1    | 200    | 1     | 5ms      |                   |
| 2    | -      | 2     | 0s       | transport failure |`

	if got != want {
		t.Errorf("Attempts() =\n%s\nwant\n%s", got, want)
	}
}
