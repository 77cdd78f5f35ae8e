// Package models defines data structures shared by the harvester components.
package models

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Article construction errors.
var (
	ErrIdentityRequired    = errors.New("article identity is required")
	ErrIdentityNotAbsolute = errors.New("article identity must be an absolute URL")
	ErrTitleRequired       = errors.New("article title is required")
)

// Date is a calendar date without time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()

	return Date{Year: y, Month: m, Day: d}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Article is one harvested news item.
// Optional fields are nil when absent.
type Article struct {
	PublishedDate      *Date
	Category           *string
	Summary            *string
	ImageURL           *string
	TitleTranslated    *string
	CategoryTranslated *string
	SummaryTranslated  *string
	identity           string
	Title              string
}

// NewArticle creates an article keyed by its absolute URL.
func NewArticle(identity, title string) (*Article, error) {
	if identity == "" {
		return nil, ErrIdentityRequired
	}

	u, err := url.Parse(identity)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrIdentityNotAbsolute, identity)
	}

	if title == "" {
		return nil, ErrTitleRequired
	}

	return &Article{identity: identity, Title: title}, nil
}

// Identity returns the canonical article URL used as the deduplication key.
func (a *Article) Identity() string {
	return a.identity
}
