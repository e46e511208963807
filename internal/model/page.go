package model

import "time"

// Heading is one heading of a page outline.
type Heading struct {
	Level int    `json:"level" yaml:"level"`
	Text  string `json:"text" yaml:"text"`
}

// PageText is what a content extraction provider returns for a URL.
// HasHeadings distinguishes "no headings found" from "no heading data".
type PageText struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Headings    []Heading `json:"headings,omitempty"`
	HasHeadings bool      `json:"has_headings"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// CompetitorPage is a fetched competitor result page.
type CompetitorPage struct {
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	Title       string    `json:"title"`
	Text        string    `json:"-"`
	Headings    []Heading `json:"headings,omitempty"`
	HasHeadings bool      `json:"has_headings"`
	WordCount   int       `json:"word_count"`
	Appearances int       `json:"appearances"`
	Queries     []int     `json:"queries"`
}

// OwnPage is an owner page with text available for extraction.
type OwnPage struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"-"`
	Headings    []Heading `json:"headings,omitempty"`
	HasHeadings bool      `json:"has_headings"`
	WordCount   int       `json:"word_count"`
}

// FetchState is the per-URL crawl state.
type FetchState string

const (
	FetchPending FetchState = "pending"
	FetchFetched FetchState = "fetched"
	FetchFailed  FetchState = "failed"
)

// CrawlTarget records one selected competitor URL and how its fetch settled.
type CrawlTarget struct {
	URL         string     `json:"url"`
	Domain      string     `json:"domain"`
	Appearances int        `json:"appearances"`
	FirstSeen   int        `json:"first_seen"`
	State       FetchState `json:"state"`
	Source      string     `json:"source,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// RankedResult is one organic result returned by a result lookup provider.
type RankedResult struct {
	Position int    `json:"position"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet,omitempty"`
}
