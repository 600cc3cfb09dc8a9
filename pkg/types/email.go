package types

import (
	"time"
	"unicode/utf8"
)

// Email represents a message decoded from a single IMAP fetch
type Email struct {
	UID       string    `json:"uid"`
	MessageID string    `json:"messageId"`
	Subject   string    `json:"subject"`
	From      string    `json:"from"`
	FromName  string    `json:"fromName"`
	To        string    `json:"to"`
	Date      time.Time `json:"date"`
	BodyText  string    `json:"bodyText"`
	BodyHTML  string    `json:"bodyHtml"`
}

// SearchQuery holds the filters of a single search call. Zero values mean "not set".
type SearchQuery struct {
	Keyword string
	From    string
	Unseen  bool
	Since   string
	Before  string
	Folder  string
	Limit   int
}

// EmailSummary represents the compact form of an email returned by list and search
type EmailSummary struct {
	UID     string    `json:"uid"`
	Date    time.Time `json:"date"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Preview *string   `json:"preview,omitempty"`
}

// previewLength is the number of characters kept from the text body in search results
const previewLength = 200

// FromDisplay returns "Name <address>" when the sender has a display name
func (e Email) FromDisplay() string {
	if e.FromName != "" {
		return e.FromName + " <" + e.From + ">"
	}
	return e.From
}

// Summary builds the list form of an email
func (e Email) Summary() EmailSummary {
	return EmailSummary{
		UID:     e.UID,
		Date:    e.Date,
		From:    e.FromDisplay(),
		Subject: e.Subject,
	}
}

// SummaryWithPreview builds the search form of an email, including a short text preview
func (e Email) SummaryWithPreview() EmailSummary {
	s := e.Summary()
	preview := truncateRunes(e.BodyText, previewLength)
	s.Preview = &preview
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
