package tools

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// SearchEmailsTool searches a folder on the server
type SearchEmailsTool struct {
	mailbox Mailbox
	logger  *logrus.Logger
}

// NewSearchEmailsTool creates a new search emails tool
func NewSearchEmailsTool(mailbox Mailbox, logger *logrus.Logger) *SearchEmailsTool {
	return &SearchEmailsTool{mailbox: mailbox, logger: logger}
}

// Name returns the tool name
func (t *SearchEmailsTool) Name() string {
	return "search_emails"
}

// Description returns the tool description
func (t *SearchEmailsTool) Description() string {
	return "Search emails by keyword, sender, read state and date range. All filters are combined."
}

// InputSchema returns the JSON schema for tool inputs
func (t *SearchEmailsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"keyword": map[string]interface{}{
				"type":        "string",
				"description": "Text to search for in the message body",
			},
			"from": map[string]interface{}{
				"type":        "string",
				"description": "Sender address or name",
			},
			"unseen": map[string]interface{}{
				"type":        "boolean",
				"description": "Only unread emails",
			},
			"since": map[string]interface{}{
				"type":        "string",
				"description": "Emails on or after this date (ISO 8601, e.g. 2025-01-01)",
			},
			"before": map[string]interface{}{
				"type":        "string",
				"description": "Emails before this date (ISO 8601)",
			},
			"folder": folderProperty,
			"limit":  limitProperty(email.DefaultSearchLimit),
		},
	}
}

// Execute executes the tool
func (t *SearchEmailsTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var query types.SearchQuery
	var err error

	for key, dst := range map[string]*string{
		"keyword": &query.Keyword,
		"from":    &query.From,
		"since":   &query.Since,
		"before":  &query.Before,
		"folder":  &query.Folder,
	} {
		if *dst, err = optionalString(params, key); err != nil {
			return nil, err
		}
	}
	if query.Unseen, err = optionalBool(params, "unseen"); err != nil {
		return nil, err
	}
	if query.Limit, err = optionalLimit(params); err != nil {
		return nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"folder": query.Folder,
		"unseen": query.Unseen,
		"limit":  query.Limit,
	}).Debug("Searching emails")

	emails, err := t.mailbox.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	result := make([]types.EmailSummary, 0, len(emails))
	for _, e := range emails {
		result = append(result, e.SummaryWithPreview())
	}
	return result, nil
}
