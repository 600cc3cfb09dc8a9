package tools

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// ListEmailsTool lists the most recent emails of a folder
type ListEmailsTool struct {
	mailbox Mailbox
	logger  *logrus.Logger
}

// NewListEmailsTool creates a new list emails tool
func NewListEmailsTool(mailbox Mailbox, logger *logrus.Logger) *ListEmailsTool {
	return &ListEmailsTool{mailbox: mailbox, logger: logger}
}

// Name returns the tool name
func (t *ListEmailsTool) Name() string {
	return "list_emails"
}

// Description returns the tool description
func (t *ListEmailsTool) Description() string {
	return "List recent emails from a folder, newest first"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ListEmailsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"folder": folderProperty,
			"limit":  limitProperty(email.DefaultListLimit),
		},
	}
}

// Execute executes the tool
func (t *ListEmailsTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	folder, err := optionalString(params, "folder")
	if err != nil {
		return nil, err
	}
	limit, err := optionalLimit(params)
	if err != nil {
		return nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"folder": folder,
		"limit":  limit,
	}).Debug("Listing emails")

	emails, err := t.mailbox.List(ctx, folder, limit)
	if err != nil {
		return nil, err
	}

	result := make([]types.EmailSummary, 0, len(emails))
	for _, e := range emails {
		result = append(result, e.Summary())
	}
	return result, nil
}
