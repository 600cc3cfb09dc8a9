package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// MarkAsReadTool sets the \Seen flag on emails
type MarkAsReadTool struct {
	mailbox Mailbox
	logger  *logrus.Logger
}

// NewMarkAsReadTool creates a new mark as read tool
func NewMarkAsReadTool(mailbox Mailbox, logger *logrus.Logger) *MarkAsReadTool {
	return &MarkAsReadTool{mailbox: mailbox, logger: logger}
}

// Name returns the tool name
func (t *MarkAsReadTool) Name() string {
	return "mark_as_read"
}

// Description returns the tool description
func (t *MarkAsReadTool) Description() string {
	return "Mark emails as read by UID"
}

// InputSchema returns the JSON schema for tool inputs
func (t *MarkAsReadTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"uids":   uidsProperty,
			"folder": folderProperty,
		},
		"required": []string{"uids"},
	}
}

// Execute executes the tool
func (t *MarkAsReadTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	uids, err := requiredUIDs(params)
	if err != nil {
		return nil, err
	}
	folder, err := optionalString(params, "folder")
	if err != nil {
		return nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"folder": folder,
		"count":  len(uids),
	}).Debug("Marking emails as read")

	n, err := t.mailbox.MarkAsRead(ctx, uids, folder)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("Marked %d email(s) as read.", n), nil
}
