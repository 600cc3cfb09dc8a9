package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DeleteEmailsTool permanently deletes emails
type DeleteEmailsTool struct {
	mailbox Mailbox
	logger  *logrus.Logger
}

// NewDeleteEmailsTool creates a new delete emails tool
func NewDeleteEmailsTool(mailbox Mailbox, logger *logrus.Logger) *DeleteEmailsTool {
	return &DeleteEmailsTool{mailbox: mailbox, logger: logger}
}

// Name returns the tool name
func (t *DeleteEmailsTool) Name() string {
	return "delete_emails"
}

// Description returns the tool description
func (t *DeleteEmailsTool) Description() string {
	return "Permanently delete emails by UID (flags them deleted and expunges the folder)"
}

// InputSchema returns the JSON schema for tool inputs
func (t *DeleteEmailsTool) InputSchema() map[string]interface{} {
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
func (t *DeleteEmailsTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
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
	}).Debug("Deleting emails")

	n, err := t.mailbox.Delete(ctx, uids, folder)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("Deleted %d email(s).", n), nil
}
