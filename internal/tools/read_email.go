package tools

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ReadEmailTool retrieves a full email by UID
type ReadEmailTool struct {
	mailbox Mailbox
	logger  *logrus.Logger
}

// NewReadEmailTool creates a new read email tool
func NewReadEmailTool(mailbox Mailbox, logger *logrus.Logger) *ReadEmailTool {
	return &ReadEmailTool{mailbox: mailbox, logger: logger}
}

// Name returns the tool name
func (t *ReadEmailTool) Name() string {
	return "read_email"
}

// Description returns the tool description
func (t *ReadEmailTool) Description() string {
	return "Read the full content of an email by UID"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ReadEmailTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"uid": map[string]interface{}{
				"type":        "string",
				"description": "Email UID (from list_emails or search_emails)",
			},
			"folder": folderProperty,
		},
		"required": []string{"uid"},
	}
}

// Execute executes the tool
func (t *ReadEmailTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	uid, err := requiredUID(params)
	if err != nil {
		return nil, err
	}
	folder, err := optionalString(params, "folder")
	if err != nil {
		return nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"uid":    uid,
		"folder": folder,
	}).Debug("Reading email")

	email, err := t.mailbox.Read(ctx, uid, folder)
	if err != nil {
		return nil, err
	}
	return email, nil
}
