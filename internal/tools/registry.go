package tools

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/pkg/types"
)

// Mailbox is the set of mailbox operations the tools expose
type Mailbox interface {
	List(ctx context.Context, folder string, limit int) ([]types.Email, error)
	Read(ctx context.Context, uid string, folder string) (*types.Email, error)
	Search(ctx context.Context, query types.SearchQuery) ([]types.Email, error)
	Delete(ctx context.Context, uids []string, folder string) (int, error)
	MarkAsRead(ctx context.Context, uids []string, folder string) (int, error)
}

// Registry manages MCP tools
type Registry struct {
	mailbox Mailbox
	logger  *logrus.Logger
	tools   map[string]Tool
}

// Tool represents an MCP tool. A string result is sent to the agent as is;
// anything else is rendered as indented JSON.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

// NewRegistry creates a new tool registry
func NewRegistry(mailbox Mailbox, logger *logrus.Logger) *Registry {
	reg := &Registry{
		mailbox: mailbox,
		logger:  logger,
		tools:   make(map[string]Tool),
	}

	reg.registerTools()

	return reg
}

// registerTools registers all available tools
func (r *Registry) registerTools() {
	toolList := []Tool{
		NewListEmailsTool(r.mailbox, r.logger),
		NewReadEmailTool(r.mailbox, r.logger),
		NewSearchEmailsTool(r.mailbox, r.logger),
		NewDeleteEmailsTool(r.mailbox, r.logger),
		NewMarkAsReadTool(r.mailbox, r.logger),
	}

	for _, tool := range toolList {
		r.tools[tool.Name()] = tool
		r.logger.WithField("tool", tool.Name()).Debug("Registered tool")
	}

	r.logger.WithField("count", len(r.tools)).Info("Registered tools")
}

// GetTool returns a tool by name
func (r *Registry) GetTool(name string) (Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// ListTools returns all registered tools ordered by name
func (r *Registry) ListTools() []Tool {
	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name() < tools[j].Name()
	})
	return tools
}

// GetToolDefinitions returns tool definitions for MCP
func (r *Registry) GetToolDefinitions() []map[string]interface{} {
	tools := r.ListTools()
	definitions := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		definitions = append(definitions, map[string]interface{}{
			"name":        tool.Name(),
			"description": tool.Description(),
			"inputSchema": tool.InputSchema(),
		})
	}
	return definitions
}
