package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/tools"
)

const (
	// ProtocolVersion is the MCP revision this server speaks
	ProtocolVersion = "2024-11-05"
	serverName      = "mcp-mailbox"
)

// JSON-RPC error codes
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Server represents the MCP server
type Server struct {
	logger  *logrus.Logger
	tools   *tools.Registry
	timeout time.Duration
	version string
}

// NewServer creates a new MCP server instance
func NewServer(registry *tools.Registry, logger *logrus.Logger, version string) *Server {
	return &Server{
		logger:  logger,
		tools:   registry,
		version: version,
	}
}

// SetOperationTimeout bounds every tools/call; zero means no bound
func (s *Server) SetOperationTimeout(d time.Duration) {
	s.timeout = d
}

// Run serves newline-delimited JSON-RPC requests from in until EOF or ctx is done.
// Requests are handled one at a time, in order.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Starting MCP server with stdio transport")

	reader := bufio.NewReader(in)
	encoder := json.NewEncoder(out)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, readErr := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			if resp := s.handleLine(ctx, line); resp != nil {
				if err := encoder.Encode(resp); err != nil {
					return fmt.Errorf("failed to write response: %w", err)
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				s.logger.Info("Input closed, stopping MCP server")
				return nil
			}
			return fmt.Errorf("failed to read request: %w", readErr)
		}
	}
}

// handleLine decodes one request. A nil response means nothing is written.
func (s *Server) handleLine(ctx context.Context, line []byte) map[string]interface{} {
	var req map[string]interface{}
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.WithError(err).Error("Failed to decode request")
		return errorResponse(nil, codeParseError, "Parse error")
	}
	return s.handleRequest(ctx, req)
}

// handleRequest processes an MCP request
func (s *Server) handleRequest(ctx context.Context, req map[string]interface{}) map[string]interface{} {
	method, _ := req["method"].(string)
	id, hasID := req["id"]

	if !hasID {
		// Notifications (notifications/initialized, cancellations) never get a reply
		s.logger.WithField("method", method).Debug("Received notification")
		return nil
	}
	if method == "" {
		return errorResponse(id, codeInvalidRequest, "Invalid request: method is required")
	}

	logger := s.logger.WithField("method", method)
	logger.Debug("Handling request")

	switch method {
	case "initialize":
		return resultResponse(id, map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    serverName,
				"version": s.version,
			},
		})

	case "ping":
		return resultResponse(id, map[string]interface{}{})

	case "tools/list":
		return resultResponse(id, map[string]interface{}{
			"tools": s.tools.GetToolDefinitions(),
		})

	case "tools/call":
		return s.callTool(ctx, id, req)
	}

	logger.Warn("Unknown method")
	return errorResponse(id, codeMethodNotFound, fmt.Sprintf("Method not found: %s", method))
}

func (s *Server) callTool(ctx context.Context, id interface{}, req map[string]interface{}) map[string]interface{} {
	params, _ := req["params"].(map[string]interface{})
	toolName, _ := params["name"].(string)
	arguments, _ := params["arguments"].(map[string]interface{})
	if arguments == nil {
		arguments = map[string]interface{}{}
	}

	tool, exists := s.tools.GetTool(toolName)
	if !exists {
		return errorResponse(id, codeInvalidParams, fmt.Sprintf("Tool not found: %s", toolName))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := tool.Execute(ctx, arguments)
	logger := s.logger.WithFields(logrus.Fields{
		"tool":     toolName,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		logger.WithError(err).Warn("Tool call failed")
		return resultResponse(id, toolResult(err.Error(), true))
	}
	logger.Info("Tool call completed")

	text, err := renderResult(result)
	if err != nil {
		logger.WithError(err).Error("Failed to encode tool result")
		return resultResponse(id, toolResult(err.Error(), true))
	}
	return resultResponse(id, toolResult(text, false))
}

// renderResult passes strings through and renders anything else as indented JSON
func renderResult(result interface{}) (string, error) {
	if text, ok := result.(string); ok {
		return text, nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(data), nil
}

func toolResult(text string, isError bool) map[string]interface{} {
	result := map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": text,
			},
		},
	}
	if isError {
		result["isError"] = true
	}
	return result
}

func resultResponse(id interface{}, result interface{}) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
}

func errorResponse(id interface{}, code int, message string) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	}
}
