package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/brandon/mcp-mailbox/internal/email"
)

// Shared schema fragments
var (
	folderProperty = map[string]interface{}{
		"type":        "string",
		"description": "Mail folder (default: INBOX)",
	}
	uidsProperty = map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": "Email UIDs",
	}
)

func limitProperty(defaultLimit int) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"minimum":     1,
		"maximum":     email.MaxLimit,
		"description": fmt.Sprintf("Maximum number of emails to return (default: %d)", defaultLimit),
	}
}

// optionalString returns params[key] as a string; absent or null is ""
func optionalString(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func optionalBool(params map[string]interface{}, key string) (bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("%s must be a boolean", key)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%s must be a boolean", key)
	}
}

// optionalLimit reads "limit"; absent means 0 (the operation default)
func optionalLimit(params map[string]interface{}) (int, error) {
	v, ok := params["limit"]
	if !ok || v == nil {
		return 0, nil
	}

	var limit int
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("limit must be an integer")
		}
		limit = int(n)
	case int:
		limit = n
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("limit must be an integer")
		}
		limit = parsed
	default:
		return 0, fmt.Errorf("limit must be an integer")
	}

	if limit < 1 || limit > email.MaxLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", email.MaxLimit)
	}
	return limit, nil
}

// uidString reads a single UID given as a string or a JSON number
func uidString(v interface{}) (string, bool) {
	switch u := v.(type) {
	case string:
		u = strings.TrimSpace(u)
		return u, u != ""
	case float64:
		if u <= 0 || u != math.Trunc(u) {
			return "", false
		}
		return strconv.FormatInt(int64(u), 10), true
	default:
		return "", false
	}
}

func requiredUID(params map[string]interface{}) (string, error) {
	v, ok := params["uid"]
	if !ok || v == nil {
		return "", fmt.Errorf("uid is required")
	}
	uid, ok := uidString(v)
	if !ok {
		return "", fmt.Errorf("uid must be a non-empty string")
	}
	return uid, nil
}

func requiredUIDs(params map[string]interface{}) ([]string, error) {
	v, ok := params["uids"]
	if !ok || v == nil {
		return nil, fmt.Errorf("uids is required")
	}

	var raw []interface{}
	switch list := v.(type) {
	case []interface{}:
		raw = list
	case []string:
		for _, s := range list {
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("uids must be an array of strings")
	}

	uids := make([]string, 0, len(raw))
	for i, item := range raw {
		uid, ok := uidString(item)
		if !ok {
			return nil, fmt.Errorf("uids[%d] must be a non-empty string", i)
		}
		uids = append(uids, uid)
	}
	return uids, nil
}
