package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yungbote/talkco-backend/internal/platform/realtime"
)

// Tool is a function the speech engine may call mid-response. Run must not touch session
// state; its output string is sent back verbatim as the function_call_output.
type Tool interface {
	Name() string
	Schema() realtime.ToolSchema
	Run(ctx context.Context, args map[string]any) (string, error)
}

type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// DefaultTools returns a registry with the built-in tools.
func DefaultTools() *ToolRegistry {
	r := NewToolRegistry()
	_ = r.Register(SearchNewsTool{})
	return r
}

func (r *ToolRegistry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("nil tool")
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return fmt.Errorf("tool Name() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = t
	return nil
}

func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Schemas lists tool declarations for session.update, sorted by name.
func (r *ToolRegistry) Schemas() []realtime.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]realtime.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Schema())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute always yields an output to send back. The error is informational: an
// *UnknownToolError, ErrToolArgumentsMalformed, or a tool failure.
func (r *ToolRegistry) Execute(ctx context.Context, name, rawArgs string) (string, error) {
	args, argErr := parseToolArgs(rawArgs)

	t, ok := r.Get(name)
	if !ok {
		unknown := &UnknownToolError{Name: name}
		return errorPayload(unknown.Error()), errors.Join(unknown, argErr)
	}
	out, err := t.Run(ctx, args)
	if err != nil {
		return errorPayload(err.Error()), errors.Join(fmt.Errorf("tool %s: %w", name, err), argErr)
	}
	return out, argErr
}

func parseToolArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}, ErrToolArgumentsMalformed
	}
	return args, nil
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

// SearchNewsTool returns canned articles for the query so the partner can discuss
// "current events" without a live news feed.
type SearchNewsTool struct{}

func (SearchNewsTool) Name() string { return "search_news" }

func (SearchNewsTool) Schema() realtime.ToolSchema {
	return realtime.ToolSchema{
		Type:        "function",
		Name:        "search_news",
		Description: "Search for recent news articles on a given topic. Use when the user asks about news or current events.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query for news articles",
				},
			},
			"required": []string{"query"},
		},
	}
}

type newsArticle struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Source  string `json:"source"`
}

func (SearchNewsTool) Run(_ context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	articles := []newsArticle{
		{
			Title:   fmt.Sprintf("Latest developments in %s", query),
			Summary: fmt.Sprintf("Experts report significant progress in %s this week, with new findings suggesting positive trends ahead.", query),
			Source:  "Global Times",
		},
		{
			Title:   fmt.Sprintf("%s: What you need to know", query),
			Summary: fmt.Sprintf("A comprehensive overview of recent events related to %s, including expert analysis and public reactions.", query),
			Source:  "Daily Report",
		},
	}
	b, err := json.Marshal(articles)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
