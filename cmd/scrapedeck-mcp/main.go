package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/scrapedeck/models"
)

func main() {
	apiURL := os.Getenv("SCRAPEDECK_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	c := &client{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("SCRAPEDECK_API_KEY"),
		http:    &http.Client{Timeout: 120 * time.Second},
	}

	s := server.NewMCPServer(
		"scrapedeck",
		models.Version,
		server.WithToolCapabilities(false),
	)
	registerTools(s, c)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func registerTools(s *server.MCPServer, c *client) {
	s.AddTool(mcp.NewTool("list_entities",
		mcp.WithDescription("List every entity on the board with its URL, filter, state and current text."),
	), handleListEntities(c))

	s.AddTool(mcp.NewTool("add_entity",
		mcp.WithDescription("Add an entity that watches part of a web page, fetch it and return its text."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Page URL; must start with http://, https:// or ftp://"),
		),
		mcp.WithString("filter",
			mcp.Description("Class regex, text fragment or CSS selector, depending on filter_mode. Empty keeps the whole page."),
		),
		mcp.WithString("filter_mode",
			mcp.Description("How filter is applied: 'class' (default), 'text' or 'selector'"),
			mcp.Enum("class", "text", "selector"),
		),
		mcp.WithString("output_mode",
			mcp.Description("How the match is rendered: 'markup' (default), 'clean', 'raw' or 'markdown'"),
			mcp.Enum("markup", "clean", "raw", "markdown"),
		),
	), handleAddEntity(c))

	s.AddTool(mcp.NewTool("fetch_entity",
		mcp.WithDescription("Re-fetch one entity and report whether its text changed."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id from list_entities")),
	), handleFetchEntity(c))

	s.AddTool(mcp.NewTool("get_text",
		mcp.WithDescription("Return the current rendered text of one entity without fetching."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id from list_entities")),
		mcp.WithString("mode",
			mcp.Description("Switch the output mode first: 'markup', 'clean', 'raw' or 'markdown'"),
			mcp.Enum("markup", "clean", "raw", "markdown"),
		),
	), handleGetText(c))

	s.AddTool(mcp.NewTool("fetch_all",
		mcp.WithDescription("Re-fetch every entity in board order and report which ones changed or failed."),
	), handleFetchAll(c))
}

// client calls the scrapedeck HTTP API.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// call sends a request and decodes the JSON response into out. A body with
// success=false becomes an error carrying the API error code.
func (c *client) call(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var status struct {
		Success bool                `json:"success"`
		Error   *models.ErrorDetail `json:"error"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	if !status.Success && status.Error != nil {
		return fmt.Errorf("[%s] %s", status.Error.Code, status.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func handleListEntities(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.EntityListResponse
		if err := c.call(ctx, http.MethodGet, "/api/v1/entities", nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(resp.Entities) == 0 {
			return mcp.NewToolResultText("The board is empty."), nil
		}

		var sb strings.Builder
		for i, v := range resp.Entities {
			if i > 0 {
				sb.WriteString("\n---\n\n")
			}
			writeEntity(&sb, v)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleAddEntity(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pageURL, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var created models.EntityResponse
		err = c.call(ctx, http.MethodPost, "/api/v1/entities", models.SourceRequest{
			URL:        pageURL,
			Filter:     request.GetString("filter", ""),
			FilterMode: request.GetString("filter_mode", ""),
		}, &created)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id := created.Entity.ID

		if mode := request.GetString("output_mode", ""); mode != "" {
			err := c.call(ctx, http.MethodPut, "/api/v1/entities/"+id+"/output", models.OutputRequest{Mode: mode}, nil)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}

		var fetched models.FetchResponse
		if err := c.call(ctx, http.MethodPost, "/api/v1/entities/"+id+"/fetch", nil, &fetched); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("entity %s added but fetch failed: %v", id, err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Entity %s added.\n\n%s", id, fetched.Text)), nil
	}
}

func handleFetchEntity(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		var resp models.FetchResponse
		if err := c.call(ctx, http.MethodPost, "/api/v1/entities/"+url.PathEscape(id)+"/fetch", nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatReport(resp.FetchReport)), nil
	}
}

func handleGetText(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		path := "/api/v1/entities/" + url.PathEscape(id) + "/text"
		if mode := request.GetString("mode", ""); mode != "" {
			path += "?mode=" + url.QueryEscape(mode)
		}

		var resp models.TextResponse
		if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(resp.Text), nil
	}
}

func handleFetchAll(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.FetchAllResponse
		if err := c.call(ctx, http.MethodPost, "/api/v1/fetch-all", nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		sb.WriteString(resp.Status)
		for _, r := range resp.Results {
			sb.WriteString("\n\n")
			sb.WriteString(formatReport(r))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func writeEntity(sb *strings.Builder, v models.EntityView) {
	fmt.Fprintf(sb, "ID: %s\nURL: %s\nFilter: %q (%s)\nOutput: %s\nState: %s\n",
		v.ID, v.URL, v.Filter, v.FilterMode, v.OutputMode, v.State)
	if v.Metadata.Title != "" {
		fmt.Fprintf(sb, "Title: %s\n", v.Metadata.Title)
	}
	if v.Message != "" {
		fmt.Fprintf(sb, "Status: %s\n", v.Message)
	}
	if v.Text != "" {
		fmt.Fprintf(sb, "\n%s\n", v.Text)
	}
}

func formatReport(r models.FetchReport) string {
	switch {
	case r.Error != nil:
		return fmt.Sprintf("[%s] %s failed: [%s] %s", r.ID, r.URL, r.Error.Code, r.Error.Message)
	case r.Changed:
		return fmt.Sprintf("[%s] %s changed:\n%s", r.ID, r.URL, r.Text)
	default:
		return fmt.Sprintf("[%s] %s unchanged:\n%s", r.ID, r.URL, r.Text)
	}
}
