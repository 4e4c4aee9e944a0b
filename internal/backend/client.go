// Package backend is the HTTP client for the pharmacy assistant API.
// It covers the three endpoints the assistant core consumes: document
// upload/analysis, chat dispatch, and conversation cleanup.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

// Client communicates with the assistant backend over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given API base URL. The token, if
// non-empty, is sent as a bearer token on every request. Timeouts are the
// caller's responsibility via context.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// UploadResult is the analysis outcome for an uploaded document.
type UploadResult struct {
	URL         string
	Summary     string
	Suggestions []string
}

// uploadResponse mirrors the JSON returned by POST /ai-assistant/upload-document.
type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		URL      string `json:"url"`
		Analysis struct {
			Summary     string   `json:"summary"`
			Suggestions []string `json:"suggestions"`
		} `json:"analysis"`
	} `json:"data"`
}

// UploadDocument sends a single file as a multipart request and returns the
// backend's analysis of it.
func (c *Client) UploadDocument(ctx context.Context, filename string, data []byte) (UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("creating multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return UploadResult{}, fmt.Errorf("writing multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai-assistant/upload-document", &buf)
	if err != nil {
		return UploadResult{}, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, fmt.Errorf("upload: unexpected status %d", resp.StatusCode)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("decoding upload response: %w", err)
	}
	if !result.Success {
		return UploadResult{}, fmt.Errorf("upload rejected by backend: %s", result.Message)
	}

	return UploadResult{
		URL:         result.Data.URL,
		Summary:     result.Data.Analysis.Summary,
		Suggestions: result.Data.Analysis.Suggestions,
	}, nil
}

// ChatRequest is the JSON body for POST /ai-assistant/chat.
type ChatRequest struct {
	Message        string   `json:"message"`
	ConversationID string   `json:"conversationId,omitempty"`
	Documents      []string `json:"documents,omitempty"`
}

// FollowUpAction is one suggested follow-up returned by the backend.
type FollowUpAction struct {
	Label  string            `json:"label"`
	Action string            `json:"action"`
	Params map[string]string `json:"params"`
}

// ChatResult is the parsed assistant reply.
type ChatResult struct {
	Response             string
	Suggestions          []string
	QuickActions         []string
	FollowUpActions      []FollowUpAction
	Intent               string
	Confidence           float64
	ProcessingMillis     int64
	ActionExecuted       bool
	ActionResult         string
	RequiresConfirmation bool
	ConfirmationData     map[string]any
	ConversationID       string
}

// chatResponse mirrors the JSON returned by POST /ai-assistant/chat.
type chatResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Response             string           `json:"response"`
		Suggestions          []string         `json:"suggestions"`
		QuickActions         []string         `json:"quickActions"`
		FollowUpActions      []FollowUpAction `json:"followUpActions"`
		Intent               string           `json:"intent"`
		Confidence           float64          `json:"confidence"`
		ProcessingTime       int64            `json:"processingTime"`
		ActionExecuted       bool             `json:"actionExecuted"`
		ActionResult         json.RawMessage  `json:"actionResult"`
		RequiresConfirmation bool             `json:"requiresConfirmation"`
		ConfirmationData     map[string]any   `json:"confirmationData"`
		ConversationID       string           `json:"conversationId"`
	} `json:"data"`
}

// Chat sends one user message (plus conversation context) to the reasoning
// service and returns the parsed reply.
func (c *Client) Chat(ctx context.Context, chatReq ChatRequest) (ChatResult, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return ChatResult{}, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai-assistant/chat", bytes.NewReader(body))
	if err != nil {
		return ChatResult{}, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ChatResult{}, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ChatResult{}, fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ChatResult{}, fmt.Errorf("decoding chat response: %w", err)
	}
	if !result.Success {
		return ChatResult{}, fmt.Errorf("chat rejected by backend: %s", result.Message)
	}

	d := result.Data
	return ChatResult{
		Response:             d.Response,
		Suggestions:          d.Suggestions,
		QuickActions:         d.QuickActions,
		FollowUpActions:      d.FollowUpActions,
		Intent:               d.Intent,
		Confidence:           d.Confidence,
		ProcessingMillis:     d.ProcessingTime,
		ActionExecuted:       d.ActionExecuted,
		ActionResult:         rawToString(d.ActionResult),
		RequiresConfirmation: d.RequiresConfirmation,
		ConfirmationData:     d.ConfirmationData,
		ConversationID:       d.ConversationID,
	}, nil
}

// DeleteConversation asks the backend to discard the stored history for the
// given conversation. Used as fire-and-forget cleanup on session reset.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/ai-assistant/conversations/"+conversationID, nil)
	if err != nil {
		return fmt.Errorf("creating delete request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete conversation: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// rawToString renders an opaque actionResult payload as text. Backends send
// either a plain string or a structured object here.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
