package boardroomsdk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Boardroom HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BasePath:    "/v0",
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Idea represents the API idea model.
type Idea struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Validated     bool           `json:"validated"`
	Unlocked      bool           `json:"unlocked"`
	Verdict       string         `json:"verdict,omitempty"`
	DashboardData map[string]any `json:"dashboard_data,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

// Task represents the API task model.
type Task struct {
	ID          string   `json:"id"`
	IdeaID      string   `json:"idea_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	AssigneeID  string   `json:"assignee_id,omitempty"`
	CreatedBy   string   `json:"created_by,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
}

// TaskInput carries the fields of a task create or update; empty fields are omitted.
type TaskInput struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	AssigneeID  string   `json:"assignee_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
}

// Message is one transcript entry.
type Message struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	PersonaID string `json:"persona_id,omitempty"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Seq       int64  `json:"seq"`
	CreatedAt string `json:"created_at"`
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Message   string `json:"message"`
	IdeaID    string `json:"idea_id,omitempty"`
	PersonaID string `json:"persona_id,omitempty"`
	Judge     bool   `json:"judge,omitempty"`
	NoStream  bool   `json:"no_stream,omitempty"`
}

type Route struct {
	PersonaID  string  `json:"persona_id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Path       string  `json:"path"`
}

// CallEffect reports one structured call the turn executed.
type CallEffect struct {
	Operation string `json:"operation"`
	OK        bool   `json:"ok"`
	TaskID    string `json:"task_id,omitempty"`
	Title     string `json:"title,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Fragment struct {
	PersonaID string      `json:"persona_id,omitempty"`
	Text      string      `json:"text"`
	Call      *CallEffect `json:"call,omitempty"`
	Error     bool        `json:"error,omitempty"`
}

type Done struct {
	Done        bool         `json:"done"`
	PersonaIDs  []string     `json:"persona_ids"`
	Verdict     string       `json:"verdict,omitempty"`
	TaskEffects []CallEffect `json:"task_effects,omitempty"`
}

// TurnError ends a failed turn.
type TurnError struct {
	Message   string `json:"message"`
	PersonaID string `json:"persona_id,omitempty"`
	Partial   string `json:"partial,omitempty"`
}

func (e *TurnError) Error() string {
	if e.PersonaID != "" {
		return fmt.Sprintf("turn failed (%s): %s", e.PersonaID, e.Message)
	}
	return "turn failed: " + e.Message
}

// Event is one decoded stream event; exactly one payload field is set.
type Event struct {
	Name     string
	Route    *Route
	Fragment *Fragment
	Done     *Done
	Error    *TurnError
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateIdea creates an idea owned by the token's subject.
func (c *Client) CreateIdea(ctx context.Context, title, description string) (Idea, error) {
	body := map[string]any{"title": title}
	if description != "" {
		body["description"] = description
	}
	var resp Idea
	err := c.do(ctx, http.MethodPost, "ideas", body, &resp)
	return resp, err
}

// Ideas lists the caller's ideas.
func (c *Client) Ideas(ctx context.Context) ([]Idea, error) {
	var resp struct {
		Items []Idea `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "ideas", nil, &resp)
	return resp.Items, err
}

// Idea fetches one idea.
func (c *Client) Idea(ctx context.Context, id string) (Idea, error) {
	var resp Idea
	err := c.do(ctx, http.MethodGet, "ideas/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Tasks lists an idea's tasks.
func (c *Client) Tasks(ctx context.Context, ideaID string) ([]Task, error) {
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, ideaPath(ideaID, "tasks"), nil, &resp)
	return resp.Items, err
}

// CreateTask adds a task to an idea.
func (c *Client) CreateTask(ctx context.Context, ideaID string, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, ideaPath(ideaID, "tasks"), in, &resp)
	return resp, err
}

// UpdateTask changes the non-empty fields of in.
func (c *Client) UpdateTask(ctx context.Context, ideaID, taskID string, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, ideaPath(ideaID, "tasks/"+url.PathEscape(taskID)), in, &resp)
	return resp, err
}

// Messages lists a transcript partition; empty mode lists every mode.
func (c *Client) Messages(ctx context.Context, ideaID, mode, personaID string) ([]Message, error) {
	q := url.Values{}
	if mode != "" {
		q.Set("mode", mode)
	}
	if personaID != "" {
		q.Set("persona_id", personaID)
	}
	endpoint := ideaPath(ideaID, "messages")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Message `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Chat runs one turn and calls fn for every event in arrival order. It
// returns the final Done event, or the TurnError when the turn failed.
func (c *Client) Chat(ctx context.Context, mode string, req ChatRequest, fn func(Event) error) (Done, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Done{}, err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "chat/"+url.PathEscape(mode), bytes.NewReader(body))
	if err != nil {
		return Done{}, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	// Turns outlive the CRUD timeout; the context bounds them instead.
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return Done{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Done{}, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var done *Done
	err = readEvents(resp.Body, func(ev Event) error {
		switch {
		case ev.Done != nil:
			done = ev.Done
		case ev.Error != nil:
			if fn != nil {
				if err := fn(ev); err != nil {
					return err
				}
			}
			return ev.Error
		}
		if fn != nil {
			return fn(ev)
		}
		return nil
	})
	if err != nil {
		return Done{}, err
	}
	if done == nil {
		return Done{}, errors.New("stream ended without a done event")
	}
	return *done, nil
}

// readEvents decodes a text/event-stream body.
func readEvents(r io.Reader, fn func(Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	var name, data string
	flush := func() error {
		defer func() { name, data = "", "" }()
		if data == "" {
			return nil
		}
		ev, err := decodeEvent(name, []byte(data))
		if err != nil {
			return err
		}
		return fn(ev)
	}
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return flush()
}

func decodeEvent(name string, data []byte) (Event, error) {
	ev := Event{Name: name}
	var target any
	switch name {
	case "route":
		ev.Route = &Route{}
		target = ev.Route
	case "fragment":
		ev.Fragment = &Fragment{}
		target = ev.Fragment
	case "done":
		ev.Done = &Done{}
		target = ev.Done
	case "error":
		ev.Error = &TurnError{}
		target = ev.Error
	default:
		return Event{}, fmt.Errorf("unknown stream event %q", name)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return Event{}, fmt.Errorf("decode %s event: %w", name, err)
	}
	return ev, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := c.newRequest(ctx, method, endpoint, &buf)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func ideaPath(ideaID, p string) string {
	return fmt.Sprintf("ideas/%s/%s", url.PathEscape(ideaID), strings.TrimLeft(p, "/"))
}

func (c *Client) url(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if bp := strings.Trim(c.BasePath, "/"); bp != "" {
		base += "/" + bp
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}
