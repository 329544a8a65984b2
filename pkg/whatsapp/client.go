// Package whatsapp sends messages through the Graph API. The contract is
// deliberately forgiving: Send returns false on any failure so callers can
// degrade instead of unwinding the dispatch path.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Message kinds accepted by Send.
const (
	KindText     = "texto"
	KindImage    = "image"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindDocument = "document"
	KindList     = "lista"
	KindButtons  = "boton"
)

// ListSection is one section of an interactive list message.
type ListSection struct {
	Title string
	Rows  []ListRow
}

type ListRow struct {
	Id          string
	Title       string
	Description string
}

// SendOptions carries everything beyond number and body.
type SendOptions struct {
	Kind        string
	MediaURL    string
	Buttons     []string
	Sections    []ListSection
	ReplyToWaId string
	Step        string
	RuleId      *int64
	SenderKind  string // stored message kind, "bot" by default
}

// Record is the persisted trace of an outbound send.
type Record struct {
	Number   string
	Body     string
	MediaURL string
	Kind     string
	WaId     string
	Step     string
	RuleId   *int64
	Sender   string
}

// Recorder persists outbound messages. Failures are logged, never fatal.
type Recorder interface {
	RecordOutbound(ctx context.Context, rec Record) error
}

type Client struct {
	token         string
	phoneNumberId string
	apiVersion    string
	baseURL       string
	httpClient    *http.Client
	preflight     *gocache.Cache
	recorder      Recorder
}

func NewClient(token, phoneNumberId, apiVersion string, recorder Recorder) *Client {
	if apiVersion == "" {
		apiVersion = "v19.0"
	}
	return &Client{
		token:         token,
		phoneNumberId: phoneNumberId,
		apiVersion:    apiVersion,
		baseURL:       "https://graph.facebook.com",
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		preflight:     gocache.New(10*time.Minute, 20*time.Minute),
		recorder:      recorder,
	}
}

// Send delivers one message. A false return covers every failure mode:
// missing config, unreachable media, non-2xx from the API.
func (c *Client) Send(ctx context.Context, number, body string, opts SendOptions) bool {
	if c.token == "" || c.phoneNumberId == "" {
		log.Printf("[WARN] whatsapp send skipped: transport not configured")
		return false
	}

	kind := opts.Kind
	if kind == "" {
		kind = KindText
	}

	if isMediaKind(kind) && !c.mediaReachable(ctx, opts.MediaURL) {
		log.Printf("[WARN] whatsapp media preflight failed: %s", opts.MediaURL)
		return false
	}

	payload, ok := c.buildPayload(ctx, number, body, kind, opts)
	if !ok {
		return false
	}

	waId, err := c.post(ctx, payload)
	if err != nil {
		log.Printf("[ERROR] whatsapp send failed: %v", err)
		return false
	}

	c.record(ctx, number, body, kind, waId, opts)
	return true
}

func (c *Client) buildPayload(ctx context.Context, number, body, kind string, opts SendOptions) (map[string]interface{}, bool) {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                number,
	}
	if opts.ReplyToWaId != "" {
		payload["context"] = map[string]string{"message_id": opts.ReplyToWaId}
	}

	switch kind {
	case KindText:
		payload["type"] = "text"
		payload["text"] = map[string]interface{}{"body": body}

	case KindImage, KindVideo, KindDocument:
		mediaType := map[string]string{KindImage: "image", KindVideo: "video", KindDocument: "document"}[kind]
		media := map[string]interface{}{"link": opts.MediaURL}
		if body != "" {
			media["caption"] = body
		}
		payload["type"] = mediaType
		payload[mediaType] = media

	case KindAudio:
		payload["type"] = "audio"
		payload["audio"] = map[string]interface{}{"link": opts.MediaURL}

	case KindList:
		if emptySections(opts.Sections) {
			// An empty menu renders as nothing on the device; degrade to text.
			downgraded := opts
			downgraded.Kind = KindText
			downgraded.Sections = nil
			return c.buildPayload(ctx, number, body, KindText, downgraded)
		}
		payload["type"] = "interactive"
		payload["interactive"] = map[string]interface{}{
			"type":   "list",
			"body":   map[string]string{"text": body},
			"action": listAction(opts.Sections),
		}

	case KindButtons:
		if len(opts.Buttons) == 0 {
			downgraded := opts
			downgraded.Kind = KindText
			downgraded.Buttons = nil
			return c.buildPayload(ctx, number, body, KindText, downgraded)
		}
		buttons := make([]map[string]interface{}, 0, len(opts.Buttons))
		for i, title := range opts.Buttons {
			buttons = append(buttons, map[string]interface{}{
				"type":  "reply",
				"reply": map[string]string{"id": fmt.Sprintf("btn_%d", i), "title": title},
			})
		}
		payload["type"] = "interactive"
		payload["interactive"] = map[string]interface{}{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]interface{}{"buttons": buttons},
		}

	default:
		log.Printf("[WARN] whatsapp send: unknown kind %q", kind)
		return nil, false
	}
	return payload, true
}

func listAction(sections []ListSection) map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(sections))
	for _, s := range sections {
		rows := make([]map[string]string, 0, len(s.Rows))
		for _, r := range s.Rows {
			row := map[string]string{"id": r.Id, "title": r.Title}
			if r.Description != "" {
				row["description"] = r.Description
			}
			rows = append(rows, row)
		}
		out = append(out, map[string]interface{}{"title": s.Title, "rows": rows})
	}
	return map[string]interface{}{"button": "Ver opciones", "sections": out}
}

func emptySections(sections []ListSection) bool {
	for _, s := range sections {
		if len(s.Rows) > 0 {
			return false
		}
	}
	return true
}

func isMediaKind(kind string) bool {
	switch kind {
	case KindImage, KindVideo, KindAudio, KindDocument:
		return true
	}
	return false
}

// mediaReachable HEADs externally-hosted links once and caches the verdict.
func (c *Client) mediaReachable(ctx context.Context, mediaURL string) bool {
	if !strings.HasPrefix(mediaURL, "http://") && !strings.HasPrefix(mediaURL, "https://") {
		return mediaURL != ""
	}
	if verdict, found := c.preflight.Get(mediaURL); found {
		return verdict.(bool)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, mediaURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	reachable := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	if resp != nil {
		resp.Body.Close()
	}
	c.preflight.Set(mediaURL, reachable, gocache.DefaultExpiration)
	return reachable
}

type graphResponse struct {
	Messages []struct {
		Id string `json:"id"`
	} `json:"messages"`
}

func (c *Client) post(ctx context.Context, payload map[string]interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberId)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("graph error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var parsed graphResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Messages) == 0 {
		return "", nil
	}
	return parsed.Messages[0].Id, nil
}

func (c *Client) record(ctx context.Context, number, body, kind, waId string, opts SendOptions) {
	if c.recorder == nil {
		return
	}
	sender := opts.SenderKind
	if sender == "" {
		sender = "bot"
	}
	rec := Record{
		Number:   number,
		Body:     body,
		MediaURL: opts.MediaURL,
		Kind:     kind,
		WaId:     waId,
		Step:     opts.Step,
		RuleId:   opts.RuleId,
		Sender:   sender,
	}
	if err := c.recorder.RecordOutbound(ctx, rec); err != nil {
		log.Printf("[WARN] outbound message not recorded: %v", err)
	}
}
