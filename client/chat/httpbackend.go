package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"studio-chat/internal/models"
)

// HTTPBackend implements Backend and BlobStore over the service's REST and
// websocket surface.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
	dialer  *websocket.Dialer
	logger  zerolog.Logger

	mu    sync.RWMutex
	token string
}

// NewHTTPBackend constructs a backend against baseURL (e.g.
// "http://localhost:8083"). The token can be rotated with SetToken.
func NewHTTPBackend(baseURL, token string, logger zerolog.Logger) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		dialer:  websocket.DefaultDialer,
		logger:  logger,
		token:   token,
	}
}

// SetToken replaces the bearer token used for subsequent calls.
func (b *HTTPBackend) SetToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

func (b *HTTPBackend) currentToken() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

// apiError is the service's JSON error envelope.
type apiError struct {
	Status int
	Detail string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("backend: %s (status %d)", e.Detail, e.Status)
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := b.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error string `json:"error"`
		}
		detail := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
			detail = envelope.Error
		}
		return &apiError{Status: resp.StatusCode, Detail: detail}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (b *HTTPBackend) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	return b.do(ctx, method, path, body, "application/json", out)
}

// ListRooms fetches the rooms visible to the authenticated actor.
func (b *HTTPBackend) ListRooms(ctx context.Context) ([]models.RoomWithRequest, error) {
	var resp struct {
		Rooms []models.RoomWithRequest `json:"rooms"`
	}
	if err := b.do(ctx, http.MethodGet, "/rooms", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// RecentMessages fetches the newest messages across the given rooms.
func (b *HTTPBackend) RecentMessages(ctx context.Context, roomIDs []string, limit int) ([]models.Message, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("room_ids", strings.Join(roomIDs, ","))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := b.do(ctx, http.MethodGet, "/messages/recent?"+q.Encode(), nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ListMessages fetches a room's full transcript, oldest first.
func (b *HTTPBackend) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	path := "/rooms/" + url.PathEscape(roomID) + "/messages"
	if err := b.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// InsertMessage persists one message and returns the stored row.
func (b *HTTPBackend) InsertMessage(ctx context.Context, out Outgoing) (models.Message, error) {
	var msg models.Message
	path := "/rooms/" + url.PathEscape(out.RoomID) + "/messages"
	if err := b.doJSON(ctx, http.MethodPost, path, out, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// DeleteMessage removes one message row.
func (b *HTTPBackend) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	path := "/rooms/" + url.PathEscape(roomID) + "/messages/" + url.PathEscape(messageID)
	return b.do(ctx, http.MethodDelete, path, nil, "", nil)
}

// MarkRoomRead flags the room's unread messages as read for this actor.
func (b *HTTPBackend) MarkRoomRead(ctx context.Context, roomID string) error {
	path := "/rooms/" + url.PathEscape(roomID) + "/read"
	return b.do(ctx, http.MethodPost, path, nil, "", nil)
}

// Subscribe dials the realtime feed and pumps change events into handler
// until the returned teardown func is called or the peer closes. Teardown
// blocks until the read loop has exited, so no events are delivered after it
// returns.
func (b *HTTPBackend) Subscribe(table, roomID string, handler EventHandler) (func(), error) {
	wsURL, err := b.subscribeURL(table, roomID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := b.dialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial subscription: %w", err)
	}

	done := make(chan struct{})
	var closeOnce sync.Once
	stop := func() {
		closeOnce.Do(func() {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		})
		<-done
	}

	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					b.logger.Debug().Err(err).Str("table", table).Msg("subscription closed")
				}
				return
			}
			var event models.ChangeEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				b.logger.Warn().Err(err).Str("table", table).Msg("bad change event")
				continue
			}
			handler(event)
		}
	}()
	return stop, nil
}

func (b *HTTPBackend) subscribeURL(table, roomID string) (string, error) {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/subscribe"
	q := url.Values{}
	q.Set("table", table)
	if roomID != "" {
		q.Set("room_id", roomID)
	}
	q.Set("token", b.currentToken())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Upload sends the blob as multipart form data and returns its durable URL.
func (b *HTTPBackend) Upload(ctx context.Context, path string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("path", path); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("file", path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := b.do(ctx, http.MethodPost, "/uploads", &buf, mw.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Delete removes a stored object by path.
func (b *HTTPBackend) Delete(ctx context.Context, path string) error {
	return b.do(ctx, http.MethodDelete, "/uploads/"+path, nil, "", nil)
}

// PathFromURL maps a public media URL back to its object path.
func (b *HTTPBackend) PathFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	const prefix = "/media/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	path := strings.TrimPrefix(u.Path, prefix)
	if path == "" {
		return "", false
	}
	return path, true
}

var (
	_ Backend   = (*HTTPBackend)(nil)
	_ BlobStore = (*HTTPBackend)(nil)
)
