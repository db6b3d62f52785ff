package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/chatsync/internal/models"
	"github.com/iudanet/chatsync/pkg/api"
)

//go:generate moq -out clientapi_mock.go . ClientAPI

// ClientAPI is the transport contract the sync core consumes.
// Every method may fail with a categorized *Error.
type ClientAPI interface {
	// FetchSessionInfo возвращает лёгкий дескриптор текущей серверной сессии
	FetchSessionInfo(ctx context.Context) (*models.SessionInfo, error)

	// FetchMessageDeltas возвращает сообщения, изменённые после since
	// Нулевое since означает полную выборку
	FetchMessageDeltas(ctx context.Context, since time.Time) ([]models.Message, error)

	// FetchParticipantDeltas возвращает участников, изменённых после since
	FetchParticipantDeltas(ctx context.Context, since time.Time) ([]models.Participant, error)

	// FetchAllParticipants возвращает полный список участников
	FetchAllParticipants(ctx context.Context) ([]models.Participant, error)

	// SendMessage отправляет сообщение и возвращает созданное сервером
	SendMessage(ctx context.Context, in models.SendInput) (*models.Message, error)

	// SendReaction добавляет реакцию локального пользователя на сообщение
	SendReaction(ctx context.Context, messageID, emoji string) error
}

// Client представляет HTTP клиент для взаимодействия с сервером чата
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger включает логирование запросов через переданный logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout задаёт таймаут одного HTTP запроса
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient подменяет HTTP клиент (используется в тестах)
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Ограничиваем количество редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger != nil {
		c.httpClient.Transport = newLoggingTransport(c.httpClient.Transport, c.logger)
	}

	return c
}

// FetchSessionInfo получает дескриптор сессии
func (c *Client) FetchSessionInfo(ctx context.Context) (*models.SessionInfo, error) {
	var resp api.SessionResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/session", nil, &resp); err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	return &models.SessionInfo{
		ServerTime: resp.ServerTime,
		SessionID:  resp.SessionID,
		APIVersion: resp.APIVersion,
	}, nil
}

// FetchMessageDeltas получает сообщения, изменённые после since
func (c *Client) FetchMessageDeltas(ctx context.Context, since time.Time) ([]models.Message, error) {
	var resp api.MessagesResponse
	if err := c.doRequest(ctx, http.MethodGet, withSince("/api/v1/messages", since), nil, &resp); err != nil {
		return nil, fmt.Errorf("messages request failed: %w", err)
	}

	messages := make([]models.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msg, err := messageFromAPI(m)
		if err != nil {
			return nil, &Error{Kind: KindServer, Err: fmt.Errorf("message %s: %w", m.ID, err)}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// FetchParticipantDeltas получает участников, изменённых после since
func (c *Client) FetchParticipantDeltas(ctx context.Context, since time.Time) ([]models.Participant, error) {
	var resp api.ParticipantsResponse
	if err := c.doRequest(ctx, http.MethodGet, withSince("/api/v1/participants", since), nil, &resp); err != nil {
		return nil, fmt.Errorf("participants request failed: %w", err)
	}
	return participantsFromAPI(resp.Participants), nil
}

// FetchAllParticipants получает полный список участников
func (c *Client) FetchAllParticipants(ctx context.Context) ([]models.Participant, error) {
	var resp api.ParticipantsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/participants", nil, &resp); err != nil {
		return nil, fmt.Errorf("participants request failed: %w", err)
	}
	return participantsFromAPI(resp.Participants), nil
}

// SendMessage отправляет сообщение
func (c *Client) SendMessage(ctx context.Context, in models.SendInput) (*models.Message, error) {
	req := api.SendMessageRequest{
		Text:      in.Text,
		ClientID:  in.ClientID,
		ReplyToID: in.ReplyToID,
	}

	var resp api.SendMessageResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/messages", req, &resp); err != nil {
		return nil, fmt.Errorf("send message request failed: %w", err)
	}

	msg, err := messageFromAPI(resp.Message)
	if err != nil {
		return nil, &Error{Kind: KindServer, Err: fmt.Errorf("created message: %w", err)}
	}
	return &msg, nil
}

// SendReaction отправляет реакцию
func (c *Client) SendReaction(ctx context.Context, messageID, emoji string) error {
	path := fmt.Sprintf("/api/v1/messages/%s/reactions", url.PathEscape(messageID))

	var resp api.SendReactionResponse
	if err := c.doRequest(ctx, http.MethodPost, path, api.SendReactionRequest{Emoji: emoji}, &resp); err != nil {
		return fmt.Errorf("send reaction request failed: %w", err)
	}
	return nil
}

func withSince(path string, since time.Time) string {
	if since.IsZero() {
		return path
	}
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339Nano))
	return path + "?" + q.Encode()
}

// doRequest выполняет HTTP запрос и классифицирует ошибки
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Отмена вызывающей стороной не является сетевой ошибкой
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		message := string(respBody)
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			message = errResp.Error
			if errResp.Message != "" {
				message = errResp.Message
			}
		}
		return statusError(resp.StatusCode, message)
	}

	// Декодируем успешный ответ
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &Error{Kind: KindServer, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return nil
}
