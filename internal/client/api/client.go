// Package api реализует HTTP клиент сервера синхронизации
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iudanet/tabkeeper/pkg/api"
)

// APIError - ошибка уровня протокола с машиночитаемым кодом сервера
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error (%d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// IsAuthError сообщает, требует ли ошибка повторного login
func (e *APIError) IsAuthError() bool {
	switch e.Code {
	case api.CodeInvalidToken, api.CodeReauthRequired, api.CodeSessionNotFound, api.CodeTokenMismatch:
		return true
	}
	return e.StatusCode == http.StatusUnauthorized
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Authorization не теряется при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetToken устанавливает bearer токен для последующих запросов
func (c *Client) SetToken(token string) {
	c.token = token
}

// BaseURL возвращает адрес сервера
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// GetSalt получает public_salt пользователя
func (c *Client) GetSalt(ctx context.Context, username string) (*api.SaltResponse, error) {
	var resp api.SaltResponse
	url := fmt.Sprintf("/api/v1/auth/salt/%s", username)
	if err := c.doRequest(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("get salt request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию и создает сессию устройства
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Logout удаляет сессию устройства на сервере
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Save отправляет dataset на сервер
func (c *Client) Save(ctx context.Context, req api.SaveRequest) (*api.SaveResponse, error) {
	var resp api.SaveResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync", req, &resp); err != nil {
		return nil, fmt.Errorf("save request failed: %w", err)
	}
	return &resp, nil
}

// bestEffortTimeout ограничивает прощальную отправку при завершении
const bestEffortTimeout = 3 * time.Second

// SaveBestEffort отправляет dataset в режиме fire-and-forget: жесткий
// короткий таймаут, ответ сервера отбрасывается. Для прощального
// сохранения при завершении процесса, когда ждать подтверждения и
// обновлять локальное состояние уже некогда. Ошибка возвращается
// только для логирования.
func (c *Client) SaveBestEffort(req api.SaveRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), bestEffortTimeout)
	defer cancel()

	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync", req, nil); err != nil {
		return fmt.Errorf("best-effort save failed: %w", err)
	}
	return nil
}

// Load загружает текущий dataset с сервера
func (c *Client) Load(ctx context.Context) (*api.LoadResponse, error) {
	var resp api.LoadResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sync", nil, &resp); err != nil {
		return nil, fmt.Errorf("load request failed: %w", err)
	}
	return &resp, nil
}

// Status возвращает версию серверных данных без полного payload
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sync/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return &resp, nil
}

// Versions возвращает историю версий
func (c *Client) Versions(ctx context.Context) (*api.VersionListResponse, error) {
	var resp api.VersionListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sync/versions", nil, &resp); err != nil {
		return nil, fmt.Errorf("versions request failed: %w", err)
	}
	return &resp, nil
}

// Restore восстанавливает историческую версию как новую текущую
func (c *Client) Restore(ctx context.Context, version int64) (*api.LoadResponse, error) {
	var resp api.LoadResponse
	req := api.RestoreRequest{Version: version}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync/restore", req, &resp); err != nil {
		return nil, fmt.Errorf("restore request failed: %w", err)
	}
	return &resp, nil
}

// DeleteData невосстановимо удаляет все данные пользователя на сервере
func (c *Client) DeleteData(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/api/v1/sync", nil, nil); err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	return nil
}

// Sessions возвращает живые сессии пользователя
func (c *Client) Sessions(ctx context.Context) (*api.SessionListResponse, error) {
	var resp api.SessionListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sessions", nil, &resp); err != nil {
		return nil, fmt.Errorf("sessions request failed: %w", err)
	}
	return &resp, nil
}

// RevokeSession отзывает сессию другого устройства
func (c *Client) RevokeSession(ctx context.Context, sessionID string) error {
	url := fmt.Sprintf("/api/v1/sessions/%s", sessionID)
	if err := c.doRequest(ctx, http.MethodDelete, url, nil, nil); err != nil {
		return fmt.Errorf("revoke session request failed: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос
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
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.Code = errResp.Code
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
