package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/pribylovaa/go-todo-list/internal/models"
)

// APIError — ошибка, которую вернул сервер в конверте {"error":{...}}.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type authResponse struct {
	User        models.PublicUser `json:"user"`
	AccessToken string            `json:"accessToken"`
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

// Client ходит в API сессии с cookie-jar (refresh-токен живёт только там)
// и держит access-токен в памяти. Безопасен для конкурентного использования.
type Client struct {
	base    *url.URL
	http    *http.Client
	session *Session

	mu     sync.RWMutex
	access string
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задаёт http.Client. Если у него нет Jar, он будет создан.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSession подключает внешнюю Session (например, общую для всех экранов).
func WithSession(s *Session) Option {
	return func(c *Client) {
		if s != nil {
			c.session = s
		}
	}
}

// New создаёт клиента для API с базовым адресом baseURL (например, http://localhost:8080/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	const op = "client.New"

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s: base url must be absolute: %q", op, baseURL)
	}

	c := &Client{
		base:    base,
		http:    &http.Client{Timeout: 10 * time.Second},
		session: NewSession(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.http.Jar = jar
	}

	return c, nil
}

// Session возвращает состояние сессии клиента.
func (c *Client) Session() *Session { return c.session }

// AccessToken возвращает текущий access-токен ("" без сессии).
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access
}

func (c *Client) setAccess(tok string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = tok
}

// Register регистрирует пользователя и открывает сессию.
func (c *Client) Register(ctx context.Context, fullName, email, password string) (models.PublicUser, error) {
	body := map[string]string{"fullName": fullName, "email": email, "password": password}
	return c.authenticate(ctx, "/auth/register", body)
}

// Login входит по e-mail и паролю.
func (c *Client) Login(ctx context.Context, email, password string) (models.PublicUser, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/auth/login", body)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (models.PublicUser, error) {
	c.session.update(func(s *State) { s.Loading = true })

	var out authResponse
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		c.session.update(func(s *State) { s.Loading = false })
		return models.PublicUser{}, err
	}

	c.setAccess(out.AccessToken)
	c.session.update(func(s *State) {
		u := out.User
		s.User = &u
		s.Loading = false
	})

	return out.User, nil
}

// CheckAuth молча возобновляет сессию по refresh-cookie (вызывается на старте).
// Без сессии возвращает *APIError, пользователь остаётся прежним.
// Повторные вызовы безопасны.
func (c *Client) CheckAuth(ctx context.Context) error {
	var out authResponse
	if err := c.call(ctx, http.MethodGet, "/auth/refresh", nil, &out); err != nil {
		c.session.update(func(s *State) {
			s.Loading = false
			s.Resolved = true
		})
		return err
	}

	c.setAccess(out.AccessToken)
	c.session.update(func(s *State) {
		u := out.User
		s.User = &u
		s.Resolved = true
	})

	return nil
}

// Logout завершает сессию на сервере и сбрасывает пользователя.
// При сетевой ошибке пользователь не меняется.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.call(ctx, http.MethodGet, "/auth/logout", nil, nil); err != nil {
		c.session.update(func(s *State) { s.Loading = false })
		return err
	}

	c.setAccess("")
	c.session.update(func(s *State) {
		s.User = nil
		s.Loading = false
	})

	return nil
}

// NewRequest строит запрос к ресурсу API относительно базового адреса.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
}

// Do выполняет запрос к защищённому ресурсу с текущим access-токеном.
// На 401 обновление не делается: это отдельный вызов CheckAuth.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if tok := c.AccessToken(); tok != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	return c.http.Do(req)
}

// call выполняет JSON-запрос; не-2xx превращается в *APIError.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	const op = "client.call"

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Code: "http_error", Message: resp.Status}

		var env errorEnvelope
		if json.NewDecoder(resp.Body).Decode(&env) == nil && env.Error.Code != "" {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.RequestID = env.Error.RequestID
		}

		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
