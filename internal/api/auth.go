package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/storefront/internal/domain"
)

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/login",
		route:     "POST /auth/login",
		body:      creds,
		anonymous: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminLogin(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/admin/login",
		route:     "POST /auth/admin/login",
		body:      creds,
		anonymous: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account; it issues no token. The backend's message is returned.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (string, error) {
	var out messageResponse
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/register",
		route:     "POST /auth/register",
		body:      reg,
		anonymous: true,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// Me is the "who am I" call, authenticated with token rather than the current bearer.
func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	var out struct {
		User *domain.User `json:"user"`
	}
	err := c.doWithToken(ctx, token, request{
		method: http.MethodGet,
		path:   "/auth/me",
		route:  "GET /auth/me",
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &Error{Kind: KindMalformed, Status: http.StatusOK, Message: "response has no user", Err: ErrMalformed}
	}
	return out.User, nil
}

func (c *Client) VerifyEmail(ctx context.Context, verificationToken string) (string, error) {
	var out messageResponse
	err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/auth/verify/" + url.PathEscape(verificationToken),
		route:     "GET /auth/verify/{token}",
		anonymous: true,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

type messageResponse struct {
	Message string `json:"message"`
}
