// Package client is a typed HTTP client for the memevote API.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/memevote/internal/domain"
)

// APIError is the {"error": "..."} body returned on non-2xx responses.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client calls the memevote HTTP API.
type Client struct {
	http *resty.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(timeout)
	c.SetHeader("Accept", "application/json")
	return &Client{http: c}
}

// SetHeader adds a header to every request, e.g. Origin for CORS checks.
func (c *Client) SetHeader(key, value string) {
	c.http.SetHeader(key, value)
}

// MemeInput is the body of a create-meme request.
type MemeInput struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	ImageURL       string `json:"imageUrl"`
	CreatorAddress string `json:"creatorAddress"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type memesResponse struct {
	Memes []domain.MemeView `json:"memes"`
}

type voteResponse struct {
	Success bool             `json:"success"`
	Meme    *domain.MemeView `json:"meme"`
	Message string           `json:"message"`
}

type createResponse struct {
	Success bool         `json:"success"`
	Meme    *domain.Meme `json:"meme"`
	Message string       `json:"message"`
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl"`
	Filename string `json:"filename"`
}

// Health calls GET /api/health and returns the reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out healthResponse
	if err := c.do(c.http.R().SetContext(ctx).SetResult(&out), http.MethodGet, "/api/health"); err != nil {
		return "", err
	}
	return out.Status, nil
}

// ListMemes calls GET /api/memes.
func (c *Client) ListMemes(ctx context.Context) ([]domain.MemeView, error) {
	var out memesResponse
	if err := c.do(c.http.R().SetContext(ctx).SetResult(&out), http.MethodGet, "/api/memes"); err != nil {
		return nil, err
	}
	return out.Memes, nil
}

// EligibleAddresses calls GET /api/eligible-addresses.
func (c *Client) EligibleAddresses(ctx context.Context) (*domain.EligibilityDocument, error) {
	var out domain.EligibilityDocument
	if err := c.do(c.http.R().SetContext(ctx).SetResult(&out), http.MethodGet, "/api/eligible-addresses"); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckEligibility calls POST /api/check-eligibility.
func (c *Client) CheckEligibility(ctx context.Context, address string) (*domain.EligibilityStatus, error) {
	var out domain.EligibilityStatus
	req := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"address": address}).
		SetResult(&out)
	if err := c.do(req, http.MethodPost, "/api/check-eligibility"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Vote calls POST /api/memes/{id}/vote.
func (c *Client) Vote(ctx context.Context, memeID, voterAddress string) (*domain.MemeView, error) {
	var out voteResponse
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("id", memeID).
		SetBody(map[string]string{"voterAddress": voterAddress}).
		SetResult(&out)
	if err := c.do(req, http.MethodPost, "/api/memes/{id}/vote"); err != nil {
		return nil, err
	}
	return out.Meme, nil
}

// CreateMeme calls POST /api/memes with a JSON body.
func (c *Client) CreateMeme(ctx context.Context, in *MemeInput) (*domain.Meme, error) {
	var out createResponse
	req := c.http.R().SetContext(ctx).SetBody(in).SetResult(&out)
	if err := c.do(req, http.MethodPost, "/api/memes"); err != nil {
		return nil, err
	}
	return out.Meme, nil
}

// UploadImage calls POST /api/upload-image and returns the image URL.
// An empty filename sends the form without a file.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	var out uploadResponse
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if filename != "" {
		req.SetFileReader("image", filename, r)
	} else {
		req.SetMultipartFormData(map[string]string{"note": "no file"})
	}
	if err := c.do(req, http.MethodPost, "/api/upload-image"); err != nil {
		return "", err
	}
	return out.ImageURL, nil
}

// Preflight sends a CORS preflight for path from origin and returns the
// status code and the Access-Control-Allow-Origin header.
func (c *Client) Preflight(ctx context.Context, path, origin string) (int, string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Origin", origin).
		SetHeader("Access-Control-Request-Method", http.MethodGet).
		SetHeader("Access-Control-Request-Headers", "Content-Type").
		Options(path)
	if err != nil {
		return 0, "", fmt.Errorf("preflight request failed: %w", err)
	}
	return resp.StatusCode(), resp.Header().Get("Access-Control-Allow-Origin"), nil
}

func (c *Client) do(req *resty.Request, method, path string) error {
	apiErr := &APIError{}
	req.SetError(apiErr)

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = resp.Status()
		}
		return apiErr
	}
	return nil
}
