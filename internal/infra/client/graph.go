// Package client holds outbound HTTP clients. GraphClient publishes to
// Facebook pages and Instagram business accounts through the Graph API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/resilience"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var tracer = otel.Tracer("client")

var _ port.Publisher = (*GraphClient)(nil)

const maxResponseBytes = 1 << 20

// GraphError is an error payload returned by the Graph API.
type GraphError struct {
	Status  int
	Message string
	Type    string
	Code    int
}

func (e *GraphError) Error() string {
	return e.Message
}

// ClientFault reports whether err is a Graph 4xx. Those are the caller's
// fault and must not trip the breaker; pass it to resilience.NewCircuitBreaker.
func ClientFault(err error) bool {
	if err == nil {
		return true
	}
	var ge *GraphError
	return errors.As(err, &ge) && ge.Status < http.StatusInternalServerError
}

// GraphClient calls the Facebook Graph API.
type GraphClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewGraphClient creates a new GraphClient.
func NewGraphClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *GraphClient {
	return &GraphClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
	}
}

// Publish posts message (and the optional image at mediaURL) to the account in creds.
func (c *GraphClient) Publish(ctx context.Context, platform domain.Platform, creds domain.PublishCredentials, message, mediaURL string) (*domain.PublishResult, error) {
	ctx, span := tracer.Start(ctx, "GraphClient.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("platform", string(platform)),
		attribute.String("account.id", creds.AccountID),
	)

	switch platform {
	case domain.PlatformFacebook:
		return c.publishPage(ctx, creds, message, mediaURL)
	case domain.PlatformInstagram:
		return c.publishInstagram(ctx, creds, message, mediaURL)
	}
	return nil, &domain.ErrValidation{Field: "platform", Message: fmt.Sprintf("unsupported platform %q", platform)}
}

func (c *GraphClient) publishPage(ctx context.Context, creds domain.PublishCredentials, message, mediaURL string) (*domain.PublishResult, error) {
	form := url.Values{"access_token": {creds.AccessToken}}
	path := "/" + url.PathEscape(creds.AccountID)
	if mediaURL != "" {
		path += "/photos"
		form.Set("url", mediaURL)
		form.Set("caption", message)
	} else {
		path += "/feed"
		form.Set("message", message)
	}

	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := c.call(ctx, "facebook", http.MethodPost, path, form, &out); err != nil {
		return nil, err
	}

	id := out.PostID
	if id == "" {
		id = out.ID
	}
	return &domain.PublishResult{ExternalID: id, URL: "https://www.facebook.com/" + id}, nil
}

// publishInstagram creates a media container and then publishes it.
func (c *GraphClient) publishInstagram(ctx context.Context, creds domain.PublishCredentials, caption, mediaURL string) (*domain.PublishResult, error) {
	if mediaURL == "" {
		return nil, &domain.ErrValidation{Field: "mediaUrls", Message: "instagram posts require an image"}
	}
	base := "/" + url.PathEscape(creds.AccountID)

	var container struct {
		ID string `json:"id"`
	}
	err := c.call(ctx, "instagram", http.MethodPost, base+"/media", url.Values{
		"access_token": {creds.AccessToken},
		"image_url":    {mediaURL},
		"caption":      {caption},
	}, &container)
	if err != nil {
		return nil, err
	}

	var published struct {
		ID string `json:"id"`
	}
	err = c.call(ctx, "instagram", http.MethodPost, base+"/media_publish", url.Values{
		"access_token": {creds.AccessToken},
		"creation_id":  {container.ID},
	}, &published)
	if err != nil {
		return nil, err
	}
	return &domain.PublishResult{ExternalID: published.ID}, nil
}

// FetchPages lists the pages (and linked Instagram accounts) a user token can manage.
func (c *GraphClient) FetchPages(ctx context.Context, accessToken string) ([]domain.Page, error) {
	ctx, span := tracer.Start(ctx, "GraphClient.FetchPages")
	defer span.End()

	var out struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Category    string `json:"category"`
			AccessToken string `json:"access_token"`
			Instagram   *struct {
				ID string `json:"id"`
			} `json:"instagram_business_account"`
		} `json:"data"`
	}
	err := c.call(ctx, "facebook", http.MethodGet, "/me/accounts", url.Values{
		"access_token": {accessToken},
		"fields":       {"id,name,category,access_token,instagram_business_account"},
	}, &out)
	if err != nil {
		return nil, err
	}

	pages := make([]domain.Page, 0, len(out.Data))
	for _, d := range out.Data {
		p := domain.Page{ID: d.ID, Name: d.Name, Category: d.Category, AccessToken: d.AccessToken}
		if d.Instagram != nil {
			p.InstagramBusinessID = d.Instagram.ID
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// call runs one Graph request through the circuit breaker and retry loop.
func (c *GraphClient) call(ctx context.Context, service, method, path string, params url.Values, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.do(ctx, method, path, params, out)
		})
	})
	if err == nil {
		return nil
	}
	if resilience.IsOpen(err) {
		return &domain.ErrCircuitOpen{Service: service}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

func (c *GraphClient) do(ctx context.Context, method, path string, params url.Values, out any) error {
	var (
		req *http.Request
		err error
	)
	endpoint := c.baseURL + path
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return resilience.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retryable(method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return retryable(method, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		gerr := parseGraphError(resp.StatusCode, body)
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return gerr
		case resp.StatusCode < http.StatusInternalServerError:
			return resilience.Permanent(gerr)
		default:
			return retryable(method, gerr)
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode graph response: %w", err))
	}
	return nil
}

// retryable keeps err retryable for reads. A write that may already have
// reached the Graph API is not sent again.
func retryable(method string, err error) error {
	if method == http.MethodGet {
		return err
	}
	return resilience.Permanent(err)
}

func parseGraphError(status int, body []byte) *GraphError {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	gerr := &GraphError{Status: status}
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		gerr.Message = payload.Error.Message
		gerr.Type = payload.Error.Type
		gerr.Code = payload.Error.Code
		return gerr
	}
	gerr.Message = fmt.Sprintf("graph API returned status %d", status)
	return gerr
}
