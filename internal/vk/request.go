package vk

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/models"
	"github.com/spigell/love-machine/internal/utils"
)

const (
	contentType     = "application/x-www-form-urlencoded"
	contentEncoding = "gzip"
)

// VK API error codes handled by the client.
const (
	CodeTooManyRequests = 6
	CodeInternal        = 10
	CodeAccessDenied    = 15
	CodePrivateProfile  = 30
	CodeAlbumDenied     = 200
)

// APIError is the error envelope returned by the VK API.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// Unwrap maps privacy errors to models.ErrAccessDenied.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case CodeAccessDenied, CodePrivateProfile, CodeAlbumDenied:
		return models.ErrAccessDenied
	default:
		return nil
	}
}

func (e *APIError) temporary() bool {
	return e.Code == CodeTooManyRequests || e.Code == CodeInternal
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

// call invokes an API method and decodes the response field into target.
// Rate limit and internal errors are retried with a linear backoff.
func (c *Client) call(ctx context.Context, method, token string, params url.Values, target any) error {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("access_token", token)
	form.Set("v", c.Version)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		raw, err := c.post(ctx, c.APIURL+method, form)
		if err == nil {
			if target == nil {
				return nil
			}
			if err := json.Unmarshal(raw, target); err != nil {
				return fmt.Errorf("decode %s response: %w", method, err)
			}
			return nil
		}

		lastErr = err
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.temporary() || attempt == c.maxRetries {
			break
		}

		c.logger.Debug("vk request failed, retrying",
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if err := utils.WaitFor(ctx, time.Duration(attempt)*c.backoff); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: %w", method, lastErr)
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Error != nil {
		return nil, env.Error
	}

	return env.Response, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.Redacted()))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return io.ReadAll(reader)
}
