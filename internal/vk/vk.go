// Package vk is a small client for the VK API methods the bot needs: profile
// lookup, people search, profile photos, messages and the Bots Long Poll API.
package vk

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL            = "https://api.vk.com/method/"
	defaultAPIVersion = "5.131"
	userAgent         = "spigell/love-machine"
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
)

// Options configures a Client.
type Options struct {
	GroupID int64
	// GroupToken is the community token used for messages and long poll.
	GroupToken string
	// UserToken is required by users.search and photos.get.
	UserToken  string
	APIVersion string
	MaxRetries int
}

type Client struct {
	groupID    int64
	groupToken string
	userToken  string
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger

	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	Version    string
	// Keyboard is attached to every outgoing message when set.
	Keyboard *Keyboard
}

func New(logger *zap.Logger, opts Options) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	version := opts.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}

	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Client{
		groupID:    opts.GroupID,
		groupToken: opts.GroupToken,
		userToken:  opts.UserToken,
		maxRetries: retries,
		backoff:    defaultBackoff,
		logger:     logger,
		APIURL:     apiURL,
		Version:    version,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
	}
}

func (c *Client) GroupID() int64 {
	return c.groupID
}
