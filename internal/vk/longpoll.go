package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/models"
)

const (
	longPollWait = 25
	eventMessage = "message_new"
)

// Long poll "failed" codes.
const (
	failedHistory = 1
	failedKey     = 2
	failedInfo    = 3
)

// flexString accepts both JSON strings and numbers. The long poll server
// returns ts in either form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.TrimSpace(string(data)))
	return nil
}

type longPollServer struct {
	Key    string     `json:"key"`
	Server string     `json:"server"`
	TS     flexString `json:"ts"`
}

type longPollUpdate struct {
	Type   string `json:"type"`
	Object struct {
		Message struct {
			FromID int64  `json:"from_id"`
			PeerID int64  `json:"peer_id"`
			Text   string `json:"text"`
		} `json:"message"`
	} `json:"object"`
}

type longPollResponse struct {
	TS      flexString       `json:"ts"`
	Failed  int              `json:"failed"`
	Updates []longPollUpdate `json:"updates"`
}

// LongPoll receives community messages through the Bots Long Poll API.
type LongPoll struct {
	client     *Client
	httpClient *http.Client
	server     *longPollServer
}

func NewLongPoll(client *Client) *LongPoll {
	return &LongPoll{
		client: client,
		httpClient: &http.Client{
			Timeout: (longPollWait + 10) * time.Second,
		},
	}
}

// Poll blocks until the server returns updates or the wait expires and returns
// the new messages. An empty result is not an error.
func (lp *LongPoll) Poll(ctx context.Context) ([]models.Event, error) {
	if lp.server == nil {
		if err := lp.refresh(ctx); err != nil {
			return nil, err
		}
	}

	response, err := lp.check(ctx)
	if err != nil {
		return nil, err
	}

	switch response.Failed {
	case 0:
	case failedHistory:
		lp.server.TS = response.TS
		return nil, nil
	case failedKey, failedInfo:
		lp.client.logger.Debug("long poll session expired, refreshing", zap.Int("failed", response.Failed))
		lp.server = nil
		return nil, nil
	default:
		return nil, fmt.Errorf("long poll failed with code %d", response.Failed)
	}

	lp.server.TS = response.TS

	events := make([]models.Event, 0, len(response.Updates))
	for _, u := range response.Updates {
		if u.Type != eventMessage || u.Object.Message.FromID <= 0 {
			continue
		}
		events = append(events, models.Event{
			UserID: u.Object.Message.FromID,
			Text:   u.Object.Message.Text,
		})
	}

	return events, nil
}

func (lp *LongPoll) refresh(ctx context.Context) error {
	q := url.Values{}
	q.Set("group_id", strconv.FormatInt(lp.client.groupID, 10))

	var server longPollServer
	if err := lp.client.call(ctx, "groups.getLongPollServer", lp.client.groupToken, q, &server); err != nil {
		return err
	}

	lp.server = &server
	return nil
}

func (lp *LongPoll) check(ctx context.Context) (*longPollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lp.server.Server, nil)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("act", "a_check")
	q.Set("key", lp.server.Key)
	q.Set("ts", string(lp.server.TS))
	q.Set("wait", strconv.Itoa(longPollWait))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", lp.client.UserAgent)

	resp, err := lp.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var response longPollResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode long poll response: %w", err)
	}

	return &response, nil
}
