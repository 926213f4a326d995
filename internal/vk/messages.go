package vk

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"

	"github.com/spigell/love-machine/internal/models"
)

const buttonColor = "secondary"

type buttonAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

type button struct {
	Action buttonAction `json:"action"`
	Color  string       `json:"color"`
}

// Keyboard is a persistent bot keyboard.
type Keyboard struct {
	OneTime bool       `json:"one_time"`
	Buttons [][]button `json:"buttons"`
}

// NewKeyboard builds a keyboard with one text button per label, a row per slice.
func NewKeyboard(rows ...[]string) *Keyboard {
	kb := &Keyboard{Buttons: make([][]button, 0, len(rows))}
	for _, labels := range rows {
		row := make([]button, 0, len(labels))
		for _, label := range labels {
			row = append(row, button{
				Action: buttonAction{Type: "text", Label: label},
				Color:  buttonColor,
			})
		}
		kb.Buttons = append(kb.Buttons, row)
	}
	return kb
}

// Send delivers a text message to the user.
func (c *Client) Send(ctx context.Context, userID int64, text string) error {
	return c.send(ctx, userID, text, nil)
}

// SendSuggestion delivers a candidate card with its photos attached.
func (c *Client) SendSuggestion(ctx context.Context, userID int64, s models.Suggestion) error {
	text := strings.Join([]string{s.Name, s.ProfileLink}, "\n")
	return c.send(ctx, userID, text, s.MediaRefs)
}

func (c *Client) send(ctx context.Context, userID int64, text string, attachments []string) error {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))
	q.Set("message", text)
	q.Set("random_id", strconv.FormatInt(int64(rand.Int32()), 10))

	if len(attachments) > 0 {
		q.Set("attachment", strings.Join(attachments, ","))
	}

	if c.Keyboard != nil {
		kb, err := json.Marshal(c.Keyboard)
		if err != nil {
			return err
		}
		q.Set("keyboard", string(kb))
	}

	return c.call(ctx, "messages.send", c.groupToken, q, nil)
}
