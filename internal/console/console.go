// Package console runs a dialogue in the terminal. The feed asks for input
// with promptui and the outbox prints replies, so the whole engine can be
// driven without the messenger.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/manifoldco/promptui"

	"github.com/spigell/love-machine/internal/models"
)

// PromptWrite is the menu item that opens a free-text prompt.
const PromptWrite = "write a message..."

// Asker reads one line of user input.
type Asker interface {
	Ask() (string, error)
}

// Feed is a dialogue feed with a single local user.
type Feed struct {
	userID    int64
	asker     Asker
	interrupt func()
}

// NewFeed creates a feed that reads with asker on behalf of userID. interrupt
// is called when the user aborts the prompt.
func NewFeed(userID int64, asker Asker, interrupt func()) *Feed {
	if interrupt == nil {
		interrupt = func() {}
	}
	return &Feed{userID: userID, asker: asker, interrupt: interrupt}
}

type answer struct {
	text string
	err  error
}

// Poll blocks until the user enters a message. A prompt in progress is not
// cancelled by ctx; its answer is discarded.
func (f *Feed) Poll(ctx context.Context) ([]models.Event, error) {
	answers := make(chan answer, 1)
	go func() {
		text, err := f.asker.Ask()
		answers <- answer{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case a := <-answers:
		if errors.Is(a.err, promptui.ErrInterrupt) || errors.Is(a.err, promptui.ErrEOF) || errors.Is(a.err, io.EOF) {
			f.interrupt()
			return nil, a.err
		}
		if a.err != nil {
			return nil, fmt.Errorf("reading input: %w", a.err)
		}

		text := strings.TrimSpace(a.text)
		if text == "" {
			return nil, nil
		}
		return []models.Event{{UserID: f.userID, Text: text}}, nil
	}
}

// Menu asks with a select of the keyboard buttons. Choosing PromptWrite opens
// a free-text prompt.
type Menu struct {
	Buttons [][]string
	Stdin   io.ReadCloser
	Stdout  io.WriteCloser
}

func (m *Menu) Ask() (string, error) {
	var items []string
	for _, row := range m.Buttons {
		items = append(items, row...)
	}
	items = append(items, PromptWrite)

	menu := promptui.Select{
		Label:  "Choose an action",
		Items:  items,
		Size:   len(items),
		Stdin:  m.Stdin,
		Stdout: m.Stdout,
	}

	_, choice, err := menu.Run()
	if err != nil {
		return "", err
	}
	if choice != PromptWrite {
		return choice, nil
	}

	message := promptui.Prompt{
		Label:  "Message",
		Stdin:  m.Stdin,
		Stdout: m.Stdout,
	}
	return message.Run()
}

// Outbox prints the bot replies.
type Outbox struct {
	mu  sync.Mutex
	out io.Writer
}

func NewOutbox(out io.Writer) *Outbox {
	if out == nil {
		out = os.Stdout
	}
	return &Outbox{out: out}
}

func (o *Outbox) Send(_ context.Context, _ int64, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, err := fmt.Fprintf(o.out, "%s %s\n", promptui.Styler(promptui.FGCyan, promptui.FGBold)("bot:"), text)
	return err
}

func (o *Outbox) SendSuggestion(_ context.Context, _ int64, s models.Suggestion) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", promptui.Styler(promptui.FGMagenta, promptui.FGBold)("offer:"), s.Name)
	fmt.Fprintf(&b, "  %s\n", s.ProfileLink)
	for _, ref := range s.MediaRefs {
		fmt.Fprintf(&b, "  https://vk.com/%s\n", ref)
	}

	_, err := io.WriteString(o.out, b.String())
	return err
}
