package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/lexis"
	"github.com/spigell/love-machine/internal/utils"
)

//go:embed prompt.md
var systemPrompt string

const defaultMaxLogLength = 200

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
}

// Tagger is a lexis.Tagger backed by Gemini. Tags are cached per word for the
// lifetime of the process.
type Tagger struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int

	cacheMu sync.RWMutex
	cache   map[string]lexis.Tag
}

func NewTagger(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Tagger {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Tagger{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
		cache:     make(map[string]lexis.Tag),
	}
}

func (t *Tagger) Tag(ctx context.Context, words []string) (map[string]lexis.Tag, error) {
	result := make(map[string]lexis.Tag, len(words))
	missing := make([]string, 0, len(words))

	t.cacheMu.RLock()
	for _, word := range words {
		if tag, ok := t.cache[word]; ok {
			result[word] = tag
			continue
		}
		missing = append(missing, word)
	}
	t.cacheMu.RUnlock()

	if len(missing) == 0 {
		return result, nil
	}

	payload, err := json.Marshal(missing)
	if err != nil {
		return nil, fmt.Errorf("marshal words: %w", err)
	}

	prompt := string(payload)
	t.logger.Debug("gemini tag request",
		zap.Int("words", len(missing)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, t.maxLogLen)),
	)

	raw, err := t.generator.GenerateContent(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("gemini tag response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, t.maxLogLen)),
	)

	parsed, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()

	for _, word := range missing {
		tag := parsed[word]
		t.cache[word] = tag
		result[word] = tag
	}

	return result, nil
}

func parseResponse(raw string) (map[string]lexis.Tag, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	tags := make(map[string]lexis.Tag, len(data))
	for word, value := range data {
		s, _ := value.(string)
		tags[strings.ToLower(strings.TrimSpace(word))] = lexis.ParseTag(s)
	}

	return tags, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
