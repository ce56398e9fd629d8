package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// PreferenceStore persists which embedding provider answered last. The
// preference is sticky: it only moves when a different provider succeeds.
type PreferenceStore interface {
	Preferred(ctx context.Context) (string, error)
	SetPreferred(ctx context.Context, name string) error
}

type chatChain struct {
	items   []GeneratorEntry
	timeout time.Duration
}

// NewChatChain tries generators in the given fixed order and returns the
// first non-failing answer. Returns nil when no provider is configured.
func NewChatChain(items []GeneratorEntry, timeout time.Duration) IGenerator {
	if len(items) == 0 {
		return nil
	}
	return &chatChain{items: items, timeout: timeout}
}

func (g *chatChain) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Generator == nil {
			continue
		}
		res, err := g.generateOne(ctx, item.Generator, prompt)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("chat provider failed",
			zap.Int("index", i),
			zap.String("name", item.Name),
			zap.String("prompt", truncateForLog(prompt, 200)),
			zap.Error(err),
		)
	}
	if lastErr == nil {
		return "", fmt.Errorf("%w: no chat provider configured", ErrUnavailable)
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (g *chatChain) generateOne(ctx context.Context, gen IGenerator, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	res, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(res)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

// EmbedChain tries the persisted preferred provider first, then the rest in
// their configured order, and moves the preference to whichever provider
// most recently succeeded.
type EmbedChain struct {
	items   []EmbedderEntry
	prefs   PreferenceStore
	timeout time.Duration

	mu      sync.Mutex
	lastErr string
}

func NewEmbedChain(items []EmbedderEntry, prefs PreferenceStore, timeout time.Duration) *EmbedChain {
	if len(items) == 0 {
		return nil
	}
	return &EmbedChain{items: items, prefs: prefs, timeout: timeout}
}

func (c *EmbedChain) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	preferred := ""
	if c.prefs != nil {
		name, err := c.prefs.Preferred(ctx)
		if err == nil {
			preferred = name
		}
	}
	for _, item := range c.orderFor(preferred) {
		if item.Embedder == nil {
			continue
		}
		res, err := c.embedOne(ctx, item.Embedder, text, taskType)
		if err == nil {
			if c.prefs != nil && item.Name != preferred {
				if serr := c.prefs.SetPreferred(ctx, item.Name); serr != nil {
					logutil.GetLogger(ctx).Warn("persist preferred embed provider failed",
						zap.String("name", item.Name), zap.Error(serr))
				}
			}
			return res, nil
		}
		c.recordErr(item.Name, err)
		logutil.GetLogger(ctx).Warn("embed provider failed",
			zap.String("name", item.Name),
			zap.String("task_type", taskType),
			zap.String("input", truncateForLog(text, 120)),
			zap.Error(err),
		)
	}
	last := c.LastError()
	if last == "" {
		return nil, fmt.Errorf("%w: no embed provider configured", ErrUnavailable)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, last)
}

func (c *EmbedChain) orderFor(preferred string) []EmbedderEntry {
	if preferred == "" {
		return c.items
	}
	ordered := make([]EmbedderEntry, 0, len(c.items))
	for _, item := range c.items {
		if item.Name == preferred {
			ordered = append(ordered, item)
		}
	}
	for _, item := range c.items {
		if item.Name != preferred {
			ordered = append(ordered, item)
		}
	}
	return ordered
}

func (c *EmbedChain) embedOne(ctx context.Context, e IEmbedder, text string, taskType string) ([]float32, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	res, err := e.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	return res, nil
}

func (c *EmbedChain) recordErr(name string, err error) {
	c.mu.Lock()
	c.lastErr = fmt.Sprintf("%s: %v", name, err)
	c.mu.Unlock()
}

// LastError returns the most recent human-readable provider error, kept for
// diagnostics after the chain has been exhausted.
func (c *EmbedChain) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *EmbedChain) ModelName() string {
	names := make([]string, 0, len(c.items))
	for _, item := range c.items {
		if item.Embedder == nil {
			continue
		}
		names = append(names, item.Embedder.ModelName())
	}
	return strings.Join(names, "|")
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
