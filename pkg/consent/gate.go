// Package consent implements the one-shot consent gate that permits a
// single release of high-risk content for a given topic.
package consent

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultTTL is the default lifetime of a consent token.
const DefaultTTL = 5 * time.Minute

// Gate is a process-local mapping from normalized topic to absolute expiry.
// Consumption is one-shot: re-use of the same high-risk topic requires a
// fresh grant.
type Gate struct {
	mu      sync.Mutex
	tokens  map[string]time.Time
	ttl     time.Duration
	nowFunc func() time.Time
	logger  hclog.Logger
}

// GateConfig holds configuration for the consent gate.
type GateConfig struct {
	TTL    time.Duration // Token lifetime (default: 5m)
	Logger hclog.Logger

	// NowFunc overrides the clock, for tests.
	NowFunc func() time.Time
}

// NewGate creates a consent gate.
func NewGate(config GateConfig) *Gate {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}
	if config.NowFunc == nil {
		config.NowFunc = time.Now
	}

	return &Gate{
		tokens:  make(map[string]time.Time),
		ttl:     config.TTL,
		nowFunc: config.NowFunc,
		logger:  config.Logger.Named("consent-gate"),
	}
}

// Grant inserts or replaces a token for the topic, expiring after the TTL.
func (g *Gate) Grant(topic string) {
	key := normalizeTopic(topic)
	expiry := g.nowFunc().Add(g.ttl)

	g.mu.Lock()
	g.tokens[key] = expiry
	g.mu.Unlock()

	g.logger.Info("consent granted", "topic", key, "expires_at", expiry)
}

// Deny erases any token for the topic.
func (g *Gate) Deny(topic string) {
	key := normalizeTopic(topic)

	g.mu.Lock()
	delete(g.tokens, key)
	g.mu.Unlock()

	g.logger.Info("consent denied", "topic", key)
}

// Consume atomically removes the topic's token and reports whether it
// existed and had not yet expired.
func (g *Gate) Consume(topic string) bool {
	key := normalizeTopic(topic)
	now := g.nowFunc()

	g.mu.Lock()
	expiry, ok := g.tokens[key]
	if ok {
		delete(g.tokens, key)
	}
	g.mu.Unlock()

	live := ok && now.Before(expiry)
	g.logger.Debug("consent consume", "topic", key, "granted", live)
	return live
}

// Pending reports whether a live token exists without consuming it.
func (g *Gate) Pending(topic string) bool {
	key := normalizeTopic(topic)
	now := g.nowFunc()

	g.mu.Lock()
	defer g.mu.Unlock()

	expiry, ok := g.tokens[key]
	if ok && !now.Before(expiry) {
		// Expired entries are removed lazily.
		delete(g.tokens, key)
		return false
	}
	return ok
}

// normalizeTopic case-folds and trims a topic so grants and consumes agree
// on the key.
func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
