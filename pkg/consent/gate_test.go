package consent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConsumeIsOneShot(t *testing.T) {
	g := NewGate(GateConfig{})

	g.Grant("salary details")

	assert.True(t, g.Consume("salary details"))
	assert.False(t, g.Consume("salary details"), "second consume must fail")
}

func TestConsumeWithoutGrant(t *testing.T) {
	g := NewGate(GateConfig{})
	assert.False(t, g.Consume("anything"))
}

func TestTopicNormalization(t *testing.T) {
	g := NewGate(GateConfig{})

	g.Grant("  My Salary  ")
	assert.True(t, g.Consume("my salary"))
}

func TestDenyErasesGrant(t *testing.T) {
	g := NewGate(GateConfig{})

	g.Grant("topic")
	g.Deny("topic")
	assert.False(t, g.Consume("topic"))
}

func TestExpiredTokenIsNotConsumable(t *testing.T) {
	now := time.Now()
	g := NewGate(GateConfig{
		TTL:     time.Minute,
		NowFunc: func() time.Time { return now },
	})

	g.Grant("topic")
	now = now.Add(2 * time.Minute)

	assert.False(t, g.Consume("topic"))
}

func TestPending(t *testing.T) {
	now := time.Now()
	g := NewGate(GateConfig{
		TTL:     time.Minute,
		NowFunc: func() time.Time { return now },
	})

	assert.False(t, g.Pending("topic"))

	g.Grant("topic")
	assert.True(t, g.Pending("topic"))
	assert.True(t, g.Pending("topic"), "pending must not consume")

	now = now.Add(2 * time.Minute)
	assert.False(t, g.Pending("topic"), "expired entries are dropped lazily")
	assert.False(t, g.Consume("topic"))
}
