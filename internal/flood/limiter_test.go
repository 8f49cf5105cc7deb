package flood

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_FirstUpdatePasses(t *testing.T) {
	l := New(time.Hour)
	defer l.Close()

	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1), "second update inside the cooldown must be dropped")
}

func TestLimiter_ChatsAreIndependent(t *testing.T) {
	l := New(time.Hour)
	defer l.Close()

	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(2), "another chat's budget is untouched")
	assert.False(t, l.Allow(1))
	assert.False(t, l.Allow(2))
}

func TestLimiter_RefillsAfterCooldown(t *testing.T) {
	l := New(10 * time.Millisecond)
	defer l.Close()

	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
	time.Sleep(25 * time.Millisecond)
	assert.True(t, l.Allow(1))
}
