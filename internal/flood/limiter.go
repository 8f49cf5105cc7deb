// Package flood rate-limits inbound updates per chat so one sender cannot
// monopolize the relay.
package flood

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type chatLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter allows one update per cooldown per chat, with burst 1. Idle
// chats are pruned after ten minutes.
type Limiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	chats    map[int64]*chatLimiter
	stop     chan struct{}
}

func New(cooldown time.Duration) *Limiter {
	l := &Limiter{
		cooldown: cooldown,
		chats:    make(map[int64]*chatLimiter),
		stop:     make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Allow reports whether this chat's update may proceed.
func (l *Limiter) Allow(chatID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl, ok := l.chats[chatID]
	if !ok {
		cl = &chatLimiter{lim: rate.NewLimiter(rate.Every(l.cooldown), 1)}
		l.chats[chatID] = cl
	}
	cl.lastSeen = time.Now()
	return cl.lim.Allow()
}

func (l *Limiter) Close() {
	close(l.stop)
}

func (l *Limiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for id, cl := range l.chats {
				if now.Sub(cl.lastSeen) > 10*time.Minute {
					delete(l.chats, id)
				}
			}
			l.mu.Unlock()
		}
	}
}
