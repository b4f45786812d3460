package recorder

import (
	"sync"
	"time"
)

var nowFunc = time.Now // mockable

// Player tracks playback of the previewed artifact. Position advances with the wall clock while
// playing and never leaves [0, duration].
type Player struct {
	mu        sync.Mutex
	duration  time.Duration
	pos       time.Duration
	playing   bool
	startedAt time.Time
}

func NewPlayer(duration time.Duration) *Player {
	return &Player{duration: duration}
}

func (p *Player) Duration() time.Duration { return p.duration }

func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	if p.duration > 0 && p.pos >= p.duration {
		p.pos = 0
	}
	p.playing = true
	p.startedAt = nowFunc()
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.pos = p.position()
	p.playing = false
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing && p.duration > 0 && p.position() >= p.duration {
		p.pos = p.duration
		p.playing = false
	}
	return p.playing
}

func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

// Seek moves to pos. It is a no-op until the duration is known.
func (p *Player) Seek(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.duration <= 0 {
		return
	}
	p.seek(pos)
}

func (p *Player) SkipForward(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.duration <= 0 {
		return
	}
	p.seek(p.position() + d)
}

func (p *Player) SkipBack(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.duration <= 0 {
		return
	}
	p.seek(p.position() - d)
}

func (p *Player) seek(pos time.Duration) {
	p.pos = clamp(pos, 0, p.duration)
	if p.playing {
		p.startedAt = nowFunc()
	}
}

func (p *Player) position() time.Duration {
	pos := p.pos
	if p.playing {
		pos += nowFunc().Sub(p.startedAt)
	}
	if p.duration > 0 {
		return clamp(pos, 0, p.duration)
	}
	return pos
}

func clamp(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
