package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlayer(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	p := NewPlayer(10 * time.Second)
	p.Play()
	now = now.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, p.Position())

	p.Pause()
	now = now.Add(time.Minute)
	assert.Equal(t, 3*time.Second, p.Position())
	assert.False(t, p.Playing())

	p.SkipForward(30 * time.Second)
	assert.Equal(t, 10*time.Second, p.Position())
	p.SkipBack(4 * time.Second)
	assert.Equal(t, 6*time.Second, p.Position())
	p.SkipBack(time.Hour)
	assert.Equal(t, time.Duration(0), p.Position())

	p.Seek(7 * time.Second)
	assert.Equal(t, 7*time.Second, p.Position())
	p.Seek(-time.Second)
	assert.Equal(t, time.Duration(0), p.Position())

	// playback ends at the duration
	p.Play()
	now = now.Add(time.Minute)
	assert.Equal(t, 10*time.Second, p.Position())
	assert.False(t, p.Playing())

	// replay from the start
	p.Play()
	assert.Equal(t, time.Duration(0), p.Position())
}

func TestPlayer_unknownDuration(t *testing.T) {
	p := NewPlayer(0)
	p.Seek(5 * time.Second)
	assert.Equal(t, time.Duration(0), p.Position())
	p.SkipForward(5 * time.Second)
	assert.Equal(t, time.Duration(0), p.Position())
	p.SkipBack(5 * time.Second)
	assert.Equal(t, time.Duration(0), p.Position())
}
