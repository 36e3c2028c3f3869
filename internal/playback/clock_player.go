package playback

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/zsiec/slomo/internal/media"
)

// ClockPlayer is an in-process player whose position advances with a
// media.Clock:
//
//	position = anchor + (clock.Now() - anchorAt) * rate
//
// clamped to [0, duration]. It renders nothing; it gives the controller a
// real timeline to synchronize against.
type ClockPlayer struct {
	clock    media.Clock
	duration time.Duration
	maxRate  float64
	// keyframes are the positions best-effort seeks snap to, ascending.
	keyframes []time.Duration
	// seekLatency delays completions, standing in for decode time.
	seekLatency time.Duration

	mu       sync.Mutex
	playing  bool
	rate     float64
	anchor   time.Duration
	anchorAt time.Duration
	seekGen  uint64
}

// ClockPlayerOptions configures a ClockPlayer.
type ClockPlayerOptions struct {
	Clock       media.Clock
	MaxRate     float64 // 0 means no upper bound
	Keyframes   []time.Duration
	SeekLatency time.Duration
}

// NewClockPlayer creates a paused player at position zero.
func NewClockPlayer(duration time.Duration, opts ClockPlayerOptions) *ClockPlayer {
	if opts.Clock == nil {
		opts.Clock = media.NewSystemClock()
	}
	keyframes := append([]time.Duration(nil), opts.Keyframes...)
	sort.Slice(keyframes, func(i, j int) bool { return keyframes[i] < keyframes[j] })
	return &ClockPlayer{
		clock:       opts.Clock,
		duration:    duration,
		maxRate:     opts.MaxRate,
		keyframes:   keyframes,
		seekLatency: opts.SeekLatency,
		rate:        1,
	}
}

// keyframeLister is implemented by assets that know their keyframes.
type keyframeLister interface {
	Keyframes() []int64
}

// NewClockPlayerFactory builds ClockPlayers for assets. Keyframe positions
// are taken from the asset when it exposes them.
func NewClockPlayerFactory(clock media.Clock, maxRate float64) PlayerFactory {
	return PlayerFactoryFunc(func(asset Asset) (Player, error) {
		opts := ClockPlayerOptions{Clock: clock, MaxRate: maxRate}
		if kl, ok := asset.(keyframeLister); ok {
			for _, idx := range kl.Keyframes() {
				opts.Keyframes = append(opts.Keyframes, media.FrameStart(idx, asset.FrameRate()))
			}
		}
		return NewClockPlayer(asset.Duration(), opts), nil
	})
}

func (p *ClockPlayer) positionLocked() time.Duration {
	pos := p.anchor
	if p.playing {
		elapsed := p.clock.Now() - p.anchorAt
		pos += time.Duration(float64(elapsed) * p.rate)
	}
	if pos < 0 {
		return 0
	}
	if pos > p.duration {
		return p.duration
	}
	return pos
}

func (p *ClockPlayer) reanchorLocked(pos time.Duration) {
	p.anchor = pos
	p.anchorAt = p.clock.Now()
}

func (p *ClockPlayer) SupportsRate(rate float64) bool {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return false
	}
	return p.maxRate <= 0 || rate <= p.maxRate
}

func (p *ClockPlayer) Play(rate float64) error {
	if !p.SupportsRate(rate) {
		return fmt.Errorf("rate %g not supported", rate)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reanchorLocked(p.positionLocked())
	p.rate = rate
	p.playing = true
	return nil
}

func (p *ClockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reanchorLocked(p.positionLocked())
	p.playing = false
}

func (p *ClockPlayer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return 0
	}
	return p.rate
}

// IsPlaying reports whether the player is advancing. Reaching the end does
// not stop it; the controller decides what happens there.
func (p *ClockPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *ClockPlayer) CurrentTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *ClockPlayer) Duration() time.Duration {
	return p.duration
}

// Seek moves the position immediately. Best-effort seeks snap to the
// nearest keyframe. The completion reports finished=false if another seek
// was issued before it fired.
func (p *ClockPlayer) Seek(target time.Duration, mode SeekMode, done func(finished bool)) {
	if target < 0 {
		target = 0
	}
	if target > p.duration {
		target = p.duration
	}
	if mode == SeekBestEffort {
		target = p.nearestKeyframe(target)
	}

	p.mu.Lock()
	p.reanchorLocked(target)
	p.seekGen++
	gen := p.seekGen
	p.mu.Unlock()

	if done == nil {
		return
	}
	go func() {
		if p.seekLatency > 0 {
			time.Sleep(p.seekLatency)
		}
		p.mu.Lock()
		finished := gen == p.seekGen
		p.mu.Unlock()
		done(finished)
	}()
}

func (p *ClockPlayer) nearestKeyframe(target time.Duration) time.Duration {
	if len(p.keyframes) == 0 {
		return target
	}
	i := sort.Search(len(p.keyframes), func(i int) bool { return p.keyframes[i] >= target })
	switch {
	case i == 0:
		return p.keyframes[0]
	case i == len(p.keyframes):
		return p.keyframes[i-1]
	}
	before, after := p.keyframes[i-1], p.keyframes[i]
	if target-before <= after-target {
		return before
	}
	return after
}
