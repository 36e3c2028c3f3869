package playback

import (
	"time"

	"github.com/zsiec/slomo/internal/media"
)

// SeekMode selects between frame-exact and responsive seeking.
type SeekMode int

const (
	// SeekExact lands exactly on the requested time.
	SeekExact SeekMode = iota
	// SeekBestEffort may land on a nearby position that is cheaper to
	// decode, such as a keyframe.
	SeekBestEffort
)

func (m SeekMode) String() string {
	if m == SeekBestEffort {
		return "best_effort"
	}
	return "exact"
}

// Player is the media player capability the controller drives.
type Player interface {
	Play(rate float64) error
	Pause()
	Rate() float64
	IsPlaying() bool
	CurrentTime() time.Duration
	Duration() time.Duration
	// Seek repositions the player. done reports whether the seek completed
	// (false when a later seek interrupted it) and is always invoked
	// asynchronously, never from within Seek.
	Seek(target time.Duration, mode SeekMode, done func(finished bool))
	SupportsRate(rate float64) bool
}

// Asset is a recording the controller can play.
type Asset interface {
	Path() string
	FrameRate() media.Rational
	FrameCount() int64
	Duration() time.Duration
}

// AssetOpener opens recordings by path.
type AssetOpener interface {
	Open(path string) (Asset, error)
}

// AssetOpenerFunc adapts a function to AssetOpener.
type AssetOpenerFunc func(path string) (Asset, error)

func (f AssetOpenerFunc) Open(path string) (Asset, error) {
	return f(path)
}

// PlayerFactory builds a player for an opened asset.
type PlayerFactory interface {
	NewPlayer(asset Asset) (Player, error)
}

// PlayerFactoryFunc adapts a function to PlayerFactory.
type PlayerFactoryFunc func(asset Asset) (Player, error)

func (f PlayerFactoryFunc) NewPlayer(asset Asset) (Player, error) {
	return f(asset)
}
