package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zsiec/slomo/internal/config"
	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/logger"
	"github.com/zsiec/slomo/internal/media"
	"github.com/zsiec/slomo/internal/metrics"
	"github.com/zsiec/slomo/internal/notify"
)

const defaultTickInterval = 33 * time.Millisecond

// Options tunes a Controller.
type Options struct {
	TickInterval time.Duration
	EndBehavior  EndBehavior
	// ScrubSeekRate limits best-effort seeks per second while scrubbing;
	// zero disables the limit.
	ScrubSeekRate  float64
	ScrubSeekBurst int
	DefaultRate    float64
}

// OptionsFromConfig converts the playback config section.
func OptionsFromConfig(cfg *config.PlaybackConfig) (Options, error) {
	end, err := ParseEndBehavior(cfg.EndBehavior)
	if err != nil {
		return Options{}, err
	}
	return Options{
		TickInterval:   cfg.TickInterval,
		EndBehavior:    end,
		ScrubSeekRate:  cfg.ScrubSeekRate,
		ScrubSeekBurst: cfg.ScrubSeekBurst,
		DefaultRate:    cfg.DefaultRate,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTickInterval
	}
	if o.EndBehavior == "" {
		o.EndBehavior = EndHold
	}
	if o.ScrubSeekBurst <= 0 {
		o.ScrubSeekBurst = 1
	}
	if o.DefaultRate <= 0 {
		o.DefaultRate = 1
	}
	return o
}

// Controller keeps playback state consistent with a Player. Every
// derived value (frame index, time code, slider) is computed from a single
// position by the same function, whether the update comes from a tick, a
// step, a scrub or a seek completion.
//
// Seeks carry a sequence number; a completion is applied only if no newer
// seek was issued since.
type Controller struct {
	opener  AssetOpener
	players PlayerFactory
	opts    Options

	logger  logger.Logger
	sampled *logger.SampledLogger

	updates chan State
	events  *notify.Dispatcher[Event]

	mu       sync.Mutex
	asset    Asset
	player   Player
	rate     media.Rational
	total    int64
	duration time.Duration
	state    State

	playRate   float64
	toggling   bool
	atEnd      bool
	scrubbing  bool
	wasPlaying bool
	// scrubTarget is the last position requested while scrubbing.
	scrubTarget  time.Duration
	scrubLimiter *rate.Limiter
	seekSeq      uint64
}

// NewController creates a controller with nothing loaded.
func NewController(opener AssetOpener, players PlayerFactory, opts Options, log logger.Logger) *Controller {
	if log == nil {
		log = logger.NewNullLogger()
	}
	log = log.WithField("component", "playback_controller")
	opts = opts.withDefaults()

	c := &Controller{
		opener:   opener,
		players:  players,
		opts:     opts,
		logger:   log,
		sampled:  logger.NewCaptureLogger(log),
		updates:  make(chan State, 1),
		events:   notify.New[Event](),
		playRate: opts.DefaultRate,
	}
	c.scrubLimiter = c.newScrubLimiter()
	return c
}

func (c *Controller) newScrubLimiter() *rate.Limiter {
	if c.opts.ScrubSeekRate <= 0 {
		return rate.NewLimiter(rate.Inf, c.opts.ScrubSeekBurst)
	}
	return rate.NewLimiter(rate.Limit(c.opts.ScrubSeekRate), c.opts.ScrubSeekBurst)
}

// Updates delivers the latest state after every change. Only the most
// recent unread state is kept.
func (c *Controller) Updates() <-chan State {
	return c.updates
}

// Events delivers asset-loaded and end-of-item notifications exactly once
// each.
func (c *Controller) Events() <-chan Event {
	return c.events.C()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LoadAsset opens path and replaces the current item, paused at the start
// with the default rate. On failure the previous item and state are left untouched.
func (c *Controller) LoadAsset(path string) error {
	asset, err := c.opener.Open(path)
	if err == nil {
		err = validateAsset(asset, path)
	}
	var player Player
	if err == nil {
		player, err = c.players.NewPlayer(asset)
		if err != nil {
			err = errors.WrapUnreadableAssetError(err, path)
		}
	}
	metrics.AssetLoaded(err)
	if err != nil {
		if !errors.IsType(err, errors.ErrorTypeUnreadableAsset) {
			err = errors.WrapUnreadableAssetError(err, path)
		}
		c.logger.WithError(err).WithField("asset", path).Warn("Failed to load asset")
		return err
	}

	c.mu.Lock()
	if c.player != nil {
		c.player.Pause()
	}
	c.asset = asset
	c.player = player
	c.rate = asset.FrameRate()
	c.total = asset.FrameCount()
	c.duration = asset.Duration()
	c.toggling = false
	c.playRate = c.opts.DefaultRate
	c.atEnd = false
	c.scrubbing = false
	c.wasPlaying = false
	c.scrubTarget = 0
	c.scrubLimiter = c.newScrubLimiter()
	c.seekSeq++
	c.setStateLocked(0)
	state := c.state
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"asset":      path,
		"frame_rate": c.rate.String(),
		"frames":     c.total,
		"duration":   c.duration.String(),
	}).Info("Asset loaded")
	c.events.Emit(Event{Type: EventAssetLoaded, State: state})
	return nil
}

func validateAsset(asset Asset, path string) error {
	if asset == nil {
		return errors.NewUnreadableAssetError("no asset at " + path)
	}
	if asset.FrameCount() <= 0 {
		return errors.NewUnreadableAssetError(path + " has no video frames")
	}
	if !asset.FrameRate().IsValid() {
		return errors.NewUnreadableAssetError(path + " has no frame rate")
	}
	return nil
}

func (c *Controller) requireLoaded(operation string) error {
	if c.player == nil {
		return errors.NewInvalidStateError(operation, "no asset loaded")
	}
	return nil
}

// frameAt maps a position to a frame index clamped to the asset.
func (c *Controller) frameAt(pos time.Duration) int64 {
	idx := media.FrameIndexAt(pos, c.rate)
	if idx >= c.total {
		idx = c.total - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// setStateLocked derives the full state from pos and publishes it.
func (c *Controller) setStateLocked(pos time.Duration) {
	if pos < 0 {
		pos = 0
	}
	if pos > c.duration {
		pos = c.duration
	}
	idx := c.frameAt(pos)

	slider := 0.0
	if c.duration > 0 {
		slider = float64(pos) / float64(c.duration)
	}

	c.state = State{
		AssetPath:      c.asset.Path(),
		Loaded:         true,
		FrameRate:      c.rate,
		Position:       pos,
		Duration:       c.duration,
		FrameIndex:     idx,
		TotalFrames:    c.total,
		TimeCode:       media.FormatTimeCode(idx, c.rate),
		SliderPosition: slider,
		Playing:        c.player.IsPlaying(),
		Rate:           c.playRate,
		Scrubbing:      c.scrubbing,
		AtEnd:          c.atEnd,
	}
	c.publishLocked()
}

// publishLocked replaces any unread update with the current state.
func (c *Controller) publishLocked() {
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- c.state:
	default:
	}
}

// seekLocked issues a seek tagged with a new sequence number.
func (c *Controller) seekLocked(target time.Duration, mode SeekMode) {
	c.seekSeq++
	seq := c.seekSeq
	player := c.player
	c.sampled.DebugWithCategory(logger.CategorySeek, "Seek issued", map[string]interface{}{
		"seq":    seq,
		"mode":   mode.String(),
		"target": target.String(),
	})
	player.Seek(target, mode, func(finished bool) {
		c.onSeekComplete(player, seq, mode, finished)
	})
}

func (c *Controller) onSeekComplete(player Player, seq uint64, mode SeekMode, finished bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := seq != c.seekSeq || player != c.player
	metrics.SeekCompleted(mode.String(), finished, stale)
	if stale || !finished {
		return
	}
	// While scrubbing the display follows the user's target, not the
	// player.
	if c.scrubbing {
		return
	}
	c.setStateLocked(c.player.CurrentTime())
}

// TogglePlayPause pauses when playing and plays at the remembered rate
// when paused. Playing from the held end position restarts at the first
// frame. A call made while another toggle is still in progress fails with
// an InvalidStateError.
func (c *Controller) TogglePlayPause() error {
	c.mu.Lock()
	if err := c.requireLoaded("toggle_play_pause"); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.toggling {
		c.mu.Unlock()
		return errors.NewInvalidStateError("toggle_play_pause", "transition pending")
	}
	if c.scrubbing {
		c.mu.Unlock()
		return errors.NewInvalidStateError("toggle_play_pause", "scrubbing")
	}
	c.toggling = true
	player := c.player
	playing := player.IsPlaying()
	restart := !playing && c.atEnd
	playRate := c.playRate
	if restart {
		c.seekLocked(0, SeekExact)
	}
	c.mu.Unlock()

	var err error
	if playing {
		player.Pause()
	} else {
		err = player.Play(playRate)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.toggling = false
	if player != c.player {
		return nil
	}
	if err != nil {
		c.logger.WithError(err).Warn("Player refused to play")
		return errors.NewUnsupportedRateError(playRate)
	}
	if restart {
		c.atEnd = false
	}
	c.setStateLocked(player.CurrentTime())
	return nil
}

// StepFrame pauses and moves delta frames from the current frame index,
// clamped to the asset, with an exact seek to the target frame's start.
func (c *Controller) StepFrame(delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLoaded("step_frame"); err != nil {
		return err
	}
	if c.scrubbing {
		return errors.NewInvalidStateError("step_frame", "scrubbing")
	}

	base := c.state.FrameIndex
	if c.player.IsPlaying() {
		c.player.Pause()
		base = c.frameAt(c.player.CurrentTime())
	}

	target := base + int64(delta)
	if target < 0 {
		target = 0
	}
	if target > c.total-1 {
		target = c.total - 1
	}

	pos := media.FrameStart(target, c.rate)
	c.atEnd = false
	c.seekLocked(pos, SeekExact)
	c.setStateLocked(pos)
	metrics.FrameStepped(delta)
	return nil
}

// BeginScrubbing pauses playback and stops periodic refresh until
// EndScrubbing.
func (c *Controller) BeginScrubbing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLoaded("begin_scrubbing"); err != nil {
		return err
	}
	if c.scrubbing {
		return nil
	}
	c.wasPlaying = c.player.IsPlaying()
	if c.wasPlaying {
		c.player.Pause()
	}
	c.scrubbing = true
	c.scrubTarget = c.state.Position
	c.setStateLocked(c.state.Position)
	return nil
}

// Scrub moves to fraction of the duration. The displayed time code updates
// at once; the player follows with rate-limited best-effort seeks.
func (c *Controller) Scrub(fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLoaded("scrub"); err != nil {
		return err
	}
	if !c.scrubbing {
		return errors.NewInvalidStateError("scrub", "not scrubbing")
	}
	if math.IsNaN(fraction) {
		return errors.NewValidationError("scrub position is not a number")
	}
	fraction = math.Max(0, math.Min(1, fraction))

	target := time.Duration(math.Round(float64(c.duration) * fraction))
	c.scrubTarget = target
	if c.scrubLimiter.Allow() {
		c.seekLocked(target, SeekBestEffort)
	}
	c.atEnd = false
	c.setStateLocked(target)
	return nil
}

// EndScrubbing seeks exactly once to the start of the frame containing the
// last scrub target, resumes refresh, and resumes playback if it was
// playing when scrubbing began.
func (c *Controller) EndScrubbing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLoaded("end_scrubbing"); err != nil {
		return err
	}
	if !c.scrubbing {
		return errors.NewInvalidStateError("end_scrubbing", "not scrubbing")
	}

	pos := media.FrameStart(c.frameAt(c.scrubTarget), c.rate)
	c.scrubbing = false
	c.seekLocked(pos, SeekExact)

	if c.wasPlaying {
		if err := c.player.Play(c.playRate); err != nil {
			c.logger.WithError(err).Warn("Failed to resume playback after scrubbing")
		}
	}
	c.wasPlaying = false
	c.setStateLocked(pos)
	metrics.ScrubFinished()
	return nil
}

// SetRate changes the playback multiplier. Zero pauses; rates the player
// cannot honour, including reverse, fail with UnsupportedRateError and
// change nothing. A positive rate takes effect at once when playing and
// is remembered for the next play otherwise.
func (c *Controller) SetRate(multiplier float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if multiplier == 0 {
		if c.scrubbing {
			// Playback is already held; just don't resume afterwards.
			c.wasPlaying = false
			return nil
		}
		if c.player != nil && c.player.IsPlaying() {
			c.player.Pause()
			c.setStateLocked(c.player.CurrentTime())
		}
		return nil
	}

	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) || multiplier < 0 {
		return errors.NewUnsupportedRateError(multiplier)
	}
	if c.player == nil {
		c.playRate = multiplier
		return nil
	}
	if !c.player.SupportsRate(multiplier) {
		return errors.NewUnsupportedRateError(multiplier)
	}

	if c.scrubbing {
		// The display follows the scrub target; EndScrubbing applies the
		// rate if playback resumes.
		c.playRate = multiplier
		c.state.Rate = multiplier
		c.publishLocked()
		return nil
	}
	if c.player.IsPlaying() {
		if err := c.player.Play(multiplier); err != nil {
			return errors.NewUnsupportedRateError(multiplier)
		}
	}
	c.playRate = multiplier
	c.setStateLocked(c.player.CurrentTime())
	return nil
}

// OnPeriodicTick refreshes the state from the player while playing. It
// does nothing while scrubbing. Reaching the end applies the end behavior
// in the same critical section, so no scrub or step can slip in between.
func (c *Controller) OnPeriodicTick() {
	c.mu.Lock()
	if c.player == nil || c.scrubbing || !c.player.IsPlaying() {
		c.mu.Unlock()
		return
	}

	pos := c.player.CurrentTime()
	c.setStateLocked(pos)
	c.sampled.DebugWithCategory(logger.CategoryPlaybackTick, "Tick", map[string]interface{}{
		"frame":     c.state.FrameIndex,
		"time_code": c.state.TimeCode,
	})
	ended := pos >= c.duration
	var state State
	if ended {
		state = c.reachEndLocked()
	}
	c.mu.Unlock()

	metrics.PlaybackTick()
	if ended {
		c.emitEnd(state)
	}
}

// OnReachedEnd pauses and applies the end behavior: hold on the last frame
// or rewind to the first. It is ignored while scrubbing, since the user
// owns the position until EndScrubbing.
func (c *Controller) OnReachedEnd() {
	c.mu.Lock()
	if c.player == nil || c.scrubbing {
		c.mu.Unlock()
		return
	}
	state := c.reachEndLocked()
	c.mu.Unlock()

	c.emitEnd(state)
}

func (c *Controller) reachEndLocked() State {
	c.player.Pause()
	switch c.opts.EndBehavior {
	case EndRewind:
		c.atEnd = false
		c.seekLocked(0, SeekExact)
		c.setStateLocked(0)
	default:
		c.atEnd = true
		c.setStateLocked(c.duration)
	}
	return c.state
}

func (c *Controller) emitEnd(state State) {
	c.logger.WithFields(map[string]interface{}{
		"asset":        state.AssetPath,
		"end_behavior": string(c.opts.EndBehavior),
	}).Debug("Reached end of item")
	c.events.Emit(Event{Type: EventEndOfItem, State: state})
}

// Run ticks at the configured interval until ctx is done. Ticks run on the
// calling goroutine and never overlap.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.OnPeriodicTick()
		}
	}
}

// Close stops event delivery after flushing pending events until ctx is
// done.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	if c.player != nil {
		c.player.Pause()
	}
	c.mu.Unlock()
	c.events.Close(ctx)
}
