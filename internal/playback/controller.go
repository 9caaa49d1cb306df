// internal/playback/controller.go
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// VisibilityThreshold is the intersection ratio at which a video counts
	// as on screen.
	VisibilityThreshold = 0.7
	ViewThreshold       = 2 * time.Second
	ViewDebounce        = 1 * time.Second
)

type Player interface {
	Play() error
	Pause()
	Seek(position time.Duration)
}

type VisibilityPolicy interface {
	OnEnterViewport()
	OnLeaveViewport()
}

// ViewRecorder persists one view of a video.
type ViewRecorder func(ctx context.Context, videoID uuid.UUID) error

type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Controller)

// WithAfterFunc swaps the timer implementation, mainly for tests.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Controller) { c.afterFunc = fn }
}

// Controller applies the autoplay policy to one mounted video: play while
// visible, pause and rewind when scrolled away, and record a single view once
// playback has run long enough.
type Controller struct {
	mu        sync.Mutex
	videoID   uuid.UUID
	player    Player
	record    ViewRecorder
	afterFunc AfterFunc

	visible   bool
	scheduled bool
	recorded  bool
	closed    bool
	timer     Timer
}

var _ VisibilityPolicy = (*Controller)(nil)

func NewController(videoID uuid.UUID, player Player, record ViewRecorder, opts ...Option) *Controller {
	c := &Controller{
		videoID:   videoID,
		player:    player,
		record:    record,
		afterFunc: realAfterFunc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) VideoID() uuid.UUID { return c.videoID }

func (c *Controller) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// OnIntersection maps an intersection ratio onto enter/leave transitions.
func (c *Controller) OnIntersection(ratio float64) {
	if ratio >= VisibilityThreshold {
		c.OnEnterViewport()
		return
	}
	c.OnLeaveViewport()
}

func (c *Controller) OnEnterViewport() {
	c.mu.Lock()
	if c.closed || c.visible {
		c.mu.Unlock()
		return
	}
	c.visible = true
	c.mu.Unlock()

	if err := c.player.Play(); err != nil {
		// Browsers may refuse autoplay until the user interacts.
		logrus.WithError(err).WithField("video_id", c.videoID).Debug("Autoplay refused")
	}
}

func (c *Controller) OnLeaveViewport() {
	c.mu.Lock()
	if c.closed || !c.visible {
		c.mu.Unlock()
		return
	}
	c.visible = false
	c.mu.Unlock()

	c.player.Pause()
	c.player.Seek(0)
}

// OnTimeUpdate schedules the view recorder the first time playback passes
// ViewThreshold.
func (c *Controller) OnTimeUpdate(position time.Duration) {
	if position < ViewThreshold {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.scheduled {
		return
	}
	c.scheduled = true
	c.timer = c.afterFunc(ViewDebounce, c.fire)
}

func (c *Controller) fire() {
	c.mu.Lock()
	if c.closed || c.recorded {
		c.mu.Unlock()
		return
	}
	c.recorded = true
	c.timer = nil
	c.mu.Unlock()

	if err := c.record(context.Background(), c.videoID); err != nil {
		logrus.WithError(err).WithField("video_id", c.videoID).Warn("Failed to record view")
	}
}

// Close cancels a pending view and ignores further events.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
