package playback

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFeedPlaysEntryNearestCentre(t *testing.T) {
	feed := NewFeed(800)

	first, firstPlayer, _, _ := newTestController()
	second, secondPlayer, _, _ := newTestController()
	feed.Add(first)
	feed.Add(second)

	feed.Update(first.VideoID(), 0.75, -150, 800)
	feed.Update(second.VideoID(), 0.8, 600, 800)
	assert.Equal(t, first.VideoID(), feed.Active())
	assert.True(t, firstPlayer.playing)
	assert.False(t, secondPlayer.playing)

	// Scrolled so the second video is centred.
	feed.Update(first.VideoID(), 0.2, -650, 800)
	feed.Update(second.VideoID(), 0.95, 50, 800)
	assert.Equal(t, second.VideoID(), feed.Active())
	assert.False(t, firstPlayer.playing)
	assert.True(t, secondPlayer.playing)
	assert.Equal(t, 1, firstPlayer.pauses)
}

func TestFeedNothingVisible(t *testing.T) {
	feed := NewFeed(800)
	c, player, _, _ := newTestController()
	feed.Add(c)

	feed.Update(c.VideoID(), 0.9, 0, 800)
	feed.Update(c.VideoID(), 0.3, 500, 800)

	assert.Equal(t, uuid.Nil, feed.Active())
	assert.False(t, player.playing)
}

func TestFeedRemoveClosesController(t *testing.T) {
	feed := NewFeed(800)
	c, player, clock, recorder := newTestController()
	feed.Add(c)
	feed.Update(c.VideoID(), 1, 0, 800)
	c.OnTimeUpdate(ViewThreshold)

	feed.Remove(c.VideoID())
	clock.fireAll()

	assert.Equal(t, uuid.Nil, feed.Active())
	assert.False(t, player.playing)
	assert.Equal(t, 0, recorder.calls)

	feed.Update(c.VideoID(), 1, 0, 800)
	assert.Equal(t, uuid.Nil, feed.Active())
}

func TestFeedTieGoesToHigherEntry(t *testing.T) {
	// Map iteration order varies between runs, so repeat the tie.
	for i := 0; i < 20; i++ {
		feed := NewFeed(800)
		upper, upperPlayer, _, _ := newTestController()
		lower, _, _, _ := newTestController()
		centred, _, _, _ := newTestController()
		feed.Add(upper)
		feed.Add(lower)
		feed.Add(centred)

		feed.Update(centred.VideoID(), 1, 0, 800)
		feed.Update(upper.VideoID(), 0.8, 0, 600)
		feed.Update(lower.VideoID(), 0.8, 200, 600)
		assert.Equal(t, centred.VideoID(), feed.Active())

		feed.Remove(centred.VideoID())
		assert.Equal(t, upper.VideoID(), feed.Active())
		assert.True(t, upperPlayer.playing)
	}
}

func TestFeedTieAtSameTopGoesToSmallerID(t *testing.T) {
	for i := 0; i < 20; i++ {
		feed := NewFeed(800)
		a, _, _, _ := newTestController()
		b, _, _, _ := newTestController()
		centred, _, _, _ := newTestController()
		feed.Add(a)
		feed.Add(b)
		feed.Add(centred)

		feed.Update(centred.VideoID(), 1, 0, 800)
		feed.Update(a.VideoID(), 0.8, 100, 400)
		feed.Update(b.VideoID(), 0.8, 100, 400)
		feed.Remove(centred.VideoID())

		want := a.VideoID()
		if b.VideoID().String() < want.String() {
			want = b.VideoID()
		}
		assert.Equal(t, want, feed.Active())
	}
}

func TestFeedTieKeepsPlayingVideo(t *testing.T) {
	feed := NewFeed(800)
	playing, player, _, _ := newTestController()
	other, otherPlayer, _, _ := newTestController()
	feed.Add(playing)
	feed.Add(other)

	feed.Update(playing.VideoID(), 0.8, 200, 600)
	assert.Equal(t, playing.VideoID(), feed.Active())

	// Higher on screen and just as close to the centre.
	feed.Update(other.VideoID(), 0.8, 0, 600)
	assert.Equal(t, playing.VideoID(), feed.Active())
	assert.True(t, player.playing)
	assert.False(t, otherPlayer.playing)
}
