// internal/playback/feed.go
package playback

import (
	"math"
	"sync"

	"github.com/google/uuid"
)

type feedEntry struct {
	controller *Controller
	ratio      float64
	top        float64
	height     float64
}

// Feed keeps at most one video playing: the visible entry whose centre is
// nearest the viewport centre.
type Feed struct {
	mu             sync.Mutex
	viewportHeight float64
	entries        map[uuid.UUID]*feedEntry
	active         uuid.UUID
}

func NewFeed(viewportHeight float64) *Feed {
	return &Feed{
		viewportHeight: viewportHeight,
		entries:        make(map[uuid.UUID]*feedEntry),
	}
}

func (f *Feed) Add(c *Controller) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[c.VideoID()] = &feedEntry{controller: c}
}

// Remove unmounts an entry and cancels its pending view.
func (f *Feed) Remove(videoID uuid.UUID) {
	f.mu.Lock()
	entry, ok := f.entries[videoID]
	if ok {
		delete(f.entries, videoID)
	}
	wasActive := f.active == videoID
	if wasActive {
		f.active = uuid.Nil
	}
	f.mu.Unlock()

	if !ok {
		return
	}
	if wasActive {
		entry.controller.OnLeaveViewport()
	}
	entry.controller.Close()
	f.reconcile()
}

// Update records the latest geometry of an entry relative to the viewport
// and re-picks the active video.
func (f *Feed) Update(videoID uuid.UUID, ratio, top, height float64) {
	f.mu.Lock()
	entry, ok := f.entries[videoID]
	if ok {
		entry.ratio = ratio
		entry.top = top
		entry.height = height
	}
	f.mu.Unlock()

	if ok {
		f.reconcile()
	}
}

func (f *Feed) SetViewportHeight(height float64) {
	f.mu.Lock()
	f.viewportHeight = height
	f.mu.Unlock()
	f.reconcile()
}

func (f *Feed) Active() uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *Feed) reconcile() {
	f.mu.Lock()
	centre := f.viewportHeight / 2
	best := uuid.Nil
	var bestEntry *feedEntry
	bestDistance := math.Inf(1)
	for id, entry := range f.entries {
		if entry.ratio < VisibilityThreshold {
			continue
		}
		distance := math.Abs(entry.top + entry.height/2 - centre)
		if distance < bestDistance || (distance == bestDistance && f.breaksTie(id, entry, best, bestEntry)) {
			best = id
			bestEntry = entry
			bestDistance = distance
		}
	}

	previous := f.active
	if best == previous {
		f.mu.Unlock()
		return
	}
	f.active = best

	var leaving, entering *Controller
	if e, ok := f.entries[previous]; ok {
		leaving = e.controller
	}
	if e, ok := f.entries[best]; ok {
		entering = e.controller
	}
	f.mu.Unlock()

	if leaving != nil {
		leaving.OnLeaveViewport()
	}
	if entering != nil {
		entering.OnEnterViewport()
	}
}

// breaksTie orders entries equally far from the centre: the playing video
// keeps playing, then the higher entry wins, then the smaller id.
func (f *Feed) breaksTie(id uuid.UUID, entry *feedEntry, best uuid.UUID, bestEntry *feedEntry) bool {
	switch {
	case id == f.active:
		return true
	case best == f.active:
		return false
	case entry.top != bestEntry.top:
		return entry.top < bestEntry.top
	default:
		return id.String() < best.String()
	}
}
