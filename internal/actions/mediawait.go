package actions

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
)

// Media types carried on the upload-completed feed.
const (
	MediaPicture = "picture"
	MediaVideo   = "video"
)

// eventMediaUploaded is the core event type announcing a completed
// media upload.
const eventMediaUploaded = "media_uploaded"

// MediaUpload is one observed upload-completed event, held until a
// waiting notification claims it or it ages out.
type MediaUpload struct {
	RuleID          string    `json:"ruleId"`
	RequestEventID  string    `json:"requestEventId"`
	UploadedEventID string    `json:"uploadedEventId"`
	MediaType       string    `json:"mediaType"`
	Timestamp       time.Time `json:"-"`
}

// MediaWaitOptions configures a MediaWaitList.
type MediaWaitOptions struct {
	// MaxEntries bounds each list; the oldest entry is dropped when
	// full. Defaults to 32.
	MaxEntries int

	// MaxAge prunes entries nobody claimed. Defaults to 5 minutes.
	MaxAge time.Duration
}

// MediaWaitList correlates asynchronous upload-completed events with
// notification actions waiting to attach them.
//
// Two bounded, age-pruned lists (picture, video) hold recently observed
// uploads keyed by (ruleId, requestEventId). Producers call Observe,
// typically via the broker subscription Attach installs; consumers call
// WaitFor, which blocks on a condition variable until a matching entry
// arrives or the timeout elapses. This is a rendezvous, not a queue:
// waiters with different keys are satisfied independently by the same
// producer stream.
type MediaWaitList struct {
	mu   sync.Mutex
	cond *sync.Cond

	pictures []MediaUpload
	videos   []MediaUpload

	opts   MediaWaitOptions
	logger Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewMediaWaitList creates an empty wait list.
func NewMediaWaitList(opts MediaWaitOptions) *MediaWaitList {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 32
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 5 * time.Minute
	}

	l := &MediaWaitList{opts: opts, logger: noopLogger{}, now: time.Now}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// SetLogger sets the logger for the wait list.
func (l *MediaWaitList) SetLogger(logger Logger) {
	l.logger = logger
}

// Attach subscribes the wait list to the upload-completed event feed.
func (l *MediaWaitList) Attach(bus Bus) error {
	topic := mqtt.Topics{}.CoreEvent(eventMediaUploaded)
	return bus.Subscribe(topic, 1, func(_ string, payload []byte) error {
		var u MediaUpload
		if err := json.Unmarshal(payload, &u); err != nil {
			return err
		}
		l.Observe(u)
		return nil
	})
}

// Observe records an upload-completed event and wakes any waiters.
// Events with an unknown media type are dropped.
func (l *MediaWaitList) Observe(u MediaUpload) {
	if u.MediaType != MediaPicture && u.MediaType != MediaVideo {
		l.logger.Warn("upload event with unknown media type dropped", "media_type", u.MediaType)
		return
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = l.now()
	}

	l.mu.Lock()
	list := l.listFor(u.MediaType)
	*list = pruneAged(*list, l.now().Add(-l.opts.MaxAge))
	if len(*list) >= l.opts.MaxEntries {
		*list = (*list)[1:]
	}
	*list = append(*list, u)
	l.mu.Unlock()

	l.cond.Broadcast()
}

// WaitFor blocks until an upload matching (mediaType, ruleID, eventID)
// is observed or the timeout elapses. A matched entry is removed and
// returned; timeout is reported as ok=false, a normal outcome.
func (l *MediaWaitList) WaitFor(mediaType, ruleID, eventID string, timeout time.Duration) (MediaUpload, bool) {
	deadline := l.now().Add(timeout)

	// Wake all waiters at the deadline so the loop below can observe
	// that its time is up. The lock round trip orders the broadcast
	// after any waiter already past its deadline check.
	timer := time.AfterFunc(timeout, func() {
		l.mu.Lock()
		l.mu.Unlock() //nolint:staticcheck // empty critical section is the ordering barrier
		l.cond.Broadcast()
	})
	defer timer.Stop()

	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		if u, ok := l.take(mediaType, ruleID, eventID); ok {
			return u, true
		}
		if !l.now().Before(deadline) {
			return MediaUpload{}, false
		}
		l.cond.Wait()
	}
}

// Len reports the number of pending entries for a media type.
func (l *MediaWaitList) Len(mediaType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(*l.listFor(mediaType))
}

// listFor selects the list for a media type. Callers hold l.mu.
func (l *MediaWaitList) listFor(mediaType string) *[]MediaUpload {
	if mediaType == MediaVideo {
		return &l.videos
	}
	return &l.pictures
}

// take removes and returns the first matching entry. Callers hold l.mu.
func (l *MediaWaitList) take(mediaType, ruleID, eventID string) (MediaUpload, bool) {
	list := l.listFor(mediaType)
	for i, u := range *list {
		if u.RuleID == ruleID && u.RequestEventID == eventID {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return u, true
		}
	}
	return MediaUpload{}, false
}

// pruneAged drops entries observed before the cutoff.
func pruneAged(list []MediaUpload, cutoff time.Time) []MediaUpload {
	kept := list[:0]
	for _, u := range list {
		if u.Timestamp.After(cutoff) {
			kept = append(kept, u)
		}
	}
	return kept
}
