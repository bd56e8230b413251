package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhisek/wordiz/internal/progress"
	"github.com/abhisek/wordiz/internal/quiz"
)

// PollerState is the lifecycle state of one polling run.
type PollerState int

const (
	PollerIdle PollerState = iota
	PollerPolling
	PollerFallback // one-shot history resume attempted
	PollerStopped
)

// HistoryResumer is the slice of the progress store the fallback path
// needs.
type HistoryResumer interface {
	GetForResume(ctx context.Context, id string) (*progress.SessionSnapshot, error)
}

// Poller refreshes the tracker on a fixed interval until every section
// is ready or the poller is torn down. At most one request is in flight
// per session, and a response arriving after teardown is discarded
// without touching shared state: every mutation is guarded by an epoch
// captured when the run started.
//
// When GetSession reports the session expired and a linked history id
// exists, the poller attempts exactly one resume from the persisted
// snapshot. Success hands the snapshot to OnResume and stops polling;
// failure surfaces a HardResumeFailure and stops polling.
type Poller struct {
	svc      Service
	tracker  *Tracker
	history  HistoryResumer
	interval time.Duration

	onUpdate func()
	onResume func(*progress.SessionSnapshot)

	mu            sync.Mutex
	epoch         int
	sessionID     string
	historyID     string
	fallbackTried bool
	state         PollerState
	lastErr       error
	cancel        context.CancelFunc
}

// NewPoller creates a poller over the given service and tracker.
// history may be nil when no fallback target exists.
func NewPoller(svc Service, tracker *Tracker, history HistoryResumer, interval time.Duration) *Poller {
	return &Poller{
		svc:      svc,
		tracker:  tracker,
		history:  history,
		interval: interval,
		state:    PollerIdle,
	}
}

// OnUpdate registers a callback invoked after each successfully applied
// snapshot. Set before Start.
func (p *Poller) OnUpdate(fn func()) { p.onUpdate = fn }

// OnResume registers a callback invoked when the expiry fallback
// successfully loads a history snapshot. Set before Start.
func (p *Poller) OnResume(fn func(*progress.SessionSnapshot)) { p.onResume = fn }

// Start begins polling sessionID. historyID links the persisted
// snapshot used by the expiry fallback; empty disables the fallback.
// Starting a different session resets the fallback-attempted flag.
func (p *Poller) Start(sessionID, historyID string) {
	p.mu.Lock()

	if p.cancel != nil {
		p.cancel()
	}
	p.epoch++
	if sessionID != p.sessionID {
		p.fallbackTried = false
	}
	p.sessionID = sessionID
	p.historyID = historyID
	p.state = PollerPolling
	p.lastErr = nil

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	epoch := p.epoch
	p.mu.Unlock()

	go p.loop(ctx, epoch, sessionID, historyID)
}

// Stop tears the poller down. Any in-flight response becomes a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.epoch++
	p.state = PollerStopped
}

// State returns the current poller state.
func (p *Poller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastError returns the most recent poll error, nil after any success.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// FallbackTried reports whether the one-shot resume has been spent for
// the current session.
func (p *Poller) FallbackTried() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fallbackTried
}

func (p *Poller) loop(ctx context.Context, epoch int, sessionID, historyID string) {
	for {
		sess, err := p.svc.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				p.handleExpired(ctx, epoch, historyID, err)
				return
			}
			if ctx.Err() != nil {
				return
			}
			p.setTransient(epoch, err)
		} else if p.applySnapshot(epoch, sess) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

// applySnapshot folds one successful poll into the tracker. Returns
// true when the run is finished (all sections ready, or superseded).
func (p *Poller) applySnapshot(epoch int, sess *quiz.GenerationSession) bool {
	p.mu.Lock()
	if epoch != p.epoch {
		p.mu.Unlock()
		return true
	}
	p.tracker.Apply(sess)
	p.lastErr = nil
	done := p.tracker.AllReady()
	if done {
		p.state = PollerStopped
		if p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
	}
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if onUpdate != nil {
		onUpdate()
	}
	return done
}

func (p *Poller) setTransient(epoch int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return
	}
	p.lastErr = &TransientError{Err: err}
}

// handleExpired runs the one-shot history-resume fallback. Polling ends
// here either way: resumed sessions replay from the snapshot and fresh
// generation is no longer expected.
func (p *Poller) handleExpired(ctx context.Context, epoch int, historyID string, cause error) {
	p.mu.Lock()
	if epoch != p.epoch {
		p.mu.Unlock()
		return
	}
	if p.history == nil || historyID == "" || p.fallbackTried {
		p.lastErr = &HardResumeFailure{HistoryID: historyID, Err: cause}
		p.finishLocked()
		p.mu.Unlock()
		return
	}
	p.fallbackTried = true
	p.state = PollerFallback
	onResume := p.onResume
	p.mu.Unlock()

	snap, err := p.history.GetForResume(ctx, historyID)

	p.mu.Lock()
	if epoch != p.epoch {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.lastErr = &HardResumeFailure{HistoryID: historyID, Err: err}
		p.finishLocked()
		p.mu.Unlock()
		return
	}
	p.lastErr = nil
	p.finishLocked()
	p.mu.Unlock()

	if onResume != nil {
		onResume(snap)
	}
}

func (p *Poller) finishLocked() {
	p.state = PollerStopped
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
