// Package poller drives the repeated fetch cycle for one pipeline session.
// Each Poller owns its timer and all fetched state; it stops arming timers
// exactly when the classifier reports a terminal status, retries transient
// errors forever, and recovers a missing session by creating a fresh one
// at most once per instance.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/designpipe/dp/internal/api"
	"github.com/designpipe/dp/internal/models"
	"github.com/designpipe/dp/internal/phase"
)

// DefaultInterval matches the backend's expected polling cadence.
const DefaultInterval = 2 * time.Second

// SessionAPI is the backend surface the poller needs.
type SessionAPI interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListJobs(ctx context.Context, sessionID string) ([]models.DesignJob, error)
	CreateSession(ctx context.Context) (string, error)
}

// Snapshot is a consistent read of everything a poller has fetched. Err is
// the last transient failure, cleared on the next successful cycle;
// pipeline *_failed statuses are data on the session, never an Err.
type Snapshot struct {
	SessionID string
	Session   *models.Session
	Jobs      []models.DesignJob
	Err       error
	Settled   bool
}

// Poller polls one session until it settles. Safe for concurrent use; all
// state is guarded by mu, and stale fetch results are discarded by sequence
// number so a Refetch racing an in-flight cycle can never double-apply.
type Poller struct {
	client   SessionAPI
	interval time.Duration

	onUpdate  func(Snapshot)
	onRecover func(oldID, newID string)

	mu        sync.Mutex
	ctx       context.Context
	sessionID string
	seq       uint64
	timer     *time.Timer
	session   *models.Session
	jobs      []models.DesignJob
	lastErr   error
	settled   bool
	recovered bool
	stopped   bool
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the polling interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithOnUpdate registers a callback invoked after every applied cycle,
// outside the poller's lock.
func WithOnUpdate(fn func(Snapshot)) Option {
	return func(p *Poller) { p.onUpdate = fn }
}

// WithOnRecover registers a callback invoked when a 404 triggers session
// re-creation, so the caller can persist the replacement id.
func WithOnRecover(fn func(oldID, newID string)) Option {
	return func(p *Poller) { p.onRecover = fn }
}

// New creates a poller for the given session. Start must be called to begin
// fetching.
func New(ctx context.Context, client SessionAPI, sessionID string, opts ...Option) *Poller {
	p := &Poller{
		client:    client,
		interval:  DefaultInterval,
		ctx:       ctx,
		sessionID: sessionID,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start performs the first fetch immediately.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	seq := p.issue()
	p.mu.Unlock()
	go p.cycle(seq)
}

// Refetch cancels any pending timer and fetches now. It re-enters the fetch
// loop even after the poller has settled, supporting manual retries.
func (p *Poller) Refetch() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.settled = false
	seq := p.issue()
	p.mu.Unlock()
	go p.cycle(seq)
}

// Stop cancels the pending timer synchronously. No new fetch fires after
// Stop returns, and an in-flight cycle's result is discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Snapshot returns the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: p.sessionID,
		Session:   p.session,
		Jobs:      p.jobs,
		Err:       p.lastErr,
		Settled:   p.settled,
	}
}

// issue invalidates any pending timer and outstanding cycle, returning the
// new sequence number. Caller holds mu.
func (p *Poller) issue() uint64 {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.seq++
	return p.seq
}

// arm schedules the next cycle. Caller holds mu.
func (p *Poller) arm() {
	p.timer = time.AfterFunc(p.interval, func() {
		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			return
		}
		seq := p.issue()
		p.mu.Unlock()
		p.cycle(seq)
	})
}

// cycle performs one fetch-and-apply pass. The session and job fetches are
// issued concurrently and joined; the result only applies if this cycle is
// still the latest issued.
func (p *Poller) cycle(seq uint64) {
	p.mu.Lock()
	id := p.sessionID
	p.mu.Unlock()

	var (
		wg   sync.WaitGroup
		sess *models.Session
		jobs []models.DesignJob
		sErr error
		jErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sess, sErr = p.client.GetSession(p.ctx, id)
	}()
	go func() {
		defer wg.Done()
		jobs, jErr = p.client.ListJobs(p.ctx, id)
	}()
	wg.Wait()

	p.mu.Lock()
	if p.stopped || seq != p.seq {
		p.mu.Unlock()
		return
	}

	if sErr != nil && api.IsNotFound(sErr) && !p.recovered {
		// The session no longer exists. Create a replacement once; repeated
		// 404s after that surface as ordinary errors to avoid create-loops.
		p.recovered = true
		p.mu.Unlock()
		p.recoverSession(seq, id)
		return
	}

	switch {
	case sErr != nil:
		// Transient: keep the last good session, record the error, retry.
		p.lastErr = sErr
		p.arm()
	default:
		p.session = sess
		p.jobs = jobs
		p.lastErr = jErr
		if phase.Classify(sess.Status).Terminal {
			p.settled = true
		} else {
			p.arm()
		}
	}

	snap := p.snapshotLocked()
	cb := p.onUpdate
	p.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
}

func (p *Poller) recoverSession(seq uint64, oldID string) {
	newID, err := p.client.CreateSession(p.ctx)

	p.mu.Lock()
	if p.stopped || seq != p.seq {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.lastErr = err
		p.arm()
		snap := p.snapshotLocked()
		cb := p.onUpdate
		p.mu.Unlock()
		if cb != nil {
			cb(snap)
		}
		return
	}

	p.sessionID = newID
	p.session = nil
	p.jobs = nil
	p.lastErr = nil
	next := p.issue()
	cb := p.onRecover
	p.mu.Unlock()

	if cb != nil {
		cb(oldID, newID)
	}
	p.cycle(next)
}
