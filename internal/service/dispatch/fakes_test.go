package dispatch

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
)

var errStore = errors.New("store unavailable")

func testLogger() logger.Logger {
	return logger.New(io.Discard, "dispatch-test", logger.LevelError)
}

type fakeGeo struct {
	cells map[models.Cell][]int64
	err   error
	calls int
}

func newFakeGeo() *fakeGeo {
	return &fakeGeo{cells: map[models.Cell][]int64{}}
}

func (g *fakeGeo) put(c models.Cell, ids ...int64) {
	g.cells[c] = append(g.cells[c], ids...)
}

func (g *fakeGeo) MembersOfCells(_ context.Context, cells []models.Cell) ([]int64, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	var ids []int64
	for _, c := range cells {
		ids = append(ids, g.cells[c]...)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

type fakeClaims struct {
	mu       sync.Mutex
	locks    map[int64]string
	attempts []int64
	err      error
}

func newFakeClaims() *fakeClaims {
	return &fakeClaims{locks: map[int64]string{}}
}

func (c *fakeClaims) TryClaim(_ context.Context, driverID int64, rideID string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempts = append(c.attempts, driverID)
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.locks[driverID]; ok {
		return false, nil
	}
	c.locks[driverID] = rideID
	return true, nil
}

func (c *fakeClaims) ReleaseIfOwnedBy(_ context.Context, driverID int64, rideID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return false, c.err
	}
	if c.locks[driverID] != rideID {
		return false, nil
	}
	delete(c.locks, driverID)
	return true, nil
}

func (c *fakeClaims) owner(driverID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.locks[driverID]
	return r, ok
}

type fakeProposals struct {
	mu          sync.Mutex
	pending     map[string]models.Proposal
	snapshots   map[string]models.RideEvent
	registerErr error
	popErr      error
	snapErr     error
	requeued    []models.Proposal
	parked      []models.RideEvent
	parkErr     error
}

func newFakeProposals() *fakeProposals {
	return &fakeProposals{pending: map[string]models.Proposal{}, snapshots: map[string]models.RideEvent{}}
}

func (p *fakeProposals) Register(_ context.Context, proposal models.Proposal, e models.RideEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.registerErr != nil {
		return p.registerErr
	}
	p.pending[proposal.Member()] = proposal
	p.snapshots[proposal.RideID] = e
	return nil
}

func (p *fakeProposals) PopExpired(_ context.Context, now time.Time, limit int) ([]models.Proposal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.popErr != nil {
		return nil, p.popErr
	}
	var out []models.Proposal
	for k, v := range p.pending {
		if len(out) == limit {
			break
		}
		if !v.Deadline.After(now) {
			out = append(out, v)
			delete(p.pending, k)
		}
	}
	return out, nil
}

func (p *fakeProposals) Requeue(_ context.Context, proposal models.Proposal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requeued = append(p.requeued, proposal)
	p.pending[proposal.Member()] = proposal
	return nil
}

func (p *fakeProposals) Snapshot(_ context.Context, rideID string) (models.RideEvent, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snapErr != nil {
		return models.RideEvent{}, false, p.snapErr
	}
	e, ok := p.snapshots[rideID]
	return e, ok, nil
}

func (p *fakeProposals) Forget(_ context.Context, rideID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.snapshots, rideID)
	return nil
}

func (p *fakeProposals) Park(_ context.Context, e models.RideEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.parkErr != nil {
		return p.parkErr
	}
	p.parked = append(p.parked, e)
	return nil
}

func (p *fakeProposals) PopParked(_ context.Context, limit int) ([]models.RideEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := min(limit, len(p.parked))
	out := slices.Clone(p.parked[:n])
	p.parked = p.parked[n:]
	return out, nil
}

func (p *fakeProposals) parkedEvents() []models.RideEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.parked)
}

// fakeLog serves scripted deliveries. An unacknowledged delivery is served again.
type fakeLog struct {
	mu         sync.Mutex
	queue      []models.Delivery
	acked      []string
	published  []models.RideEvent
	publishErr error
	ensured    int
	reads      int
}

func (l *fakeLog) Ensure(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensured++
	return nil
}

func (l *fakeLog) Read(ctx context.Context) (models.Delivery, error) {
	l.mu.Lock()
	l.reads++
	if len(l.queue) > 0 {
		d := l.queue[0]
		l.mu.Unlock()
		return d, nil
	}
	l.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-time.After(time.Millisecond):
	}
	return models.Delivery{}, types.ErrNoEvent
}

func (l *fakeLog) Ack(_ context.Context, d models.Delivery) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.acked = append(l.acked, d.ID)
	if len(l.queue) > 0 && l.queue[0].ID == d.ID {
		l.queue = l.queue[1:]
	}
	return nil
}

func (l *fakeLog) Publish(_ context.Context, e models.RideEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.publishErr != nil {
		return l.publishErr
	}
	l.published = append(l.published, e)
	return nil
}

func (l *fakeLog) snapshot() (acked []string, published []models.RideEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.acked), slices.Clone(l.published)
}

type sentNotification struct {
	driverID int64
	msg      models.ProposalNotification
}

type fakeSink struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (s *fakeSink) Send(_ context.Context, driverID int64, msg models.ProposalNotification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false, s.err
	}
	s.sent = append(s.sent, sentNotification{driverID: driverID, msg: msg})
	return true, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []models.DispatchOutcome
	err      error
}

func (r *fakeRecorder) Record(_ context.Context, o models.DispatchOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes = append(r.outcomes, o)
	return r.err
}

func (r *fakeRecorder) kinds() []types.OutcomeType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.OutcomeType, 0, len(r.outcomes))
	for _, o := range r.outcomes {
		out = append(out, o.Type)
	}
	return out
}
