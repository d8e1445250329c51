package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/audit"
	"github.com/spec-kit/helpdesk-dispatch/internal/broadcast"
	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/events"
	"github.com/spec-kit/helpdesk-dispatch/internal/notify"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/scope"
	"github.com/spec-kit/helpdesk-dispatch/internal/settings"
	"github.com/spec-kit/helpdesk-dispatch/internal/sla"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeTickets struct {
	mu           sync.Mutex
	rows         map[string]*domain.Ticket
	beforeUpdate func(id string)
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{rows: make(map[string]*domain.Ticket)}
}

func (f *fakeTickets) Create(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[t.ID] = t.Clone()
	return nil
}

func (f *fakeTickets) Update(_ context.Context, t *domain.Ticket) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate(t.ID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rows[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != t.Version {
		return repository.ErrVersionConflict
	}
	t.Version++
	next := t.Clone()
	next.Comments = stored.Comments
	next.WorkLog = stored.WorkLog
	f.rows[t.ID] = next
	return nil
}

// bump simulates a concurrent writer.
func (f *fakeTickets) bump(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id].Version++
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t.Clone(), nil
}

func (f *fakeTickets) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pred := scope.Predicate{CompanyID: filter.CompanyID, RequesterID: filter.RequesterID, TechnicianID: filter.TechnicianID}
	var out []domain.Ticket
	for _, t := range f.rows {
		if pred.Matches(t) {
			out = append(out, *t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTickets) AppendComment(_ context.Context, c *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[c.TicketID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Comments = append(t.Comments, *c)
	return nil
}

func (f *fakeTickets) AppendWorkLog(_ context.Context, w *domain.WorkLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[w.TicketID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.WorkLog = append(t.WorkLog, *w)
	return nil
}

func (f *fakeTickets) CountActiveByTechnician(_ context.Context, companyID string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, t := range f.rows {
		if t.CompanyID != companyID || !t.HasTechnician() {
			continue
		}
		if t.Status == domain.TicketStatusAssigned || t.Status == domain.TicketStatusInProgress {
			counts[*t.TechnicianID]++
		}
	}
	return counts, nil
}

func (f *fakeTickets) Stats(ctx context.Context, filter repository.TicketFilter, now time.Time) (*domain.TicketStats, error) {
	tickets, _ := f.ListWithFilter(ctx, filter)
	stats := &domain.TicketStats{ByStatus: map[domain.TicketStatus]int{}}
	stats.OpenBreached = sla.OpenBreached(tickets, now)
	sum, n := 0, 0
	for _, t := range tickets {
		stats.ByStatus[t.Status]++
		stats.Total++
		if !t.IsOpen() && t.SLABreached {
			stats.ResolvedBreached++
		}
		if t.Rating != nil {
			sum += *t.Rating
			n++
		}
	}
	if n > 0 {
		avg := float64(sum) / float64(n)
		stats.AverageRating = &avg
	}
	return stats, nil
}

func (f *fakeTickets) put(t *domain.Ticket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.Version == 0 {
		t.Version = 1
	}
	f.rows[t.ID] = t.Clone()
}

type fakeUsers struct {
	mu    sync.Mutex
	order []string
	rows  map[string]*domain.User
}

func newFakeUsers(users ...domain.User) *fakeUsers {
	f := &fakeUsers{rows: map[string]*domain.User{}}
	for i := range users {
		_ = f.Create(context.Background(), &users[i])
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.rows[u.ID] = &cp
	f.order = append(f.order, u.ID)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) ListTechnicians(_ context.Context, pool string) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, id := range f.order {
		u := f.rows[id]
		if u.Role == domain.RoleTechnician && u.Active && (pool == "" || u.CompanyID == pool) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) CountByRole(_ context.Context, role domain.Role) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.rows {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

type fakeNotifications struct {
	mu   sync.Mutex
	rows []domain.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *n)
	return nil
}

// ListActive mirrors the SQL: audience match first, then newest-first limit.
func (f *fakeNotifications) ListActive(_ context.Context, recipient domain.Actor, now time.Time, limit int) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for i := len(f.rows) - 1; i >= 0; i-- {
		n := f.rows[i]
		if !n.ExpiresAt.After(now) || !broadcast.Addressed(n.Target, recipient) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeNotifications) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var removed int64
	for _, n := range f.rows {
		if n.Expired(now) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	f.rows = kept
	return removed, nil
}

type memorySink struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
	err     error
}

func (s *memorySink) Append(_ context.Context, e *domain.AuditLogEntry) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *memorySink) actions() []domain.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditAction, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Action
	}
	return out
}

type emitted struct {
	Channel broadcast.Channel
	Event   string
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []emitted
	err   error
}

func (b *fakeBroadcaster) Emit(_ context.Context, ch broadcast.Channel, event string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, emitted{Channel: ch, Event: event})
	return b.err
}

func (b *fakeBroadcaster) emitted() []emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]emitted(nil), b.calls...)
}

type delivery struct {
	Channel string
	To      string
	Msg     notify.Message
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []delivery
	err  error
}

func (n *fakeNotifier) SendEmail(_ context.Context, u *domain.User, msg notify.Message) error {
	return n.record("email", u, msg)
}

func (n *fakeNotifier) SendSMS(_ context.Context, u *domain.User, msg notify.Message) error {
	return n.record("sms", u, msg)
}

func (n *fakeNotifier) Page(_ context.Context, msg notify.Message) error {
	return n.record("page", &domain.User{}, msg)
}

func (n *fakeNotifier) record(channel string, u *domain.User, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, delivery{Channel: channel, To: u.ID, Msg: msg})
	return n.err
}

func (n *fakeNotifier) deliveries(channel string) []delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []delivery
	for _, d := range n.sent {
		if d.Channel == channel {
			out = append(out, d)
		}
	}
	return out
}

// harness wires every service against in-memory fakes.
type harness struct {
	clock         *clock.FakeClock
	tickets       *fakeTickets
	users         *fakeUsers
	notifications *fakeNotifications
	sink          *memorySink
	broadcaster   *fakeBroadcaster
	notifier      *fakeNotifier
	recorder      *audit.Recorder
	dispatcher    *events.AsyncDispatcher
	snapshot      settings.Snapshot

	ticketSvc       *TicketService
	assignSvc       *AssignmentService
	notificationSvc *NotificationService
	dashboardSvc    *DashboardService
}

type harnessOption func(*harness)

func withSnapshot(s settings.Snapshot) harnessOption {
	return func(h *harness) { h.snapshot = s }
}

func newHarness(users []domain.User, opts ...harnessOption) *harness {
	h := &harness{
		clock:         clock.Fake(t0),
		tickets:       newFakeTickets(),
		users:         newFakeUsers(users...),
		notifications: &fakeNotifications{},
		sink:          &memorySink{},
		broadcaster:   &fakeBroadcaster{},
		notifier:      &fakeNotifier{},
		snapshot:      settings.Defaults(),
	}
	for _, opt := range opts {
		opt(h)
	}
	logger := zap.NewNop()
	h.recorder = audit.NewRecorder(h.sink, logger, h.clock)
	h.dispatcher = events.NewAsyncDispatcher(logger)
	reader := settings.Static(h.snapshot)

	h.assignSvc = NewAssignmentService(AssignmentDependencies{
		TicketRepo:              h.tickets,
		UserRepo:                h.users,
		TechnicianPoolCompanyID: "pool",
		Auditor:                 h.recorder,
		Dispatcher:              h.dispatcher,
		Clock:                   h.clock,
		Logger:                  logger,
	})
	h.ticketSvc = NewTicketService(TicketDependencies{
		TicketRepo: h.tickets,
		Assigner:   h.assignSvc,
		Settings:   reader,
		Auditor:    h.recorder,
		Dispatcher: h.dispatcher,
		Clock:      h.clock,
		Logger:     logger,
	})
	h.notificationSvc = NewNotificationService(NotificationDependencies{
		NotificationRepo: h.notifications,
		UserRepo:         h.users,
		Broadcaster:      h.broadcaster,
		Notifier:         h.notifier,
		Pager:            h.notifier,
		Settings:         reader,
		Auditor:          h.recorder,
		Dispatcher:       h.dispatcher,
		Clock:            h.clock,
		Retention:        7 * 24 * time.Hour,
		Logger:           logger,
	})
	h.notificationSvc.RegisterHandlers(h.dispatcher)
	h.dashboardSvc = NewDashboardService(h.tickets, h.clock)
	return h
}

// settle waits for every asynchronous side effect.
func (h *harness) settle() {
	h.dispatcher.Wait()
	h.recorder.Wait()
}

var errDown = errors.New("downstream unavailable")

func actorOf(u domain.User) domain.Actor {
	return domain.ActorFromUser(&u, "10.0.0.1", "test")
}

var (
	employee   = domain.User{ID: "emp-1", Role: domain.RoleEmployee, CompanyID: "acme", Email: "emp@acme.test", Active: true}
	outsider   = domain.User{ID: "emp-2", Role: domain.RoleEmployee, CompanyID: "globex", Email: "emp@globex.test", Active: true}
	admin      = domain.User{ID: "adm-1", Role: domain.RoleAdmin, CompanyID: "acme", Email: "admin@acme.test", Active: true}
	superAdmin = domain.User{ID: "sup-1", Role: domain.RoleSuperAdmin, CompanyID: "acme", Active: true}
	sysAdmin   = domain.User{ID: "sys-1", Role: domain.RoleSystemAdmin, CompanyID: "pool", Active: true}
	techA      = domain.User{ID: "tech-a", Role: domain.RoleTechnician, CompanyID: "pool", IsAvailable: true, Department: "Software", Email: "a@pool.test", Phone: "+100", Active: true}
	techB      = domain.User{ID: "tech-b", Role: domain.RoleTechnician, CompanyID: "pool", IsAvailable: false, Department: "Building", Email: "b@pool.test", Phone: "+200", Active: true}
)

func defaultUsers() []domain.User {
	return []domain.User{employee, outsider, admin, superAdmin, sysAdmin, techB, techA}
}
