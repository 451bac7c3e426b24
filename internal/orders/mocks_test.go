package orders

import (
	"context"
	"fmt"
	"sort"

	"github.com/fabtrack/fabtrack/internal/authz"
	"github.com/fabtrack/fabtrack/internal/directory"
	"github.com/fabtrack/fabtrack/internal/sequence"
	"github.com/fabtrack/fabtrack/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	orders     map[int64]*Order
	counter    int64
	nextID     int64
	nextLineID int64

	// locked holds the order ids row-locked by the running transaction.
	locked map[int64]bool

	// Error injection
	insertLineErr   error
	updateStatusErr error

	// beforeDelete runs between the service's checks and the delete statement.
	beforeDelete func()
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orders:     make(map[int64]*Order),
		nextID:     1,
		nextLineID: 1,
		locked:     make(map[int64]bool),
	}
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	return &c
}

// WithTx restores the previous state when fn fails, like a rolled back transaction.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	snapshot := make(map[int64]*Order, len(m.orders))
	for id, o := range m.orders {
		snapshot[id] = cloneOrder(o)
	}
	counter, nextID, nextLineID := m.counter, m.nextID, m.nextLineID
	m.locked = make(map[int64]bool)
	defer func() { m.locked = make(map[int64]bool) }()

	if err := fn(ctx, m); err != nil {
		m.orders = snapshot
		m.counter, m.nextID, m.nextLineID = counter, nextID, nextLineID
		return err
	}
	return nil
}

func (m *mockRepository) NextCode(_ context.Context, prefix string) (string, error) {
	m.counter++
	return sequence.Format(prefix, m.counter, sequence.DefaultPadWidth), nil
}

func (m *mockRepository) Create(_ context.Context, o Order) (int64, error) {
	o.ID = m.nextID
	m.nextID++
	o.Lines = nil
	m.orders[o.ID] = &o
	return o.ID, nil
}

func (m *mockRepository) InsertLine(_ context.Context, l Line) (int64, error) {
	if m.insertLineErr != nil {
		return 0, m.insertLineErr
	}
	o, ok := m.orders[l.OrderID]
	if !ok {
		return 0, fmt.Errorf("%w: order %d", shared.ErrValidation, l.OrderID)
	}
	for _, existing := range o.Lines {
		if existing.LineNo == l.LineNo {
			return 0, fmt.Errorf("%w: duplicate line number", shared.ErrConflict)
		}
	}
	l.ID = m.nextLineID
	m.nextLineID++
	o.Lines = append(o.Lines, l)
	sort.Slice(o.Lines, func(i, j int) bool { return o.Lines[i].LineNo < o.Lines[j].LineNo })
	return l.ID, nil
}

func (m *mockRepository) NextLineNo(_ context.Context, orderID int64) (int, error) {
	if !m.locked[orderID] {
		return 0, fmt.Errorf("line number read for order %d without holding its row lock", orderID)
	}
	highest := 0
	for _, l := range m.orders[orderID].Lines {
		if l.LineNo > highest {
			highest = l.LineNo
		}
	}
	return highest + 1, nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	return cloneOrder(o), nil
}

func (m *mockRepository) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	o, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.locked[id] = true
	return o, nil
}

func (m *mockRepository) Update(_ context.Context, id int64, req UpdateOrderRequest) error {
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	if req.CustomerID != nil {
		o.CustomerID = *req.CustomerID
	}
	if req.FabricatorID != nil {
		o.FabricatorID = req.FabricatorID
	}
	if req.InstallerID != nil {
		o.InstallerID = req.InstallerID
	}
	if req.Requester != nil {
		o.Requester = *req.Requester
	}
	if req.Supervisor != nil {
		o.Supervisor = *req.Supervisor
	}
	if req.StartDate != nil {
		o.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		o.EndDate = req.EndDate
	}
	if req.Notes != nil {
		o.Notes = *req.Notes
	}
	o.Version++
	return nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, id int64, from, to Status) error {
	if m.updateStatusErr != nil {
		return m.updateStatusErr
	}
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return ErrStatusChanged
	}
	o.Status = to
	o.Version++
	return nil
}

func (m *mockRepository) UpdateLine(_ context.Context, l Line) error {
	o := m.orders[l.OrderID]
	for i := range o.Lines {
		if o.Lines[i].ID == l.ID {
			o.Lines[i] = l
			return nil
		}
	}
	return ErrLineNotFound
}

func (m *mockRepository) DeleteLine(_ context.Context, orderID, lineID int64) error {
	o := m.orders[orderID]
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			o.Lines = append(o.Lines[:i], o.Lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

func (m *mockRepository) Touch(_ context.Context, id int64) error {
	m.orders[id].Version++
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	if m.beforeDelete != nil {
		m.beforeDelete()
	}
	o, ok := m.orders[id]
	if !ok || !o.Status.CanDelete() {
		return ErrCannotDelete
	}
	delete(m.orders, id)
	return nil
}

func (m *mockRepository) SetActive(_ context.Context, id int64, active bool) error {
	m.orders[id].Active = active
	return nil
}

func (m *mockRepository) List(_ context.Context, f ListFilter) ([]Order, int, error) {
	var out []Order
	for _, o := range m.orders {
		if !f.Scope.Includes(*o) {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockRepository) CountByStatus(_ context.Context, scope Scope) (map[Status]int, error) {
	counts := make(map[Status]int)
	for _, o := range m.orders {
		if o.Active && scope.Includes(*o) {
			counts[o.Status]++
		}
	}
	return counts, nil
}

// ============================================================================
// COLLABORATORS
// ============================================================================

type fakeDirectory struct {
	customers map[int64]directory.Customer
	members   map[int64]directory.Member
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		customers: map[int64]directory.Customer{
			10: {ID: 10, Name: "Hotel Miramar", Active: true},
			11: {ID: 11, Name: "Closed Account", Active: false},
		},
		members: map[int64]directory.Member{
			1: {ID: 1, FullName: "Fabricator One", Kind: directory.KindFabricator, Active: true},
			2: {ID: 2, FullName: "Fabricator Two", Kind: directory.KindFabricator, Active: true},
			3: {ID: 3, FullName: "Installer One", Kind: directory.KindInstaller, Active: true},
		},
	}
}

func (d *fakeDirectory) GetCustomer(_ context.Context, id int64) (directory.Customer, error) {
	c, ok := d.customers[id]
	if !ok {
		return directory.Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return c, nil
}

func (d *fakeDirectory) GetMember(_ context.Context, id int64) (directory.Member, error) {
	m, ok := d.members[id]
	if !ok {
		return directory.Member{}, fmt.Errorf("%w: workforce member %d", shared.ErrNotFound, id)
	}
	return m, nil
}

type recordingNotifier struct {
	events []Event
}

func (n *recordingNotifier) OrderChanged(_ context.Context, ev Event) {
	n.events = append(n.events, ev)
}

type recordingAuditor struct {
	logs []shared.AuditLog
	err  error
}

func (a *recordingAuditor) Record(_ context.Context, log shared.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) TransitionAttempted(_, target, outcome string) {
	o.outcomes = append(o.outcomes, target+":"+outcome)
}

// ============================================================================
// ACTORS
// ============================================================================

func int64Ptr(v int64) *int64 { return &v }

func adminActor() authz.Actor {
	return authz.NewActor(1, []authz.RoleClass{authz.RoleAdmin}, []string{shared.CapAdminOverride}, nil)
}

func commercialActor(userID int64) authz.Actor {
	return authz.NewActor(userID, []authz.RoleClass{authz.RoleCommercial}, []string{
		shared.CapOrderView, shared.CapOrderCreate, shared.CapOrderEdit, shared.CapOrderDelete,
		shared.CapOrderCancel,
	}, nil)
}

func fabricatorActor(userID, memberID int64) authz.Actor {
	return authz.NewActor(userID, []authz.RoleClass{authz.RoleWorkforce}, []string{
		shared.CapOrderView, shared.CapOrderStartFabrication, shared.CapOrderMarkReady,
	}, int64Ptr(memberID))
}

func deletingSupervisor(userID int64) authz.Actor {
	return authz.NewActor(userID, []authz.RoleClass{authz.RoleSupervisor}, []string{
		shared.CapOrderView, shared.CapOrderDelete,
	}, nil)
}

func supervisorActor(userID int64) authz.Actor {
	return authz.NewActor(userID, []authz.RoleClass{authz.RoleSupervisor}, []string{
		shared.CapOrderView, shared.CapOrderApprove, shared.CapOrderReject, shared.CapOrderComplete,
	}, nil)
}
