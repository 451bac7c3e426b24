package quotations

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fabtrack/fabtrack/internal/authz"
	"github.com/fabtrack/fabtrack/internal/catalog"
	"github.com/fabtrack/fabtrack/internal/directory"
	"github.com/fabtrack/fabtrack/internal/sequence"
	"github.com/fabtrack/fabtrack/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockState struct {
	headers map[int64]Quotation
	groups  map[int64]Group
	items   map[int64]Item
	counter int64
	nextID  int64
}

func (s mockState) clone() mockState {
	c := s
	c.headers = maps.Clone(s.headers)
	c.groups = maps.Clone(s.groups)
	c.items = maps.Clone(s.items)
	return c
}

type mockRepository struct {
	mockState

	// writes counts mutating calls per quotation id
	writes map[int64]int

	// locked holds the headers row-locked by the running transaction; lockCalls records every lock taken.
	locked    map[int64]bool
	lockCalls []int64

	// Error injection
	insertItemErr error
	setTotalsCall int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		mockState: mockState{
			headers: make(map[int64]Quotation),
			groups:  make(map[int64]Group),
			items:   make(map[int64]Item),
			nextID:  1,
		},
		writes: make(map[int64]int),
		locked: make(map[int64]bool),
	}
}

func (m *mockRepository) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	snapshot := m.mockState.clone()
	m.locked = make(map[int64]bool)
	defer func() { m.locked = make(map[int64]bool) }()
	if err := fn(ctx, m); err != nil {
		m.mockState = snapshot
		return err
	}
	return nil
}

func (m *mockRepository) NextCode(_ context.Context, prefix string) (string, error) {
	m.counter++
	return sequence.Format(prefix, m.counter, sequence.DefaultPadWidth), nil
}

func (m *mockRepository) CreateHeader(_ context.Context, q Quotation) (int64, error) {
	q.ID = m.id()
	q.Groups = nil
	m.headers[q.ID] = q
	return q.ID, nil
}

func (m *mockRepository) UpdateHeader(_ context.Context, q Quotation) error {
	h, ok := m.headers[q.ID]
	if !ok {
		return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, q.ID)
	}
	h.CustomerID = q.CustomerID
	h.SalespersonID = q.SalespersonID
	h.ValidUntil = q.ValidUntil
	h.Notes = q.Notes
	h.DiscountTotal = q.DiscountTotal
	h.Version++
	m.headers[q.ID] = h
	m.writes[q.ID]++
	return nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, id int64, from, to Status) error {
	h, ok := m.headers[id]
	if !ok || h.Status != from {
		return ErrStatusChanged
	}
	h.Status = to
	h.Version++
	m.headers[id] = h
	return nil
}

func (m *mockRepository) SetActive(_ context.Context, id int64, active bool) error {
	h := m.headers[id]
	h.Active = active
	m.headers[id] = h
	return nil
}

func (m *mockRepository) SetTotals(_ context.Context, id int64, net, discount, grand decimal.Decimal) error {
	m.setTotalsCall++
	h := m.headers[id]
	h.NetSubtotal, h.DiscountTotal, h.GrandTotal = net, discount, grand
	m.headers[id] = h
	return nil
}

func (m *mockRepository) SumLineTotals(_ context.Context, id int64) (decimal.Decimal, error) {
	if !m.locked[id] {
		return decimal.Zero, fmt.Errorf("line totals of quotation %d summed without holding its row lock", id)
	}
	sum := decimal.Zero
	for _, it := range m.items {
		if g, ok := m.groups[it.GroupID]; ok && g.QuotationID == id {
			sum = sum.Add(it.LineTotal)
		}
	}
	return sum, nil
}

func (m *mockRepository) CreateGroup(_ context.Context, g Group) (int64, error) {
	if _, ok := m.headers[g.QuotationID]; !ok {
		return 0, fmt.Errorf("%w: quotation %d", shared.ErrValidation, g.QuotationID)
	}
	g.ID = m.id()
	g.Items = nil
	m.groups[g.ID] = g
	m.writes[g.QuotationID]++
	return g.ID, nil
}

func (m *mockRepository) UpdateGroup(_ context.Context, g Group) error {
	existing, ok := m.groups[g.ID]
	if !ok {
		return ErrGroupNotFound
	}
	existing.Name = g.Name
	existing.DisplayOrder = g.DisplayOrder
	m.groups[g.ID] = existing
	m.writes[existing.QuotationID]++
	return nil
}

func (m *mockRepository) DeleteGroup(_ context.Context, id int64) error {
	g, ok := m.groups[id]
	if !ok {
		return ErrGroupNotFound
	}
	delete(m.groups, id)
	for itemID, it := range m.items {
		if it.GroupID == id {
			delete(m.items, itemID)
		}
	}
	m.writes[g.QuotationID]++
	return nil
}

func (m *mockRepository) InsertItem(_ context.Context, it Item) (int64, error) {
	if m.insertItemErr != nil {
		return 0, m.insertItemErr
	}
	g, ok := m.groups[it.GroupID]
	if !ok {
		return 0, fmt.Errorf("%w: group %d", shared.ErrValidation, it.GroupID)
	}
	it.ID = m.id()
	it.Attributes = maps.Clone(it.Attributes)
	m.items[it.ID] = it
	m.writes[g.QuotationID]++
	return it.ID, nil
}

func (m *mockRepository) UpdateItem(_ context.Context, it Item) error {
	if _, ok := m.items[it.ID]; !ok {
		return ErrItemNotFound
	}
	it.Attributes = maps.Clone(it.Attributes)
	m.items[it.ID] = it
	m.writes[m.groups[it.GroupID].QuotationID]++
	return nil
}

func (m *mockRepository) DeleteItem(_ context.Context, id int64) error {
	it, ok := m.items[id]
	if !ok {
		return ErrItemNotFound
	}
	delete(m.items, id)
	m.writes[m.groups[it.GroupID].QuotationID]++
	return nil
}

func (m *mockRepository) NextItemNo(_ context.Context, groupID int64) (int, error) {
	highest := 0
	for _, it := range m.items {
		if it.GroupID == groupID && it.ItemNo > highest {
			highest = it.ItemNo
		}
	}
	return highest + 1, nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Quotation, error) {
	h, ok := m.headers[id]
	if !ok {
		return nil, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	q := h
	q.Groups = nil
	for _, g := range m.groups {
		if g.QuotationID != id {
			continue
		}
		g.Items = []Item{}
		for _, it := range m.items {
			if it.GroupID == g.ID {
				it.Attributes = maps.Clone(it.Attributes)
				g.Items = append(g.Items, it)
			}
		}
		sort.Slice(g.Items, func(i, j int) bool { return g.Items[i].ItemNo < g.Items[j].ItemNo })
		q.Groups = append(q.Groups, g)
	}
	sort.Slice(q.Groups, func(i, j int) bool { return q.Groups[i].DisplayOrder < q.Groups[j].DisplayOrder })
	return &q, nil
}

func (m *mockRepository) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	q, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.locked[id] = true
	m.lockCalls = append(m.lockCalls, id)
	return q, nil
}

func (m *mockRepository) List(_ context.Context, f ListFilter) ([]Quotation, int, error) {
	var out []Quotation
	for _, h := range m.headers {
		if f.Scope.Includes(h) && (f.Status == nil || h.Status == *f.Status) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockRepository) itemsFor(quotationID int64) int {
	n := 0
	for _, it := range m.items {
		if m.groups[it.GroupID].QuotationID == quotationID {
			n++
		}
	}
	return n
}

// ============================================================================
// COLLABORATORS
// ============================================================================

type fakeCatalog struct {
	products map[int64]catalog.Product
	lookups  int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[int64]catalog.Product{
		1: {ID: 1, Name: "Roller blind", Unit: catalog.UnitSquareMeter, BasePrice: decimal.RequireFromString("100.00"), RequiresDimensions: true, Active: true},
		2: {ID: 2, Name: "Motor kit", Unit: catalog.UnitPiece, BasePrice: decimal.RequireFromString("250.00"), Active: true},
		3: {ID: 3, Name: "Discontinued track", Unit: catalog.UnitLinearMeter, BasePrice: decimal.RequireFromString("10.00"), Active: false},
	}}
}

func (c *fakeCatalog) Lookup(_ context.Context, id int64) (catalog.Product, error) {
	c.lookups++
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (c *fakeCatalog) setPrice(id int64, price string) {
	p := c.products[id]
	p.BasePrice = decimal.RequireFromString(price)
	c.products[id] = p
}

type fakeDirectory struct{}

func (fakeDirectory) GetCustomer(_ context.Context, id int64) (directory.Customer, error) {
	switch id {
	case 10, 20:
		return directory.Customer{ID: id, Name: fmt.Sprintf("Customer %d", id), Active: true}, nil
	}
	return directory.Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
}

func (fakeDirectory) GetMember(_ context.Context, id int64) (directory.Member, error) {
	if id == 5 {
		return directory.Member{ID: 5, FullName: "Sales Rep", Kind: directory.KindSalesperson, Active: true}, nil
	}
	return directory.Member{}, fmt.Errorf("%w: workforce member %d", shared.ErrNotFound, id)
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

func adminActor() authz.Actor {
	return authz.NewActor(1, []authz.RoleClass{authz.RoleAdmin}, nil, nil)
}

func salesActor(userID int64) authz.Actor {
	return authz.NewActor(userID, []authz.RoleClass{authz.RoleCommercial}, []string{
		shared.CapQuotationView, shared.CapQuotationCreate, shared.CapQuotationEdit,
		shared.CapQuotationSend, shared.CapQuotationCancel,
	}, nil)
}

func managerActor(userID int64) authz.Actor {
	return authz.NewActor(userID, []authz.RoleClass{authz.RoleSupervisor}, []string{
		shared.CapQuotationView, shared.CapQuotationApprove, shared.CapQuotationReject,
	}, nil)
}
