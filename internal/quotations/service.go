package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/fabtrack/fabtrack/internal/authz"
	"github.com/fabtrack/fabtrack/internal/catalog"
	"github.com/fabtrack/fabtrack/internal/directory"
	"github.com/fabtrack/fabtrack/internal/sequence"
	"github.com/fabtrack/fabtrack/internal/shared"
)

// Catalog resolves the current price of a product.
type Catalog interface {
	Lookup(ctx context.Context, productID int64) (catalog.Product, error)
}

// TransitionObserver records transition outcomes.
type TransitionObserver interface {
	TransitionAttempted(aggregate, target, outcome string)
}

// Transition outcomes reported to the observer.
const (
	OutcomeApplied   = "applied"
	OutcomeInvalid   = "invalid"
	OutcomeForbidden = "forbidden"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
)

// ServiceDeps are the collaborators of Service. Directory and Catalog are required.
type ServiceDeps struct {
	Directory directory.Repository
	Catalog   Catalog
	Auditor   shared.Auditor
	Observer  TransitionObserver
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service handles quotation business logic.
type Service struct {
	repo      Repository
	directory directory.Repository
	catalog   Catalog
	auditor   shared.Auditor
	observer  TransitionObserver
	logger    *slog.Logger
	now       func() time.Time
}

type nopObserver struct{}

func (nopObserver) TransitionAttempted(string, string, string) {}

// NewService creates a new quotation service.
func NewService(repo Repository, deps ServiceDeps) *Service {
	s := &Service{
		repo:      repo,
		directory: deps.Directory,
		catalog:   deps.Catalog,
		auditor:   deps.Auditor,
		observer:  deps.Observer,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ScopeFor returns what actor may list. Admins and supervisors see every quotation.
func ScopeFor(actor authz.Actor) Scope {
	if actor.IsAdmin() || actor.HasRole(authz.RoleSupervisor) {
		return Scope{All: true}
	}
	userID := actor.UserID
	return Scope{CreatorID: &userID, SalespersonID: actor.WorkforceID}
}

// Create numbers a new quotation and writes it with its groups and items in one
// transaction. Items are priced before the transaction so the counter lock is held briefly.
func (s *Service) Create(ctx context.Context, req QuotationRequest, actor authz.Actor) (*Quotation, error) {
	if err := authz.RequireCapability(actor, shared.CapQuotationCreate, "create quotation"); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, req.CustomerID, req.SalespersonID); err != nil {
		return nil, err
	}
	if req.DiscountTotal.IsNegative() {
		return nil, ErrNegativeDiscount
	}
	groups, err := s.priceGroups(ctx, req.Groups)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		code, err := tx.NextCode(ctx, sequence.PrefixQuotation)
		if err != nil {
			return fmt.Errorf("reserve quotation code: %w", err)
		}
		id, err = tx.CreateHeader(ctx, Quotation{
			Code:          code,
			Status:        StatusDraft,
			CustomerID:    req.CustomerID,
			SalespersonID: req.SalespersonID,
			IssuedAt:      now,
			ValidUntil:    req.ValidUntil,
			Notes:         req.Notes,
			DiscountTotal: req.DiscountTotal,
			CreatedBy:     actor.UserID,
			Version:       1,
			Lifecycle:     shared.NewLifecycle(now),
		})
		if err != nil {
			return fmt.Errorf("create quotation: %w", err)
		}
		if err := s.writeGroups(ctx, tx, id, groups); err != nil {
			return err
		}
		return s.Recalculate(ctx, tx, id)
	})
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	s.audit(ctx, actor, "quotation.created", created.ID, map[string]any{"code": created.Code, "items": created.ItemCount()})
	return created, nil
}

// Get returns a quotation with groups and items when actor may see it.
func (s *Service) Get(ctx context.Context, id int64, actor authz.Actor) (*Quotation, error) {
	if err := authz.RequireCapability(actor, shared.CapQuotationView, "view quotation"); err != nil {
		return nil, err
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if !ScopeFor(actor).Includes(*q) {
		return nil, fmt.Errorf("%w: quotation %s is outside the actor's scope", shared.ErrForbidden, q.Code)
	}
	return q, nil
}

// List returns the page of quotation headers visible to actor.
func (s *Service) List(ctx context.Context, filter ListFilter, actor authz.Actor) (shared.PageResult[Quotation], error) {
	if err := authz.RequireCapability(actor, shared.CapQuotationView, "list quotations"); err != nil {
		return shared.PageResult[Quotation]{}, err
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return shared.PageResult[Quotation]{}, ErrInvalidStatus
	}
	filter.Scope = ScopeFor(actor)
	filter.Page = filter.Page.Normalize()

	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.PageResult[Quotation]{}, fmt.Errorf("list quotations: %w", err)
	}
	return shared.NewPageResult(list, total, filter.Page), nil
}

// Update replaces the header and reconciles groups and items by id: present ids are
// revised, missing ones deleted and new ones created. Totals are recalculated once.
func (s *Service) Update(ctx context.Context, id int64, req QuotationRequest, actor authz.Actor) (*Quotation, error) {
	if err := authz.RequireCapability(actor, shared.CapQuotationEdit, "edit quotation"); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, req.CustomerID, req.SalespersonID); err != nil {
		return nil, err
	}
	if req.DiscountTotal.IsNegative() {
		return nil, ErrNegativeDiscount
	}
	if err := checkUniqueIDs(req.Groups); err != nil {
		return nil, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := s.editable(ctx, tx, id, actor)
		if err != nil {
			return err
		}

		header := *current
		header.CustomerID = req.CustomerID
		header.SalespersonID = req.SalespersonID
		header.ValidUntil = req.ValidUntil
		header.Notes = req.Notes
		header.DiscountTotal = req.DiscountTotal
		if err := tx.UpdateHeader(ctx, header); err != nil {
			return fmt.Errorf("update quotation: %w", err)
		}

		if err := s.reconcileGroups(ctx, tx, current, req.Groups); err != nil {
			return err
		}
		return s.Recalculate(ctx, tx, id)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	s.audit(ctx, actor, "quotation.updated", id, map[string]any{"items": updated.ItemCount()})
	return updated, nil
}

// Clone deep-copies a quotation into a new DRAFT with a fresh code. Snapshot prices
// are copied verbatim and the source is only read.
func (s *Service) Clone(ctx context.Context, sourceID int64, newCustomerID *int64, actor authz.Actor) (*Quotation, error) {
	if err := authz.RequireCapability(actor, shared.CapQuotationCreate, "clone quotation"); err != nil {
		return nil, err
	}
	source, err := s.Get(ctx, sourceID, actor)
	if err != nil {
		return nil, err
	}
	customerID := source.CustomerID
	if newCustomerID != nil {
		customerID = *newCustomerID
		if _, err := directory.RequireCustomer(ctx, s.directory, customerID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		code, err := tx.NextCode(ctx, sequence.PrefixQuotation)
		if err != nil {
			return fmt.Errorf("reserve quotation code: %w", err)
		}
		id, err = tx.CreateHeader(ctx, Quotation{
			Code:          code,
			Status:        StatusDraft,
			CustomerID:    customerID,
			SalespersonID: source.SalespersonID,
			IssuedAt:      now,
			ValidUntil:    source.ValidUntil,
			Notes:         source.Notes,
			DiscountTotal: source.DiscountTotal,
			CreatedBy:     actor.UserID,
			Version:       1,
			Lifecycle:     shared.NewLifecycle(now),
		})
		if err != nil {
			return fmt.Errorf("create quotation: %w", err)
		}
		if err := s.writeGroups(ctx, tx, id, copyGroups(source.Groups)); err != nil {
			return err
		}
		return s.Recalculate(ctx, tx, id)
	})
	if err != nil {
		return nil, err
	}

	clone, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	s.audit(ctx, actor, "quotation.cloned", clone.ID, map[string]any{"source": source.Code, "code": clone.Code})
	return clone, nil
}

// Transition moves a quotation to target after the state machine, capability and
// creator checks.
func (s *Service) Transition(ctx context.Context, id int64, target Status, actor authz.Actor, note string) (*Quotation, error) {
	if !target.IsValid() {
		s.observer.TransitionAttempted(shared.AuditEntityQuotation, string(target), OutcomeInvalid)
		return nil, ErrInvalidStatus
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	from := q.Status

	if !from.CanTransitionTo(target) {
		s.observer.TransitionAttempted(shared.AuditEntityQuotation, string(target), OutcomeInvalid)
		return nil, fmt.Errorf("%w: quotation %s cannot move from %s to %s", shared.ErrInvalidTransition, q.Code, from, target)
	}

	err = authz.Authorize(actor, authz.Target{
		Action:     fmt.Sprintf("quotation %s to %s", q.Code, target),
		Capability: target.RequiredCapability(),
		CreatorID:  q.CreatedBy,
		Assignees:  []*int64{q.SalespersonID},
	})
	if err != nil {
		s.observer.TransitionAttempted(shared.AuditEntityQuotation, string(target), OutcomeForbidden)
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, from, target); err != nil {
		outcome := OutcomeError
		if errors.Is(err, shared.ErrConflict) {
			outcome = OutcomeConflict
		}
		s.observer.TransitionAttempted(shared.AuditEntityQuotation, string(target), outcome)
		return nil, fmt.Errorf("update quotation status: %w", err)
	}
	s.observer.TransitionAttempted(shared.AuditEntityQuotation, string(target), OutcomeApplied)

	q.Status = target
	q.Version++
	q.Touch(s.now())
	s.audit(ctx, actor, "quotation.transitioned", q.ID, map[string]any{"from": from, "to": target, "note": note})
	s.logger.Info("quotation transitioned",
		slog.Int64("quotation_id", q.ID),
		slog.String("code", q.Code),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
		slog.Int64("actor_id", actor.UserID))
	return q, nil
}

// CreateItem prices and appends an item to a group, then recalculates the totals.
func (s *Service) CreateItem(ctx context.Context, quotationID, groupID int64, req ItemRequest, actor authz.Actor) (*Quotation, error) {
	if err := authz.RequireCapability(actor, shared.CapQuotationEdit, "edit quotation"); err != nil {
		return nil, err
	}
	item, err := s.priceItem(ctx, req)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := s.editable(ctx, tx, quotationID, actor)
		if err != nil {
			return err
		}
		if current.FindGroup(groupID) == nil {
			return fmt.Errorf("%w: group %d", ErrGroupNotFound, groupID)
		}
		item.GroupID = groupID
		if _, err := s.CreateItemRaw(ctx, tx, item); err != nil {
			return err
		}
		return s.Recalculate(ctx, tx, quotationID)
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "quotation.item_added", quotationID, map[string]any{"group_id": groupID, "product_id": req.ProductID})
	return s.repo.Get(ctx, quotationID)
}

// CreateItemRaw inserts an already priced item without touching the quotation totals.
// The caller owns the transaction and must call Recalculate before committing.
// A zero ItemNo is replaced with the next number in the group.
func (s *Service) CreateItemRaw(ctx context.Context, tx Repository, item Item) (Item, error) {
	if item.ItemNo == 0 {
		next, err := tx.NextItemNo(ctx, item.GroupID)
		if err != nil {
			return Item{}, fmt.Errorf("next item number: %w", err)
		}
		item.ItemNo = next
	}
	id, err := tx.InsertItem(ctx, item)
	if err != nil {
		return Item{}, fmt.Errorf("create quotation item: %w", err)
	}
	item.ID = id
	return item, nil
}

// DeleteItem removes an item and recalculates the totals.
func (s *Service) DeleteItem(ctx context.Context, quotationID, itemID int64, actor authz.Actor) (*Quotation, error) {
	if err := authz.RequireCapability(actor, shared.CapQuotationEdit, "edit quotation"); err != nil {
		return nil, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := s.editable(ctx, tx, quotationID, actor)
		if err != nil {
			return err
		}
		if _, it := current.FindItem(itemID); it == nil {
			return fmt.Errorf("%w: item %d", ErrItemNotFound, itemID)
		}
		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		return s.Recalculate(ctx, tx, quotationID)
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "quotation.item_deleted", quotationID, map[string]any{"item_id": itemID})
	return s.repo.Get(ctx, quotationID)
}

// Recalculate derives net_subtotal and grand_total from the stored items inside tx.
// It takes the header row lock before summing, so item writes committed by another
// transaction on the same quotation are always part of the sum.
func (s *Service) Recalculate(ctx context.Context, tx Repository, id int64) error {
	q, err := tx.GetForUpdate(ctx, id)
	if err != nil {
		return fmt.Errorf("get quotation: %w", err)
	}
	net, err := tx.SumLineTotals(ctx, id)
	if err != nil {
		return fmt.Errorf("sum line totals: %w", err)
	}
	grand, err := GrandTotal(net, q.DiscountTotal)
	if err != nil {
		return fmt.Errorf("quotation %s: %w", q.Code, err)
	}
	if err := tx.SetTotals(ctx, id, net, q.DiscountTotal, grand); err != nil {
		return fmt.Errorf("store totals: %w", err)
	}
	return nil
}

// Archive soft-deletes a quotation in a final status.
func (s *Service) Archive(ctx context.Context, id int64, actor authz.Actor) (*Quotation, error) {
	return s.setActive(ctx, id, actor, false)
}

// Restore reactivates an archived quotation.
func (s *Service) Restore(ctx context.Context, id int64, actor authz.Actor) (*Quotation, error) {
	return s.setActive(ctx, id, actor, true)
}

func (s *Service) setActive(ctx context.Context, id int64, actor authz.Actor, active bool) (*Quotation, error) {
	var q *Quotation
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		q, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("get quotation: %w", err)
		}
		if err := requireOwner(actor, q); err != nil {
			return err
		}
		if !active && !q.Status.IsTerminal() {
			return fmt.Errorf("%w (quotation %s is %s)", ErrCannotArchive, q.Code, q.Status)
		}
		if q.Active == active {
			return nil
		}
		if err := tx.SetActive(ctx, id, active); err != nil {
			return fmt.Errorf("set quotation active: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return q, nil
	}

	action := "quotation.restored"
	if active {
		q.Restore(s.now())
	} else {
		action = "quotation.archived"
		q.Archive(s.now())
	}
	q.Version++
	s.audit(ctx, actor, action, q.ID, nil)
	return q, nil
}

// editable locks the quotation header inside tx and checks it can still change and that actor owns it.
func (s *Service) editable(ctx context.Context, tx Repository, id int64, actor authz.Actor) (*Quotation, error) {
	q, err := tx.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if !q.Status.CanEdit() {
		return nil, fmt.Errorf("%w (quotation %s is %s)", ErrCannotEdit, q.Code, q.Status)
	}
	if err := requireOwner(actor, q); err != nil {
		return nil, err
	}
	return q, nil
}

// reconcileGroups applies the requested group layout to current inside tx.
func (s *Service) reconcileGroups(ctx context.Context, tx Repository, current *Quotation, reqs []GroupRequest) error {
	keep := make(map[int64]bool, len(reqs))
	for i, gr := range reqs {
		if gr.ID == nil {
			continue
		}
		if current.FindGroup(*gr.ID) == nil {
			return fmt.Errorf("%w (group %d, position %d)", ErrForeignGroup, *gr.ID, i+1)
		}
		keep[*gr.ID] = true
	}
	for _, g := range current.Groups {
		if keep[g.ID] {
			continue
		}
		if err := tx.DeleteGroup(ctx, g.ID); err != nil {
			return fmt.Errorf("delete quotation group %d: %w", g.ID, err)
		}
	}

	for i, gr := range reqs {
		name, err := groupName(gr.Name)
		if err != nil {
			return fmt.Errorf("group %d: %w", i+1, err)
		}
		if gr.ID == nil {
			items, err := s.priceItems(ctx, gr.Items)
			if err != nil {
				return fmt.Errorf("group %d: %w", i+1, err)
			}
			if err := s.writeGroup(ctx, tx, current.ID, Group{Name: name, DisplayOrder: i + 1, Items: items}); err != nil {
				return err
			}
			continue
		}

		existing := current.FindGroup(*gr.ID)
		existing.Name = name
		existing.DisplayOrder = i + 1
		if err := tx.UpdateGroup(ctx, *existing); err != nil {
			return fmt.Errorf("update quotation group %d: %w", existing.ID, err)
		}
		if err := s.reconcileItems(ctx, tx, existing, gr.Items); err != nil {
			return fmt.Errorf("group %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Service) reconcileItems(ctx context.Context, tx Repository, group *Group, reqs []ItemRequest) error {
	byID := make(map[int64]*Item, len(group.Items))
	for i := range group.Items {
		byID[group.Items[i].ID] = &group.Items[i]
	}
	keep := make(map[int64]bool, len(reqs))
	for j, ir := range reqs {
		if ir.ID == nil {
			continue
		}
		if _, ok := byID[*ir.ID]; !ok {
			return fmt.Errorf("%w (item %d, position %d)", ErrForeignItem, *ir.ID, j+1)
		}
		keep[*ir.ID] = true
	}
	for _, it := range group.Items {
		if keep[it.ID] {
			continue
		}
		if err := tx.DeleteItem(ctx, it.ID); err != nil {
			return fmt.Errorf("delete quotation item %d: %w", it.ID, err)
		}
	}

	for j, ir := range reqs {
		if ir.ID == nil {
			item, err := s.priceItem(ctx, ir)
			if err != nil {
				return fmt.Errorf("item %d: %w", j+1, err)
			}
			item.GroupID = group.ID
			if _, err := s.CreateItemRaw(ctx, tx, item); err != nil {
				return err
			}
			continue
		}
		item := byID[*ir.ID]
		if err := item.Revise(ir); err != nil {
			return fmt.Errorf("item %d: %w", j+1, err)
		}
		if err := tx.UpdateItem(ctx, *item); err != nil {
			return fmt.Errorf("update quotation item %d: %w", item.ID, err)
		}
	}
	return nil
}

// priceGroups resolves every item of a create request against the catalog.
func (s *Service) priceGroups(ctx context.Context, reqs []GroupRequest) ([]Group, error) {
	groups := make([]Group, 0, len(reqs))
	for i, gr := range reqs {
		if gr.ID != nil {
			return nil, fmt.Errorf("%w (group %d carries an id on create)", ErrForeignGroup, i+1)
		}
		name, err := groupName(gr.Name)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i+1, err)
		}
		items, err := s.priceItems(ctx, gr.Items)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i+1, err)
		}
		groups = append(groups, Group{Name: name, DisplayOrder: i + 1, Items: items})
	}
	return groups, nil
}

func (s *Service) priceItems(ctx context.Context, reqs []ItemRequest) ([]Item, error) {
	items := make([]Item, 0, len(reqs))
	for j, ir := range reqs {
		if ir.ID != nil {
			return nil, fmt.Errorf("%w (item %d carries an id in a new group)", ErrForeignItem, j+1)
		}
		it, err := s.priceItem(ctx, ir)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", j+1, err)
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *Service) priceItem(ctx context.Context, req ItemRequest) (Item, error) {
	product, err := s.catalog.Lookup(ctx, req.ProductID)
	if err != nil {
		return Item{}, fmt.Errorf("lookup product %d: %w", req.ProductID, err)
	}
	return NewItem(product, req)
}

// writeGroups inserts groups and their items with sequential item numbers.
func (s *Service) writeGroups(ctx context.Context, tx Repository, quotationID int64, groups []Group) error {
	for _, g := range groups {
		if err := s.writeGroup(ctx, tx, quotationID, g); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) writeGroup(ctx context.Context, tx Repository, quotationID int64, g Group) error {
	g.QuotationID = quotationID
	groupID, err := tx.CreateGroup(ctx, g)
	if err != nil {
		return fmt.Errorf("create quotation group %q: %w", g.Name, err)
	}
	for k, it := range g.Items {
		it.GroupID = groupID
		if it.ItemNo == 0 {
			it.ItemNo = k + 1
		}
		if _, err := s.CreateItemRaw(ctx, tx, it); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkReferences(ctx context.Context, customerID int64, salespersonID *int64) error {
	if _, err := directory.RequireCustomer(ctx, s.directory, customerID); err != nil {
		return err
	}
	if salespersonID != nil {
		if _, err := directory.RequireMember(ctx, s.directory, *salespersonID, directory.KindSalesperson); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) audit(ctx context.Context, actor authz.Actor, action string, id int64, meta map[string]any) {
	shared.RecordQuietly(ctx, s.auditor, s.logger, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   shared.AuditEntityQuotation,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now().UTC(),
	})
}

func requireOwner(actor authz.Actor, q *Quotation) error {
	if actor.IsAdmin() || actor.UserID == q.CreatedBy {
		return nil
	}
	return fmt.Errorf("%w: only the creator or an administrator may modify quotation %s", shared.ErrForbidden, q.Code)
}

// copyGroups deep-copies groups and items, dropping identities so they insert as new rows.
func copyGroups(src []Group) []Group {
	out := make([]Group, 0, len(src))
	for _, g := range src {
		cg := Group{Name: g.Name, DisplayOrder: g.DisplayOrder, Items: make([]Item, 0, len(g.Items))}
		for _, it := range g.Items {
			ci := it
			ci.ID = 0
			ci.GroupID = 0
			ci.Attributes = maps.Clone(it.Attributes)
			cg.Items = append(cg.Items, ci)
		}
		out = append(out, cg)
	}
	return out
}

// checkUniqueIDs rejects a layout that names the same group or item twice.
func checkUniqueIDs(groups []GroupRequest) error {
	seenGroups := make(map[int64]bool)
	seenItems := make(map[int64]bool)
	for i, gr := range groups {
		if gr.ID != nil {
			if seenGroups[*gr.ID] {
				return fmt.Errorf("%w (group %d, position %d)", ErrDuplicateGroup, *gr.ID, i+1)
			}
			seenGroups[*gr.ID] = true
		}
		for j, ir := range gr.Items {
			if ir.ID == nil {
				continue
			}
			if seenItems[*ir.ID] {
				return fmt.Errorf("%w (item %d, group %d, position %d)", ErrDuplicateItem, *ir.ID, i+1, j+1)
			}
			seenItems[*ir.ID] = true
		}
	}
	return nil
}

func groupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyGroupName
	}
	return name, nil
}
