package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fabtrack/fabtrack/internal/authz"
	"github.com/fabtrack/fabtrack/internal/directory"
	"github.com/fabtrack/fabtrack/internal/sequence"
	"github.com/fabtrack/fabtrack/internal/shared"
)

// ServiceDeps are the collaborators of Service. Only Directory is required.
type ServiceDeps struct {
	Directory directory.Repository
	Notifier  Notifier
	Auditor   shared.Auditor
	Observer  TransitionObserver
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service handles order business logic.
type Service struct {
	repo      Repository
	directory directory.Repository
	notifier  Notifier
	auditor   shared.Auditor
	observer  TransitionObserver
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new order service.
func NewService(repo Repository, deps ServiceDeps) *Service {
	s := &Service{
		repo:      repo,
		directory: deps.Directory,
		notifier:  deps.Notifier,
		auditor:   deps.Auditor,
		observer:  deps.Observer,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
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

// ScopeFor returns what actor may list. Admins and supervisors see every order.
func ScopeFor(actor authz.Actor) Scope {
	if actor.IsAdmin() || actor.HasRole(authz.RoleSupervisor) {
		return Scope{All: true}
	}
	userID := actor.UserID
	return Scope{CreatorID: &userID, WorkforceID: actor.WorkforceID}
}

// Create numbers and stores a new order with its lines in one transaction.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, actor authz.Actor) (*Order, error) {
	if err := authz.RequireCapability(actor, shared.CapOrderCreate, "create order"); err != nil {
		return nil, err
	}
	if err := ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, &req.CustomerID, req.FabricatorID, req.InstallerID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var orderID int64
	var code string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		code, err = tx.NextCode(ctx, sequence.PrefixOrder)
		if err != nil {
			return fmt.Errorf("reserve order code: %w", err)
		}

		order := Order{
			Code:         code,
			Status:       StatusSubmitted,
			CustomerID:   req.CustomerID,
			FabricatorID: req.FabricatorID,
			InstallerID:  req.InstallerID,
			Requester:    req.Requester,
			Supervisor:   req.Supervisor,
			StartDate:    req.StartDate,
			EndDate:      req.EndDate,
			Notes:        req.Notes,
			CreatedBy:    actor.UserID,
			IssuedAt:     now,
			Version:      1,
			Lifecycle:    shared.NewLifecycle(now),
		}
		orderID, err = tx.Create(ctx, order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for i, lr := range req.Lines {
			line := lineFromRequest(lr)
			line.OrderID = orderID
			line.LineNo = i + 1
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("create order line %d: %w", line.LineNo, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	s.audit(ctx, actor, "order.created", created, map[string]any{"code": code, "lines": len(req.Lines)})
	s.notify(ctx, created, "", StatusSubmitted, actor, "", []directory.MemberKind{directory.KindFabricator, directory.KindInstaller})
	return created, nil
}

// Get returns an order with its lines when actor may see it.
func (s *Service) Get(ctx context.Context, id int64, actor authz.Actor) (*Order, error) {
	if err := authz.RequireCapability(actor, shared.CapOrderView, "view order"); err != nil {
		return nil, err
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !ScopeFor(actor).Includes(*o) {
		return nil, fmt.Errorf("%w: order %s is outside the actor's scope", shared.ErrForbidden, o.Code)
	}
	return o, nil
}

// List returns the page of orders visible to actor. filter.Scope is overwritten.
func (s *Service) List(ctx context.Context, filter ListFilter, actor authz.Actor) (shared.PageResult[Order], error) {
	if err := authz.RequireCapability(actor, shared.CapOrderView, "list orders"); err != nil {
		return shared.PageResult[Order]{}, err
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return shared.PageResult[Order]{}, ErrInvalidStatus
	}
	filter.Scope = ScopeFor(actor)
	filter.Page = filter.Page.Normalize()

	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.PageResult[Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return shared.NewPageResult(list, total, filter.Page), nil
}

// Stats counts active orders per status within the actor's scope.
func (s *Service) Stats(ctx context.Context, actor authz.Actor) (Stats, error) {
	if err := authz.RequireCapability(actor, shared.CapOrderView, "order statistics"); err != nil {
		return Stats{}, err
	}
	counts, err := s.repo.CountByStatus(ctx, ScopeFor(actor))
	if err != nil {
		return Stats{}, fmt.Errorf("count orders: %w", err)
	}
	stats := Stats{ByStatus: make(map[Status]int, len(AllStatuses))}
	for _, st := range AllStatuses {
		stats.ByStatus[st] = counts[st]
		stats.Total += counts[st]
	}
	return stats, nil
}

// Update changes header fields. Concurrent edits are last-writer-wins.
func (s *Service) Update(ctx context.Context, id int64, req UpdateOrderRequest, actor authz.Actor) (*Order, error) {
	if err := authz.RequireCapability(actor, shared.CapOrderEdit, "edit order"); err != nil {
		return nil, err
	}
	if req.IsEmpty() {
		return nil, fmt.Errorf("%w: no fields to update", shared.ErrValidation)
	}
	if err := s.checkReferences(ctx, req.CustomerID, req.FabricatorID, req.InstallerID); err != nil {
		return nil, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := s.editable(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		if err := ValidateUpdateRequest(req, *current); err != nil {
			return err
		}
		return tx.Update(ctx, id, req)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	s.audit(ctx, actor, "order.updated", updated, nil)
	return updated, nil
}

// AddLine appends a line numbered after the current highest line.
func (s *Service) AddLine(ctx context.Context, orderID int64, req LineRequest, actor authz.Actor) (*Line, error) {
	if err := authz.RequireCapability(actor, shared.CapOrderEdit, "edit order"); err != nil {
		return nil, err
	}
	if err := ValidateLine(req); err != nil {
		return nil, err
	}

	line := lineFromRequest(req)
	line.OrderID = orderID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := s.editable(ctx, tx, orderID, actor); err != nil {
			return err
		}
		var err error
		line.LineNo, err = tx.NextLineNo(ctx, orderID)
		if err != nil {
			return fmt.Errorf("next line number: %w", err)
		}
		line.ID, err = tx.InsertLine(ctx, line)
		if err != nil {
			return fmt.Errorf("create order line: %w", err)
		}
		return tx.Touch(ctx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// UpdateLine replaces the content of one line, keeping its number.
func (s *Service) UpdateLine(ctx context.Context, orderID, lineID int64, req LineRequest, actor authz.Actor) (*Line, error) {
	if err := authz.RequireCapability(actor, shared.CapOrderEdit, "edit order"); err != nil {
		return nil, err
	}
	if err := ValidateLine(req); err != nil {
		return nil, err
	}

	line := lineFromRequest(req)
	line.ID = lineID
	line.OrderID = orderID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := s.editable(ctx, tx, orderID, actor)
		if err != nil {
			return err
		}
		existing := findLine(current.Lines, lineID)
		if existing == nil {
			return ErrLineNotFound
		}
		line.LineNo = existing.LineNo
		if err := tx.UpdateLine(ctx, line); err != nil {
			return fmt.Errorf("update order line: %w", err)
		}
		return tx.Touch(ctx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// DeleteLine removes one line. Remaining line numbers are not compacted.
func (s *Service) DeleteLine(ctx context.Context, orderID, lineID int64, actor authz.Actor) error {
	if err := authz.RequireCapability(actor, shared.CapOrderEdit, "edit order"); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := s.editable(ctx, tx, orderID, actor); err != nil {
			return err
		}
		if err := tx.DeleteLine(ctx, orderID, lineID); err != nil {
			return err
		}
		return tx.Touch(ctx, orderID)
	})
}

// Transition moves an order to target. Checks run in this order: state machine,
// capability, creator and assignment guard. Audit and notification happen after commit
// and never fail the transition.
func (s *Service) Transition(ctx context.Context, id int64, target Status, actor authz.Actor, note string) (*Order, error) {
	if !target.IsValid() {
		s.observer.TransitionAttempted(shared.AuditEntityOrder, string(target), OutcomeInvalid)
		return nil, ErrInvalidStatus
	}

	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	from := o.Status

	if !from.CanTransitionTo(target) {
		s.observer.TransitionAttempted(shared.AuditEntityOrder, string(target), OutcomeInvalid)
		return nil, fmt.Errorf("%w: order %s cannot move from %s to %s", shared.ErrInvalidTransition, o.Code, from, target)
	}

	err = authz.Authorize(actor, authz.Target{
		Action:     fmt.Sprintf("order %s to %s", o.Code, target),
		Capability: target.RequiredCapability(),
		CreatorID:  o.CreatedBy,
		Assignees:  o.Assignees(),
	})
	if err != nil {
		s.observer.TransitionAttempted(shared.AuditEntityOrder, string(target), OutcomeForbidden)
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, from, target); err != nil {
		outcome := OutcomeError
		if errors.Is(err, shared.ErrConflict) {
			outcome = OutcomeConflict
		}
		s.observer.TransitionAttempted(shared.AuditEntityOrder, string(target), outcome)
		return nil, fmt.Errorf("update order status: %w", err)
	}
	s.observer.TransitionAttempted(shared.AuditEntityOrder, string(target), OutcomeApplied)

	o.Status = target
	o.Version++
	o.Touch(s.now())

	s.audit(ctx, actor, "order.transitioned", o, map[string]any{"from": from, "to": target, "note": note})
	s.notify(ctx, o, from, target, actor, note, target.NotifyKinds())

	s.logger.Info("order transitioned",
		slog.Int64("order_id", o.ID),
		slog.String("code", o.Code),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
		slog.Int64("actor_id", actor.UserID))
	return o, nil
}

// Delete hard-deletes an order that never entered production.
func (s *Service) Delete(ctx context.Context, id int64, actor authz.Actor) error {
	var deleted *Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		o, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if !o.Status.CanDelete() {
			return fmt.Errorf("%w (order %s is %s)", ErrCannotDelete, o.Code, o.Status)
		}
		if err := requireDeleter(actor, o); err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete order %s: %w", o.Code, err)
		}
		deleted = o
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, actor, "order.deleted", deleted, map[string]any{"code": deleted.Code, "status": deleted.Status})
	return nil
}

// Archive soft-deletes an order in a final status.
func (s *Service) Archive(ctx context.Context, id int64, actor authz.Actor) (*Order, error) {
	return s.setActive(ctx, id, actor, false)
}

// Restore reactivates an archived order.
func (s *Service) Restore(ctx context.Context, id int64, actor authz.Actor) (*Order, error) {
	return s.setActive(ctx, id, actor, true)
}

func (s *Service) setActive(ctx context.Context, id int64, actor authz.Actor, active bool) (*Order, error) {
	var o *Order
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		o, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if err := requireOwner(actor, o); err != nil {
			return err
		}
		if !active && !o.Status.IsTerminal() {
			return fmt.Errorf("%w (order %s is %s)", ErrCannotArchive, o.Code, o.Status)
		}
		if o.Active == active {
			return nil
		}
		if err := tx.SetActive(ctx, id, active); err != nil {
			return fmt.Errorf("set order active: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}

	action := "order.restored"
	if active {
		o.Restore(s.now())
	} else {
		action = "order.archived"
		o.Archive(s.now())
	}
	o.Version++
	s.audit(ctx, actor, action, o, nil)
	return o, nil
}

// editable locks the order row inside tx and checks it can still change and that actor owns it.
// Holding the lock serializes line numbering and header writes on the same order.
func (s *Service) editable(ctx context.Context, tx Repository, id int64, actor authz.Actor) (*Order, error) {
	o, err := tx.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !o.Status.CanEdit() {
		return nil, fmt.Errorf("%w (order %s is %s)", ErrCannotEdit, o.Code, o.Status)
	}
	if err := requireOwner(actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) checkReferences(ctx context.Context, customerID, fabricatorID, installerID *int64) error {
	if customerID != nil {
		if _, err := directory.RequireCustomer(ctx, s.directory, *customerID); err != nil {
			return err
		}
	}
	if fabricatorID != nil {
		if _, err := directory.RequireMember(ctx, s.directory, *fabricatorID, directory.KindFabricator); err != nil {
			return err
		}
	}
	if installerID != nil {
		if _, err := directory.RequireMember(ctx, s.directory, *installerID, directory.KindInstaller); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) audit(ctx context.Context, actor authz.Actor, action string, o *Order, meta map[string]any) {
	shared.RecordQuietly(ctx, s.auditor, s.logger, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   shared.AuditEntityOrder,
		EntityID: strconv.FormatInt(o.ID, 10),
		Meta:     meta,
		At:       s.now().UTC(),
	})
}

func (s *Service) notify(ctx context.Context, o *Order, from, to Status, actor authz.Actor, note string, kinds []directory.MemberKind) {
	recipients := recipientsFor(*o, kinds)
	if len(recipients) == 0 {
		return
	}
	s.notifier.OrderChanged(ctx, Event{
		OrderID:    o.ID,
		Code:       o.Code,
		Version:    o.Version,
		From:       from,
		To:         to,
		ActorID:    actor.UserID,
		Note:       note,
		Recipients: recipients,
	})
}

// requireOwner allows administrators and the creator.
func requireOwner(actor authz.Actor, o *Order) error {
	if actor.IsAdmin() || actor.UserID == o.CreatedBy {
		return nil
	}
	return fmt.Errorf("%w: only the creator or an administrator may modify order %s", shared.ErrForbidden, o.Code)
}

// requireDeleter needs order.delete outside administrators. Commercial actors may only
// delete orders they created.
func requireDeleter(actor authz.Actor, o *Order) error {
	if actor.IsAdmin() {
		return nil
	}
	if err := authz.RequireCapability(actor, shared.CapOrderDelete, "delete order "+o.Code); err != nil {
		return err
	}
	if actor.IsCommercial() && actor.UserID != o.CreatedBy {
		return fmt.Errorf("%w: commercial users may only delete orders they created (%s)", shared.ErrForbidden, o.Code)
	}
	return nil
}

func findLine(lines []Line, id int64) *Line {
	for i := range lines {
		if lines[i].ID == id {
			return &lines[i]
		}
	}
	return nil
}
