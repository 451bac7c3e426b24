package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabtrack/fabtrack/internal/directory"
	"github.com/fabtrack/fabtrack/internal/shared"
)

type serviceFixture struct {
	repo     *mockRepository
	notifier *recordingNotifier
	auditor  *recordingAuditor
	observer *recordingObserver
	service  *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		repo:     newMockRepository(),
		notifier: &recordingNotifier{},
		auditor:  &recordingAuditor{},
		observer: &recordingObserver{},
	}
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f.service = NewService(f.repo, ServiceDeps{
		Directory: newFakeDirectory(),
		Notifier:  f.notifier,
		Auditor:   f.auditor,
		Observer:  f.observer,
		Now:       func() time.Time { return fixed },
	})
	return f
}

func sampleLine(env string) LineRequest {
	return LineRequest{
		Environment: env,
		Model:       "Roller",
		Fabric:      "Blackout",
		Width:       decimal.RequireFromString("1.20"),
		Height:      decimal.RequireFromString("2.10"),
	}
}

func sampleCreateRequest() CreateOrderRequest {
	return CreateOrderRequest{
		CustomerID:   10,
		FabricatorID: int64Ptr(1),
		InstallerID:  int64Ptr(3),
		Requester:    "Front desk",
		Lines:        []LineRequest{sampleLine("Lobby"), sampleLine("Suite 101")},
	}
}

// seed creates an order as user 100 and forces it into status.
func (f *serviceFixture) seed(t *testing.T, status Status) *Order {
	t.Helper()
	o, err := f.service.Create(context.Background(), sampleCreateRequest(), commercialActor(100))
	require.NoError(t, err)
	f.repo.orders[o.ID].Status = status
	f.notifier.events = nil
	f.auditor.logs = nil
	return f.repo.orders[o.ID]
}

func TestCreateOrder(t *testing.T) {
	f := newServiceFixture()

	o, err := f.service.Create(context.Background(), sampleCreateRequest(), commercialActor(100))
	require.NoError(t, err)

	assert.Equal(t, "PED-0000001", o.Code)
	assert.Equal(t, StatusSubmitted, o.Status)
	assert.Equal(t, int64(100), o.CreatedBy)
	assert.True(t, o.Active)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, 1, o.Lines[0].LineNo)
	assert.Equal(t, 2, o.Lines[1].LineNo)
	assert.Equal(t, 1, o.Lines[0].Pieces)
	assert.Equal(t, FabricNormal, o.Lines[0].FabricPosition)
	assert.Equal(t, ControlRight, o.Lines[0].ControlSide)
	assert.Equal(t, DriveManual, o.Lines[0].Drive)

	require.Len(t, f.notifier.events, 1)
	ev := f.notifier.events[0]
	assert.Equal(t, StatusSubmitted, ev.To)
	assert.Equal(t, int64(1), ev.Recipients[directory.KindFabricator])
	assert.Equal(t, int64(3), ev.Recipients[directory.KindInstaller])

	require.Len(t, f.auditor.logs, 1)
	assert.Equal(t, "order.created", f.auditor.logs[0].Action)
}

func TestCreateOrderCodesAreSequential(t *testing.T) {
	f := newServiceFixture()
	for i, want := range []string{"PED-0000001", "PED-0000002", "PED-0000003"} {
		o, err := f.service.Create(context.Background(), sampleCreateRequest(), commercialActor(100))
		require.NoError(t, err, "order %d", i)
		assert.Equal(t, want, o.Code)
	}
}

func TestCreateOrderRollbackReleasesCode(t *testing.T) {
	f := newServiceFixture()
	f.repo.insertLineErr = errors.New("disk full")

	_, err := f.service.Create(context.Background(), sampleCreateRequest(), commercialActor(100))
	require.Error(t, err)
	assert.Equal(t, int64(0), f.repo.counter)
	assert.Empty(t, f.repo.orders)
	assert.Empty(t, f.notifier.events)

	f.repo.insertLineErr = nil
	o, err := f.service.Create(context.Background(), sampleCreateRequest(), commercialActor(100))
	require.NoError(t, err)
	assert.Equal(t, "PED-0000001", o.Code)
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateOrderRequest)
		wantErr error
	}{
		{"zero width", func(r *CreateOrderRequest) { r.Lines[0].Width = decimal.Zero }, ErrInvalidDimension},
		{"blank environment", func(r *CreateOrderRequest) { r.Lines[1].Environment = "  " }, ErrEnvironmentEmpty},
		{"dates reversed", func(r *CreateOrderRequest) {
			start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
			end := start.AddDate(0, 0, -1)
			r.StartDate, r.EndDate = &start, &end
		}, ErrInvalidDates},
		{"installer as fabricator", func(r *CreateOrderRequest) { r.FabricatorID = int64Ptr(3) }, shared.ErrValidation},
		{"inactive customer", func(r *CreateOrderRequest) { r.CustomerID = 11 }, shared.ErrValidation},
		{"unknown customer", func(r *CreateOrderRequest) { r.CustomerID = 99 }, shared.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			req := sampleCreateRequest()
			tt.mutate(&req)

			_, err := f.service.Create(context.Background(), req, commercialActor(100))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, int64(0), f.repo.counter)
		})
	}
}

func TestCreateOrderRequiresCapability(t *testing.T) {
	f := newServiceFixture()
	_, err := f.service.Create(context.Background(), sampleCreateRequest(), fabricatorActor(200, 1))
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestTransitionAssignmentGuard(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusAccepted)

	_, err := f.service.Transition(context.Background(), o.ID, StatusInFabrication, fabricatorActor(202, 2), "")
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, StatusAccepted, f.repo.orders[o.ID].Status)
	assert.Empty(t, f.notifier.events)

	updated, err := f.service.Transition(context.Background(), o.ID, StatusInFabrication, fabricatorActor(201, 1), "cutting today")
	require.NoError(t, err)
	assert.Equal(t, StatusInFabrication, updated.Status)
	assert.Equal(t, StatusInFabrication, f.repo.orders[o.ID].Status)

	require.Len(t, f.notifier.events, 1)
	ev := f.notifier.events[0]
	assert.Equal(t, StatusAccepted, ev.From)
	assert.Equal(t, "cutting today", ev.Note)
	assert.Equal(t, map[directory.MemberKind]int64{directory.KindFabricator: 1}, ev.Recipients)

	assert.Equal(t, []string{"IN_FABRICATION:forbidden", "IN_FABRICATION:applied"}, f.observer.outcomes)
}

func TestTransitionRejectsDisallowedTargets(t *testing.T) {
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			if from.CanTransitionTo(to) {
				continue
			}
			f := newServiceFixture()
			o := f.seed(t, from)

			_, err := f.service.Transition(context.Background(), o.ID, to, adminActor(), "")
			assert.ErrorIs(t, err, shared.ErrInvalidTransition, "%s -> %s", from, to)
			assert.Equal(t, from, f.repo.orders[o.ID].Status)
		}
	}
}

func TestTransitionChecksStateBeforeCapability(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusSubmitted)

	// The fabricator lacks order.complete, but the machine rejects the jump first.
	_, err := f.service.Transition(context.Background(), o.ID, StatusCompleted, fabricatorActor(201, 1), "")
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestTransitionMissingCapability(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusSubmitted)

	_, err := f.service.Transition(context.Background(), o.ID, StatusAccepted, commercialActor(100), "")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	updated, err := f.service.Transition(context.Background(), o.ID, StatusAccepted, supervisorActor(300), "")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, updated.Status)
	assert.Empty(t, f.notifier.events, "nobody is notified on acceptance")
}

func TestTransitionCreatorGuard(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusAccepted)

	_, err := f.service.Transition(context.Background(), o.ID, StatusCancelled, commercialActor(999), "")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.service.Transition(context.Background(), o.ID, StatusCancelled, commercialActor(100), "client withdrew")
	require.NoError(t, err)
}

func TestTransitionConcurrentChange(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusSubmitted)
	f.repo.updateStatusErr = ErrStatusChanged

	_, err := f.service.Transition(context.Background(), o.ID, StatusAccepted, adminActor(), "")
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Empty(t, f.auditor.logs)
	assert.Equal(t, []string{"ACCEPTED:conflict"}, f.observer.outcomes)
}

func TestTransitionAuditFailureDoesNotFail(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusSubmitted)
	f.auditor.err = errors.New("audit table locked")

	updated, err := f.service.Transition(context.Background(), o.ID, StatusRejected, adminActor(), "")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, updated.Status)
}

func TestDeleteBoundary(t *testing.T) {
	f := newServiceFixture()

	inFab := f.seed(t, StatusInFabrication)
	err := f.service.Delete(context.Background(), inFab.ID, adminActor())
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Contains(t, f.repo.orders, inFab.ID)

	cancelled := f.seed(t, StatusCancelled)
	require.NoError(t, f.service.Delete(context.Background(), cancelled.ID, commercialActor(100)))
	assert.NotContains(t, f.repo.orders, cancelled.ID)
}

func TestDeleteRequiresOwner(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusSubmitted)

	err := f.service.Delete(context.Background(), o.ID, commercialActor(555))
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Contains(t, f.repo.orders, o.ID)
}

func TestDeleteStatusRecheckedAtWrite(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusSubmitted)
	f.repo.beforeDelete = func() { f.repo.orders[o.ID].Status = StatusAccepted }

	err := f.service.Delete(context.Background(), o.ID, commercialActor(100))
	assert.ErrorIs(t, err, ErrCannotDelete)
	assert.Contains(t, f.repo.orders, o.ID)
	assert.Empty(t, f.auditor.logs)
}

func TestDeleteBySupervisorWithCapability(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusRejected)

	err := f.service.Delete(context.Background(), o.ID, supervisorActor(300))
	assert.ErrorIs(t, err, shared.ErrForbidden)

	require.NoError(t, f.service.Delete(context.Background(), o.ID, deletingSupervisor(300)))
	assert.NotContains(t, f.repo.orders, o.ID)
}

func TestArchiveAndRestore(t *testing.T) {
	f := newServiceFixture()

	open := f.seed(t, StatusInstalled)
	_, err := f.service.Archive(context.Background(), open.ID, adminActor())
	assert.ErrorIs(t, err, shared.ErrConflict)

	done := f.seed(t, StatusCompleted)
	archived, err := f.service.Archive(context.Background(), done.ID, commercialActor(100))
	require.NoError(t, err)
	assert.False(t, archived.Active)
	assert.False(t, f.repo.orders[done.ID].Active)

	_, err = f.service.Restore(context.Background(), done.ID, commercialActor(555))
	assert.ErrorIs(t, err, shared.ErrForbidden)

	restored, err := f.service.Restore(context.Background(), done.ID, adminActor())
	require.NoError(t, err)
	assert.True(t, restored.Active)
}

func TestUpdateOrder(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusAccepted)

	notes := "second floor only"
	updated, err := f.service.Update(context.Background(), o.ID, UpdateOrderRequest{Notes: &notes}, commercialActor(100))
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)

	_, err = f.service.Update(context.Background(), o.ID, UpdateOrderRequest{Notes: &notes}, commercialActor(555))
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.service.Update(context.Background(), o.ID, UpdateOrderRequest{}, commercialActor(100))
	assert.ErrorIs(t, err, shared.ErrValidation)

	f.repo.orders[o.ID].Status = StatusCompleted
	_, err = f.service.Update(context.Background(), o.ID, UpdateOrderRequest{Notes: &notes}, commercialActor(100))
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestLineNumbering(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusSubmitted)
	actor := commercialActor(100)

	third, err := f.service.AddLine(context.Background(), o.ID, sampleLine("Kitchen"), actor)
	require.NoError(t, err)
	assert.Equal(t, 3, third.LineNo)

	require.NoError(t, f.service.DeleteLine(context.Background(), o.ID, f.repo.orders[o.ID].Lines[1].ID, actor))

	fourth, err := f.service.AddLine(context.Background(), o.ID, sampleLine("Terrace"), actor)
	require.NoError(t, err)
	assert.Equal(t, 4, fourth.LineNo)

	req := sampleLine("Kitchen")
	req.Drive = DriveMotorized
	changed, err := f.service.UpdateLine(context.Background(), o.ID, third.ID, req, actor)
	require.NoError(t, err)
	assert.Equal(t, 3, changed.LineNo)
	assert.Equal(t, DriveMotorized, changed.Drive)

	_, err = f.service.UpdateLine(context.Background(), o.ID, 9999, req, actor)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLinesFrozenInTerminalStatus(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusCancelled)

	_, err := f.service.AddLine(context.Background(), o.ID, sampleLine("Lobby"), commercialActor(100))
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Len(t, f.repo.orders[o.ID].Lines, 2)
}

func TestListAndStatsScope(t *testing.T) {
	f := newServiceFixture()
	mine := f.seed(t, StatusSubmitted)

	other, err := f.service.Create(context.Background(), CreateOrderRequest{CustomerID: 10, FabricatorID: int64Ptr(2)}, commercialActor(101))
	require.NoError(t, err)

	page, err := f.service.List(context.Background(), ListFilter{}, commercialActor(100))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, mine.ID, page.Items[0].ID)
	assert.Equal(t, 50, page.Limit)

	page, err = f.service.List(context.Background(), ListFilter{}, fabricatorActor(202, 2))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, other.ID, page.Items[0].ID)

	page, err = f.service.List(context.Background(), ListFilter{}, supervisorActor(300))
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	stats, err := f.service.Stats(context.Background(), adminActor())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[StatusSubmitted])
	assert.Equal(t, 0, stats.ByStatus[StatusCompleted])

	bad := Status("LOST")
	_, err = f.service.List(context.Background(), ListFilter{Status: &bad}, adminActor())
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetOutsideScope(t *testing.T) {
	f := newServiceFixture()
	o := f.seed(t, StatusSubmitted)

	_, err := f.service.Get(context.Background(), o.ID, fabricatorActor(202, 2))
	assert.ErrorIs(t, err, shared.ErrForbidden)

	got, err := f.service.Get(context.Background(), o.ID, fabricatorActor(201, 1))
	require.NoError(t, err)
	assert.Equal(t, o.Code, got.Code)
}
