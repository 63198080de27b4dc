package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"assetmgt/models"
	"assetmgt/store"
)

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *store.Memory
	engine *Engine
	events *recorder
	hr     models.User
}

// tick returns a clock that advances a minute per call so records sort by creation.
func tick() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func newFixture(t *testing.T, packageLimit int) *fixture {
	t.Helper()
	s := store.NewMemory()
	rec := &recorder{}
	e := New(s, zap.NewNop().Sugar(), WithNotifier(rec), WithClock(tick()), WithDefaultPackageLimit(packageLimit))
	f := &fixture{t: t, ctx: context.Background(), store: s, engine: e, events: rec}

	hr, err := e.Register(f.ctx, RegisterInput{Name: "Hana", Email: "hr@acme.io", Role: "hr", CompanyName: "Acme"})
	require.NoError(t, err)
	f.hr = hr
	return f
}

func (f *fixture) employee(email string) models.User {
	f.t.Helper()
	u, err := f.engine.Register(f.ctx, RegisterInput{Name: "Emp " + email, Email: email, Role: "employee"})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) asset(name, typ string, qty int) models.Asset {
	f.t.Helper()
	a, err := f.engine.AddAsset(f.ctx, f.hr, AssetInput{ProductName: name, ProductType: typ, ProductQuantity: qty})
	require.NoError(f.t, err)
	return a
}

// affiliate runs a request through approval.
func (f *fixture) affiliate(email string, a models.Asset) models.Request {
	f.t.Helper()
	req, err := f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: a.ID, RequesterEmail: email})
	require.NoError(f.t, err)
	_, err = f.engine.DecideRequest(f.ctx, f.hr, req.ID, models.RequestApproved)
	require.NoError(f.t, err)
	return req
}

func (f *fixture) available(a models.Asset) int {
	f.t.Helper()
	got, err := f.store.AssetByID(f.ctx, a.ID)
	require.NoError(f.t, err)
	return got.AvailableQuantity
}

func (f *fixture) currentEmployees() int {
	f.t.Helper()
	u, err := f.store.UserByEmail(f.ctx, f.hr.Email)
	require.NoError(f.t, err)
	return u.CurrentEmployees
}

func TestRegister(t *testing.T) {
	f := newFixture(t, 5)
	assert.Equal(t, "hr", f.hr.Role)
	assert.Equal(t, 5, f.hr.PackageLimit)
	assert.Equal(t, "basic", f.hr.Subscription)

	u, err := f.engine.Register(f.ctx, RegisterInput{Name: "Eve", Email: " Eve@Acme.io ", Role: "employee"})
	require.NoError(t, err)
	assert.Equal(t, "eve@acme.io", u.Email)
	assert.Zero(t, u.PackageLimit)

	_, err = f.engine.Register(f.ctx, RegisterInput{Name: "Eve", Email: "eve@acme.io", Role: "employee"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.engine.Register(f.ctx, RegisterInput{Name: "X", Email: "not-an-email", Role: "employee"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.engine.Register(f.ctx, RegisterInput{Name: "X", Email: "x@acme.io", Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.engine.Register(f.ctx, RegisterInput{Name: "X", Email: "x@acme.io", Role: "hr"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubmitRequestTwiceConflicts(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 3)

	req, err := f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: laptop.ID, RequesterEmail: "e@acme.io", Note: "need it"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.RequestStatus)
	assert.Nil(t, req.ApprovalDate)
	assert.Equal(t, "Acme", req.CompanyName)
	assert.Equal(t, "hr@acme.io", req.HREmail)

	_, err = f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: laptop.ID, RequesterEmail: "E@acme.io"})
	assert.ErrorIs(t, err, ErrConflict)

	pending, total, err := f.store.ListRequests(f.ctx, store.RequestFilter{Status: models.RequestPending}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, pending, 1)
	assert.Equal(t, []string{models.EventRequestCreated}, f.events.types())
}

func TestSubmitRequestValidation(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 1)

	_, err := f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: laptop.ID, RequesterEmail: "ghost@acme.io"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: laptop.ID, RequesterEmail: "e@acme.io", CompanyName: "Globex"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	other := f.asset("Chair", models.AssetNonReturnable, 1)
	require.NoError(t, f.engine.DeleteAsset(f.ctx, f.hr, other.ID))
	_, err = f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: other.ID, RequesterEmail: "e@acme.io"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApproveCreatesOneAffiliation(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 3)
	mouse := f.asset("Mouse", models.AssetNonReturnable, 3)

	req, err := f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: laptop.ID, RequesterEmail: "e@acme.io"})
	require.NoError(t, err)

	d, err := f.engine.DecideRequest(f.ctx, f.hr, req.ID, models.RequestApproved)
	require.NoError(t, err)
	assert.True(t, d.AffiliationCreated)
	require.NotNil(t, d.Affiliation)
	assert.Equal(t, "Emp e@acme.io", d.Affiliation.EmployeeName)
	assert.Equal(t, "Acme", d.Affiliation.CompanyName)
	assert.Equal(t, models.RequestApproved, d.Request.RequestStatus)
	assert.Equal(t, "hr@acme.io", d.Request.ProcessedBy)
	assert.NotNil(t, d.Request.ApprovalDate)

	affs, total, err := f.store.ListAffiliations(f.ctx, "Acme", store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, affs, 1)

	// A second approval reuses the affiliation.
	req2, err := f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: mouse.ID, RequesterEmail: "e@acme.io"})
	require.NoError(t, err)
	d2, err := f.engine.DecideRequest(f.ctx, f.hr, req2.ID, models.RequestApproved)
	require.NoError(t, err)
	assert.False(t, d2.AffiliationCreated)
	_, total, _ = f.store.ListAffiliations(f.ctx, "Acme", store.Page{})
	assert.EqualValues(t, 1, total)

	_, err = f.engine.DecideRequest(f.ctx, f.hr, req.ID, models.RequestRejected)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRejectCreatesNoAffiliation(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 3)

	req, err := f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: laptop.ID, RequesterEmail: "e@acme.io"})
	require.NoError(t, err)

	d, err := f.engine.DecideRequest(f.ctx, f.hr, req.ID, models.RequestRejected)
	require.NoError(t, err)
	assert.False(t, d.AffiliationCreated)
	assert.Nil(t, d.Affiliation)
	assert.Nil(t, d.Request.ApprovalDate)

	_, total, err := f.store.ListAffiliations(f.ctx, "Acme", store.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDecideRequestErrors(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 3)
	req, err := f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: laptop.ID, RequesterEmail: "e@acme.io"})
	require.NoError(t, err)

	_, err = f.engine.DecideRequest(f.ctx, f.hr, req.ID, "maybe")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.engine.DecideRequest(f.ctx, f.hr, laptop.ID, models.RequestApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	other, err := f.engine.Register(f.ctx, RegisterInput{Name: "Gus", Email: "hr@globex.io", Role: "hr", CompanyName: "Globex"})
	require.NoError(t, err)
	_, err = f.engine.DecideRequest(f.ctx, other, req.ID, models.RequestApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.store.RequestByID(f.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, got.RequestStatus)
}

func TestAssignAsset(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 2)
	f.affiliate("e@acme.io", laptop)

	a, err := f.engine.AssignAsset(f.ctx, f.hr, laptop.ID, "e@acme.io")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentAssigned, a.Status)
	assert.Equal(t, "Laptop", a.AssetName)
	assert.Equal(t, 1, f.available(laptop))
	assert.Equal(t, 1, f.currentEmployees())

	// Second assignment of the same pair conflicts and leaves stock alone.
	_, err = f.engine.AssignAsset(f.ctx, f.hr, laptop.ID, "e@acme.io")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, f.available(laptop))
	assert.Equal(t, 1, f.currentEmployees())

	// A second asset for the same employee does not use another slot.
	mouse := f.asset("Mouse", models.AssetNonReturnable, 1)
	_, err = f.engine.AssignAsset(f.ctx, f.hr, mouse.ID, "e@acme.io")
	require.NoError(t, err)
	assert.Equal(t, 1, f.currentEmployees())
	assert.Equal(t, 0, f.available(mouse))

	assert.Contains(t, f.events.types(), models.EventAssetAssigned)
}

func TestAssignAssetFailures(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	f.employee("stranger@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 1)
	empty := f.asset("Monitor", models.AssetReturnable, 0)
	f.affiliate("e@acme.io", laptop)

	_, err := f.engine.AssignAsset(f.ctx, f.hr, f.hr.ID, "e@acme.io")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.AssignAsset(f.ctx, f.hr, empty.ID, "e@acme.io")
	assert.ErrorIs(t, err, ErrExhausted)

	_, err = f.engine.AssignAsset(f.ctx, f.hr, laptop.ID, "stranger@acme.io")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, f.available(laptop))
	assert.Equal(t, 0, f.currentEmployees())
}

func TestAssignCapacityExceeded(t *testing.T) {
	f := newFixture(t, 2)
	for _, email := range []string{"a@acme.io", "b@acme.io", "e@acme.io"} {
		f.employee(email)
	}
	seed := f.asset("Badge", models.AssetNonReturnable, 10)
	for _, email := range []string{"a@acme.io", "b@acme.io", "e@acme.io"} {
		f.affiliate(email, seed)
	}
	for _, email := range []string{"a@acme.io", "b@acme.io"} {
		_, err := f.engine.AssignAsset(f.ctx, f.hr, seed.ID, email)
		require.NoError(t, err)
	}
	require.Equal(t, 2, f.currentEmployees())

	a := f.asset("Laptop", models.AssetReturnable, 1)
	_, err := f.engine.AssignAsset(f.ctx, f.hr, a.ID, "e@acme.io")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 1, f.available(a))
	assert.Equal(t, 2, f.currentEmployees())

	held, err := f.store.CountAssignments(f.ctx, "e@acme.io", "Acme")
	require.NoError(t, err)
	assert.Zero(t, held)

	// a is already counted, so the full company can still hand them more.
	_, err = f.engine.AssignAsset(f.ctx, f.hr, a.ID, "a@acme.io")
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(a))
	assert.Equal(t, 2, f.currentEmployees())
}

func TestAvailableNeverNegative(t *testing.T) {
	f := newFixture(t, 10)
	a := f.asset("Laptop", models.AssetReturnable, 2)
	emails := []string{"a@acme.io", "b@acme.io", "c@acme.io", "d@acme.io"}
	for _, email := range emails {
		f.employee(email)
		f.affiliate(email, a)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(emails))
	for i, email := range emails {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			_, errs[i] = f.engine.AssignAsset(f.ctx, f.hr, a.ID, email)
		}(i, email)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrExhausted)
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 0, f.available(a))
	assert.Equal(t, 2, f.currentEmployees())

	_, err := f.engine.RemoveEmployee(f.ctx, f.hr, "a@acme.io")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f.available(a), 0)
}

func TestReturnAsset(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 1)
	pen := f.asset("Pen", models.AssetNonReturnable, 1)
	f.affiliate("e@acme.io", laptop)

	a, err := f.engine.AssignAsset(f.ctx, f.hr, laptop.ID, "e@acme.io")
	require.NoError(t, err)
	p, err := f.engine.AssignAsset(f.ctx, f.hr, pen.ID, "e@acme.io")
	require.NoError(t, err)

	_, err = f.engine.ReturnAsset(f.ctx, "someone@acme.io", a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.ReturnAsset(f.ctx, "e@acme.io", p.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := f.engine.ReturnAsset(f.ctx, "e@acme.io", a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentReturned, got.Status)
	require.NotNil(t, got.ReturnDate)
	assert.Equal(t, 1, f.available(laptop))

	_, err = f.engine.ReturnAsset(f.ctx, "e@acme.io", a.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, f.available(laptop))

	// Returned records still hold the capacity slot until removal.
	assert.Equal(t, 1, f.currentEmployees())
}

func TestRemoveEmployee(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	f.employee("keep@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 2)
	mouse := f.asset("Mouse", models.AssetNonReturnable, 2)

	req := f.affiliate("e@acme.io", laptop)
	f.affiliate("keep@acme.io", laptop)

	_, err := f.engine.AssignAsset(f.ctx, f.hr, laptop.ID, "e@acme.io")
	require.NoError(t, err)
	_, err = f.engine.AssignAsset(f.ctx, f.hr, mouse.ID, "e@acme.io")
	require.NoError(t, err)
	_, err = f.engine.AssignAsset(f.ctx, f.hr, laptop.ID, "keep@acme.io")
	require.NoError(t, err)
	require.Equal(t, 0, f.available(laptop))
	require.Equal(t, 1, f.available(mouse))
	require.Equal(t, 2, f.currentEmployees())

	r, err := f.engine.RemoveEmployee(f.ctx, f.hr, "e@acme.io")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Restocked)
	assert.EqualValues(t, 2, r.AssignmentsDeleted)
	assert.Equal(t, 1, r.RequestsReset)

	assert.Equal(t, 1, f.available(laptop))
	assert.Equal(t, 2, f.available(mouse))
	assert.Equal(t, 1, f.currentEmployees())

	_, err = f.store.AffiliationFor(f.ctx, "e@acme.io", "Acme")
	assert.ErrorIs(t, err, store.ErrNotFound)
	held, err := f.store.CountAssignments(f.ctx, "e@acme.io", "Acme")
	require.NoError(t, err)
	assert.Zero(t, held)

	got, err := f.store.RequestByID(f.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, got.RequestStatus)
	assert.Nil(t, got.ApprovalDate)
	assert.Empty(t, got.ProcessedBy)

	_, err = f.store.AffiliationFor(f.ctx, "keep@acme.io", "Acme")
	assert.NoError(t, err)

	_, err = f.engine.RemoveEmployee(f.ctx, f.hr, "e@acme.io")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, f.events.types(), models.EventEmployeeRemoved)
}

func TestRemoveEmployeeResetsOneRequestPerAsset(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 5)
	mouse := f.asset("Mouse", models.AssetNonReturnable, 5)

	f.affiliate("e@acme.io", laptop)
	// Rejected, then re-requested and left pending.
	rejected, err := f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: mouse.ID, RequesterEmail: "e@acme.io"})
	require.NoError(t, err)
	_, err = f.engine.DecideRequest(f.ctx, f.hr, rejected.ID, models.RequestRejected)
	require.NoError(t, err)
	_, err = f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: mouse.ID, RequesterEmail: "e@acme.io"})
	require.NoError(t, err)
	// Two decided requests for the laptop; only the newest is reset.
	again, err := f.engine.SubmitRequest(f.ctx, SubmitInput{AssetID: laptop.ID, RequesterEmail: "e@acme.io"})
	require.NoError(t, err)
	_, err = f.engine.DecideRequest(f.ctx, f.hr, again.ID, models.RequestApproved)
	require.NoError(t, err)

	r, err := f.engine.RemoveEmployee(f.ctx, f.hr, "e@acme.io")
	require.NoError(t, err)
	assert.Equal(t, 1, r.RequestsReset)
	assert.Equal(t, 0, f.currentEmployees())

	got, err := f.store.RequestByID(f.ctx, again.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, got.RequestStatus)

	got, err = f.store.RequestByID(f.ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, got.RequestStatus)

	pending, _, err := f.store.ListRequests(f.ctx, store.RequestFilter{Status: models.RequestPending}, store.Page{})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestUpdateAsset(t *testing.T) {
	f := newFixture(t, 5)
	f.employee("e@acme.io")
	laptop := f.asset("Laptop", models.AssetReturnable, 2)
	f.affiliate("e@acme.io", laptop)
	_, err := f.engine.AssignAsset(f.ctx, f.hr, laptop.ID, "e@acme.io")
	require.NoError(t, err)

	qty := 5
	name := "Laptop Pro"
	got, err := f.engine.UpdateAsset(f.ctx, f.hr, laptop.ID, AssetPatch{ProductName: &name, ProductQuantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, "Laptop Pro", got.ProductName)
	assert.Equal(t, 5, got.ProductQuantity)
	assert.Equal(t, 4, got.AvailableQuantity)

	zero := 0
	_, err = f.engine.UpdateAsset(f.ctx, f.hr, laptop.ID, AssetPatch{ProductQuantity: &zero})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 4, f.available(laptop))

	bad := "Disposable"
	_, err = f.engine.UpdateAsset(f.ctx, f.hr, laptop.ID, AssetPatch{ProductType: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListAssetsScope(t *testing.T) {
	f := newFixture(t, 5)
	f.asset("Laptop", models.AssetReturnable, 2)
	globex, err := f.engine.Register(f.ctx, RegisterInput{Name: "Gus", Email: "hr@globex.io", Role: "hr", CompanyName: "Globex"})
	require.NoError(t, err)
	_, err = f.engine.AddAsset(f.ctx, globex, AssetInput{ProductName: "Desk", ProductType: models.AssetNonReturnable, ProductQuantity: 1})
	require.NoError(t, err)

	items, total, err := f.engine.ListAssets(f.ctx, f.hr, store.AssetFilter{CompanyNames: []string{"Globex"}}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Laptop", items[0].ProductName)

	emp := f.employee("e@acme.io")
	_, total, err = f.engine.ListAssets(f.ctx, emp, store.AssetFilter{}, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
