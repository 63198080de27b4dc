package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assetmgt/models"
)

type memState struct {
	users        map[string]models.User // by email
	affiliations map[primitive.ObjectID]models.EmployeeAffiliation
	assets       map[primitive.ObjectID]models.Asset
	requests     map[primitive.ObjectID]models.Request
	assigned     map[primitive.ObjectID]models.AssignedAsset
	packages     map[string]models.Package
	payments     map[string]models.Payment // by transactionId
}

func newMemState() memState {
	return memState{
		users:        make(map[string]models.User),
		affiliations: make(map[primitive.ObjectID]models.EmployeeAffiliation),
		assets:       make(map[primitive.ObjectID]models.Asset),
		requests:     make(map[primitive.ObjectID]models.Request),
		assigned:     make(map[primitive.ObjectID]models.AssignedAsset),
		packages:     make(map[string]models.Package),
		payments:     make(map[string]models.Payment),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s memState) clone() memState {
	return memState{
		users:        cloneMap(s.users),
		affiliations: cloneMap(s.affiliations),
		assets:       cloneMap(s.assets),
		requests:     cloneMap(s.requests),
		assigned:     cloneMap(s.assigned),
		packages:     cloneMap(s.packages),
		payments:     cloneMap(s.payments),
	}
}

// Memory implements Store in process. Transactions are serialized and rolled
// back from a snapshot when fn fails. Writes outside a transaction wait for
// the running one to finish, so a rollback never discards them. Reads are not
// isolated and may observe a transaction's uncommitted writes.
type Memory struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   memState
}

func NewMemory() *Memory {
	return &Memory{st: newMemState()}
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

type memTxKey struct{}

func (m *Memory) inTransaction(ctx context.Context) bool {
	tx, _ := ctx.Value(memTxKey{}).(*Memory)
	return tx == m
}

// exclusive holds txMu for a write made outside a transaction.
func (m *Memory) exclusive(ctx context.Context) func() {
	if m.inTransaction(ctx) {
		return func() {}
	}
	m.txMu.Lock()
	return m.txMu.Unlock
}

func (m *Memory) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inTransaction(ctx) {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	ctx = context.WithValue(ctx, memTxKey{}, m)

	m.mu.RLock()
	snapshot := m.st.clone()
	m.mu.RUnlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func paginate[T any](items []T, p Page) []T {
	if p.Limit <= 0 {
		return items
	}
	start := p.Skip()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// ==== USERS ====

func (m *Memory) CreateUser(ctx context.Context, u *models.User) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.users[u.Email]; ok {
		return ErrDuplicate
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.st.users[u.Email] = *u
	return nil
}

func (m *Memory) UserByEmail(ctx context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.st.users[email]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) IncrementEmployees(ctx context.Context, hrEmail string) (bool, error) {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.users[hrEmail]
	if !ok || u.Role != "hr" || u.CurrentEmployees >= u.PackageLimit {
		return false, nil
	}
	u.CurrentEmployees++
	m.st.users[hrEmail] = u
	return true, nil
}

func (m *Memory) DecrementEmployees(ctx context.Context, hrEmail string) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.users[hrEmail]
	if !ok || u.Role != "hr" || u.CurrentEmployees <= 0 {
		return nil
	}
	u.CurrentEmployees--
	m.st.users[hrEmail] = u
	return nil
}

func (m *Memory) AddPackageLimit(ctx context.Context, hrEmail, packageName string, n int) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.users[hrEmail]
	if !ok || u.Role != "hr" {
		return ErrNotFound
	}
	u.PackageLimit += n
	u.Subscription = packageName
	m.st.users[hrEmail] = u
	return nil
}

// ==== ASSETS ====

func (m *Memory) InsertAsset(ctx context.Context, a *models.Asset) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if _, ok := m.st.assets[a.ID]; ok {
		return ErrDuplicate
	}
	m.st.assets[a.ID] = *a
	return nil
}

func (m *Memory) AssetByID(ctx context.Context, id primitive.ObjectID) (models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.st.assets[id]
	if !ok {
		return models.Asset{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) ListAssets(ctx context.Context, f AssetFilter, p Page) ([]models.Asset, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	companies := make(map[string]bool, len(f.CompanyNames))
	for _, c := range f.CompanyNames {
		companies[c] = true
	}

	out := []models.Asset{}
	for _, a := range m.st.assets {
		if len(companies) > 0 && !companies[a.CompanyName] {
			continue
		}
		if f.Search != "" && !containsFold(a.ProductName, f.Search) {
			continue
		}
		if f.Type != "" && a.ProductType != f.Type {
			continue
		}
		if f.Stock == "available" && a.AvailableQuantity <= 0 {
			continue
		}
		if f.Stock == "out" && a.AvailableQuantity > 0 {
			continue
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		switch f.SortQuantity {
		case "asc":
			if out[i].AvailableQuantity != out[j].AvailableQuantity {
				return out[i].AvailableQuantity < out[j].AvailableQuantity
			}
		case "desc":
			if out[i].AvailableQuantity != out[j].AvailableQuantity {
				return out[i].AvailableQuantity > out[j].AvailableQuantity
			}
		default:
			if !out[i].DateAdded.Equal(out[j].DateAdded) {
				return out[i].DateAdded.After(out[j].DateAdded)
			}
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return paginate(out, p), int64(len(out)), nil
}

func (m *Memory) UpdateAsset(ctx context.Context, a models.Asset) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.assets[a.ID]
	if !ok || cur.CompanyName != a.CompanyName {
		return ErrNotFound
	}
	cur.ProductName = a.ProductName
	cur.ProductType = a.ProductType
	cur.ProductImage = a.ProductImage
	cur.ProductQuantity = a.ProductQuantity
	cur.AvailableQuantity = a.AvailableQuantity
	cur.UpdatedAt = a.UpdatedAt
	m.st.assets[a.ID] = cur
	return nil
}

func (m *Memory) DeleteAsset(ctx context.Context, id primitive.ObjectID, companyName string) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.assets[id]
	if !ok || a.CompanyName != companyName {
		return ErrNotFound
	}
	delete(m.st.assets, id)
	return nil
}

func (m *Memory) AdjustAvailable(ctx context.Context, id primitive.ObjectID, delta int) (bool, error) {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.assets[id]
	if !ok || a.AvailableQuantity+delta < 0 {
		return false, nil
	}
	a.AvailableQuantity += delta
	m.st.assets[id] = a
	return true, nil
}

// ==== REQUESTS ====

func (m *Memory) pendingExists(assetID primitive.ObjectID, email string, except primitive.ObjectID) bool {
	for id, r := range m.st.requests {
		if id != except && r.AssetID == assetID && r.RequesterEmail == email && r.RequestStatus == models.RequestPending {
			return true
		}
	}
	return false
}

func (m *Memory) InsertRequest(ctx context.Context, r *models.Request) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.RequestStatus == models.RequestPending && m.pendingExists(r.AssetID, r.RequesterEmail, primitive.NilObjectID) {
		return ErrDuplicate
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	m.st.requests[r.ID] = *r
	return nil
}

func (m *Memory) HasPendingRequest(ctx context.Context, assetID primitive.ObjectID, requesterEmail string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pendingExists(assetID, requesterEmail, primitive.NilObjectID), nil
}

func (m *Memory) RequestByID(ctx context.Context, id primitive.ObjectID) (models.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.st.requests[id]
	if !ok {
		return models.Request{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) DecideRequest(ctx context.Context, id primitive.ObjectID, status, processedBy string, at time.Time) (bool, error) {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.requests[id]
	if !ok || r.RequestStatus != models.RequestPending {
		return false, nil
	}
	r.RequestStatus = status
	r.ProcessedBy = processedBy
	if status == models.RequestApproved {
		t := at
		r.ApprovalDate = &t
	}
	m.st.requests[id] = r
	return true, nil
}

func (m *Memory) ResetRequest(ctx context.Context, id primitive.ObjectID) (bool, error) {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.requests[id]
	if !ok || r.RequestStatus == models.RequestPending {
		return false, nil
	}
	if m.pendingExists(r.AssetID, r.RequesterEmail, id) {
		return false, ErrDuplicate
	}
	r.RequestStatus = models.RequestPending
	r.ApprovalDate = nil
	r.ProcessedBy = ""
	m.st.requests[id] = r
	return true, nil
}

func (m *Memory) ListRequests(ctx context.Context, f RequestFilter, p Page) ([]models.Request, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Request{}
	for _, r := range m.st.requests {
		if f.CompanyName != "" && r.CompanyName != f.CompanyName {
			continue
		}
		if f.RequesterEmail != "" && r.RequesterEmail != f.RequesterEmail {
			continue
		}
		if f.Status != "" && r.RequestStatus != f.Status {
			continue
		}
		if f.Search != "" && !containsFold(r.RequesterName, f.Search) &&
			!containsFold(r.RequesterEmail, f.Search) && !containsFold(r.AssetName, f.Search) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestDate.Equal(out[j].RequestDate) {
			return out[i].RequestDate.After(out[j].RequestDate)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return paginate(out, p), int64(len(out)), nil
}

// ==== AFFILIATIONS ====

func (m *Memory) InsertAffiliation(ctx context.Context, a *models.EmployeeAffiliation) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.st.affiliations {
		if cur.EmployeeEmail == a.EmployeeEmail && cur.CompanyName == a.CompanyName {
			return ErrDuplicate
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	m.st.affiliations[a.ID] = *a
	return nil
}

func (m *Memory) AffiliationFor(ctx context.Context, employeeEmail, companyName string) (models.EmployeeAffiliation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.st.affiliations {
		if a.EmployeeEmail == employeeEmail && a.CompanyName == companyName {
			return a, nil
		}
	}
	return models.EmployeeAffiliation{}, ErrNotFound
}

func (m *Memory) AffiliationsByEmployee(ctx context.Context, employeeEmail string) ([]models.EmployeeAffiliation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.EmployeeAffiliation{}
	for _, a := range m.st.affiliations {
		if a.EmployeeEmail == employeeEmail {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AffiliationDate.Before(out[j].AffiliationDate) })
	return out, nil
}

func (m *Memory) ListAffiliations(ctx context.Context, companyName string, p Page) ([]models.EmployeeAffiliation, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.EmployeeAffiliation{}
	for _, a := range m.st.affiliations {
		if a.CompanyName == companyName {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AffiliationDate.Equal(out[j].AffiliationDate) {
			return out[i].AffiliationDate.After(out[j].AffiliationDate)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return paginate(out, p), int64(len(out)), nil
}

func (m *Memory) DeleteAffiliation(ctx context.Context, employeeEmail, companyName string) (bool, error) {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.st.affiliations {
		if a.EmployeeEmail == employeeEmail && a.CompanyName == companyName {
			delete(m.st.affiliations, id)
			return true, nil
		}
	}
	return false, nil
}

// ==== ASSIGNMENTS ====

func (m *Memory) InsertAssignment(ctx context.Context, a *models.AssignedAsset) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Status == models.AssignmentAssigned {
		for _, cur := range m.st.assigned {
			if cur.AssetID == a.AssetID && cur.EmployeeEmail == a.EmployeeEmail && cur.Status == models.AssignmentAssigned {
				return ErrDuplicate
			}
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	m.st.assigned[a.ID] = *a
	return nil
}

func (m *Memory) HasActiveAssignment(ctx context.Context, assetID primitive.ObjectID, employeeEmail string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.st.assigned {
		if a.AssetID == assetID && a.EmployeeEmail == employeeEmail && a.Status == models.AssignmentAssigned {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CountAssignments(ctx context.Context, employeeEmail, companyName string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, a := range m.st.assigned {
		if a.EmployeeEmail == employeeEmail && a.CompanyName == companyName {
			n++
		}
	}
	return n, nil
}

func (m *Memory) AssignmentByID(ctx context.Context, id primitive.ObjectID) (models.AssignedAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.st.assigned[id]
	if !ok {
		return models.AssignedAsset{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) ListAssignments(ctx context.Context, f AssignmentFilter, p Page) ([]models.AssignedAsset, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.AssignedAsset{}
	for _, a := range m.st.assigned {
		if f.EmployeeEmail != "" && a.EmployeeEmail != f.EmployeeEmail {
			continue
		}
		if f.CompanyName != "" && a.CompanyName != f.CompanyName {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignmentDate.Equal(out[j].AssignmentDate) {
			return out[i].AssignmentDate.After(out[j].AssignmentDate)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return paginate(out, p), int64(len(out)), nil
}

func (m *Memory) MarkReturned(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.assigned[id]
	if !ok || a.Status != models.AssignmentAssigned {
		return false, nil
	}
	t := at
	a.Status = models.AssignmentReturned
	a.ReturnDate = &t
	m.st.assigned[id] = a
	return true, nil
}

func (m *Memory) DeleteAssignments(ctx context.Context, employeeEmail, companyName string) (int64, error) {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, a := range m.st.assigned {
		if a.EmployeeEmail == employeeEmail && a.CompanyName == companyName {
			delete(m.st.assigned, id)
			n++
		}
	}
	return n, nil
}

// ==== PACKAGES ====

func (m *Memory) UpsertPackage(ctx context.Context, p models.Package) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.st.packages[p.Name]; ok {
		p.ID = cur.ID
	} else if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.st.packages[p.Name] = p
	return nil
}

func (m *Memory) ListPackages(ctx context.Context) ([]models.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Package, 0, len(m.st.packages))
	for _, p := range m.st.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeLimit < out[j].EmployeeLimit })
	return out, nil
}

func (m *Memory) PackageByName(ctx context.Context, name string) (models.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.st.packages[name]
	if !ok {
		return models.Package{}, ErrNotFound
	}
	return p, nil
}

// ==== PAYMENTS ====

func (m *Memory) InsertPayment(ctx context.Context, p *models.Payment) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.payments[p.TransactionID]; ok {
		return ErrDuplicate
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.st.payments[p.TransactionID] = *p
	return nil
}

func (m *Memory) PaymentByTransaction(ctx context.Context, transactionID string) (models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.st.payments[transactionID]
	if !ok {
		return models.Payment{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPayments(ctx context.Context, hrEmail string) ([]models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Payment{}
	for _, p := range m.st.payments {
		if p.HREmail == hrEmail {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}

// ==== STATS ====

func (m *Memory) CompanyStats(ctx context.Context, companyName string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{
		RequestsByStatus: map[string]int64{},
		AssetsByType:     map[string]int64{},
		LimitedStock:     []models.Asset{},
	}
	for _, r := range m.st.requests {
		if r.CompanyName == companyName {
			st.RequestsByStatus[r.RequestStatus]++
		}
	}
	for _, a := range m.st.assets {
		if a.CompanyName != companyName {
			continue
		}
		st.AssetsByType[a.ProductType]++
		if a.AvailableQuantity < LimitedStockThreshold {
			st.LimitedStock = append(st.LimitedStock, a)
		}
	}
	sort.Slice(st.LimitedStock, func(i, j int) bool {
		return st.LimitedStock[i].AvailableQuantity < st.LimitedStock[j].AvailableQuantity
	})
	if len(st.LimitedStock) > 10 {
		st.LimitedStock = st.LimitedStock[:10]
	}
	return st, nil
}

var _ Store = (*Memory)(nil)
