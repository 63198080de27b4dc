package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"assetmgt/auth"
	"assetmgt/handlers"
	"assetmgt/middleware"
	"assetmgt/models"
	"assetmgt/payment"
	"assetmgt/store"
	"assetmgt/websocket"
	"assetmgt/workflow"
)

type stubGateway struct {
	mu       sync.Mutex
	sessions map[string]payment.Session
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, p payment.CheckoutParams) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := payment.Session{
		ID:            "cs_" + p.TransactionID,
		URL:           "https://checkout.example/cs_" + p.TransactionID,
		PaymentStatus: "unpaid",
		AmountTotal:   p.Amount,
		Currency:      p.Currency,
		Metadata: map[string]string{
			"transactionId": p.TransactionID,
			"hrEmail":       p.HREmail,
			"packageName":   p.PackageName,
		},
	}
	g.sessions[s.ID] = s
	return s, nil
}

func (g *stubGateway) GetCheckoutSession(_ context.Context, id string) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return payment.Session{}, payment.ErrSessionNotFound
	}
	return s, nil
}

func (g *stubGateway) markPaid(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.sessions[id]
	s.PaymentStatus = "paid"
	g.sessions[id] = s
}

type apiClient struct {
	baseURL  string
	client   *http.Client
	t        *testing.T
	verifier *auth.JWTVerifier
	gateway  *stubGateway
	store    *store.Memory
	hub      *websocket.Hub
}

const testOrigin = "https://app.example"

func newTestAPI(t *testing.T, packageLimit int) *apiClient {
	t.Helper()
	lg := zap.NewNop().Sugar()

	st := store.NewMemory()
	require.NoError(t, store.SeedPackages(context.Background(), st))
	hub := websocket.NewHub(lg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	engine := workflow.New(st, lg, workflow.WithNotifier(hub), workflow.WithDefaultPackageLimit(packageLimit))
	gw := &stubGateway{sessions: map[string]payment.Session{}}
	verifier := auth.NewJWTVerifier("test-secret", time.Hour)

	h := handlers.New(handlers.Deps{
		Store:    st,
		Engine:   engine,
		Payments: payment.NewService(st, gw, hub, lg),
		Hub:      hub,
		Log:      lg,
		Timeout:  5 * time.Second,
		Origins:  []string{testOrigin},
	})

	r := mux.NewRouter()
	RegisterRoutes(r, h, Guards{Authenticate: middleware.Authenticate(verifier, st, lg)})
	r.Use(middleware.Recovery(lg))
	r.Use(middleware.Logging(lg))
	r.Use(middleware.CORS([]string{testOrigin}))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL:  srv.URL,
		client:   srv.Client(),
		t:        t,
		verifier: verifier,
		gateway:  gw,
		store:    st,
		hub:      hub,
	}
}

func (c *apiClient) token(email string) string {
	c.t.Helper()
	tok, err := c.verifier.Issue(email)
	require.NoError(c.t, err)
	return tok
}

// do sends a JSON request as email (anonymous when empty) and decodes the
// response into out when out is non-nil.
func (c *apiClient) do(method, path, email string, body any, out any) int {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(c.t, err)
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set("Authorization", "Bearer "+c.token(email))
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *apiClient) register(name, email, role, company string) {
	c.t.Helper()
	code := c.do(http.MethodPost, "/register", "", map[string]string{
		"name": name, "email": email, "role": role, "companyName": company,
	}, nil)
	require.Equal(c.t, http.StatusCreated, code)
}

func (c *apiClient) addAsset(name, typ string, qty int) models.Asset {
	c.t.Helper()
	var a models.Asset
	code := c.do(http.MethodPost, "/addasset", "hr@acme.io", map[string]any{
		"productName": name, "productType": typ, "productQuantity": qty,
	}, &a)
	require.Equal(c.t, http.StatusCreated, code)
	return a
}

func (c *apiClient) requestAndApprove(email string, a models.Asset) {
	c.t.Helper()
	var req models.Request
	require.Equal(c.t, http.StatusCreated, c.do(http.MethodPost, "/reqasset", email, map[string]string{"assetId": a.ID.Hex()}, &req))
	require.Equal(c.t, http.StatusOK, c.do(http.MethodPatch, "/request/updatestatus", "hr@acme.io",
		map[string]string{"id": req.ID.Hex(), "status": "approved"}, nil))
}

type errorBody struct {
	Message string `json:"message"`
}

func TestPublicRoutes(t *testing.T) {
	api := newTestAPI(t, 5)

	var health handlers.HealthCheckResponse
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", "", nil, &health))
	assert.Equal(t, "healthy", health.Status)

	var pkgs []models.Package
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/packages", "", nil, &pkgs))
	assert.Len(t, pkgs, 3)

	var e errorBody
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/register", "", map[string]string{
		"name": "X", "email": "x@acme.io", "role": "admin",
	}, &e))
	assert.NotEmpty(t, e.Message)
}

func TestAuthorizationGuard(t *testing.T) {
	api := newTestAPI(t, 5)
	api.register("Hana", "hr@acme.io", "hr", "Acme")
	api.register("Eve", "e@acme.io", "employee", "")

	var e errorBody
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/assets", "", nil, &e))
	assert.NotEmpty(t, e.Message)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/addasset", "e@acme.io",
		map[string]any{"productName": "Laptop", "productType": "Returnable", "productQuantity": 1}, nil))
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/emlist", "e@acme.io", nil, nil))
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/users/hr@acme.io", "e@acme.io", nil, nil))

	var assets handlers.List[models.Asset]
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/assets", "e@acme.io", nil, &assets))
	assert.Zero(t, assets.Total)

	// Nothing was written by the rejected call.
	_, total, err := api.store.ListAssets(context.Background(), store.AssetFilter{}, store.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRequestApproveAssignRemove(t *testing.T) {
	api := newTestAPI(t, 5)
	api.register("Hana", "hr@acme.io", "hr", "Acme")
	api.register("Eve", "e@acme.io", "employee", "")
	laptop := api.addAsset("Laptop", models.AssetReturnable, 1)

	var req models.Request
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/reqasset", "e@acme.io",
		map[string]string{"assetId": laptop.ID.Hex(), "note": "for onboarding"}, &req))
	assert.Equal(t, models.RequestPending, req.RequestStatus)

	var e errorBody
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/reqasset", "e@acme.io",
		map[string]string{"assetId": laptop.ID.Hex()}, &e))

	var requests handlers.List[models.Request]
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/requests?status=pending", "hr@acme.io", nil, &requests))
	assert.EqualValues(t, 1, requests.Total)

	var decision workflow.Decision
	require.Equal(t, http.StatusOK, api.do(http.MethodPatch, "/request/updatestatus", "hr@acme.io",
		map[string]string{"id": req.ID.Hex(), "status": "approved"}, &decision))
	assert.True(t, decision.AffiliationCreated)

	var employees handlers.List[models.EmployeeAffiliation]
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/emlist", "hr@acme.io", nil, &employees))
	assert.EqualValues(t, 1, employees.Total)

	var assigned models.AssignedAsset
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/assign", "hr@acme.io",
		map[string]string{"assetId": laptop.ID.Hex(), "employeeEmail": "e@acme.io"}, &assigned))
	assert.Equal(t, models.AssignmentAssigned, assigned.Status)

	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/assign", "hr@acme.io",
		map[string]string{"assetId": laptop.ID.Hex(), "employeeEmail": "e@acme.io"}, &e))

	var mine handlers.List[models.AssignedAsset]
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/assigned", "e@acme.io", nil, &mine))
	assert.EqualValues(t, 1, mine.Total)

	var removal workflow.Removal
	require.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/emdelete?email="+url.QueryEscape("e@acme.io"), "hr@acme.io", nil, &removal))
	assert.Equal(t, 1, removal.Restocked)
	assert.Equal(t, 1, removal.RequestsReset)

	var got models.Asset
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/assets/"+laptop.ID.Hex(), "hr@acme.io", nil, &got))
	assert.Equal(t, 1, got.AvailableQuantity)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/emdelete?email=e@acme.io", "hr@acme.io", nil, &e))
}

func TestAssignCapacityExceeded(t *testing.T) {
	api := newTestAPI(t, 1)
	api.register("Hana", "hr@acme.io", "hr", "Acme")
	api.register("Ann", "a@acme.io", "employee", "")
	api.register("Eve", "e@acme.io", "employee", "")
	badge := api.addAsset("Badge", models.AssetNonReturnable, 5)
	api.requestAndApprove("a@acme.io", badge)
	api.requestAndApprove("e@acme.io", badge)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/assign", "hr@acme.io",
		map[string]string{"assetId": badge.ID.Hex(), "employeeEmail": "a@acme.io"}, nil))

	var e errorBody
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/assign", "hr@acme.io",
		map[string]string{"assetId": badge.ID.Hex(), "employeeEmail": "e@acme.io"}, &e))
	assert.Contains(t, e.Message, "employee limit")

	var got models.Asset
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/assets/"+badge.ID.Hex(), "hr@acme.io", nil, &got))
	assert.Equal(t, 4, got.AvailableQuantity)

	var assignable map[string]any
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/assignable", "hr@acme.io", nil, &assignable))
	assert.EqualValues(t, 0, assignable["remainingCapacity"])
}

func TestAssignExhausted(t *testing.T) {
	api := newTestAPI(t, 5)
	api.register("Hana", "hr@acme.io", "hr", "Acme")
	api.register("Eve", "e@acme.io", "employee", "")
	empty := api.addAsset("Monitor", models.AssetReturnable, 0)
	other := api.addAsset("Mouse", models.AssetReturnable, 1)
	api.requestAndApprove("e@acme.io", other)

	var e errorBody
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/assign", "hr@acme.io",
		map[string]string{"assetId": empty.ID.Hex(), "employeeEmail": "e@acme.io"}, &e))
	assert.Equal(t, "Monitor: asset out of stock", e.Message)
}

func TestPaginationValidation(t *testing.T) {
	api := newTestAPI(t, 5)
	api.register("Hana", "hr@acme.io", "hr", "Acme")
	for i := 0; i < 3; i++ {
		api.addAsset("Item", models.AssetReturnable, i+1)
	}

	var page handlers.List[models.Asset]
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/assets?page=1&limit=2", "hr@acme.io", nil, &page))
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Items, 1)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/assets", "hr@acme.io", nil, &page))
	assert.Len(t, page.Items, 3)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/assets?limit=abc", "hr@acme.io", nil, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/assets?page=-1", "hr@acme.io", nil, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/assets?stock=some", "hr@acme.io", nil, nil))
}

func TestPaymentFlow(t *testing.T) {
	api := newTestAPI(t, 5)
	api.register("Hana", "hr@acme.io", "hr", "Acme")

	var e errorBody
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/payment-checkout-session", "hr@acme.io",
		map[string]string{"packageName": "platinum"}, &e))

	var checkout payment.Checkout
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/payment-checkout-session", "hr@acme.io",
		map[string]string{"packageName": "standard"}, &checkout))
	require.NotEmpty(t, checkout.TransactionID)

	body := map[string]string{"sessionId": checkout.SessionID, "transactionId": checkout.TransactionID}
	assert.Equal(t, http.StatusPaymentRequired, api.do(http.MethodPatch, "/payment-success", "hr@acme.io", body, &e))

	api.gateway.markPaid(checkout.SessionID)
	var first, second models.Payment
	require.Equal(t, http.StatusOK, api.do(http.MethodPatch, "/payment-success", "hr@acme.io", body, &first))
	require.Equal(t, http.StatusOK, api.do(http.MethodPatch, "/payment-success", "hr@acme.io", body, &second))
	assert.Equal(t, first.ID, second.ID)

	var user struct {
		PackageLimit int    `json:"packageLimit"`
		Subscription string `json:"subscription"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/users/hr@acme.io", "hr@acme.io", nil, &user))
	assert.Equal(t, 15, user.PackageLimit)
	assert.Equal(t, "standard", user.Subscription)

	var payments []models.Payment
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/payments", "hr@acme.io", nil, &payments))
	assert.Len(t, payments, 1)
}

func TestStats(t *testing.T) {
	api := newTestAPI(t, 5)
	api.register("Hana", "hr@acme.io", "hr", "Acme")
	api.register("Eve", "e@acme.io", "employee", "")
	laptop := api.addAsset("Laptop", models.AssetReturnable, 3)
	api.addAsset("Pen", models.AssetNonReturnable, 50)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/reqasset", "e@acme.io",
		map[string]string{"assetId": laptop.ID.Hex()}, nil))

	var stats struct {
		RequestsByStatus map[string]int64 `json:"requestsByStatus"`
		AssetsByType     map[string]int64 `json:"assetsByType"`
		LimitedStock     []models.Asset   `json:"limitedStock"`
		PackageLimit     int              `json:"packageLimit"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/stats", "hr@acme.io", nil, &stats))
	assert.EqualValues(t, 1, stats.RequestsByStatus[models.RequestPending])
	assert.EqualValues(t, 1, stats.AssetsByType[models.AssetReturnable])
	assert.EqualValues(t, 1, stats.AssetsByType[models.AssetNonReturnable])
	require.Len(t, stats.LimitedStock, 1)
	assert.Equal(t, "Laptop", stats.LimitedStock[0].ProductName)
	assert.Equal(t, 5, stats.PackageLimit)
}

func (c *apiClient) dialWS(email, origin string) (*gorillaws.Conn, *http.Response, error) {
	c.t.Helper()
	u := "ws" + strings.TrimPrefix(c.baseURL, "http") + PathWS + "?token=" + url.QueryEscape(c.token(email))
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := gorillaws.DefaultDialer.Dial(u, header)
	if conn != nil {
		c.t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func TestLiveEvents(t *testing.T) {
	api := newTestAPI(t, 5)
	api.register("Hana", "hr@acme.io", "hr", "Acme")
	api.register("Eve", "e@acme.io", "employee", "")
	laptop := api.addAsset("Laptop", models.AssetReturnable, 2)

	_, resp, err := api.dialWS("hr@acme.io", "https://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = api.dialWS("ghost@acme.io", testOrigin)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := api.dialWS("hr@acme.io", testOrigin)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return api.hub.ClientCount("Acme") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/reqasset", "e@acme.io",
		map[string]string{"assetId": laptop.ID.Hex()}, nil))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventRequestCreated, ev.Type)
	assert.Equal(t, "Acme", ev.CompanyName)
	assert.Equal(t, "e@acme.io", ev.Actor)
}
