package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Session is the subset of a checkout session the service relies on.
type Session struct {
	ID            string
	URL           string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

// CheckoutParams describes one package purchase.
type CheckoutParams struct {
	TransactionID string
	HREmail       string
	PackageName   string
	Amount        int64 // cents
	Currency      string
}

// Gateway is the external payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (Session, error)
	GetCheckoutSession(ctx context.Context, id string) (Session, error)
}

// StripeGateway talks to the Stripe Checkout REST API.
type StripeGateway struct {
	baseURL    string
	secretKey  string
	siteURL    string
	httpClient *http.Client
}

func NewStripeGateway(baseURL, secretKey, siteURL string) *StripeGateway {
	return &StripeGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		siteURL:    strings.TrimRight(siteURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("customer_email", p.HREmail)
	form.Set("client_reference_id", p.TransactionID)
	form.Set("success_url", g.siteURL+"/payment/success?session_id={CHECKOUT_SESSION_ID}&transaction_id="+url.QueryEscape(p.TransactionID))
	form.Set("cancel_url", g.siteURL+"/payment/cancel")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", p.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", p.PackageName+" package")
	form.Set("metadata[transactionId]", p.TransactionID)
	form.Set("metadata[hrEmail]", p.HREmail)
	form.Set("metadata[packageName]", p.PackageName)

	body, err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, err
	}
	return parseSession(body), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (Session, error) {
	body, err := g.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return Session{}, err
	}
	return parseSession(body), nil
}

func (g *StripeGateway) do(ctx context.Context, method, path string, form io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, form)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(g.secretKey, "")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = string(body)
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", msg, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("stripe %s: %s", resp.Status, msg)
	}
	return body, nil
}

func parseSession(body []byte) Session {
	res := gjson.ParseBytes(body)
	s := Session{
		ID:            res.Get("id").String(),
		URL:           res.Get("url").String(),
		PaymentStatus: res.Get("payment_status").String(),
		AmountTotal:   res.Get("amount_total").Int(),
		Currency:      res.Get("currency").String(),
		Metadata:      map[string]string{},
	}
	res.Get("metadata").ForEach(func(k, v gjson.Result) bool {
		s.Metadata[k.String()] = v.String()
		return true
	})
	return s
}
