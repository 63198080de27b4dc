// Package payment sells subscription packages through an external checkout
// and raises the HR account's employee limit once a session is paid.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assetmgt/models"
	"assetmgt/store"
)

var (
	ErrUnknownPackage  = errors.New("unknown package")
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrIncomplete means the session is unpaid or does not belong to the caller.
	ErrIncomplete = errors.New("payment not completed")
)

const currency = "usd"

type Notifier interface {
	Publish(ev models.Event)
}

type Service struct {
	store   store.Store
	gateway Gateway
	notify  Notifier
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(s store.Store, g Gateway, n Notifier, lg *zap.SugaredLogger) *Service {
	return &Service{
		store:   s,
		gateway: g,
		notify:  n,
		log:     lg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type Checkout struct {
	URL           string `json:"url"`
	SessionID     string `json:"sessionId"`
	TransactionID string `json:"transactionId"`
}

// Checkout opens a checkout session for packageName on behalf of hr.
func (s *Service) Checkout(ctx context.Context, hr models.User, packageName string) (Checkout, error) {
	pkg, err := s.store.PackageByName(ctx, strings.ToLower(strings.TrimSpace(packageName)))
	if errors.Is(err, store.ErrNotFound) {
		return Checkout{}, fmt.Errorf("%q: %w", packageName, ErrUnknownPackage)
	}
	if err != nil {
		return Checkout{}, fmt.Errorf("load package: %w", err)
	}

	txID := uuid.NewString()
	sess, err := s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		TransactionID: txID,
		HREmail:       hr.Email,
		PackageName:   pkg.Name,
		Amount:        pkg.Price,
		Currency:      currency,
	})
	if err != nil {
		return Checkout{}, fmt.Errorf("create checkout session: %w", err)
	}
	s.log.Infow("checkout session created", "hr", hr.Email, "package", pkg.Name, "transaction", txID)
	return Checkout{URL: sess.URL, SessionID: sess.ID, TransactionID: txID}, nil
}

// Confirm records a paid session and applies its package limit exactly once
// per transaction id. Repeated calls return the stored payment.
func (s *Service) Confirm(ctx context.Context, hr models.User, sessionID, transactionID string) (models.Payment, error) {
	if sessionID == "" || transactionID == "" {
		return models.Payment{}, fmt.Errorf("sessionId and transactionId are required: %w", ErrIncomplete)
	}
	if p, err := s.existing(ctx, hr, transactionID); err == nil {
		return p, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.Payment{}, err
	}

	sess, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return models.Payment{}, fmt.Errorf("load checkout session: %w", err)
	}
	if sess.PaymentStatus != models.PaymentPaid {
		return models.Payment{}, fmt.Errorf("session status %q: %w", sess.PaymentStatus, ErrIncomplete)
	}
	if sess.Metadata["transactionId"] != transactionID || sess.Metadata["hrEmail"] != hr.Email {
		return models.Payment{}, fmt.Errorf("session does not match transaction: %w", ErrIncomplete)
	}

	pkg, err := s.store.PackageByName(ctx, sess.Metadata["packageName"])
	if errors.Is(err, store.ErrNotFound) {
		return models.Payment{}, fmt.Errorf("%q: %w", sess.Metadata["packageName"], ErrUnknownPackage)
	}
	if err != nil {
		return models.Payment{}, fmt.Errorf("load package: %w", err)
	}

	payment := models.Payment{
		TransactionID: transactionID,
		SessionID:     sess.ID,
		HREmail:       hr.Email,
		PackageName:   pkg.Name,
		EmployeeLimit: pkg.EmployeeLimit,
		Amount:        sess.AmountTotal,
		Currency:      sess.Currency,
		Status:        models.PaymentPaid,
		PaidAt:        s.now(),
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.InsertPayment(ctx, &payment); err != nil {
			return err
		}
		return s.store.AddPackageLimit(ctx, hr.Email, pkg.Name, pkg.EmployeeLimit)
	})
	if errors.Is(err, store.ErrDuplicate) {
		// A concurrent confirmation won the insert.
		return s.existing(ctx, hr, transactionID)
	}
	if err != nil {
		return models.Payment{}, fmt.Errorf("record payment: %w", err)
	}

	s.log.Infow("payment confirmed", "hr", hr.Email, "package", pkg.Name,
		"transaction", transactionID, "limitAdded", pkg.EmployeeLimit)
	if s.notify != nil {
		s.notify.Publish(models.Event{
			Type:        models.EventPaymentConfirmed,
			CompanyName: hr.CompanyName,
			Actor:       hr.Email,
			Data:        payment,
			Timestamp:   payment.PaidAt,
		})
	}
	return payment, nil
}

func (s *Service) existing(ctx context.Context, hr models.User, transactionID string) (models.Payment, error) {
	p, err := s.store.PaymentByTransaction(ctx, transactionID)
	if err != nil {
		return models.Payment{}, err
	}
	if p.HREmail != hr.Email {
		return models.Payment{}, fmt.Errorf("transaction belongs to another account: %w", ErrIncomplete)
	}
	return p, nil
}

func (s *Service) Payments(ctx context.Context, hr models.User) ([]models.Payment, error) {
	return s.store.ListPayments(ctx, hr.Email)
}
