// Package workflow holds the request, approval, assignment and removal rules.
// Every mutating operation runs inside one store transaction.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"assetmgt/models"
	"assetmgt/store"
)

// Notifier receives workflow events after a transaction commits.
type Notifier interface {
	Publish(ev models.Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(models.Event) {}

type Engine struct {
	store        store.Store
	notify       Notifier
	log          *zap.SugaredLogger
	now          func() time.Time
	defaultLimit int
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notify = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDefaultPackageLimit sets the employee limit given to new HR accounts.
func WithDefaultPackageLimit(n int) Option {
	return func(e *Engine) { e.defaultLimit = n }
}

func New(s store.Store, lg *zap.SugaredLogger, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		notify:       nopNotifier{},
		log:          lg,
		now:          func() time.Time { return time.Now().UTC() },
		defaultLimit: 5,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) publish(typ, company, actor string, data interface{}) {
	e.notify.Publish(models.Event{
		Type:        typ,
		CompanyName: company,
		Actor:       actor,
		Data:        data,
		Timestamp:   e.now(),
	})
}

// notFound converts a store miss into ErrNotFound naming what was missing.
func notFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
