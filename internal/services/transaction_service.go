package services

import (
	"context"
	"strings"
	"time"

	"coinc/internal/core"
	"coinc/internal/feed"
	applog "coinc/internal/log"
	"coinc/internal/store"
)

const writeTimeout = 7 * time.Second

// Notifier is told about every committed mutation. *feed.Hub implements it.
type Notifier interface {
	Notify(ctx context.Context, scope feed.Scope)
	NotifyOwner(ctx context.Context, owner string)
}

// EventPublisher announces committed mutations to other systems.
// *amqp.Client implements it.
type EventPublisher interface {
	PublishCreated(ctx context.Context, t core.Transaction) error
	PublishDeleted(ctx context.Context, owner, id string) error
}

// Writer is the store surface the actions need.
type Writer interface {
	store.Inserter
	store.Deleter
}

// TransactionService runs the create and delete actions.
type TransactionService struct {
	store    Writer
	notifier Notifier
	events   EventPublisher
	logger   *applog.Logger
	slog     *applog.StructuredLogger
	now      func() time.Time
}

type Option func(*TransactionService)

func WithNotifier(n Notifier) Option {
	return func(s *TransactionService) { s.notifier = n }
}

func WithEvents(p EventPublisher) Option {
	return func(s *TransactionService) { s.events = p }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *TransactionService) { s.logger = l.WithComponent(applog.ComponentActions) }
}

// WithClock sets the clock used to default the month.
func WithClock(now func() time.Time) Option {
	return func(s *TransactionService) { s.now = now }
}

func NewTransactionService(w Writer, opts ...Option) *TransactionService {
	s := &TransactionService{
		store:  w,
		logger: applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentActions),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.slog = applog.NewStructuredLogger(s.logger)
	return s
}

// Create validates in and stores it. The owner must already be set on in
// from the caller's session.
func (s *TransactionService) Create(ctx context.Context, in core.TransactionInput) ActionResult {
	res := newResult()
	res.enter(StateValidating)

	tx, fieldErrs := core.ValidateTransactionInput(in, s.now())
	if in.UserID == "" {
		if fieldErrs == nil {
			fieldErrs = core.FieldErrors{}
		}
		fieldErrs.Add("user", "Sign in to add transactions.")
	}
	if !fieldErrs.Empty() {
		res.enter(StateRejected)
		res.Message = MsgInvalidForm
		res.FieldErrors = fieldErrs
		s.logger.DebugContext(ctx, "Transaction rejected",
			applog.FieldUserID, in.UserID, applog.FieldErrorType, applog.ErrorTypeValidation)
		return res
	}

	res.enter(StateWriting)
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	stored, err := s.store.InsertTransaction(wctx, tx)
	if err != nil {
		res.enter(StateFailed)
		res.Message = MsgAddFailed
		s.slog.LogError(ctx, "Failed to store transaction", err, applog.ComponentActions, applog.OpCreate,
			applog.NewFields().WithScope(tx.UserID, tx.Month).WithErrorType(applog.ErrorTypeDatabase))
		return res
	}

	res.enter(StateCommitted)
	res.Message = MsgAdded
	res.Transaction = &stored
	scope := feed.Scope{Owner: stored.UserID, Month: stored.Month}
	res.Changed = &scope
	s.slog.LogTransactionCreated(ctx, stored)

	if s.notifier != nil {
		s.notifier.Notify(ctx, scope)
	}
	if s.events != nil {
		if err := s.events.PublishCreated(ctx, stored); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish transaction event",
				applog.FieldError, err, applog.FieldTransactionID, stored.ID, applog.FieldOperation, applog.OpPublish)
		}
	}
	return res
}

// Delete removes id from owner's records. Unknown ids succeed.
func (s *TransactionService) Delete(ctx context.Context, owner, id string) ActionResult {
	res := newResult()
	res.enter(StateValidating)

	id = strings.TrimSpace(id)
	if id == "" {
		res.enter(StateRejected)
		res.Message = MsgMissingID
		s.logger.WarnContext(ctx, "Delete rejected: missing transaction id",
			applog.FieldUserID, owner, applog.FieldOperation, applog.OpDelete,
			applog.FieldErrorType, applog.ErrorTypeValidation)
		return res
	}
	if owner == "" {
		res.enter(StateRejected)
		res.Message = MsgDeleteFailed
		s.logger.WarnContext(ctx, "Delete rejected: no owner",
			applog.FieldTransactionID, id, applog.FieldOperation, applog.OpDelete,
			applog.FieldErrorType, applog.ErrorTypeAuth)
		return res
	}

	res.enter(StateWriting)
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.store.DeleteTransaction(wctx, owner, id); err != nil {
		res.enter(StateFailed)
		res.Message = MsgDeleteFailed
		s.slog.LogError(ctx, "Failed to delete transaction", err, applog.ComponentActions, applog.OpDelete,
			applog.NewFields().WithScope(owner, "").WithErrorType(applog.ErrorTypeDatabase))
		return res
	}

	res.enter(StateCommitted)
	res.Message = MsgDeleted
	res.Changed = &feed.Scope{Owner: owner}
	s.logger.InfoContext(ctx, "Transaction deleted",
		applog.FieldUserID, owner, applog.FieldTransactionID, id, applog.FieldOperation, applog.OpDelete)

	if s.notifier != nil {
		s.notifier.NotifyOwner(ctx, owner)
	}
	if s.events != nil {
		if err := s.events.PublishDeleted(ctx, owner, id); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish transaction event",
				applog.FieldError, err, applog.FieldTransactionID, id, applog.FieldOperation, applog.OpPublish)
		}
	}
	return res
}
