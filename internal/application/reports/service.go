package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clientproof/backend/internal/application"
	domain "github.com/clientproof/backend/internal/domain/analysis"
	"github.com/clientproof/backend/internal/domain/payment"
	"github.com/clientproof/backend/internal/platform/logger"
)

// Generator is the slice of the analysis generator the state machine needs.
type Generator interface {
	GenerateFree(ctx context.Context, conversation string) (*domain.FreeAnalysis, error)
	GenerateFull(ctx context.Context, conversation string) (*domain.FullAnalysis, error)
}

// Service is the single source of truth for what a caller should see for an
// analysis id: the cached report, a payment demand, a retry-me signal, or a
// fresh generation. Safe for concurrent use.
type Service struct {
	Repo      domain.Repository
	Generator Generator
	Checkout  payment.Provider
	Archive   domain.ArchiveStore // optional
	Clock     application.Clock
	Log       *logger.Logger
}

// RecoveryData is client-held state used to recreate a record that was lost
// server-side, supplied on the verify-payment path.
type RecoveryData struct {
	Conversation string
	Free         *domain.FreeAnalysis
}

// SubmitFree runs the teaser analysis and creates the record. The row is only
// inserted after generation succeeds, so a model failure leaves no orphan.
func (s *Service) SubmitFree(ctx context.Context, conversation string) (*domain.Record, error) {
	free, err := s.Generator.GenerateFree(ctx, conversation)
	if err != nil {
		return nil, err
	}

	rec := &domain.Record{
		ID:           domain.ID(uuid.New().String()),
		Conversation: conversation,
		Free:         free,
		Paid:         false,
		CreatedAt:    s.Clock.Now(),
	}
	if err := s.Repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving analysis: %w", err)
	}
	s.Log.Infow("free analysis created", "id", rec.ID, "score", free.Score)
	return rec, nil
}

// Resolve walks the fulfillment state machine for one id.
//
// no-such-record        -> ErrNotFound
// unpaid                -> ErrNotPaid
// paid, report pending  -> generate now; on upstream failure ErrProcessing
// paid, report ready    -> the record, never regenerated
func (s *Service) Resolve(ctx context.Context, id domain.ID) (*domain.Record, error) {
	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Paid {
		return nil, domain.ErrNotPaid
	}
	if rec.Full != nil {
		return rec, nil
	}

	full, err := s.Generator.GenerateFull(ctx, rec.Conversation)
	if err != nil {
		// Deliberate downgrade: the client's polling loop is the retry
		// mechanism, so a generation failure is a pending state, not an error.
		s.Log.Warnw("report generation failed, client will retry", "id", id, "error", err)
		return nil, domain.ErrProcessing
	}

	won, err := s.Repo.SetFullAnalysis(ctx, id, full)
	if err != nil {
		s.Log.Errorw("persisting full report failed", "id", id, "error", err)
		return nil, domain.ErrProcessing
	}
	if !won {
		// A concurrent caller wrote first; serve the stored report.
		return s.Repo.Get(ctx, id)
	}

	rec.Full = full
	s.archive(ctx, id, full)
	return rec, nil
}

// InitiatePayment creates a checkout session bound to the record id and
// returns the redirect URL. No record mutation happens here.
func (s *Service) InitiatePayment(ctx context.Context, id domain.ID, origin string) (string, error) {
	if _, err := s.Repo.Get(ctx, id); err != nil {
		return "", err
	}
	sess, err := s.Checkout.CreateSession(ctx, payment.CreateSessionParams{
		AnalysisID: string(id),
		Origin:     origin,
	})
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}
	return sess.URL, nil
}

// ConfirmPayment is the synchronous fallback to the webhook, invoked by the
// client right after the checkout redirect. It is idempotent.
//
// The correlation check is security-critical: a genuinely paid session only
// confirms the record it was created for.
func (s *Service) ConfirmPayment(ctx context.Context, sessionRef string, id domain.ID, recovery *RecoveryData) error {
	sess, err := s.Checkout.GetSession(ctx, sessionRef)
	if err != nil {
		return fmt.Errorf("retrieving checkout session: %w", err)
	}
	if sess.PaymentStatus != payment.StatusPaid || sess.ClientReferenceID != string(id) {
		return fmt.Errorf("%w: status=%s ref=%s", payment.ErrNotVerified, sess.PaymentStatus, sess.ClientReferenceID)
	}

	_, err = s.Repo.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if recovery == nil || recovery.Conversation == "" {
			// Nothing to recreate from; the payment stands, the record is gone.
			s.Log.Warnw("verified payment for missing record, no recovery data", "id", id)
			return nil
		}
		rec := &domain.Record{
			ID:                id,
			Conversation:      recovery.Conversation,
			Free:              recovery.Free,
			Paid:              true,
			PaymentSessionRef: sessionRef,
			CreatedAt:         s.Clock.Now(),
		}
		if err := s.Repo.Insert(ctx, rec); err != nil {
			return fmt.Errorf("recreating analysis: %w", err)
		}
		s.Log.Infow("record recreated from client data", "id", id, "session", sessionRef)
		return nil
	case err != nil:
		return err
	}

	if err := s.Repo.MarkPaid(ctx, id, sessionRef); err != nil {
		return fmt.Errorf("marking paid: %w", err)
	}
	s.Log.Infow("payment confirmed", "id", id, "session", sessionRef)
	return nil
}

// HandleCompletedSession reacts to a verified payment-completed notification:
// mark the record paid, then eagerly generate the report. Generation failures
// are logged only; no caller waits on a webhook. An unknown id is a no-op,
// since delivery can race record creation or outlive retention.
func (s *Service) HandleCompletedSession(ctx context.Context, sess *payment.Session) {
	id := domain.ID(sess.ClientReferenceID)
	if id == "" {
		return
	}

	rec, err := s.Repo.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.Log.Warnw("webhook for unknown analysis", "id", id, "session", sess.ID)
		return
	}
	if err != nil {
		s.Log.Errorw("webhook record lookup failed", "id", id, "error", err)
		return
	}

	if err := s.Repo.MarkPaid(ctx, id, sess.ID); err != nil {
		s.Log.Errorw("webhook mark paid failed", "id", id, "error", err)
		return
	}

	if rec.Full != nil {
		return
	}
	full, err := s.Generator.GenerateFull(ctx, rec.Conversation)
	if err != nil {
		s.Log.Warnw("eager report generation failed", "id", id, "error", err)
		return
	}
	won, err := s.Repo.SetFullAnalysis(ctx, id, full)
	if err != nil {
		s.Log.Errorw("persisting full report failed", "id", id, "error", err)
		return
	}
	if won {
		s.archive(ctx, id, full)
		s.Log.Infow("report generated from webhook", "id", id)
	}
}

// TestBypass marks a record paid and generates its report without the payment
// provider. The caller gates it behind a non-production check and a shared
// secret.
func (s *Service) TestBypass(ctx context.Context, id domain.ID) error {
	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.MarkPaid(ctx, id, ""); err != nil {
		return err
	}
	if rec.Full != nil {
		return nil
	}
	full, err := s.Generator.GenerateFull(ctx, rec.Conversation)
	if err != nil {
		return err
	}
	won, err := s.Repo.SetFullAnalysis(ctx, id, full)
	if err != nil {
		return err
	}
	if won {
		s.archive(ctx, id, full)
	}
	return nil
}

// archive uploads the finished report for retention. Best-effort.
func (s *Service) archive(ctx context.Context, id domain.ID, full *domain.FullAnalysis) {
	if s.Archive == nil {
		return
	}
	data, err := json.Marshal(full)
	if err != nil {
		s.Log.Warnw("marshaling report for archive failed", "id", id, "error", err)
		return
	}
	if _, err := s.Archive.PutReport(ctx, id, data); err != nil {
		s.Log.Warnw("archiving report failed", "id", id, "error", err)
	}
}
