package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/clientproof/backend/internal/domain/analysis"
	"github.com/clientproof/backend/internal/domain/payment"
	"github.com/clientproof/backend/internal/platform/logger"
)

// ---- mocks ----

type mockRepo struct {
	InsertFunc  func(ctx context.Context, rec *domain.Record) error
	GetFunc     func(ctx context.Context, id domain.ID) (*domain.Record, error)
	MarkFunc    func(ctx context.Context, id domain.ID, sessionRef string) error
	SetFullFunc func(ctx context.Context, id domain.ID, full *domain.FullAnalysis) (bool, error)

	inserted  []*domain.Record
	markPaid  int
	setCalled int
}

func (m *mockRepo) Insert(ctx context.Context, rec *domain.Record) error {
	m.inserted = append(m.inserted, rec)
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, rec)
	}
	return nil
}

func (m *mockRepo) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockRepo) MarkPaid(ctx context.Context, id domain.ID, sessionRef string) error {
	m.markPaid++
	if m.MarkFunc != nil {
		return m.MarkFunc(ctx, id, sessionRef)
	}
	return nil
}

func (m *mockRepo) SetFullAnalysis(ctx context.Context, id domain.ID, full *domain.FullAnalysis) (bool, error) {
	m.setCalled++
	if m.SetFullFunc != nil {
		return m.SetFullFunc(ctx, id, full)
	}
	return true, nil
}

type mockGenerator struct {
	FreeFunc func(ctx context.Context, conversation string) (*domain.FreeAnalysis, error)
	FullFunc func(ctx context.Context, conversation string) (*domain.FullAnalysis, error)

	freeCalls int
	fullCalls int
}

func (m *mockGenerator) GenerateFree(ctx context.Context, conversation string) (*domain.FreeAnalysis, error) {
	m.freeCalls++
	if m.FreeFunc != nil {
		return m.FreeFunc(ctx, conversation)
	}
	return &domain.FreeAnalysis{RiskLevel: domain.RiskLow, Score: 10, Summary: "ok"}, nil
}

func (m *mockGenerator) GenerateFull(ctx context.Context, conversation string) (*domain.FullAnalysis, error) {
	m.fullCalls++
	if m.FullFunc != nil {
		return m.FullFunc(ctx, conversation)
	}
	return &domain.FullAnalysis{Score: 80, RiskLevel: domain.RiskHigh, Verdict: "risky"}, nil
}

type mockCheckout struct {
	CreateFunc func(ctx context.Context, p payment.CreateSessionParams) (*payment.Session, error)
	GetFunc    func(ctx context.Context, id string) (*payment.Session, error)
}

func (m *mockCheckout) CreateSession(ctx context.Context, p payment.CreateSessionParams) (*payment.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	return &payment.Session{ID: "cs_test", URL: "https://checkout.example/cs_test", ClientReferenceID: p.AnalysisID}, nil
}

func (m *mockCheckout) GetSession(ctx context.Context, id string) (*payment.Session, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, errors.New("no session")
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newService(repo *mockRepo, gen *mockGenerator, checkout *mockCheckout) *Service {
	return &Service{
		Repo:      repo,
		Generator: gen,
		Checkout:  checkout,
		Clock:     fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		Log:       logger.NewNop(),
	}
}

func paidRecord(id domain.ID) *domain.Record {
	return &domain.Record{
		ID:           id,
		Conversation: "a conversation long enough to analyze",
		Free:         &domain.FreeAnalysis{RiskLevel: domain.RiskMedium, Score: 50, Summary: "meh"},
		Paid:         true,
		CreatedAt:    time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC),
	}
}

// ---- SubmitFree ----

func TestSubmitFreeCreatesUnpaidRecord(t *testing.T) {
	repo := &mockRepo{}
	gen := &mockGenerator{}
	svc := newService(repo, gen, &mockCheckout{})

	rec, err := svc.SubmitFree(context.Background(), "a conversation long enough")
	if err != nil {
		t.Fatalf("SubmitFree: %v", err)
	}
	if rec.ID == "" || rec.Paid || rec.Free == nil || rec.Full != nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(repo.inserted))
	}
}

func TestSubmitFreeGenerationFailureInsertsNothing(t *testing.T) {
	repo := &mockRepo{}
	gen := &mockGenerator{
		FreeFunc: func(context.Context, string) (*domain.FreeAnalysis, error) {
			return nil, errors.New("model down")
		},
	}
	svc := newService(repo, gen, &mockCheckout{})

	if _, err := svc.SubmitFree(context.Background(), "a conversation long enough"); err == nil {
		t.Fatal("expected error")
	}
	if len(repo.inserted) != 0 {
		t.Fatalf("orphan row inserted: %+v", repo.inserted)
	}
}

// ---- Resolve ----

func TestResolveNotFound(t *testing.T) {
	svc := newService(&mockRepo{}, &mockGenerator{}, &mockCheckout{})

	if _, err := svc.Resolve(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveUnpaidNeverLeaksReport(t *testing.T) {
	rec := paidRecord("id-1")
	rec.Paid = false
	// even with a report in storage, unpaid must gate
	rec.Full = &domain.FullAnalysis{Score: 90, RiskLevel: domain.RiskHigh}
	repo := &mockRepo{GetFunc: func(context.Context, domain.ID) (*domain.Record, error) { return rec, nil }}
	gen := &mockGenerator{}
	svc := newService(repo, gen, &mockCheckout{})

	if _, err := svc.Resolve(context.Background(), "id-1"); !errors.Is(err, domain.ErrNotPaid) {
		t.Fatalf("expected ErrNotPaid, got %v", err)
	}
	if gen.fullCalls != 0 {
		t.Fatalf("generator invoked for unpaid record")
	}
}

func TestResolveCachedReportSkipsGeneration(t *testing.T) {
	rec := paidRecord("id-1")
	rec.Full = &domain.FullAnalysis{Score: 77, RiskLevel: domain.RiskHigh, Verdict: "cached"}
	repo := &mockRepo{GetFunc: func(context.Context, domain.ID) (*domain.Record, error) { return rec, nil }}
	gen := &mockGenerator{}
	svc := newService(repo, gen, &mockCheckout{})

	got, err := svc.Resolve(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Full.Verdict != "cached" {
		t.Fatalf("unexpected report: %+v", got.Full)
	}
	if gen.fullCalls != 0 {
		t.Fatalf("generator invoked despite cached report")
	}
}

func TestResolveGeneratesAndPersists(t *testing.T) {
	rec := paidRecord("id-1")
	repo := &mockRepo{GetFunc: func(context.Context, domain.ID) (*domain.Record, error) { return rec, nil }}
	gen := &mockGenerator{}
	svc := newService(repo, gen, &mockCheckout{})

	got, err := svc.Resolve(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Full == nil || got.Full.Verdict != "risky" {
		t.Fatalf("report not attached: %+v", got.Full)
	}
	if repo.setCalled != 1 {
		t.Fatalf("expected one persist, got %d", repo.setCalled)
	}
}

func TestResolveGenerationFailureIsProcessing(t *testing.T) {
	rec := paidRecord("id-1")
	repo := &mockRepo{GetFunc: func(context.Context, domain.ID) (*domain.Record, error) { return rec, nil }}
	gen := &mockGenerator{
		FullFunc: func(context.Context, string) (*domain.FullAnalysis, error) {
			return nil, errors.New("timeout")
		},
	}
	svc := newService(repo, gen, &mockCheckout{})

	if _, err := svc.Resolve(context.Background(), "id-1"); !errors.Is(err, domain.ErrProcessing) {
		t.Fatalf("expected ErrProcessing, got %v", err)
	}
	// no error state persisted; polling retries generation
	if repo.setCalled != 0 {
		t.Fatalf("failure state was persisted")
	}
}

func TestResolveLostWriteRaceServesWinner(t *testing.T) {
	rec := paidRecord("id-1")
	winner := paidRecord("id-1")
	winner.Full = &domain.FullAnalysis{Score: 65, RiskLevel: domain.RiskMedium, Verdict: "winner"}

	calls := 0
	repo := &mockRepo{
		GetFunc: func(context.Context, domain.ID) (*domain.Record, error) {
			calls++
			if calls == 1 {
				return rec, nil
			}
			return winner, nil
		},
		SetFullFunc: func(context.Context, domain.ID, *domain.FullAnalysis) (bool, error) {
			return false, nil // a concurrent caller wrote first
		},
	}
	svc := newService(repo, &mockGenerator{}, &mockCheckout{})

	got, err := svc.Resolve(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Full.Verdict != "winner" {
		t.Fatalf("expected the stored winner report, got %+v", got.Full)
	}
}

// ---- InitiatePayment ----

func TestInitiatePaymentUnknownRecord(t *testing.T) {
	svc := newService(&mockRepo{}, &mockGenerator{}, &mockCheckout{})

	if _, err := svc.InitiatePayment(context.Background(), "missing", "https://app.example"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInitiatePaymentReturnsRedirectURL(t *testing.T) {
	rec := paidRecord("id-1")
	rec.Paid = false
	repo := &mockRepo{GetFunc: func(context.Context, domain.ID) (*domain.Record, error) { return rec, nil }}
	var gotParams payment.CreateSessionParams
	checkout := &mockCheckout{
		CreateFunc: func(_ context.Context, p payment.CreateSessionParams) (*payment.Session, error) {
			gotParams = p
			return &payment.Session{URL: "https://checkout.example/s"}, nil
		},
	}
	svc := newService(repo, &mockGenerator{}, checkout)

	url, err := svc.InitiatePayment(context.Background(), "id-1", "https://app.example")
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if url != "https://checkout.example/s" {
		t.Fatalf("unexpected url: %s", url)
	}
	if gotParams.AnalysisID != "id-1" || gotParams.Origin != "https://app.example" {
		t.Fatalf("unexpected session params: %+v", gotParams)
	}
}

// ---- ConfirmPayment ----

func TestConfirmPaymentRejectsCrossIDConfirmation(t *testing.T) {
	// session genuinely paid, but created for another analysis
	checkout := &mockCheckout{
		GetFunc: func(context.Context, string) (*payment.Session, error) {
			return &payment.Session{ID: "cs_1", PaymentStatus: payment.StatusPaid, ClientReferenceID: "other-id"}, nil
		},
	}
	repo := &mockRepo{}
	svc := newService(repo, &mockGenerator{}, checkout)

	err := svc.ConfirmPayment(context.Background(), "cs_1", "id-1", nil)
	if !errors.Is(err, payment.ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
	if repo.markPaid != 0 || len(repo.inserted) != 0 {
		t.Fatal("record mutated on failed verification")
	}
}

func TestConfirmPaymentRejectsUnpaidSession(t *testing.T) {
	checkout := &mockCheckout{
		GetFunc: func(context.Context, string) (*payment.Session, error) {
			return &payment.Session{ID: "cs_1", PaymentStatus: "unpaid", ClientReferenceID: "id-1"}, nil
		},
	}
	svc := newService(&mockRepo{}, &mockGenerator{}, checkout)

	if err := svc.ConfirmPayment(context.Background(), "cs_1", "id-1", nil); !errors.Is(err, payment.ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
}

func TestConfirmPaymentMarksExistingRecordPaid(t *testing.T) {
	rec := paidRecord("id-1")
	rec.Paid = false
	repo := &mockRepo{GetFunc: func(context.Context, domain.ID) (*domain.Record, error) { return rec, nil }}
	checkout := &mockCheckout{
		GetFunc: func(context.Context, string) (*payment.Session, error) {
			return &payment.Session{ID: "cs_1", PaymentStatus: payment.StatusPaid, ClientReferenceID: "id-1"}, nil
		},
	}
	svc := newService(repo, &mockGenerator{}, checkout)

	if err := svc.ConfirmPayment(context.Background(), "cs_1", "id-1", nil); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if repo.markPaid != 1 {
		t.Fatalf("expected MarkPaid once, got %d", repo.markPaid)
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	rec := paidRecord("id-1") // already paid
	repo := &mockRepo{GetFunc: func(context.Context, domain.ID) (*domain.Record, error) { return rec, nil }}
	checkout := &mockCheckout{
		GetFunc: func(context.Context, string) (*payment.Session, error) {
			return &payment.Session{ID: "cs_1", PaymentStatus: payment.StatusPaid, ClientReferenceID: "id-1"}, nil
		},
	}
	svc := newService(repo, &mockGenerator{}, checkout)

	for i := 0; i < 2; i++ {
		if err := svc.ConfirmPayment(context.Background(), "cs_1", "id-1", nil); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if len(repo.inserted) != 0 {
		t.Fatal("duplicate record created")
	}
}

func TestConfirmPaymentRecreatesLostRecord(t *testing.T) {
	repo := &mockRepo{} // Get always ErrNotFound
	checkout := &mockCheckout{
		GetFunc: func(context.Context, string) (*payment.Session, error) {
			return &payment.Session{ID: "cs_1", PaymentStatus: payment.StatusPaid, ClientReferenceID: "id-1"}, nil
		},
	}
	svc := newService(repo, &mockGenerator{}, checkout)

	recovery := &RecoveryData{
		Conversation: "the transcript the client still holds",
		Free:         &domain.FreeAnalysis{RiskLevel: domain.RiskMedium, Score: 44, Summary: "meh"},
	}
	if err := svc.ConfirmPayment(context.Background(), "cs_1", "id-1", recovery); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected recreation insert, got %d", len(repo.inserted))
	}
	got := repo.inserted[0]
	if got.ID != "id-1" || !got.Paid || got.Conversation != recovery.Conversation || got.PaymentSessionRef != "cs_1" {
		t.Fatalf("unexpected recreated record: %+v", got)
	}
}

func TestConfirmPaymentMissingRecordNoRecoveryData(t *testing.T) {
	repo := &mockRepo{}
	checkout := &mockCheckout{
		GetFunc: func(context.Context, string) (*payment.Session, error) {
			return &payment.Session{ID: "cs_1", PaymentStatus: payment.StatusPaid, ClientReferenceID: "id-1"}, nil
		},
	}
	svc := newService(repo, &mockGenerator{}, checkout)

	// verification stands even though there is nothing to recreate
	if err := svc.ConfirmPayment(context.Background(), "cs_1", "id-1", nil); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if len(repo.inserted) != 0 || repo.markPaid != 0 {
		t.Fatal("unexpected mutation")
	}
}

// ---- HandleCompletedSession ----

func TestWebhookUnknownRecordNoMutation(t *testing.T) {
	repo := &mockRepo{}
	gen := &mockGenerator{}
	svc := newService(repo, gen, &mockCheckout{})

	svc.HandleCompletedSession(context.Background(), &payment.Session{ID: "cs_1", ClientReferenceID: "ghost"})

	if repo.markPaid != 0 || len(repo.inserted) != 0 || gen.fullCalls != 0 {
		t.Fatal("webhook for unknown id mutated state")
	}
}

func TestWebhookMarksPaidAndGenerates(t *testing.T) {
	rec := paidRecord("id-1")
	rec.Paid = false
	repo := &mockRepo{GetFunc: func(context.Context, domain.ID) (*domain.Record, error) { return rec, nil }}
	gen := &mockGenerator{}
	svc := newService(repo, gen, &mockCheckout{})

	svc.HandleCompletedSession(context.Background(), &payment.Session{ID: "cs_1", ClientReferenceID: "id-1"})

	if repo.markPaid != 1 {
		t.Fatalf("MarkPaid calls = %d", repo.markPaid)
	}
	if gen.fullCalls != 1 || repo.setCalled != 1 {
		t.Fatalf("eager generation not performed: gen=%d set=%d", gen.fullCalls, repo.setCalled)
	}
}

func TestWebhookSkipsGenerationWhenReportExists(t *testing.T) {
	rec := paidRecord("id-1")
	rec.Full = &domain.FullAnalysis{Score: 70, RiskLevel: domain.RiskHigh}
	repo := &mockRepo{GetFunc: func(context.Context, domain.ID) (*domain.Record, error) { return rec, nil }}
	gen := &mockGenerator{}
	svc := newService(repo, gen, &mockCheckout{})

	svc.HandleCompletedSession(context.Background(), &payment.Session{ID: "cs_1", ClientReferenceID: "id-1"})

	if gen.fullCalls != 0 {
		t.Fatal("report regenerated")
	}
}

// ---- TestBypass ----

func TestBypassMarksPaidAndGenerates(t *testing.T) {
	rec := paidRecord("id-1")
	rec.Paid = false
	repo := &mockRepo{GetFunc: func(context.Context, domain.ID) (*domain.Record, error) { return rec, nil }}
	gen := &mockGenerator{}
	svc := newService(repo, gen, &mockCheckout{})

	if err := svc.TestBypass(context.Background(), "id-1"); err != nil {
		t.Fatalf("TestBypass: %v", err)
	}
	if repo.markPaid != 1 || gen.fullCalls != 1 || repo.setCalled != 1 {
		t.Fatalf("bypass incomplete: paid=%d gen=%d set=%d", repo.markPaid, gen.fullCalls, repo.setCalled)
	}
}
