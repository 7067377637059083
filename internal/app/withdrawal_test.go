package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/tipstream/ledger-service/internal/domain"
	"github.com/tipstream/ledger-service/internal/store"
)

func validWithdrawalRequest(amount int64) domain.WithdrawalRequest {
	return domain.WithdrawalRequest{
		Amount:                amount,
		DestinationBankCode:   "014",
		DestinationAccountNo:  "1234567890",
		DestinationHolderName: "Rina S",
	}
}

func TestRequestWithdrawal_DebitsAndSubmits(t *testing.T) {
	repo := newMemRepo()
	account := repo.addAccount("rina", 100000)
	svc, _, _, disburser := newTestService(repo)

	withdrawal, err := svc.RequestWithdrawal(context.Background(), account.ID, validWithdrawalRequest(60000))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	if withdrawal.Status != domain.WithdrawalProcessing {
		t.Fatalf("status = %s, want processing", withdrawal.Status)
	}
	if withdrawal.ProviderDisbursementID == nil || *withdrawal.ProviderDisbursementID == "" {
		t.Fatal("provider disbursement id not recorded")
	}
	if disburser.calls != 1 {
		t.Fatalf("disbursement calls = %d, want 1", disburser.calls)
	}
	if got := repo.balanceOf(t, account.ID); got != 40000 {
		t.Fatalf("balance = %d, want 40000", got)
	}
	if got := repo.movementCount(); got != 1 {
		t.Fatalf("movement count = %d, want 1", got)
	}
	assertLedgerInvariant(t, repo, account.ID, 100000)
}

func TestRequestWithdrawal_InsufficientFunds(t *testing.T) {
	repo := newMemRepo()
	account := repo.addAccount("rina", 5000)
	svc, _, _, disburser := newTestService(repo)

	_, err := svc.RequestWithdrawal(context.Background(), account.ID, validWithdrawalRequest(60000))
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if disburser.calls != 0 {
		t.Fatalf("disburser called %d times on rejected request", disburser.calls)
	}
	if got := repo.movementCount(); got != 0 {
		t.Fatalf("movement count = %d, want 0", got)
	}
	if got := repo.balanceOf(t, account.ID); got != 5000 {
		t.Fatalf("balance = %d, want untouched 5000", got)
	}
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	repo := newMemRepo()
	account := repo.addAccount("rina", 100000)
	svc, _, _, _ := newTestService(repo)

	bad := []domain.WithdrawalRequest{
		validWithdrawalRequest(0),
		{Amount: 1000, DestinationBankCode: "", DestinationAccountNo: "1", DestinationHolderName: "x"},
		{Amount: 1000, DestinationBankCode: "014", DestinationAccountNo: " ", DestinationHolderName: "x"},
	}
	for _, req := range bad {
		if _, err := svc.RequestWithdrawal(context.Background(), account.ID, req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("request %+v err = %v, want ErrInvalidRequest", req, err)
		}
	}
}

func TestRequestWithdrawal_SubmissionFailureRefunds(t *testing.T) {
	repo := newMemRepo()
	account := repo.addAccount("rina", 100000)
	svc, _, _, disburser := newTestService(repo)
	disburser.err = errors.New("provider 503")

	_, err := svc.RequestWithdrawal(context.Background(), account.ID, validWithdrawalRequest(60000))
	if !errors.Is(err, ErrDisbursementFailed) {
		t.Fatalf("err = %v, want ErrDisbursementFailed", err)
	}

	// The synchronous failure path is balance-neutral: the up-front debit and
	// its compensating credit both remain in the ledger.
	if got := repo.balanceOf(t, account.ID); got != 100000 {
		t.Fatalf("balance = %d, want restored 100000", got)
	}
	if got := repo.movementCount(); got != 2 {
		t.Fatalf("movement count = %d, want debit+credit", got)
	}
	assertLedgerInvariant(t, repo, account.ID, 100000)

	withdrawals, err := svc.ListWithdrawals(context.Background(), account.ID, 10)
	if err != nil {
		t.Fatalf("list withdrawals: %v", err)
	}
	if len(withdrawals) != 1 || withdrawals[0].Status != domain.WithdrawalRejected {
		t.Fatalf("withdrawals = %+v, want one rejected", withdrawals)
	}
}

func TestProcessDisbursementCallback_CompletedOnce(t *testing.T) {
	repo := newMemRepo()
	account := repo.addAccount("rina", 100000)
	svc, _, events, _ := newTestService(repo)

	withdrawal, err := svc.RequestWithdrawal(context.Background(), account.ID, validWithdrawalRequest(60000))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}

	cb := domain.DisbursementCallback{
		Status:     domain.DisbursementCallbackCompleted,
		ExternalID: withdrawal.ID.String(),
	}
	for i := 0; i < 3; i++ {
		if err := svc.ProcessDisbursementCallback(context.Background(), cb); err != nil {
			t.Fatalf("callback %d: %v", i, err)
		}
	}

	got, err := svc.GetWithdrawal(context.Background(), account.ID, withdrawal.ID)
	if err != nil {
		t.Fatalf("get withdrawal: %v", err)
	}
	if got.Status != domain.WithdrawalCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}

	// Completion never touches the creator's ledger again; the only movement
	// is the original debit. Fees land as platform revenue.
	if count := repo.movementCount(); count != 1 {
		t.Fatalf("movement count = %d, want 1", count)
	}
	if got := repo.balanceOf(t, account.ID); got != 40000 {
		t.Fatalf("balance = %d, want 40000", got)
	}
	if len(repo.revenue) != 2 {
		t.Fatalf("revenue entries = %d, want fixed+percentage", len(repo.revenue))
	}
	var fixed, pct int64
	for _, entry := range repo.revenue {
		switch entry.Kind {
		case domain.RevenueFixedFee:
			fixed = entry.Amount
		case domain.RevenuePercentageFee:
			pct = entry.Amount
		}
	}
	if fixed != 2500 {
		t.Fatalf("fixed fee = %d, want 2500", fixed)
	}
	if pct != 600 { // 60000 * 100bps
		t.Fatalf("percentage fee = %d, want 600", pct)
	}
	if n := events.count("withdrawal.completed"); n != 1 {
		t.Fatalf("withdrawal.completed events = %d, want 1", n)
	}
	assertLedgerInvariant(t, repo, account.ID, 100000)
}

func TestProcessDisbursementCallback_FailedRefundsOnce(t *testing.T) {
	repo := newMemRepo()
	account := repo.addAccount("rina", 100000)
	svc, _, events, _ := newTestService(repo)

	withdrawal, err := svc.RequestWithdrawal(context.Background(), account.ID, validWithdrawalRequest(60000))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}

	cb := domain.DisbursementCallback{
		Status:         domain.DisbursementCallbackFailed,
		ExternalID:     withdrawal.ID.String(),
		FailureCode:    "INSUFFICIENT_DEST",
		FailureMessage: "destination account closed",
	}
	for i := 0; i < 3; i++ {
		if err := svc.ProcessDisbursementCallback(context.Background(), cb); err != nil {
			t.Fatalf("callback %d: %v", i, err)
		}
	}

	got, err := svc.GetWithdrawal(context.Background(), account.ID, withdrawal.ID)
	if err != nil {
		t.Fatalf("get withdrawal: %v", err)
	}
	if got.Status != domain.WithdrawalRejected {
		t.Fatalf("status = %s, want rejected", got.Status)
	}
	if got.Notes == nil || *got.Notes != "INSUFFICIENT_DEST: destination account closed" {
		t.Fatalf("notes = %v, want failure detail", got.Notes)
	}

	// Exactly one compensating credit despite the duplicate deliveries.
	if count := repo.movementCount(); count != 2 {
		t.Fatalf("movement count = %d, want debit+credit", count)
	}
	if got := repo.balanceOf(t, account.ID); got != 100000 {
		t.Fatalf("balance = %d, want restored 100000", got)
	}
	if n := events.count("withdrawal.rejected"); n != 1 {
		t.Fatalf("withdrawal.rejected events = %d, want 1", n)
	}
	assertLedgerInvariant(t, repo, account.ID, 100000)
}

func TestProcessDisbursementCallback_ReorderedAfterCompletion(t *testing.T) {
	repo := newMemRepo()
	account := repo.addAccount("rina", 100000)
	svc, _, _, _ := newTestService(repo)

	withdrawal, err := svc.RequestWithdrawal(context.Background(), account.ID, validWithdrawalRequest(60000))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}

	if err := svc.ProcessDisbursementCallback(context.Background(), domain.DisbursementCallback{
		Status:     domain.DisbursementCallbackCompleted,
		ExternalID: withdrawal.ID.String(),
	}); err != nil {
		t.Fatalf("completed callback: %v", err)
	}

	// A stale FAILED arriving after completion must not refund.
	if err := svc.ProcessDisbursementCallback(context.Background(), domain.DisbursementCallback{
		Status:     domain.DisbursementCallbackFailed,
		ExternalID: withdrawal.ID.String(),
	}); err != nil {
		t.Fatalf("stale failed callback: %v", err)
	}

	got, _ := svc.GetWithdrawal(context.Background(), account.ID, withdrawal.ID)
	if got.Status != domain.WithdrawalCompleted {
		t.Fatalf("status = %s, want completed to stick", got.Status)
	}
	if count := repo.movementCount(); count != 1 {
		t.Fatalf("movement count = %d, want 1", count)
	}
}

func TestProcessDisbursementCallback_BadInput(t *testing.T) {
	repo := newMemRepo()
	repo.addAccount("rina", 100000)
	svc, _, _, _ := newTestService(repo)

	err := svc.ProcessDisbursementCallback(context.Background(), domain.DisbursementCallback{
		Status:     domain.DisbursementCallbackCompleted,
		ExternalID: "not-a-uuid",
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}

	err = svc.ProcessDisbursementCallback(context.Background(), domain.DisbursementCallback{
		Status:     "PENDING",
		ExternalID: uuid.NewString(),
	})
	if !errors.Is(err, ErrUnknownProviderStatus) {
		t.Fatalf("err = %v, want ErrUnknownProviderStatus", err)
	}

	err = svc.ProcessDisbursementCallback(context.Background(), domain.DisbursementCallback{
		Status:     domain.DisbursementCallbackCompleted,
		ExternalID: uuid.NewString(),
	})
	if !errors.Is(err, store.ErrWithdrawalNotFound) {
		t.Fatalf("err = %v, want ErrWithdrawalNotFound", err)
	}
}

func TestGetWithdrawal_OwnershipEnforced(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addAccount("rina", 100000)
	other := repo.addAccount("budi", 100000)
	svc, _, _, _ := newTestService(repo)

	withdrawal, err := svc.RequestWithdrawal(context.Background(), owner.ID, validWithdrawalRequest(10000))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}

	if _, err := svc.GetWithdrawal(context.Background(), other.ID, withdrawal.ID); !errors.Is(err, store.ErrWithdrawalNotFound) {
		t.Fatalf("cross-account read err = %v, want ErrWithdrawalNotFound", err)
	}
	if _, err := svc.GetWithdrawal(context.Background(), owner.ID, withdrawal.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
}

// processingStuckRepo drops the processing transition, as when the update
// fails after the provider has already accepted the payout.
type processingStuckRepo struct {
	*memRepo
}

func (r *processingStuckRepo) MarkWithdrawalProcessing(ctx context.Context, withdrawalID uuid.UUID, providerDisbursementID string) (bool, error) {
	return false, nil
}

func TestRequestWithdrawal_ReportsPersistedStateWhenTransitionLost(t *testing.T) {
	mem := newMemRepo()
	account := mem.addAccount("rina", 100000)
	repo := &processingStuckRepo{memRepo: mem}
	svc := NewService(repo, &stubDisburser{}, &stubAlerts{}, &stubEvents{}, FeePolicy{FixedFee: 2500, FeeBps: 100})

	withdrawal, err := svc.RequestWithdrawal(context.Background(), account.ID, validWithdrawalRequest(60000))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}

	// What the caller sees must match storage: the row is still pending and
	// carries no provider id.
	if withdrawal.Status != domain.WithdrawalPending {
		t.Fatalf("status = %s, want pending", withdrawal.Status)
	}
	if withdrawal.ProviderDisbursementID != nil {
		t.Fatalf("provider id = %q, want unset", *withdrawal.ProviderDisbursementID)
	}
	if got := mem.balanceOf(t, account.ID); got != 40000 {
		t.Fatalf("balance = %d, want 40000", got)
	}
}

func TestProcessDisbursementCallback_CompletedReconcilesPendingWithdrawal(t *testing.T) {
	mem := newMemRepo()
	account := mem.addAccount("rina", 100000)
	repo := &processingStuckRepo{memRepo: mem}
	events := &stubEvents{}
	svc := NewService(repo, &stubDisburser{}, &stubAlerts{}, events, FeePolicy{FixedFee: 2500, FeeBps: 100})

	withdrawal, err := svc.RequestWithdrawal(context.Background(), account.ID, validWithdrawalRequest(60000))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}

	// The provider completed the payout even though its row never reached
	// processing. The callback keyed by external id must still land.
	err = svc.ProcessDisbursementCallback(context.Background(), domain.DisbursementCallback{
		Status:     domain.DisbursementCallbackCompleted,
		ExternalID: withdrawal.ID.String(),
	})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}

	got, err := svc.GetWithdrawal(context.Background(), account.ID, withdrawal.ID)
	if err != nil {
		t.Fatalf("get withdrawal: %v", err)
	}
	if got.Status != domain.WithdrawalCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if len(mem.revenue) != 2 {
		t.Fatalf("revenue entries = %d, want fixed+percentage", len(mem.revenue))
	}
	if count := mem.movementCount(); count != 1 {
		t.Fatalf("movement count = %d, want the original debit only", count)
	}
	if got := mem.balanceOf(t, account.ID); got != 40000 {
		t.Fatalf("balance = %d, want 40000", got)
	}
	if n := events.count("withdrawal.completed"); n != 1 {
		t.Fatalf("withdrawal.completed events = %d, want 1", n)
	}
	assertLedgerInvariant(t, mem, account.ID, 100000)
}
