package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tipstream/ledger-service/internal/app"
	"github.com/tipstream/ledger-service/internal/config"
	"github.com/tipstream/ledger-service/internal/domain"
	"github.com/tipstream/ledger-service/pkg/pubsub"
	"github.com/tipstream/ledger-service/pkg/rabbitmq"
)

func (s *stubRepo) RecordAdjustment(ctx context.Context, accountID uuid.UUID, direction string, amount int64, reason string) (*domain.LedgerMovement, error) {
	return &domain.LedgerMovement{
		ID:            uuid.New(),
		AccountID:     accountID,
		Direction:     direction,
		Amount:        amount,
		Reason:        reason,
		ReferenceKind: domain.ReferenceAdjustment,
	}, nil
}

func newTestRouter(repo *stubRepo) http.Handler {
	cfg := config.Config{
		JWTSecret:                 "test-secret",
		InternalAPIKey:            "internal-key",
		DisbursementCallbackToken: "cb-token",
	}
	svc := app.NewService(repo, nil, pubsub.NoopPublisher{}, &rabbitmq.EventProducerFallback{}, app.FeePolicy{})
	return NewRouter(cfg, NewHandler(svc), NewWebhookHandler(svc, "", cfg.DisbursementCallbackToken))
}

func signToken(t *testing.T, secret string, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestDashboardRequiresValidJWT(t *testing.T) {
	repo := newStubRepo()
	router := newTestRouter(repo)

	// No token.
	req := httptest.NewRequest(http.MethodGet, "/dashboard/account", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}

	// Wrong signing key.
	req = httptest.NewRequest(http.MethodGet, "/dashboard/account", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", repo.account.ID.String()))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token status = %d, want 401", rec.Code)
	}

	// Subject that is not an account id.
	req = httptest.NewRequest(http.MethodGet, "/dashboard/account", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", "user_42"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad subject status = %d, want 401", rec.Code)
	}

	// Valid token reaches the handler and returns the caller's account.
	req = httptest.NewRequest(http.MethodGet, "/dashboard/account", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", repo.account.ID.String()))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token status = %d: %s", rec.Code, rec.Body)
	}
	var account domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if account.ID != repo.account.ID {
		t.Fatalf("account id = %s, want %s", account.ID, repo.account.ID)
	}
}

func TestInternalEndpointsRequireAPIKey(t *testing.T) {
	repo := newStubRepo()
	router := newTestRouter(repo)

	body, _ := json.Marshal(domain.AdjustmentRequest{
		AccountID: repo.account.ID,
		Direction: domain.MovementCredit,
		Amount:    1000,
		Reason:    "promo credit",
	})

	req := httptest.NewRequest(http.MethodPost, "/internal/adjustments", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/internal/adjustments", bytes.NewReader(body))
	req.Header.Set("X-Internal-Api-Key", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/internal/adjustments", bytes.NewReader(body))
	req.Header.Set("X-Internal-Api-Key", "internal-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("valid key status = %d: %s", rec.Code, rec.Body)
	}
}
