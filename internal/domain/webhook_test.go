package domain

import (
	"errors"
	"testing"
)

func TestPaymentUpdatedNotificationNormalize(t *testing.T) {
	notice, err := PaymentUpdatedNotification{
		Event:         PaymentEventPayment,
		Status:        " paid ",
		TransactionID: " pay_1 ",
		MerchantRef:   "don_abc",
		Amount:        50000,
	}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if notice.Status != ProviderStatusPaid {
		t.Fatalf("status = %q, want normalized PAID", notice.Status)
	}
	if notice.ProviderPaymentID != "pay_1" || notice.MerchantRef != "don_abc" {
		t.Fatalf("identifiers not trimmed: %+v", notice)
	}

	// Merchant ref alone is enough to resolve a payment.updated.
	if _, err := (PaymentUpdatedNotification{Status: "FAILED", MerchantRef: "don_abc"}).Normalize(); err != nil {
		t.Fatalf("merchant-ref-only payload rejected: %v", err)
	}

	for name, bad := range map[string]PaymentUpdatedNotification{
		"no status":      {TransactionID: "pay_1"},
		"no identifiers": {Status: "PAID"},
	} {
		if _, err := bad.Normalize(); !errors.Is(err, ErrMalformedNotification) {
			t.Fatalf("%s: err = %v, want ErrMalformedNotification", name, err)
		}
	}
}

func TestQRPaymentNotificationNormalize(t *testing.T) {
	notice, err := QRPaymentNotification{
		Event:         PaymentEventQRPayment,
		Status:        "PAID",
		TransactionID: "pay_9",
		QRID:          "qris_7",
		Amount:        25000,
	}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if notice.ProviderQRID != "qris_7" || notice.ProviderPaymentID != "pay_9" {
		t.Fatalf("identifiers lost: %+v", notice)
	}

	// QR sessions frequently omit the merchant reference; the QR id alone
	// must be sufficient.
	if _, err := (QRPaymentNotification{Status: "EXPIRED", QRID: "qris_7"}).Normalize(); err != nil {
		t.Fatalf("qr-id-only payload rejected: %v", err)
	}

	if _, err := (QRPaymentNotification{Status: "PAID"}).Normalize(); !errors.Is(err, ErrMalformedNotification) {
		t.Fatalf("identifier-less payload err = %v, want ErrMalformedNotification", err)
	}
}

func TestGoalPercentage(t *testing.T) {
	goal := Goal{TargetAmount: 100000, CurrentAmount: 25000}
	if got := goal.Percentage(); got != 25 {
		t.Fatalf("percentage = %v, want 25", got)
	}

	// Progress past the target renders as a full bar.
	goal.CurrentAmount = 150000
	if got := goal.Percentage(); got != 100 {
		t.Fatalf("overfunded percentage = %v, want capped 100", got)
	}

	goal.TargetAmount = 0
	if got := goal.Percentage(); got != 0 {
		t.Fatalf("zero-target percentage = %v, want 0", got)
	}
}
