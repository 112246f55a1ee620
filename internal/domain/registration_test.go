package domain

import "testing"

func TestRegistrationStatusHoldsSlot(t *testing.T) {
	tests := []struct {
		status RegistrationStatus
		want   bool
	}{
		{RegistrationPending, true},
		{RegistrationConfirmed, true},
		{RegistrationManualPaymentRequired, true},
		{RegistrationManualPaymentVerification, true},
		{RegistrationWaitlist, false},
		{RegistrationCancelled, false},
		{RegistrationRefunded, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			if got := tc.status.HoldsSlot(); got != tc.want {
				t.Fatalf("%s.HoldsSlot() = %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestRegistrationStatusCancellable(t *testing.T) {
	tests := []struct {
		status RegistrationStatus
		want   bool
	}{
		{RegistrationPending, true},
		{RegistrationConfirmed, true},
		{RegistrationManualPaymentRequired, true},
		{RegistrationManualPaymentVerification, true},
		{RegistrationWaitlist, true},
		{RegistrationCancelled, false},
		{RegistrationRefunded, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			if got := tc.status.Cancellable(); got != tc.want {
				t.Fatalf("%s.Cancellable() = %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestTransferReferenceFor(t *testing.T) {
	got := TransferReferenceFor("3f2b8c1e-9a4d-4e21-b111-222333444555")
	if got != "KNZ-3F2B8C1E" {
		t.Fatalf("TransferReferenceFor = %q, want %q", got, "KNZ-3F2B8C1E")
	}
	if short := TransferReferenceFor("42"); short != "KNZ-42" {
		t.Fatalf("TransferReferenceFor legacy id = %q, want %q", short, "KNZ-42")
	}
}
