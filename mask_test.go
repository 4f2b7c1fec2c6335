package joysky

import "testing"

func TestMaskPhone(t *testing.T) {
	got, err := MaskPhone("13812345678")
	if err != nil {
		t.Fatalf("MaskPhone failed: %v", err)
	}
	if got != "138****5678" {
		t.Fatalf("got %q, want 138****5678", got)
	}
}

func TestMaskPhoneRejectsWrongLength(t *testing.T) {
	for _, phone := range []string{"", "1381234567", "138123456789"} {
		if _, err := MaskPhone(phone); err == nil {
			t.Errorf("MaskPhone(%q) expected error", phone)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	got, err := MaskEmail("alice@example.com")
	if err != nil {
		t.Fatalf("MaskEmail failed: %v", err)
	}
	if got != "al***@example.com" {
		t.Fatalf("got %q, want al***@example.com", got)
	}
}

func TestMaskEmailRejectsShortLocalPart(t *testing.T) {
	for _, email := range []string{"", "a@example.com", "ab@example.com", "no-at-sign"} {
		if _, err := MaskEmail(email); err == nil {
			t.Errorf("MaskEmail(%q) expected error", email)
		}
	}
}

func TestMaskingIsDeterministic(t *testing.T) {
	a, _ := MaskEmail("alice@example.com")
	b, _ := MaskEmail("alice@example.com")
	if a != b {
		t.Fatal("masking must be deterministic")
	}
}
