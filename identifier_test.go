package joysky

import "testing"

func TestClassifyIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want IdentifierKind
	}{
		{"alice@example.com", KindEmail},
		{"a.b+tag@sub.example.co", KindEmail},
		{"13812345678", KindPhone},
		{"19999999999", KindPhone},
		{"12812345678", KindUsername}, // second digit outside 3-9
		{"1381234567", KindUsername},  // too short
		{"138123456789", KindUsername},
		{"alice", KindUsername},
		{"alice@", KindUsername},
		{"@example.com", KindUsername},
		{"", KindUsername},
		{"13812345678x", KindUsername},
	}

	for _, tc := range cases {
		if got := ClassifyIdentifier(tc.in); got != tc.want {
			t.Errorf("ClassifyIdentifier(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestClassifyIdentifierPrefersEmailOverPhone(t *testing.T) {
	// An address with a phone-shaped local part is still an email.
	if got := ClassifyIdentifier("13812345678@example.com"); got != KindEmail {
		t.Fatalf("got %v, want KindEmail", got)
	}
}

func TestDirectoryField(t *testing.T) {
	if directoryField(KindEmail) != FieldEmail {
		t.Error("email kind should select the email index")
	}
	if directoryField(KindPhone) != FieldPhone {
		t.Error("phone kind should select the phone index")
	}
	if directoryField(KindUsername) != FieldUsername {
		t.Error("username kind should select the username index")
	}
}
