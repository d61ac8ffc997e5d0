package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email a@b.com and phone +91 98765 43210"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "email a@b.com, upi ramesh@okaxis, phone +91 98765 43210"
	got := Text(in)
	for _, want := range []string{"[REDACTED_EMAIL]", "[REDACTED_UPI]", "[REDACTED_PHONE]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
	if strings.Contains(got, "43210") {
		t.Fatalf("expected phone digits removed, got %q", got)
	}
}

func TestRedactKeepsPrices(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "bhaiya 1500 rupaye final, 2 raat ke liye"
	if got := Text(in); got != in {
		t.Fatalf("expected prices untouched, got %q", got)
	}
}

func TestPhoneKeepsLastFour(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	cases := map[string]string{
		"+919876543210":   "+91******3210",
		"9876543210":      "******3210",
		"+91 98765-43210": "+91******3210",
		"123":             "123",
	}
	for in, want := range cases {
		if got := Phone(in); got != want {
			t.Fatalf("Phone(%q) = %q, want %q", in, got, want)
		}
	}
	SetEnabled(false)
	if got := Phone("+919876543210"); got != "+919876543210" {
		t.Fatalf("disabled redaction must not mask, got %q", got)
	}
}
