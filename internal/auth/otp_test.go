package auth

import "testing"

func TestHashOTPCodeDeterministic(t *testing.T) {
	salt := "abc123"
	h1 := HashOTPCode(salt, "123456")
	h2 := HashOTPCode(salt, "123456")
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %q and %q", h1, h2)
	}
}

func TestVerifyOTPCode(t *testing.T) {
	salt, err := GenerateOTPSalt()
	if err != nil {
		t.Fatalf("GenerateOTPSalt: %v", err)
	}
	code, err := GenerateOTPCode()
	if err != nil {
		t.Fatalf("GenerateOTPCode: %v", err)
	}
	hash := HashOTPCode(salt, code)

	if !VerifyOTPCode(salt, hash, code) {
		t.Fatal("expected correct code to verify")
	}
	if VerifyOTPCode(salt, hash, "000000") {
		t.Fatal("expected wrong code to fail verification")
	}
}

func TestGenerateOTPCodeFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := GenerateOTPCode()
		if err != nil {
			t.Fatalf("GenerateOTPCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6-digit code, got %q", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("expected numeric code, got %q", code)
			}
		}
	}
}
