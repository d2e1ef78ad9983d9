package utils

import (
	"testing"

	"github.com/atrium-collab/atrium/internal/chaterr"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret!pass" {
		t.Fatal("password stored in the clear")
	}
	if !CheckPasswordHash("s3cret!pass", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"Str0ng!pass", true},
		{"short1!", false},
		{"alllowercase!", false},
		{"NoSpecial123", false},
		{"NoDigits!!ab", false},
	}
	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err == nil) != tt.ok {
			t.Errorf("ValidatePassword(%q) = %v, want ok=%v", tt.password, err, tt.ok)
		}
		if err != nil && chaterr.KindOf(err) != chaterr.InvalidArgument {
			t.Errorf("ValidatePassword(%q) kind = %v, want invalid-argument", tt.password, chaterr.KindOf(err))
		}
	}
}

func TestJWTRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateJWTToken(42, "frank")
	if err != nil {
		t.Fatalf("GenerateJWTToken: %v", err)
	}
	claims, err := ValidateJWTToken(token)
	if err != nil {
		t.Fatalf("ValidateJWTToken: %v", err)
	}
	if uint(claims["userID"].(float64)) != 42 {
		t.Errorf("userID = %v", claims["userID"])
	}
	if claims["username"] != "frank" {
		t.Errorf("username = %v", claims["username"])
	}

	if _, err := ValidateJWTToken(token + "x"); err == nil {
		t.Error("tampered token accepted")
	}
}

func TestJWTSecretRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := GenerateJWTToken(1, "a"); err == nil {
		t.Error("missing secret should fail")
	}
}
