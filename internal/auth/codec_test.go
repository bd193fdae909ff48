package auth

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
)

func TestCodec_Decode(t *testing.T) {
	cred, err := EncodeClaims(domain.Claims{Tenant: "acme", Nonce: "n1"})
	if err != nil {
		t.Fatalf("EncodeClaims() error = %v", err)
	}
	doubled := base64.StdEncoding.EncodeToString([]byte(cred))
	noTenant := base64.StdEncoding.EncodeToString([]byte(`{"nonce":"x"}`))
	notJSON := base64.StdEncoding.EncodeToString([]byte("hello"))

	tests := []struct {
		name    string
		enc     Encoding
		header  string
		wantErr error
	}{
		{"plain token scheme", EncodingPlain, "Token " + cred, nil},
		{"plain bearer scheme", EncodingPlain, "bearer " + cred, nil},
		{"base64 token scheme", EncodingBase64, "Token " + doubled, nil},
		{"plain given doubled credential", EncodingPlain, "Token " + doubled, ErrMalformedToken},
		{"auto given plain credential", EncodingAuto, "Token " + cred, nil},
		{"auto given doubled credential", EncodingAuto, "Token " + doubled, nil},
		{"auto given garbage", EncodingAuto, "Token %%%", ErrMalformedToken},
		{"empty header", EncodingPlain, "   ", ErrMissingToken},
		{"no scheme", EncodingPlain, cred, ErrMalformedToken},
		{"claims without tenant", EncodingPlain, "Token " + noTenant, ErrMalformedToken},
		{"claims not json", EncodingPlain, "Token " + notJSON, ErrMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, claims, err := NewCodec(tt.enc).Decode(tt.header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != cred {
				t.Errorf("credential = %q, want %q", got, cred)
			}
			if claims.Tenant != "acme" || claims.Nonce != "n1" {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}

func TestParseEncoding(t *testing.T) {
	if enc, err := ParseEncoding(" Base64 "); err != nil || enc != EncodingBase64 {
		t.Errorf("ParseEncoding(Base64) = %q, %v", enc, err)
	}
	if _, err := ParseEncoding("rot13"); err == nil {
		t.Error("expected error for unknown encoding")
	}
	if _, err := ParseEncoding("auto"); err == nil {
		t.Error("auto must not be configurable for a version")
	}
}

func TestDefaultEncoding(t *testing.T) {
	tests := map[string]Encoding{
		"2.1.1": EncodingPlain,
		"2.2":   EncodingBase64,
		"2.2.1": EncodingBase64,
	}
	for version, want := range tests {
		if got := DefaultEncoding(version); got != want {
			t.Errorf("DefaultEncoding(%q) = %q, want %q", version, got, want)
		}
	}
}
