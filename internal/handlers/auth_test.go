package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/givehub/donation-backend/internal/models"
)

func TestAuth_TokenRoundtrip(t *testing.T) {
	auth := NewAuth("test-signing-secret")

	token, err := auth.IssueToken("507f1f77bcf86cd799439011", models.RoleUser, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	r := httptest.NewRequest("GET", "/api/donations", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	claims, err := auth.Authenticate(r)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if claims.UserID != "507f1f77bcf86cd799439011" {
		t.Errorf("user id = %q", claims.UserID)
	}
	if claims.Role != models.RoleUser {
		t.Errorf("role = %q, want %q", claims.Role, models.RoleUser)
	}
}

func TestAuth_RejectsMissingAndForgedTokens(t *testing.T) {
	auth := NewAuth("test-signing-secret")
	other := NewAuth("different-secret")

	r := httptest.NewRequest("GET", "/api/donations", nil)
	if _, err := auth.Authenticate(r); err == nil {
		t.Error("missing header must be rejected")
	}

	r.Header.Set("Authorization", "Bearer not.a.token")
	if _, err := auth.Authenticate(r); err == nil {
		t.Error("garbage token must be rejected")
	}

	forged, err := other.IssueToken("507f1f77bcf86cd799439011", models.RoleAdmin, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	r.Header.Set("Authorization", "Bearer "+forged)
	if _, err := auth.Authenticate(r); err == nil {
		t.Error("token signed with a different secret must be rejected")
	}
}
