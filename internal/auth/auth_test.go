// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package auth

import (
	"testing"
	"time"

	"github.com/accessmux/accessmux/internal/config"
	"github.com/accessmux/accessmux/internal/models"
)

func testManager(t *testing.T, timeout time.Duration) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		SessionTimeout: timeout,
	})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	return m
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Error("empty secret accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := testManager(t, time.Hour)
	tenantID := int64(7)
	account := &models.Account{
		ID:       12,
		Username: "owner",
		Role:     models.RoleOwner,
		TenantID: &tenantID,
	}

	token, err := m.GenerateToken(account)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "owner" || claims.Role != models.RoleOwner {
		t.Errorf("claims = %+v", claims)
	}
	if claims.TenantID == nil || *claims.TenantID != 7 {
		t.Errorf("tenant id = %v, want 7", claims.TenantID)
	}
	id, err := claims.AccountID()
	if err != nil || id != 12 {
		t.Errorf("AccountID = %d, %v, want 12", id, err)
	}
}

func TestAdminTokenHasNoTenant(t *testing.T) {
	m := testManager(t, time.Hour)
	token, err := m.GenerateToken(&models.Account{ID: 1, Username: "admin", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TenantID != nil {
		t.Errorf("admin tenant id = %v, want nil", claims.TenantID)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	m := testManager(t, time.Hour)
	other := testManager(t, time.Hour)
	other.secret = []byte("ffffffffffffffffffffffffffffffff")

	good, err := m.GenerateToken(&models.Account{ID: 1, Username: "u", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	foreign, err := other.GenerateToken(&models.Account{ID: 1, Username: "u", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"empty", ""},
		{"wrong secret", foreign},
		{"truncated", good[:len(good)-5]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); err == nil {
				t.Error("invalid token accepted")
			}
		})
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := testManager(t, -time.Minute)
	token, err := m.GenerateToken(&models.Account{ID: 1, Username: "u", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Error("password stored in the clear")
	}
	if !CheckPassword(hash, "s3cret-pass") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}
