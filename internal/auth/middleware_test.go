// internal/auth/middleware_test.go
//
// Unit-tests for the role gates.

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func fire(h http.Handler, ident *Identity) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/api/panel/me", nil)
	if ident != nil {
		r = r.WithContext(WithIdentity(r.Context(), *ident))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireRole(t *testing.T) {
	gate := RequireRole(RoleAdmin, RoleSuperAdmin)(okHandler())

	if w := fire(gate, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d, want 401", w.Code)
	}
	if w := fire(gate, &Identity{Role: RoleModerator}); w.Code != http.StatusForbidden {
		t.Fatalf("moderator: %d, want 403", w.Code)
	}
	if w := fire(gate, &Identity{Role: RoleAdmin}); w.Code != http.StatusNoContent {
		t.Fatalf("admin: %d, want 204", w.Code)
	}
}

func TestRequireRole_EmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("RequireRole() with no roles did not panic")
		}
	}()
	RequireRole()
}

func TestRequireAtLeast(t *testing.T) {
	gate := RequireAtLeast(RoleModerator)(okHandler())

	cases := []struct {
		role Role
		code int
	}{
		{RoleHelper, http.StatusForbidden},
		{RoleModerator, http.StatusNoContent},
		{RoleAdmin, http.StatusNoContent},
		{RoleSuperAdmin, http.StatusNoContent},
		{Role("Intern"), http.StatusForbidden}, // unknown ranks below Helper
	}
	for _, tc := range cases {
		if w := fire(gate, &Identity{Role: tc.role}); w.Code != tc.code {
			t.Fatalf("%s: %d, want %d", tc.role, w.Code, tc.code)
		}
	}
}

func TestRoleOrdering(t *testing.T) {
	if !RoleSuperAdmin.AtLeast(RoleHelper) {
		t.Fatal("Super Admin must outrank Helper")
	}
	if RoleHelper.AtLeast(RoleAdmin) {
		t.Fatal("Helper must not outrank Admin")
	}
	if Role("Intern").Valid() {
		t.Fatal("unknown role reported valid")
	}
}
