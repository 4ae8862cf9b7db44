package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/reviews_backend/utils"
)

// NOTE: These tests are intentionally DB-free and redis-free. With no redis
// configured the middleware falls back to JWT-only validation, which is the
// path exercised here; the redis session lookup needs a live server and is
// covered by the integration suite.

type seenIdentity struct {
	Token    string `json:"token"`
	UserId   int    `json:"user_id"`
	UserName string `json:"user_name"`
	UserRole string `json:"user_role"`
	HasToken bool   `json:"has_token"`
	HasUser  bool   `json:"has_user"`
}

func identityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		ctx := c.Request.Context()
		var out seenIdentity
		out.Token, out.HasToken = utils.GetTokenFromContext(ctx)
		out.UserId, out.HasUser = utils.GetUserIdFromContext(ctx)
		out.UserName, _ = utils.GetUserNameFromContext(ctx)
		out.UserRole, _ = utils.GetUserRoleFromContext(ctx)
		c.JSON(http.StatusOK, out)
	})
	r.GET("/actor-only", RequireActor(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/admin-only", RequireActor(), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doRequest(t *testing.T, r *gin.Engine, path string, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_StashesTokenAndIdentity(t *testing.T) {
	token, err := utils.JwtGenerate(42, "Mya Mya", "Lead")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	w := doRequest(t, identityRouter(), "/whoami", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got seenIdentity
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !got.HasToken || got.Token != token {
		t.Fatalf("token not stashed in context: has=%v token=%q", got.HasToken, got.Token)
	}
	if !got.HasUser || got.UserId != 42 {
		t.Fatalf("user id = (%d, %v), want (42, true)", got.UserId, got.HasUser)
	}
	if got.UserName != "Mya Mya" || got.UserRole != "Lead" {
		t.Fatalf("identity = (%q, %q), want (Mya Mya, Lead)", got.UserName, got.UserRole)
	}
}

func TestAuthMiddleware_AnonymousPassesThroughWithoutIdentity(t *testing.T) {
	w := doRequest(t, identityRouter(), "/whoami", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got seenIdentity
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.HasToken || got.HasUser {
		t.Fatalf("anonymous request should carry no identity, got %+v", got)
	}
}

func TestAuthMiddleware_MalformedTokenRejected(t *testing.T) {
	w := doRequest(t, identityRouter(), "/whoami", "not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireActor_AnonymousGets401(t *testing.T) {
	w := doRequest(t, identityRouter(), "/actor-only", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAdmin_NonAdminGets403(t *testing.T) {
	token, err := utils.JwtGenerate(7, "Member User", "Member")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	w := doRequest(t, identityRouter(), "/admin-only", token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestRequireAdmin_AdminPasses(t *testing.T) {
	token, err := utils.JwtGenerate(1, "Admin User", "Admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	w := doRequest(t, identityRouter(), "/admin-only", token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}
