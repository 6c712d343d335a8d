package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/middleware"
	"github.com/stemsi/exstem-grading/internal/service"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, tokenType, secret string) string {
	t.Helper()
	claims := service.Claims{
		UserID:    7,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func adminRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(&config.Config{JWTSecret: testSecret})

	r := gin.New()
	r.GET("/admin", middleware.RequireAdminJWT(auth), func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	})
	return r
}

func TestRequireAdminJWT(t *testing.T) {
	r := adminRouter()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid admin token", "Bearer " + mintToken(t, service.TokenTypeAdmin, testSecret), http.StatusOK},
		{"student token rejected", "Bearer " + mintToken(t, service.TokenTypeStudent, testSecret), http.StatusForbidden},
		{"wrong secret", "Bearer " + mintToken(t, service.TokenTypeAdmin, "other-secret"), http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			require.Equal(t, tc.want, w.Code)
		})
	}
}
