package controllers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"market_scanner_backend/middleware"
)

// AuthController handles admin authentication
type AuthController struct {
	jwtSecret         string
	adminPasswordHash string
	rateLimiter       *middleware.RateLimiter
}

// NewAuthController creates a new auth controller
func NewAuthController(jwtSecret, adminPasswordHash string, rl *middleware.RateLimiter) *AuthController {
	return &AuthController{
		jwtSecret:         jwtSecret,
		adminPasswordHash: adminPasswordHash,
		rateLimiter:       rl,
	}
}

// loginRequest is the login payload
type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login verifies the admin password and issues a JWT
// POST /api/v1/admin/login
func (ac *AuthController) Login(c *gin.Context) {
	ip := c.ClientIP()

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if ac.adminPasswordHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin login not configured"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ac.adminPasswordHash), []byte(req.Password)); err != nil {
		ac.rateLimiter.RecordAttempt(ip, false)
		log.Printf("Failed admin login attempt from %s", ip)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	ac.rateLimiter.RecordAttempt(ip, true)

	now := time.Now()
	claims := middleware.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(12 * time.Hour)),
		},
		Role: "admin",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(ac.jwtSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      signed,
		"expires_at": claims.ExpiresAt.Time,
	})
}
