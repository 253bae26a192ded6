package handlers

import (
	"errors"
	"net/http"
	"strings"

	"emporio-pos/internal/auth"
	"emporio-pos/internal/database"
	"emporio-pos/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db     *gorm.DB
	tokens *auth.Manager
	logger *zap.Logger
}

func NewAuthHandler(db *gorm.DB, tokens *auth.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens, logger: logger}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).Where("username = ?", input.Username).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "invalid_credentials"})
		return
	}

	// compares the input password with the hash from DB
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "invalid_credentials"})
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"role":     user.Role,
		"username": user.Username,
	})
}

// Register is only routed when ALLOW_REGISTRATION is on.
func (h *AuthHandler) Register(c *gin.Context) {
	var input RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	role := strings.ToLower(strings.TrimSpace(input.Role))
	switch role {
	case "":
		role = auth.RoleCashier
	case auth.RoleCashier, auth.RoleAdmin:
	default:
		badRequest(c, "role must be admin or cashier")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, err)
		return
	}

	user := models.User{
		Username:     strings.TrimSpace(input.Username),
		PasswordHash: string(hashedPassword),
		Role:         role,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already taken", "code": "username_taken"})
			return
		}
		respondError(c, err)
		return
	}

	h.logger.Info("user registered", zap.String("username", user.Username), zap.String("role", user.Role))
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully!", "id": user.ID, "role": user.Role})
}
