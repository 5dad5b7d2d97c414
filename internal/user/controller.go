package user

import (
	"errors"
	"net/http"

	"blog_api/internal/apperror"
	"blog_api/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type UserController struct {
	userService  UserServiceInterface
	cookieSecure bool
}

func NewUserController(userService UserServiceInterface, cookieSecure bool) *UserController {
	return &UserController{
		userService:  userService,
		cookieSecure: cookieSecure,
	}
}

// Usernames are capped by the VARCHAR(255) column. Passwords are not, since
// only the bcrypt hash is stored.
type credentialsRequest struct {
	Username string `json:"username" binding:"required,max=255"`
	Password string `json:"password" binding:"required"`
}

// Register handles user registration
func (a *UserController) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.Validation, "username and password are required")
		return
	}

	user, err := a.userService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			apperror.Abort(c, apperror.DuplicateUser, "Username already exists")
			return
		}
		apperror.AbortInternal(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, user.Identity())
}

// Login checks credentials and sets the session cookie
func (a *UserController) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.Validation, "username and password are required")
		return
	}

	session, err := a.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			apperror.Abort(c, apperror.InvalidCredentials, "Wrong credentials, unable to login")
			return
		}
		apperror.AbortInternal(c, err, "Failed to log in")
		return
	}

	auth.SetSessionCookie(c, session.Token, session.MaxAge, a.cookieSecure)
	c.JSON(http.StatusOK, session.Identity)
}

// Profile returns the identity decoded by the session middleware
func (a *UserController) Profile(c *gin.Context) {
	identity, err := auth.GetIdentityFromContext(c)
	if err != nil {
		apperror.Abort(c, apperror.Unauthenticated, "User not authenticated")
		return
	}

	c.JSON(http.StatusOK, identity)
}

// Logout clears the session cookie unconditionally
func (a *UserController) Logout(c *gin.Context) {
	token, _ := c.Cookie(auth.CookieName)
	if err := a.userService.Logout(c.Request.Context(), token); err != nil {
		logrus.WithError(err).Warn("Failed to revoke session token")
	}

	auth.ClearSessionCookie(c, a.cookieSecure)
	c.JSON(http.StatusOK, "ok")
}
