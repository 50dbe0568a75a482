package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"emis/internal/auth"
	"emis/internal/identity"
)

type signupRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	RetypedPassword string `json:"retypedPassword"`
	Email           string `json:"email"`
}

// Signup registers an admin.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, err.Error())
		return
	}
	_, err := h.provision.SignupAdmin(c.Request.Context(), identity.Signup{
		Username:        req.Username,
		Password:        req.Password,
		RetypedPassword: req.RetypedPassword,
		Email:           req.Email,
	})
	switch {
	case err == nil:
		success(c, http.StatusCreated, "user created successfully", nil)
	case errors.Is(err, identity.ErrPasswordMismatch):
		failure(c, http.StatusBadRequest, "Passwords do not match")
	case errors.Is(err, identity.ErrDuplicate):
		failure(c, http.StatusBadRequest, "Username already exists")
	case errors.Is(err, identity.ErrMissingField):
		failure(c, http.StatusBadRequest, "Enter all fields")
	default:
		h.internalError(c, err)
	}
}

type loginRequest struct {
	LoginType   string `json:"loginType"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	SchoolID    string `json:"schoolId"`
	DistrictID  string `json:"districtId"`
	DateOfBirth string `json:"dateOfBirth"`
}

// Login authenticates any role and returns a bearer token as data.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, err.Error())
		return
	}
	creds, err := identity.NewCredentials(req.LoginType, identity.LoginFields{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		SchoolID:    req.SchoolID,
		DistrictID:  req.DistrictID,
		DateOfBirth: req.DateOfBirth,
	})
	if err != nil {
		failure(c, http.StatusBadRequest, "Invalid login type")
		return
	}

	res, err := h.dispatcher.Login(c.Request.Context(), creds)
	var invalid *identity.InvalidCredentialsError
	switch {
	case err == nil:
		success(c, http.StatusOK, "user logged in successfully", res.Token)
	case errors.As(err, &invalid):
		failure(c, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, identity.ErrInvalidRole):
		failure(c, http.StatusBadRequest, "Invalid login type")
	default:
		h.internalError(c, err)
	}
}

// Verify echoes the identity carried by a valid token.
func (h *Handler) Verify(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		h.internalError(c, errors.New("identity missing from request"))
		return
	}
	success(c, http.StatusOK, "Token is valid", gin.H{"userId": id.SubjectID, "role": id.Role})
}

type resetOTPRequest struct {
	Email string `json:"email"`
}

// SendResetOTP issues a recovery code. Every outcome is a 200 with a
// success flag.
func (h *Handler) SendResetOTP(c *gin.Context) {
	var req resetOTPRequest
	// an unreadable body is treated as an empty one
	_ = c.ShouldBindJSON(&req)
	res, _ := h.recovery.RequestCode(c.Request.Context(), req.Email)
	c.JSON(http.StatusOK, res)
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword redeems a recovery code.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	_ = c.ShouldBindJSON(&req)
	res, _ := h.recovery.Redeem(c.Request.Context(), req.Email, req.OTP, req.NewPassword)
	c.JSON(http.StatusOK, res)
}

type credentialRequest struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	SchoolID    string `json:"schoolId"`
	DistrictID  string `json:"districtId"`
	DateOfBirth string `json:"dateOfBirth"`
}

// CreateCredential provisions a district head, school, teacher or parent
// login. Admin only.
func (h *Handler) CreateCredential(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, err.Error())
		return
	}
	role, ok := auth.ParseRole(req.Role)
	if !ok || role == auth.RoleAdmin {
		failure(c, http.StatusBadRequest, "Invalid role")
		return
	}
	profile, err := h.provision.Provision(c.Request.Context(), identity.NewAccount{
		Role:        role,
		Email:       req.Email,
		Password:    req.Password,
		SchoolID:    req.SchoolID,
		DistrictID:  req.DistrictID,
		DateOfBirth: req.DateOfBirth,
	})
	switch {
	case err == nil:
		success(c, http.StatusCreated, role.Title()+" credentials created successfully", profile)
	case errors.Is(err, identity.ErrMissingField):
		failure(c, http.StatusBadRequest, "Enter all fields")
	case errors.Is(err, identity.ErrDuplicate):
		failure(c, http.StatusBadRequest, role.Title()+" already exists")
	default:
		h.internalError(c, err)
	}
}

// Profile returns the caller's own credential summary.
func (h *Handler) Profile(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		h.internalError(c, errors.New("identity missing from request"))
		return
	}
	profile, err := h.dispatcher.Profile(c.Request.Context(), id)
	switch {
	case err == nil:
		success(c, http.StatusOK, id.Role.Title()+" details", profile)
	case errors.Is(err, identity.ErrNotFound):
		failure(c, http.StatusNotFound, id.Role.Title()+" not found")
	default:
		h.internalError(c, err)
	}
}
