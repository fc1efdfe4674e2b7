package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/server/avatars"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
	"github.com/dmitrijs2005/chatterbox/internal/server/services"
)

type UserService interface {
	Authenticator
	Signup(ctx context.Context, in services.SignupInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, userID, token string) error
	Profile(ctx context.Context, userID string) (*services.ProfileView, error)
	Search(ctx context.Context, callerID, keyword string) ([]services.UserView, error)
	RequestAvatarUpload(ctx context.Context, userID, contentType string) (*avatars.Upload, error)
}

type OTPService interface {
	SendVerification(ctx context.Context, email string) (bool, error)
	Request(ctx context.Context, email, purpose string) error
	Verify(ctx context.Context, email, code, purpose string) (*services.VerifyResult, error)
	ResetPassword(ctx context.Context, email, resetToken, password string) error
}

type userHandler struct {
	users UserService
	otps  OTPService
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Pic      string `json:"pic,omitempty"`
}

func (h *userHandler) signup(w http.ResponseWriter, r *http.Request) error {
	req, err := Decode[signupRequest](w, r)
	if err != nil {
		return err
	}

	_, err = h.users.Signup(r.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Pic:      req.Pic,
	})
	if err != nil {
		return err
	}

	WriteJSON(w, ok("Registration completed successfully. Kindly verify the email."), http.StatusOK)
	return nil
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *userHandler) sendVerification(w http.ResponseWriter, r *http.Request) error {
	req, err := Decode[emailRequest](w, r)
	if err != nil {
		return err
	}

	sent, err := h.otps.SendVerification(r.Context(), req.Email)
	if err != nil {
		return err
	}

	if !sent {
		WriteJSON(w, ok("User already verified"), http.StatusOK)
		return nil
	}
	WriteJSON(w, ok("User verification mail has been sent to the email."), http.StatusOK)
	return nil
}

type verifyOTPRequest struct {
	Email   string `json:"email"`
	OTP     string `json:"otp"`
	OTPType string `json:"otpType"`
}

type verifyOTPResponse struct {
	MessageBody
	ResetToken string `json:"resetToken,omitempty"`
}

func (h *userHandler) verifyOTP(w http.ResponseWriter, r *http.Request) error {
	req, err := Decode[verifyOTPRequest](w, r)
	if err != nil {
		return err
	}

	res, err := h.otps.Verify(r.Context(), req.Email, req.OTP, req.OTPType)
	if err != nil {
		return err
	}

	if res.Purpose == common.OTPPurposePasswordReset {
		WriteJSON(w, verifyOTPResponse{
			MessageBody: ok("OTP for password reset validated successfully."),
			ResetToken:  res.ResetToken,
		}, http.StatusOK)
		return nil
	}
	WriteJSON(w, verifyOTPResponse{MessageBody: ok("User verified successfully")}, http.StatusOK)
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	MessageBody
	Token string `json:"token"`
}

func (h *userHandler) login(w http.ResponseWriter, r *http.Request) error {
	req, err := Decode[loginRequest](w, r)
	if err != nil {
		return err
	}

	token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	WriteJSON(w, loginResponse{MessageBody: ok("Successful login"), Token: token}, http.StatusOK)
	return nil
}

type profileResponse struct {
	IsSuccess bool `json:"isSuccess"`
	*services.ProfileView
}

func (h *userHandler) profile(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	p, err := h.users.Profile(r.Context(), id.UserID)
	if err != nil {
		return err
	}

	WriteJSON(w, profileResponse{IsSuccess: true, ProfileView: p}, http.StatusOK)
	return nil
}

func (h *userHandler) logout(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	if err := h.users.Logout(r.Context(), id.UserID, id.Token); err != nil {
		return err
	}

	WriteJSON(w, ok("Logged out successfully"), http.StatusOK)
	return nil
}

type resendOTPRequest struct {
	Email   string `json:"email"`
	OTPType string `json:"otpType"`
}

func (h *userHandler) resendOTP(w http.ResponseWriter, r *http.Request) error {
	req, err := Decode[resendOTPRequest](w, r)
	if err != nil {
		return err
	}

	if err := h.otps.Request(r.Context(), req.Email, req.OTPType); err != nil {
		return err
	}

	if req.OTPType == common.OTPPurposePasswordReset {
		WriteJSON(w, ok("Password reset mail has been sent to the email."), http.StatusOK)
		return nil
	}
	WriteJSON(w, ok("User verification mail has been sent to the email."), http.StatusOK)
	return nil
}

func (h *userHandler) forgotPasswordOTP(w http.ResponseWriter, r *http.Request) error {
	req, err := Decode[emailRequest](w, r)
	if err != nil {
		return err
	}

	if err := h.otps.Request(r.Context(), req.Email, common.OTPPurposePasswordReset); err != nil {
		return err
	}

	WriteJSON(w, ok("Password reset mail has been sent to the email. Kindly enter the OTP sent to you email."), http.StatusOK)
	return nil
}

type resetPasswordRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	ResetToken string `json:"resetToken"`
}

func (h *userHandler) resetPassword(w http.ResponseWriter, r *http.Request) error {
	req, err := Decode[resetPasswordRequest](w, r)
	if err != nil {
		return err
	}

	if err := h.otps.ResetPassword(r.Context(), req.Email, req.ResetToken, req.Password); err != nil {
		return err
	}

	WriteJSON(w, ok("Password reset successfully"), http.StatusOK)
	return nil
}

func (h *userHandler) search(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	users, err := h.users.Search(r.Context(), id.UserID, r.URL.Query().Get("search"))
	if err != nil {
		return err
	}

	WriteJSON(w, users, http.StatusOK)
	return nil
}

type avatarRequest struct {
	ContentType string `json:"contentType"`
}

func (h *userHandler) avatar(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	req, err := Decode[avatarRequest](w, r)
	if err != nil {
		return err
	}

	up, err := h.users.RequestAvatarUpload(r.Context(), id.UserID, req.ContentType)
	if err != nil {
		return err
	}

	WriteJSON(w, up, http.StatusOK)
	return nil
}
