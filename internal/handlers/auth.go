package handlers

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"redirclean/internal/middleware"
	"redirclean/internal/models"
	"redirclean/internal/session"
)

// totpIssuer is shown by authenticator apps next to the account name.
const totpIssuer = "redirclean"

// OperatorRepo is the operator storage used for sign-in.
// *store.OperatorStore satisfies it.
type OperatorRepo interface {
	FindByEmail(ctx context.Context, email string) (*models.Operator, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Operator, error)
	SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, id uuid.UUID) error
	CheckPassword(o *models.Operator, password string) bool
}

// Auth groups the sign-in and TOTP handlers.
type Auth struct {
	sessions  *session.Store
	operators OperatorRepo
}

// NewAuth creates a new Auth handler group.
func NewAuth(sessions *session.Store, operators OperatorRepo) *Auth {
	return &Auth{sessions: sessions, operators: operators}
}

// sessionResponse describes the caller's sign-in state.
type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	TwoFADone     bool   `json:"two_fa_done"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	CSRFToken     string `json:"csrf_token"`
}

// Session reports the current sign-in state and hands out the CSRF token
// clients must echo on every write.
func (a *Auth) Session(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{CSRFToken: middleware.CSRFTokenFromCtx(r.Context())}
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil {
		resp.Authenticated = true
		resp.TwoFADone = sess.TwoFADone
		resp.Email = sess.Email
		resp.DisplayName = sess.DisplayName
	}
	writeJSON(w, http.StatusOK, resp)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Next steps returned by Login.
const (
	nextTOTPSetup  = "totp_setup"
	nextTOTPVerify = "totp_verify"
)

// Login checks email and password and opens a session that still needs
// the second factor.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateLogin(req.Email, req.Password); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	op, err := a.operators.FindByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if op == nil || !a.operators.CheckPassword(op, req.Password) {
		slog.Warn("login rejected", "email", req.Email, "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	_, err = a.sessions.Create(r.Context(), w, &session.Data{
		OperatorID:  op.ID,
		Email:       op.Email,
		DisplayName: op.DisplayName,
	})
	if err != nil {
		slog.Error("session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	next := nextTOTPVerify
	if op.Needs2FASetup() {
		next = nextTOTPSetup
	}
	slog.Info("operator signed in", "operator_id", op.ID, "next", next)
	writeJSON(w, http.StatusOK, map[string]string{"next": next})
}

// Logout destroys the session.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type totpSetupResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
	QRCode string `json:"qr_png"` // base64 PNG
}

// TOTPSetup generates a new TOTP secret for an operator that has not
// enrolled yet and returns it with a QR code.
func (a *Auth) TOTPSetup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	op, ok := a.currentOperator(w, r, sess)
	if !ok {
		return
	}
	if op.TOTPEnabled {
		writeError(w, http.StatusConflict, "two-factor authentication is already enrolled")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: op.Email,
	})
	if err != nil {
		slog.Error("totp generate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := a.operators.SetTOTPSecret(r.Context(), op.ID, key.Secret()); err != nil {
		slog.Error("save totp secret failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		slog.Error("qr code generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, totpSetupResponse{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: base64.StdEncoding.EncodeToString(png),
	})
}

type totpVerifyRequest struct {
	Code string `json:"code"`
}

// TOTPVerify checks a TOTP code. The first successful check after setup
// enables TOTP for the operator; every success marks the session done.
func (a *Auth) TOTPVerify(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	var req totpVerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateTOTPCode(req.Code); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	op, ok := a.currentOperator(w, r, sess)
	if !ok {
		return
	}
	if op.TOTPSecret == nil {
		writeError(w, http.StatusConflict, "two-factor authentication is not set up")
		return
	}

	valid, err := totp.ValidateCustom(req.Code, *op.TOTPSecret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		slog.Warn("totp code rejected", "operator_id", op.ID)
		writeError(w, http.StatusUnauthorized, "invalid code")
		return
	}

	if !op.TOTPEnabled {
		if err := a.operators.EnableTOTP(r.Context(), op.ID); err != nil {
			slog.Error("enable totp failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	sess.TwoFADone = true
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		slog.Error("session update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"two_fa_done": true})
}

// currentOperator loads the operator behind sess, writing the error
// response itself when it cannot.
func (a *Auth) currentOperator(w http.ResponseWriter, r *http.Request, sess *session.Data) (*models.Operator, bool) {
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	op, err := a.operators.FindByID(r.Context(), sess.OperatorID)
	if err != nil {
		slog.Error("operator lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if op == nil {
		writeError(w, http.StatusUnauthorized, "operator no longer exists")
		return nil, false
	}
	return op, true
}
