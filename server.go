package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/johnmichaeldizon211/APATECH1/kycflow"
	"github.com/johnmichaeldizon211/APATECH1/metrics"
	"github.com/johnmichaeldizon211/APATECH1/models"
	"github.com/johnmichaeldizon211/APATECH1/otp"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const ErrorInternal = "error:internal"
const ERR_MARSHAL = "failed to marshal response message"
const ERR_DECODE_BODY = "failed to decode request body"
const ERR_VERIFY_ID = "failed to verify id document"
const ERR_VERIFY_FACE = "failed to verify face"
const ERR_DRAFT_UPDATE = "failed to update identity draft"

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
}

type ServerState struct {
	orchestrator *VerificationOrchestrator
	machine      *kycflow.Machine
	otpManager   *otp.Manager
	otpSender    *otp.Sender
	accounts     AccountStore
	metrics      *metrics.Metrics
	remote       RemoteVerifier
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("Starting server with TLS", "host", s.config.Host, "port", s.config.Port, "cert", s.config.TlsCertPath, "key", s.config.TlsPrivKeyPath)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	} else {
		slog.Info("Starting server without TLS", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServe()
	}
}

func (s *Server) Stop() error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(state, w, r)
	})
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/api/kyc/verify-id", func(w http.ResponseWriter, r *http.Request) {
		handleVerifyId(state, w, r)
	})
	router.HandleFunc("/api/kyc/verify-face", func(w http.ResponseWriter, r *http.Request) {
		handleVerifyFace(state, w, r)
	})

	router.HandleFunc("/api/kyc/start", func(w http.ResponseWriter, r *http.Request) {
		handleStartDraft(state, w, r)
	})
	router.HandleFunc("/api/kyc/agree-terms", func(w http.ResponseWriter, r *http.Request) {
		handleAgreeTerms(state, w, r)
	})
	router.HandleFunc("/api/kyc/demographics", func(w http.ResponseWriter, r *http.Request) {
		handleDemographics(state, w, r)
	})
	router.HandleFunc("/api/kyc/employment", func(w http.ResponseWriter, r *http.Request) {
		handleEmployment(state, w, r)
	})
	router.HandleFunc("/api/kyc/finalize", func(w http.ResponseWriter, r *http.Request) {
		handleFinalize(state, w, r)
	})
	router.HandleFunc("/api/kyc/reset-identity", func(w http.ResponseWriter, r *http.Request) {
		handleResetIdentity(state, w, r)
	})

	router.HandleFunc("/api/forgot/send-code", func(w http.ResponseWriter, r *http.Request) {
		handleSendCode(state, w, r)
	})
	router.HandleFunc("/api/forgot/verify-code", func(w http.ResponseWriter, r *http.Request) {
		handleVerifyCode(state, w, r)
	})
	router.HandleFunc("/api/reset-password", func(w http.ResponseWriter, r *http.Request) {
		handleResetPassword(state, w, r)
	})

	slog.Debug("Registered all API routes")

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler: router,
		Addr:    addr,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  30 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

type HealthResponse struct {
	Ok               bool `json:"ok"`
	SmtpConfigured   bool `json:"smtpConfigured"`
	SmsConfigured    bool `json:"smsConfigured"`
	RemoteConfigured bool `json:"remoteConfigured"`
}

func handleHealth(state *ServerState, w http.ResponseWriter, r *http.Request) {
	slog.Debug("Health check request received")
	response := HealthResponse{
		Ok:               true,
		SmtpConfigured:   state.otpSender != nil && state.otpSender.Email != nil,
		SmsConfigured:    state.otpSender != nil && state.otpSender.SMS != nil,
		RemoteConfigured: state.remote != nil,
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

// ----------------------------------------------------------------------------
// identity verification

func handleVerifyId(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to verify an id document")

	var request models.VerifyIdRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_BODY, err)
		return
	}
	if request.IdType == "" || request.IdImage == "" {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "idType and idImage are required", nil)
		return
	}

	var verdict models.Verdict
	var err error
	if request.DraftId != "" {
		_, verdict, err = state.machine.VerifyID(r.Context(), request.DraftId, request.IdType, request.IdImage)
	} else {
		verdict, err = state.orchestrator.VerifyID(r.Context(), request.IdType, request.IdImage)
	}
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_VERIFY_ID, err)
		return
	}

	state.metrics.IDVerifications.WithLabelValues(metrics.Outcome(verdict.Verified), verdict.Provenance).Inc()
	if verdict.Provenance == models.ProvenanceLocalFallback {
		state.metrics.RemoteFallbacks.Inc()
	}

	response := models.VerifyIdResponse{
		Verified:          verdict.Verified,
		Reason:            verdict.Reason,
		VerificationToken: verdict.VerificationToken,
		Provenance:        verdict.Provenance,
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Id verification request completed", "verified", verdict.Verified, "provenance", verdict.Provenance)
}

func handleVerifyFace(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to verify a face scan")

	var request models.VerifyFaceRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_BODY, err)
		return
	}
	if request.SelfieImage == "" {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "selfieImage is required", nil)
		return
	}

	var verdict models.Verdict
	var err error
	if request.DraftId != "" {
		// The draft carries the verified document and its token.
		_, verdict, err = state.machine.VerifyFace(r.Context(), request.DraftId, request.SelfieImage)
	} else {
		if request.IdType == "" || request.IdImage == "" || request.VerificationToken == "" {
			respondWithErr(w, http.StatusBadRequest, "invalid request", "idType, idImage and verificationToken are required", nil)
			return
		}
		verdict, err = state.orchestrator.VerifyFace(r.Context(), request.IdType, request.IdImage, request.SelfieImage, request.VerificationToken)
	}
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_VERIFY_FACE, err)
		return
	}

	state.metrics.FaceVerifications.WithLabelValues(metrics.Outcome(verdict.Verified), verdict.Provenance).Inc()
	if verdict.Provenance == models.ProvenanceLocalFallback {
		state.metrics.RemoteFallbacks.Inc()
	}

	response := models.VerifyFaceResponse{
		Verified:   verdict.Verified,
		Reason:     verdict.Reason,
		Distance:   verdict.Distance,
		Provenance: verdict.Provenance,
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Face verification request completed", "verified", verdict.Verified, "provenance", verdict.Provenance)
}

// ----------------------------------------------------------------------------
// application flow

type DraftRequest struct {
	DraftId string `json:"draftId"`
}

type DraftResponse struct {
	DraftId      string        `json:"draftId"`
	Stage        kycflow.Stage `json:"stage"`
	IdVerified   bool          `json:"idVerified"`
	FaceVerified bool          `json:"faceVerified"`
}

func draftResponse(draft *kycflow.IdentityDraft) DraftResponse {
	return DraftResponse{
		DraftId:      draft.ID,
		Stage:        draft.Stage,
		IdVerified:   draft.IDVerified,
		FaceVerified: draft.FaceVerified,
	}
}

func handleStartDraft(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	draft, err := state.machine.StartDraft()
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to start draft", err)
		return
	}
	if err := writeJSON(w, http.StatusOK, draftResponse(draft)); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

func decodeDraftRequest(w http.ResponseWriter, r *http.Request) (DraftRequest, bool) {
	var request DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_BODY, err)
		return request, false
	}
	if request.DraftId == "" {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "draftId is required", nil)
		return request, false
	}
	return request, true
}

func handleAgreeTerms(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}
	request, ok := decodeDraftRequest(w, r)
	if !ok {
		return
	}

	draft, err := state.machine.AgreeTerms(request.DraftId)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DRAFT_UPDATE, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, draftResponse(draft)); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

type DemographicsRequest struct {
	DraftId      string               `json:"draftId"`
	Demographics kycflow.Demographics `json:"demographics"`
}

func handleDemographics(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var request DemographicsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_BODY, err)
		return
	}
	if request.DraftId == "" {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "draftId is required", nil)
		return
	}

	draft, err := state.machine.SubmitDemographics(request.DraftId, request.Demographics)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DRAFT_UPDATE, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, draftResponse(draft)); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

type EmploymentRequest struct {
	DraftId    string             `json:"draftId"`
	Employment kycflow.Employment `json:"employment"`
}

func handleEmployment(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var request EmploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_BODY, err)
		return
	}
	if request.DraftId == "" {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "draftId is required", nil)
		return
	}

	draft, err := state.machine.SubmitEmployment(request.DraftId, request.Employment)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DRAFT_UPDATE, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, draftResponse(draft)); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

type FinalizeResponse struct {
	Success bool             `json:"success"`
	Booking *kycflow.Booking `json:"booking,omitempty"`
}

func handleFinalize(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}
	request, ok := decodeDraftRequest(w, r)
	if !ok {
		return
	}

	booking, err := state.machine.Finalize(request.DraftId)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "failed to finalize application", err)
		return
	}
	if err := writeJSON(w, http.StatusOK, FinalizeResponse{Success: true, Booking: booking}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

func handleResetIdentity(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}
	request, ok := decodeDraftRequest(w, r)
	if !ok {
		return
	}

	draft, err := state.machine.ResetIdentity(request.DraftId)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DRAFT_UPDATE, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, draftResponse(draft)); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

// ----------------------------------------------------------------------------
// password recovery

var codePattern = regexp.MustCompile(`^\d{4}$`)

func handleSendCode(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to send a recovery code")

	var request models.SendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_BODY, err)
		return
	}
	if request.Method == "" || request.Contact == "" {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "method and contact are required", nil)
		return
	}

	contact, err := otp.NormalizeContact(request.Method, request.Contact)
	if err != nil {
		response := models.SendCodeResponse{Success: false, Message: err.Error()}
		if err := writeJSON(w, http.StatusOK, response); err != nil {
			respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		}
		return
	}

	session, err := state.otpManager.CreateSession(request.Method, contact)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to create recovery session", err)
		return
	}

	result := state.otpSender.Send(r.Context(), session)
	state.metrics.RecoveryCodesIssued.WithLabelValues(result.Delivery.Mode).Inc()

	response := models.SendCodeResponse{
		Success:        true,
		Message:        "Verification code sent.",
		RequestId:      session.RequestID,
		ExpiresInMs:    otp.TTL.Milliseconds(),
		Delivery:       result.Delivery,
		DemoCode:       result.DemoCode,
		DeliveryReason: result.FailureReason,
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Recovery code request completed", "requestId", session.RequestID, "mode", result.Delivery.Mode)
}

func verifyResultLabel(outcome otp.VerifyOutcome) string {
	switch outcome {
	case otp.OutcomeVerified:
		return "verified"
	case otp.OutcomeNotFound:
		return "not_found"
	case otp.OutcomeExpired:
		return "expired"
	case otp.OutcomeTooManyAttempts:
		return "too_many_attempts"
	default:
		return "wrong_code"
	}
}

func handleVerifyCode(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var request models.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_BODY, err)
		return
	}
	if request.RequestId == "" || !codePattern.MatchString(request.Code) {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "requestId and a 4 digit code are required", nil)
		return
	}

	outcome := state.otpManager.Verify(request.RequestId, request.Code)
	state.metrics.RecoveryVerifyAttempts.WithLabelValues(verifyResultLabel(outcome)).Inc()

	response := models.VerifyCodeResponse{
		Success:  true,
		Verified: outcome == otp.OutcomeVerified,
		Message:  outcome.Message(),
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

func handleResetPassword(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to reset a password")

	var request models.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_BODY, err)
		return
	}
	if request.NewPassword == "" {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "newPassword is required", nil)
		return
	}

	respond := func(success bool, message string) {
		result := "failed"
		if success {
			result = "reset"
		}
		state.metrics.PasswordResets.WithLabelValues(result).Inc()
		response := models.ResetPasswordResponse{Success: success, Message: message}
		if err := writeJSON(w, http.StatusOK, response); err != nil {
			respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		}
	}

	if err := ValidatePasswordStrength(request.NewPassword); err != nil {
		respond(false, err.Error())
		return
	}

	session, err := resolveResetSession(state, &request)
	if err != nil {
		respond(false, "Code verification is required before resetting the password.")
		return
	}

	hash, err := HashPassword(request.NewPassword)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to hash password", err)
		return
	}
	if err := state.accounts.SetPassword(session.Contact, hash); err != nil {
		respond(false, "No account found for this contact.")
		return
	}

	slog.Info("Password reset completed", "method", session.Method)
	respond(true, "Password updated successfully.")
}

// resolveResetSession finds the verified recovery session backing a reset,
// by request ID when the client kept it or by contact otherwise.
func resolveResetSession(state *ServerState, request *models.ResetPasswordRequest) (*otp.Session, error) {
	if request.RequestId != "" {
		return state.otpManager.ConsumeVerified(request.RequestId)
	}

	method := request.Method
	contact := request.Contact
	if contact == "" && request.Email != "" {
		method = otp.MethodEmail
		contact = request.Email
	}
	if contact == "" {
		return nil, fmt.Errorf("no requestId or contact provided")
	}
	normalized, err := otp.NormalizeContact(method, contact)
	if err != nil {
		return nil, err
	}
	return state.otpManager.ConsumeVerifiedByContact(normalized)
}

// helpers ------------

func respondWithErr(w http.ResponseWriter, code int, responseBody string, logMsg string, e error) {
	slog.Error(logMsg, "error", e, "status_code", code, "response_body", responseBody)
	w.WriteHeader(code)
	if _, err := w.Write([]byte(responseBody)); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		slog.Debug("Non-POST request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithErr(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	slog.Debug("Writing JSON response", "status_code", status)
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
	return nil
}
