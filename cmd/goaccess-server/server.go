package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/jit"
	promexport "github.com/MrEthical07/goAccess/metrics/export/prometheus"
	mw "github.com/MrEthical07/goAccess/middleware"
	"github.com/MrEthical07/goAccess/permission"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

type server struct {
	engine     *goAccess.Engine
	limiter    *ipLimiter
	sessionTTL time.Duration
	checks     []func(context.Context) error
}

func newServer(engine *goAccess.Engine, cfg serverConfig, checks []func(context.Context) error) *server {
	return &server{
		engine:     engine,
		limiter:    newIPLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		sessionTTL: engine.Config().Session.Timeout,
		checks:     checks,
	}
}

// routes mounts the API:
//
//	/api/auth/*            public, rate limited per IP
//	/api/access/*          any session holder
//	/api/roles             any session holder
//	/api/users/{id}/roles  any session holder
//	/api/resources/admin   ADMIN role
//	/api/resources/manager MANAGER level or above
//	/api/resources/user    USER level or above
//	/api/documents/{id}    DOCUMENT:READ by permission or temporary grant
//	/api/admin/*           ADMIN level
func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promexport.NewExporter(s.engine).Handler()).Methods(http.MethodGet)

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.Use(s.limiter.middleware)
	auth.HandleFunc("/register", s.register).Methods(http.MethodPost)
	auth.HandleFunc("/verify-email", s.verifyEmail).Methods(http.MethodPost)
	auth.HandleFunc("/resend-code", s.resendCode).Methods(http.MethodPost)
	auth.HandleFunc("/login", s.login).Methods(http.MethodPost)
	auth.HandleFunc("/verify-2fa", s.verify2FA).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	auth.HandleFunc("/me", s.me).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(mw.Session(s.engine))
	api.HandleFunc("/access/request", s.requestAccess).Methods(http.MethodPost)
	api.HandleFunc("/access/mine", s.myGrants).Methods(http.MethodGet)
	api.HandleFunc("/access/status/{resourceId}", s.accessStatus).Methods(http.MethodGet)
	api.HandleFunc("/access/{id}/revoke", s.revokeAccess).Methods(http.MethodPost)
	api.HandleFunc("/roles", s.allRoles).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/roles", s.userRoles).Methods(http.MethodGet)

	resources := api.PathPrefix("/resources").Subrouter()
	resources.Handle("/admin", mw.RequireRole(s.engine, permission.RoleAdmin)(levelResource(permission.LevelAdmin))).Methods(http.MethodGet)
	resources.Handle("/manager", mw.RequireLevel(s.engine, permission.LevelManager)(levelResource(permission.LevelManager))).Methods(http.MethodGet)
	resources.Handle("/user", mw.RequireLevel(s.engine, permission.LevelUser)(levelResource(permission.LevelUser))).Methods(http.MethodGet)

	readDocument := mw.RequireAccess(s.engine, permission.ResourceDocument, permission.ActionRead, func(r *http.Request) string {
		return mux.Vars(r)["id"]
	})
	api.Handle("/documents/{id}", readDocument(http.HandlerFunc(s.document))).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(mw.RequireLevel(s.engine, permission.LevelAdmin))
	admin.HandleFunc("/access/pending", s.pendingRequests).Methods(http.MethodGet)
	admin.HandleFunc("/access/{id}/approve", s.approveAccess).Methods(http.MethodPost)
	admin.HandleFunc("/access/{id}/reject", s.rejectAccess).Methods(http.MethodPost)
	admin.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/block", s.blockUser).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/unblock", s.unblockUser).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/roles", s.assignRole).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/roles/{role}", s.revokeRole).Methods(http.MethodDelete)
	admin.HandleFunc("/stats", s.stats).Methods(http.MethodGet)

	return r
}

/*
====================================
AUTH HANDLERS
====================================
*/

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type codeRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Code     string `json:"code,omitempty"`
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.Register(mw.WithRequestIP(r), req.Username, req.Email, req.Password)
	respond(w, res, err)
}

func (s *server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.VerifyEmail(mw.WithRequestIP(r), req.Email, req.Code)
	respond(w, res, err)
}

func (s *server) resendCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.ResendVerificationCode(mw.WithRequestIP(r), req.Email)
	respond(w, res, err)
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.Login(mw.WithRequestIP(r), req.Username, req.Password)
	respond(w, res, err)
}

func (s *server) verify2FA(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.Verify2FA(mw.WithRequestIP(r), req.Username, req.Code)
	if err == nil && res != nil && res.Success {
		http.SetCookie(w, &http.Cookie{
			Name:     mw.SessionCookie,
			Value:    res.Payload.SessionToken,
			Path:     "/",
			MaxAge:   int(s.sessionTTL / time.Second),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	respond(w, res, err)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := mw.RequestToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("Not authenticated"))
		return
	}
	res, err := s.engine.Logout(mw.WithRequestIP(r), token)
	http.SetCookie(w, &http.Cookie{
		Name:     mw.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respond(w, res, err)
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	token, ok := mw.RequestToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("Not authenticated"))
		return
	}
	res, err := s.engine.CurrentUser(mw.WithRequestIP(r), token)
	respond(w, res, err)
}

/*
====================================
ACCESS HANDLERS
====================================
*/

type accessRequest struct {
	ResourceID      string `json:"resourceId"`
	ResourceType    string `json:"resourceType"`
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"durationMinutes"`
}

func (s *server) requestAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.RequestAccess(r.Context(), jit.Request{
		UserID:          userID,
		ResourceID:      req.ResourceID,
		ResourceType:    req.ResourceType,
		Reason:          req.Reason,
		DurationMinutes: req.DurationMinutes,
	})
	respond(w, res, err)
}

func (s *server) myGrants(w http.ResponseWriter, r *http.Request) {
	userID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.UserGrants(r.Context(), userID)
	respond(w, res, err)
}

func (s *server) accessStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.CheckAccessStatus(r.Context(), userID, mux.Vars(r)["resourceId"])
	respond(w, res, err)
}

func (s *server) revokeAccess(w http.ResponseWriter, r *http.Request) {
	userID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.RevokeAccess(r.Context(), mux.Vars(r)["id"], userID)
	respond(w, res, err)
}

func (s *server) allRoles(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Roles(r.Context())
	respond(w, res, err)
}

func (s *server) userRoles(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.RolesOf(r.Context(), mux.Vars(r)["id"])
	respond(w, res, err)
}

type levelPayload struct {
	Data  string `json:"data"`
	Level string `json:"level"`
}

var levelResourceMessages = map[permission.OrgLevel][2]string{
	permission.LevelAdmin:   {"Admin resource accessed successfully", "This is admin-only data"},
	permission.LevelManager: {"Manager resource accessed successfully", "This is manager-level data"},
	permission.LevelUser:    {"User resource accessed successfully", "This is user-level data"},
}

// levelResource serves the fixed body of a hierarchy-gated resource. The
// guard in front of it has already checked the level.
func levelResource(level permission.OrgLevel) http.Handler {
	msg := levelResourceMessages[level]
	body := &goAccess.Result[levelPayload]{
		Success: true,
		Message: msg[0],
		Payload: levelPayload{Data: msg[1], Level: level.String()},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, body)
	})
}

type documentResponse struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	AccessPath string `json:"accessPath"`
}

// document serves a placeholder body and reports which rule admitted the
// caller in RequireAccess.
func (s *server) document(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	decision, ok := mw.DecisionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusForbidden, errorBody("Access denied"))
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{
		ID:         id,
		Content:    "Contents of document " + id,
		AccessPath: decision.Path.String(),
	})
}

/*
====================================
ADMIN HANDLERS
====================================
*/

func (s *server) pendingRequests(w http.ResponseWriter, r *http.Request) {
	adminID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.PendingRequests(r.Context(), adminID)
	respond(w, res, err)
}

func (s *server) approveAccess(w http.ResponseWriter, r *http.Request) {
	adminID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.ApproveAccess(r.Context(), mux.Vars(r)["id"], adminID)
	respond(w, res, err)
}

func (s *server) rejectAccess(w http.ResponseWriter, r *http.Request) {
	adminID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.RejectAccess(r.Context(), mux.Vars(r)["id"], adminID)
	respond(w, res, err)
}

func (s *server) listUsers(w http.ResponseWriter, r *http.Request) {
	adminID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.ListUsers(r.Context(), adminID)
	respond(w, res, err)
}

func (s *server) blockUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.BlockUser(r.Context(), mux.Vars(r)["id"], adminID)
	respond(w, res, err)
}

func (s *server) unblockUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.UnblockUser(r.Context(), mux.Vars(r)["id"], adminID)
	respond(w, res, err)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *server) assignRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	adminID, _ := mw.UserIDFromContext(r.Context())
	res, err := s.engine.AssignRole(r.Context(), mux.Vars(r)["id"], req.Role, adminID)
	respond(w, res, err)
}

func (s *server) revokeRole(w http.ResponseWriter, r *http.Request) {
	adminID, _ := mw.UserIDFromContext(r.Context())
	vars := mux.Vars(r)
	res, err := s.engine.RevokeRole(r.Context(), vars["id"], vars["role"], adminID)
	respond(w, res, err)
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats(r.Context())
	if err != nil {
		respond[goAccess.Stats](w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, &goAccess.Result[goAccess.Stats]{Success: true, Message: "Statistics", Payload: st})
}

/*
====================================
PLUMBING
====================================
*/

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, check := range s.checks {
		if err := check(ctx); err != nil {
			logger.Warningf("health check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody("unhealthy"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func errorBody(message string) errorResponse {
	return errorResponse{Message: message}
}

// respond writes res with the status its error kind maps to. A nil res
// means a backend failure the engine did not turn into a message.
func respond[T any](w http.ResponseWriter, res *goAccess.Result[T], err error) {
	status := statusFor(err)
	if res == nil {
		if err != nil {
			logger.Errorf("request failed: %v", err)
		}
		writeJSON(w, status, errorBody("Service temporarily unavailable"))
		return
	}
	writeJSON(w, status, res)
}

func statusFor(err error) int {
	if errors.Is(err, goAccess.ErrLoginRateLimited) {
		return http.StatusTooManyRequests
	}
	return goAccess.StatusCode(err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugf("write response: %v", err)
	}
}
