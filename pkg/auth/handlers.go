package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/antibyte/retrocalc/pkg/logger"
)

// SessionCreator allocates a calculator session and returns its id.
type SessionCreator interface {
	CreateSession() (string, error)
}

// SessionResponse is the body of the session endpoints.
type SessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId,omitempty"`
	Token     string `json:"token,omitempty"`
	Message   string `json:"message"`
}

func setCORSHeaders(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Content-Type", "application/json")
}

func setTokenCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleCreateSession allocates a session through creator and answers with
// its id and a signed token.
func HandleCreateSession(creator SessionCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, "GET, POST, OPTIONS")

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
			return
		case http.MethodGet, http.MethodPost:
		default:
			logger.AuthWarn("Invalid method for session creation: %s", r.Method)
			respondWithError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		sessionID, err := creator.CreateSession()
		if err != nil {
			logger.AuthWarn("Session creation refused for %s: %v", ClientIP(r), err)
			respondWithError(w, "Could not create session", http.StatusServiceUnavailable)
			return
		}

		token, err := GenerateSessionToken(sessionID)
		if err != nil {
			logger.AuthError("Failed to generate token for session %s: %v", sessionID, err)
			respondWithError(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}
		setTokenCookie(w, r, token, int(TokenExpiration().Seconds()))

		logger.AuthInfo("New calculator session %s for %s", sessionID, ClientIP(r))
		json.NewEncoder(w).Encode(SessionResponse{
			Success:   true,
			SessionID: sessionID,
			Token:     token,
			Message:   "Session created",
		})
	}
}

// HandleTokenValidation reports whether the request carries a valid token.
func HandleTokenValidation(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, "GET, POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	tokenString, err := ExtractTokenFromRequest(r)
	if err != nil {
		logger.AuthWarn("No token found in validation request: %v", err)
		respondWithError(w, "Token not found", http.StatusUnauthorized)
		return
	}
	claims, err := ValidateSessionToken(tokenString)
	if err != nil {
		logger.AuthWarn("Token validation failed: %v", err)
		respondWithError(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	json.NewEncoder(w).Encode(SessionResponse{
		Success:   true,
		SessionID: claims.SessionID,
		Message:   "Token valid",
	})
}

// HandleLogout clears the token cookie.
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	setTokenCookie(w, r, "", -1)
	logger.AuthInfo("Token cookie cleared for %s", ClientIP(r))
	json.NewEncoder(w).Encode(SessionResponse{
		Success: true,
		Message: "Logout successful",
	})
}

// ClientIP extracts the client address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SessionResponse{
		Success: false,
		Message: message,
	})
}
