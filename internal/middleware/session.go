package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	sessionCookieName = "SITE_SESSION"
	sessionLifetime   = 30 * 24 * time.Hour
)

// SessionData is the payload of the signed session cookie.
type SessionData struct {
	ID        string    `json:"id"`
	MountID   string    `json:"mount,omitempty"`
	CSRFToken string    `json:"csrf,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	// internal dirty flag; not serialized
	dirty bool
}

// MarkDirty flags the session for writing at end of request
func (s *SessionData) MarkDirty() { s.dirty = true; s.UpdatedAt = time.Now().UTC() }

// SetMountID records the header mount bound to this session.
func (s *SessionData) SetMountID(id string) {
	if s.MountID == id {
		return
	}
	s.MountID = id
	s.MarkDirty()
}

// Sessions signs and verifies session cookies with an HMAC key.
type Sessions struct {
	key    []byte
	secure bool
}

// NewSessions builds the cookie codec. An empty key is replaced with a
// process-ephemeral one, which only suits local development.
func NewSessions(signingKey string, secure bool, logger *zap.Logger) (*Sessions, error) {
	key := []byte(signingKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, errors.New("session: failed to generate signing key")
		}
		if logger != nil {
			logger.Warn("session: using ephemeral signing key; set SITE_SESSION_SIGNING_KEY for production")
		}
	}
	return &Sessions{key: key, secure: secure}, nil
}

// Middleware loads or initializes a session and stores it in request context.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sd, fromCookie := s.read(r)
		if sd.ID == "" {
			sd.ID = randID()
			sd.CreatedAt = time.Now().UTC()
			sd.UpdatedAt = sd.CreatedAt
			sd.CSRFToken = newCSRFToken()
			sd.dirty = true
		}
		rw := NewResponseRecorder(w)
		// the cookie must go out with the headers, so write it just before them
		rw.SetBeforeWrite(func(w http.ResponseWriter) {
			if sd.dirty || !fromCookie {
				s.write(w, sd)
			}
		})
		next.ServeHTTP(rw, r.WithContext(WithSession(r.Context(), sd)))
		// If nothing was written yet (e.g., HEAD), persist cookie now
		if !rw.Wrote() && (sd.dirty || !fromCookie) {
			s.write(w, sd)
		}
	})
}

func (s *Sessions) read(r *http.Request) (*SessionData, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return &SessionData{}, false
	}
	payload, sig, ok := strings.Cut(c.Value, ".")
	if !ok {
		return &SessionData{}, false
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return &SessionData{}, false
	}
	sigB, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return &SessionData{}, false
	}
	if !hmac.Equal(sigB, s.sign(payloadB)) {
		return &SessionData{}, false
	}
	var sd SessionData
	if err := json.Unmarshal(payloadB, &sd); err != nil {
		return &SessionData{}, false
	}
	return &sd, true
}

func (s *Sessions) write(w http.ResponseWriter, sd *SessionData) {
	b, _ := json.Marshal(sd)
	val := base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(s.sign(b))
	// httpOnly to prevent JS access
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    val,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionLifetime),
	})
}

func (s *Sessions) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

func randID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
