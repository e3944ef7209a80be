// Package auth protects the operator dashboard with a single password and a
// securecookie session. There are no user accounts: one operator, one hash,
// both from config.
package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

const (
	cookieName = "courtsched_session"
	sessionTTL = 14 * 24 * time.Hour
)

type Operator struct {
	sc           *securecookie.SecureCookie
	passwordHash string
}

// NewOperator builds the session store. An empty passwordHash disables auth
// entirely (local single-user deployments).
func NewOperator(passwordHash string, hashKey, blockKey []byte) *Operator {
	if passwordHash == "" {
		return &Operator{}
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Operator{sc: sc, passwordHash: passwordHash}
}

func (o *Operator) Enabled() bool { return o.passwordHash != "" }

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func (o *Operator) Authenticate(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(o.passwordHash), []byte(password)); err != nil {
		return errors.New("invalid password")
	}
	return nil
}

func (o *Operator) SetSession(w http.ResponseWriter, r *http.Request) error {
	encoded, err := o.sc.Encode(cookieName, map[string]any{"op": true})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (o *Operator) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (o *Operator) hasSession(r *http.Request) bool {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return false
	}
	val := map[string]any{}
	if err := o.sc.Decode(cookieName, c.Value, &val); err != nil {
		return false
	}
	op, _ := val["op"].(bool)
	return op
}

// Require rejects unauthenticated requests when auth is enabled.
func (o *Operator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o.Enabled() && !o.hasSession(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
