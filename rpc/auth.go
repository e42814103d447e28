package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"daochain/crypto"
)

const authClockSkew = 2 * time.Minute

// authenticator checks that a submitter holds an HS256 token whose subject
// is the extrinsic signer. Without a secret every submission is accepted,
// which is how dev nodes run.
type authenticator struct {
	secret []byte
}

func newAuthenticator(secret string) *authenticator {
	return &authenticator{secret: []byte(strings.TrimSpace(secret))}
}

func (a *authenticator) enabled() bool { return len(a.secret) > 0 }

func (a *authenticator) authorize(r *http.Request, signer [20]byte) *RPCError {
	if !a.enabled() {
		return nil
	}
	token := extractBearer(r.Header.Get("Authorization"))
	if token == "" {
		return newError(http.StatusUnauthorized, codeUnauthorized, "missing bearer token", nil)
	}
	subject, err := a.subject(token)
	if err != nil {
		return newError(http.StatusUnauthorized, codeUnauthorized, "invalid token", err.Error())
	}
	account, err := crypto.ParseAccount(subject)
	if err != nil || account != signer {
		return newError(http.StatusForbidden, codeUnauthorized, "token subject does not match signer", subject)
	}
	return nil
}

func (a *authenticator) subject(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(authClockSkew), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token invalid")
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject claim required")
	}
	return subject, nil
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
