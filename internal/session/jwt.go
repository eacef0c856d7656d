// Package session validates session tokens and checks revocation. It performs
// no writes; the resolver middleware composes it with the user store to build
// the request's tenant identity.
package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	id "caretrack/pkg/domain"
)

// Claims are the validated contents of a session token.
type Claims struct {
	UserID    id.UserID
	SessionID id.SessionID
	JTI       string
}

// JWTValidator validates HS256 session tokens issued by the auth collaborator.
type JWTValidator struct {
	signingKey []byte
}

func NewJWTValidator(signingKey string) *JWTValidator {
	return &JWTValidator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a session token, returning its claims.
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, _ := mapClaims["sub"].(string)
	userID, err := id.ParseUserID(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid sub claim: %w", err)
	}

	sid, _ := mapClaims["sid"].(string)
	sessionID, err := id.ParseSessionID(sid)
	if err != nil {
		return nil, fmt.Errorf("invalid sid claim: %w", err)
	}

	jti, _ := mapClaims["jti"].(string)

	return &Claims{UserID: userID, SessionID: sessionID, JTI: jti}, nil
}

// IssueToken mints a session token. Production issuance lives in the auth
// collaborator; this exists for tests and local tooling.
func (v *JWTValidator) IssueToken(userID id.UserID, sessionID id.SessionID, jti string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"sid": sessionID.String(),
		"jti": jti,
	})
	return token.SignedString(v.signingKey)
}
