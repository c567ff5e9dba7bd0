package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AuthConfig configures bearer-token authentication. Authentication is off
// when Secret is empty.
type AuthConfig struct {
	// Secret is the shared HMAC key for HS256/HS384/HS512 tokens.
	Secret string

	// Issuer is the required "iss" claim, if set.
	Issuer string

	// Audience is the required "aud" claim, if set.
	Audience string
}

// Enabled reports whether requests must carry a token.
func (c AuthConfig) Enabled() bool {
	return c.Secret != ""
}

type subjectKey struct{}

// Subject returns the token subject of an authenticated request, or "".
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

type authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &authenticator{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
	}
}

// validate parses and verifies a token and returns its subject.
func (a *authenticator) validate(tokenString string) (string, error) {
	token, err := a.parser.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: invalid token: %v", errUnauthorized, err)
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("%w: invalid subject: %v", errUnauthorized, err)
	}
	return subject, nil
}

// middleware rejects requests without a valid "Authorization: Bearer" token.
func (a *authenticator) middleware(next http.Handler, logger *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tablestore"`)
			writeJSON(w, http.StatusUnauthorized, errorBody{
				Error:   "unauthorized",
				Message: "missing bearer token",
			})
			return
		}
		subject, err := a.validate(tokenString)
		if err != nil {
			logger.Debugw("rejected token", "path", r.URL.Path, "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="tablestore", error="invalid_token"`)
			writeJSON(w, http.StatusUnauthorized, errorBody{
				Error:   "unauthorized",
				Message: err.Error(),
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, subject)))
	})
}
