package connector

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// botFrameworkIssuers are the issuer values the connector service stamps on
// webhook tokens (v1 and v2 endpoint forms).
var botFrameworkIssuers = []string{
	"https://api.botframework.com",
	"https://login.microsoftonline.com/d6d49420-f39b-4df7-a1dc-d59a935871db/v2.0",
}

// TokenValidator checks the Authorization header the Bot Framework connector
// attaches to inbound webhook calls. It verifies the token's structure,
// expiry, issuer, and that the audience is this bot's app id. Signature
// verification against the connector's JWKS is delegated to the fronting
// gateway in deployments that terminate auth there; Disabled skips the check
// entirely for local emulator runs.
type TokenValidator struct {
	AppID    string
	Disabled bool
}

// Validate checks an Authorization header value ("Bearer <jwt>").
func (v TokenValidator) Validate(authHeader string) error {
	if v.Disabled {
		return nil
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return fmt.Errorf("connector: missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
	if raw == "" {
		return fmt.Errorf("connector: empty bearer token")
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return fmt.Errorf("connector: malformed token: %w", err)
	}
	if err := claims.Valid(); err != nil {
		return fmt.Errorf("connector: token rejected: %w", err)
	}

	issuerOK := false
	for _, iss := range botFrameworkIssuers {
		if claims.Issuer == iss {
			issuerOK = true
			break
		}
	}
	if !issuerOK {
		return fmt.Errorf("connector: unexpected token issuer %q", claims.Issuer)
	}

	if v.AppID != "" && !claims.VerifyAudience(v.AppID, true) {
		return fmt.Errorf("connector: token audience does not match app id")
	}
	return nil
}
