package paypal

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Credentials is the client ID/secret pair the token endpoint accepts.
type Credentials struct {
	ClientID string
	Secret   string
}

// DefaultCredentials returns the sandbox app credentials the mock ships with.
func DefaultCredentials() Credentials {
	return Credentials{
		ClientID: "AeA1QIZXiflr1_-r0U2UbWTziOWX1GRQer5jkUq4ZfWT5qwb6qQRPq7jDtv57TL4POEEezGLdutcxnkJ",
		Secret:   "ECYYrrSHdKfk_Q0EdvzdGkzj58a66kKaUQ5dZAEv4HvvtDId2_DpSuYDB088BZxGuMji7G4OFUnPog6p",
	}
}

func (c Credentials) validBasic(req *http.Request) bool {
	user, pass, ok := req.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.ClientID)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(c.Secret)) == 1
	return userOK && passOK
}

// bearerToken extracts a non-empty Bearer token from the Authorization header.
func bearerToken(req *http.Request) (string, bool) {
	auth := req.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// authorized accepts any request carrying a Bearer token; tokens are not
// checked against issued ones.
func authorized(req *http.Request) bool {
	_, ok := bearerToken(req)
	return ok
}
