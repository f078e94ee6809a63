package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// BasicChallenge returns the WWW-Authenticate header value for a Basic
// challenge in the given realm.
func BasicChallenge(realm string) string {
	return `Basic realm="` + realm + `"`
}

// VerifyBasic checks a decoded "Authorization: Basic <token>" value
// (the base64 token only, as httpparse.Request.AuthToken stores it)
// against the expected username/password, using a constant-time
// compare so response timing doesn't leak how many characters matched.
func VerifyBasic(token, username, password string) bool {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
	return userOK && passOK
}
