package auth

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// DigestChallenge returns the WWW-Authenticate header value for a
// Digest challenge (RFC 2617, qop=auth), drawing a fresh nonce from
// store each time it's called — one per 401 response, matching the
// original's per-response nonce issuance.
func DigestChallenge(realm string, store *NonceStore) string {
	nonce := store.Issue()
	var b strings.Builder
	b.WriteString(`Digest realm="`)
	b.WriteString(realm)
	b.WriteString(`", qop="auth", nonce="`)
	b.WriteString(nonce)
	b.WriteString(`", opaque="`)
	b.WriteString(md5Hex(nonce))
	b.WriteString(`"`)
	return b.String()
}

// digestParams holds the comma-separated key=value pairs of a Digest
// Authorization header (the part after "Digest ").
type digestParams map[string]string

func parseDigestParams(token string) digestParams {
	params := make(digestParams)
	for _, part := range splitDigestFields(token) {
		part = strings.TrimSpace(part)
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		params[strings.TrimSpace(name)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return params
}

// splitDigestFields splits on commas that are not inside a quoted value.
func splitDigestFields(s string) []string {
	var fields []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	fields = append(fields, s[start:])
	return fields
}

func md5Hex(parts ...string) string {
	h := md5.New()
	h.Write([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyDigest validates a Digest Authorization token against the
// expected username/password for the given realm, method, and URI, per
// RFC 2617's qop=auth response formula:
//
//	HA1 = MD5(username:realm:password)
//	HA2 = MD5(method:uri)
//	response = MD5(HA1:nonce:nc:cnonce:qop:HA2)
func VerifyDigest(token, method, username, password, realm string, store *NonceStore) bool {
	params := parseDigestParams(token)
	if params["username"] != username {
		return false
	}
	nonce := params["nonce"]
	if nonce == "" || !store.Validate(nonce) {
		return false
	}
	ha1 := md5Hex(username, realm, password)
	ha2 := md5Hex(method, params["uri"])
	expected := md5Hex(ha1, nonce, params["nc"], params["cnonce"], params["qop"], ha2)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(params["response"])) == 1
}
