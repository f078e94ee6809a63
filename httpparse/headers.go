package httpparse

import (
	"strconv"
	"strings"

	"github.com/nullstream/asyncweb/wsutil"
)

func newHeaderList() *wsutil.List[Header] {
	return wsutil.NewList[Header](nil)
}

// parseHeaderLine splits one wire header line ("Name: value") into a
// Header: the value is everything after the first colon, with trailing
// CR and surrounding horizontal whitespace trimmed.
func parseHeaderLine(line string) (Header, bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return Header{}, false
	}
	name := line[:idx]
	if len(name) > 63 {
		return Header{}, false
	}
	value := ""
	if idx+1 < len(line) {
		value = trimSpace(line[idx+1:])
	}
	return Header{Name: name, Value: value}, true
}

// applyHeader updates Request fields with side effects for recognized
// header names (spec.md §4.2 "Recognized headers"), then — if the header
// is one the bound handler asked to retain — appends it to r.headers.
func (r *Request) applyHeader(h Header) {
	switch lowerASCII(h.Name) {
	case "host":
		r.Host = h.Value
	case "content-type":
		r.applyContentType(h.Value)
	case "content-length":
		if n, err := strconv.ParseInt(trimSpace(h.Value), 10, 64); err == nil && n >= 0 {
			r.ContentLength = n
		}
	case "expect":
		if strings.EqualFold(trimSpace(h.Value), "100-continue") {
			r.ExpectingContinue = true
		}
	case "authorization":
		r.applyAuthorization(h.Value)
	case "upgrade":
		if strings.EqualFold(trimSpace(h.Value), "websocket") {
			r.ConnType = ConnWS
		}
	}

	if r.interestingAny || (r.interestingNames != nil && r.interestingNames[lowerASCII(h.Name)]) {
		r.headers.Add(h)
	}
}

func (r *Request) applyContentType(v string) {
	parts := strings.Split(v, ";")
	r.ContentType = trimSpace(parts[0])
	lowerCT := lowerASCII(r.ContentType)
	r.isMultipart = lowerCT == "multipart/form-data"
	r.isPlainPost = !r.isMultipart && lowerCT != "application/x-www-form-urlencoded"
	if !r.isMultipart {
		return
	}
	for _, p := range parts[1:] {
		p = trimSpace(p)
		const prefix = "boundary="
		if len(p) > len(prefix) && strings.EqualFold(p[:len(prefix)], prefix) {
			b := strings.Trim(p[len(prefix):], `"`)
			r.Boundary = "--" + b
		}
	}
}

func (r *Request) applyAuthorization(v string) {
	switch {
	case strings.HasPrefix(v, "Basic "):
		r.AuthKind = AuthBasic
		r.AuthToken = strings.TrimSpace(v[len("Basic "):])
	case strings.HasPrefix(v, "Digest "):
		r.AuthKind = AuthDigest
		r.AuthToken = strings.TrimSpace(v[len("Digest "):])
	}
}
