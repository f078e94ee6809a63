package wsocket

import (
	"strings"

	"github.com/nullstream/asyncweb/auth"
	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/response"
	"github.com/nullstream/asyncweb/transport"
	"github.com/nullstream/asyncweb/wsutil"
)

// Handler is the httpparse.Handler that accepts a WebSocket upgrade at
// URL and owns the connected-client list for broadcast (spec.md §4.6,
// §4.7).
type Handler struct {
	URL string

	// MaxClients bounds concurrent connections (spec.md §6's
	// MaxWSClients); 0 means unbounded.
	MaxClients int
	// MaxQueueMessages bounds each client's per-priority send queue
	// (spec.md §6's WSMaxQueueMessages).
	MaxQueueMessages int

	// OnConnect is invoked with a freshly upgraded Client, on the
	// connection's own dispatcher goroutine.
	OnConnect func(c *Client)

	// Username and Password, when Username is non-empty, require Basic
	// auth on the upgrade request itself (spec.md §4.6, §7): a mismatch
	// sends 401 with a WWW-Authenticate challenge instead of upgrading.
	Username string
	Password string
	Realm    string

	clients *wsutil.List[*Client]
}

// NewHandler creates a Handler accepting upgrades at url.
func NewHandler(url string, maxClients, maxQueueMessages int) *Handler {
	h := &Handler{URL: url, MaxClients: maxClients, MaxQueueMessages: maxQueueMessages}
	h.clients = wsutil.NewList[*Client](nil)
	return h
}

func (h *Handler) Filter(req *httpparse.Request) bool {
	if h.MaxClients <= 0 {
		return true
	}
	return h.clients.Len() < h.MaxClients
}

func (h *Handler) IsTrivial() bool { return false }

func (h *Handler) CanHandle(req *httpparse.Request) bool {
	if req.URL != h.URL {
		return false
	}
	if req.Method != httpparse.MethodGet && req.Method != httpparse.MethodAny {
		return false
	}
	req.AddInterestingHeader("Upgrade")
	req.AddInterestingHeader("Connection")
	req.AddInterestingHeader("Sec-WebSocket-Key")
	req.AddInterestingHeader("Sec-WebSocket-Version")
	req.AddInterestingHeader("Sec-WebSocket-Protocol")
	return true
}

func (h *Handler) HandleUpload(*httpparse.Request, string, int64, []byte, bool) {}
func (h *Handler) HandleBody(*httpparse.Request, []byte, int64, int64)          {}

func (h *Handler) HandleRequest(req *httpparse.Request) {
	upgradeHdr, hasUpgrade := req.GetHeader("Upgrade")
	keyHdr, hasKey := req.GetHeader("Sec-WebSocket-Key")
	versionHdr, hasVersion := req.GetHeader("Sec-WebSocket-Version")
	if !hasUpgrade || !strings.EqualFold(upgradeHdr.Value, "websocket") || !hasKey ||
		!hasVersion || versionHdr.Value != "13" {
		req.Send(&rejectResponse{})
		return
	}

	if h.Username != "" && !h.authorized(req) {
		realm := h.Realm
		if realm == "" {
			realm = "Login Required"
		}
		resp := response.NewBasic(401, "text/plain", []byte("Unauthorized"))
		resp.AddHeader("WWW-Authenticate", auth.BasicChallenge(realm))
		req.Send(resp)
		return
	}

	accept := AcceptKey(keyHdr.Value)
	headers := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n"
	if protoHdr, ok := req.GetHeader("Sec-WebSocket-Protocol"); ok && protoHdr.Value != "" {
		headers += "Sec-WebSocket-Protocol: " + protoHdr.Value + "\r\n"
	}
	headers += "\r\n"

	conn := req.Conn()
	resp := &upgradeResponse{
		remaining: []byte(headers),
		onHandoff: func() {
			client := NewClient(conn, h.maxQueue())
			h.clients.Add(client)
			client.OnClose = func(c *Client) {
				h.clients.RemoveMatch(func(x *Client) bool { return x == c })
			}
			if h.OnConnect != nil {
				h.OnConnect(client)
			}
		},
	}
	req.Send(resp)
}

// authorized checks req's Authorization header against Username/Password
// when Basic auth is configured.
func (h *Handler) authorized(req *httpparse.Request) bool {
	if req.AuthKind != httpparse.AuthBasic {
		return false
	}
	return auth.VerifyBasic(req.AuthToken, h.Username, h.Password)
}

func (h *Handler) maxQueue() int {
	if h.MaxQueueMessages > 0 {
		return h.MaxQueueMessages
	}
	return 32
}

// Broadcast sends payload as a single frame (opcode OpText or OpBinary)
// to every currently connected client, sharing one encoded
// MessageBuffer across all of them (spec.md §4.7).
func (h *Handler) Broadcast(opcode Opcode, payload []byte) {
	n := h.clients.Len()
	if n == 0 {
		return
	}
	encoded := EncodeFrame(true, opcode, payload, false)
	buf := NewMessageBuffer(encoded, int32(n))
	h.clients.ForEach(func(c *Client) bool {
		if err := c.SendBuffer(opcode, buf); err != nil {
			buf.Release()
		}
		return true
	})
}

// Clients returns a snapshot of currently connected clients.
func (h *Handler) Clients() []*Client { return h.clients.Snapshot() }

var _ httpparse.Handler = (*Handler)(nil)

// upgradeResponse streams the 101 handshake headers and, once fully
// flushed, hands the connection off to a new Client instead of closing
// it — the one place in asyncweb where a response does not end with
// AckFinishedClose.
type upgradeResponse struct {
	remaining []byte
	onHandoff func()
	handed    bool
}

func (u *upgradeResponse) Respond(req *httpparse.Request) httpparse.AckResult {
	return u.pump(req)
}

func (u *upgradeResponse) Ack(req *httpparse.Request, _ int, _ int64) httpparse.AckResult {
	return u.pump(req)
}

func (u *upgradeResponse) pump(req *httpparse.Request) httpparse.AckResult {
	if len(u.remaining) > 0 {
		n, err := req.Conn().Write(u.remaining, transport.CopyBuffer)
		if err != nil {
			return httpparse.AckFinishedClose
		}
		u.remaining = u.remaining[n:]
		if len(u.remaining) > 0 {
			return httpparse.AckContinue
		}
	}
	if !u.handed {
		u.handed = true
		if u.onHandoff != nil {
			u.onHandoff()
		}
	}
	return httpparse.AckFinishedHandoff
}

// rejectResponse answers a malformed upgrade attempt with 400.
type rejectResponse struct{ remaining []byte }

func (r *rejectResponse) Respond(req *httpparse.Request) httpparse.AckResult {
	r.remaining = []byte("HTTP/1.1 400 Bad Request\r\nConnection: close\r\nContent-Length: 0\r\n\r\n")
	return r.Ack(req, 0, 0)
}

func (r *rejectResponse) Ack(req *httpparse.Request, _ int, _ int64) httpparse.AckResult {
	if len(r.remaining) == 0 {
		return httpparse.AckFinishedClose
	}
	n, err := req.Conn().Write(r.remaining, transport.CopyBuffer)
	if err != nil {
		return httpparse.AckFinishedClose
	}
	r.remaining = r.remaining[n:]
	if len(r.remaining) > 0 {
		return httpparse.AckContinue
	}
	return httpparse.AckFinishedClose
}

var (
	_ httpparse.Response = (*upgradeResponse)(nil)
	_ httpparse.Response = (*rejectResponse)(nil)
)
