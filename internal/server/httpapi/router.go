package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Prefixes every API route is served under.
var Prefixes = []string{"", "/api"}

type Deps struct {
	Users    UserService
	OTPs     OTPService
	Chats    ChatService
	Messages MessageService

	// Socket serves the websocket relay at /socket when set.
	Socket http.Handler
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Observer records request metrics when set.
	Observer RequestObserver

	ClientOrigin string
	Log          logging.Logger
}

// NewRouter wires every endpoint and wraps the mux with the middleware chain:
// tracing, CORS, panic recovery, metrics and access logging.
func NewRouter(d Deps) http.Handler {
	log := d.Log.With("module", "http")
	mux := http.NewServeMux()

	uh := &userHandler{users: d.Users, otps: d.OTPs}
	ch := &chatHandler{chats: d.Chats}
	mh := &messageHandler{messages: d.Messages}

	public := func(fn HandlerFunc) http.Handler { return Wrap(log, fn) }
	protect := func(fn HandlerFunc) http.Handler {
		return AuthMiddleware(d.Users, log, Wrap(log, fn))
	}

	routes := []struct {
		method  string
		path    string
		handler http.Handler
	}{
		{http.MethodPost, "/user/signup", public(uh.signup)},
		{http.MethodPost, "/user/verification-otp-mail", public(uh.sendVerification)},
		{http.MethodPost, "/user/verifyOtp", public(uh.verifyOTP)},
		{http.MethodPost, "/user/login", public(uh.login)},
		{http.MethodGet, "/user/user", protect(uh.profile)},
		{http.MethodPost, "/user/logout", protect(uh.logout)},
		{http.MethodPost, "/user/resend-otp", public(uh.resendOTP)},
		{http.MethodPost, "/user/forgot-password-otp", public(uh.forgotPasswordOTP)},
		{http.MethodPost, "/user/forgot-password", public(uh.resetPassword)},
		{http.MethodGet, "/user/{$}", protect(uh.search)},
		{http.MethodPost, "/user/avatar", protect(uh.avatar)},

		{http.MethodPost, "/chat/{$}", protect(ch.access)},
		{http.MethodGet, "/chat/{$}", protect(ch.list)},
		{http.MethodPost, "/chat/create-group", protect(ch.createGroup)},
		{http.MethodPut, "/chat/rename-group", protect(ch.rename)},
		{http.MethodPut, "/chat/group-add-user", protect(ch.addMember)},
		{http.MethodPut, "/chat/group-remove-user", protect(ch.removeMember)},

		{http.MethodPost, "/message/{$}", protect(mh.send)},
		{http.MethodGet, "/message/{$}", protect(mh.unread)},
		{http.MethodGet, "/message/{chatId}", protect(mh.list)},
		{http.MethodPut, "/message/{chatId}", protect(mh.markRead)},
	}

	for _, prefix := range Prefixes {
		for _, rt := range routes {
			mux.Handle(rt.method+" "+prefix+rt.path, rt.handler)
		}
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, ok("ok"), http.StatusOK)
	})
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	if d.Socket != nil {
		mux.Handle("GET /socket", d.Socket)
	}

	var h http.Handler = mux
	h = AccessLog(log, h)
	if d.Observer != nil {
		h = Observe(d.Observer, h)
	}
	h = Recover(log, h)
	h = CORS(d.ClientOrigin, h)

	return otelhttp.NewHandler(h, "http.server")
}
