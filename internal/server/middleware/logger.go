package middleware

import (
	"log/slog"
	"net/http"
)

// NewUpgradeLogger logs every inbound session-upgrade attempt before the
// identity and limiter middlewares get a chance to reject it.
func NewUpgradeLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ip string
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				ip = reqMeta.IP
			}

			logger.Info("Inbound session upgrade",
				slog.String("path", r.URL.Path),
				slog.String("ip", ip),
				slog.Bool("hasUserid", r.URL.Query().Get("userid") != ""),
			)
			next.ServeHTTP(w, r)
		})
	}
}
