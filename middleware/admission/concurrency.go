package admission

import (
	"errors"
	"net/http"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
	"admission-gateway/middleware/requestid"

	"go.uber.org/zap"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	AllowOrigin    string
	Logger         *zap.Logger
}

// ConcurrencyMiddleware limita requisições em voo. Max <= 0 desliga.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.NewConcurrencyService(infra.NewChanPool(opts.Max), opts.AcquireTimeout)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				if !errors.Is(err, domain.ErrNoSlot) {
					// cliente foi embora esperando vaga
					opts.Logger.Debug("request canceled waiting for slot", zap.String("path", r.URL.Path), zap.Error(err))
					return
				}
				opts.Logger.Warn("concurrency limit reached",
					zap.Int("max", opts.Max),
					zap.Int64("in_flight", svc.InFlight()),
					zap.Int64("rejected_total", svc.Rejected()),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestid.FromContext(r.Context())),
				)
				w.Header().Set(HeaderAllowOrigin, opts.AllowOrigin)
				writeError(w, opts.RejectStatus, MessageBusy, opts.AcquireTimeout)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
