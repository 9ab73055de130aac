package admission

import (
	"net/http"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita requisições de formulário em voo simultâneo.
// Protege o backend de e-mail de rajadas que o rate limit por janela ainda
// não pegou.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
