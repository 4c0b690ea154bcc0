package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/vishalm/staycrest-sub000/internal/api/shared"
)

// ErrRateLimited is logged when a request is turned away by RateLimit.
var ErrRateLimited = errors.New("submission rate limit exceeded")

// RateLimit returns middleware that admits at most perSecond requests per
// second with the given burst, answering 429 once the bucket is empty. A
// non-positive perSecond disables limiting.
//
// The limiter is shared by every caller of the wrapped route. It caps the
// rate at which work reaches the task queue, in front of the queue's own
// backpressure.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	retryAfter := strconv.Itoa(max(1, int(math.Round(1/perSecond))))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests,
					"Too many requests, slow down", ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
