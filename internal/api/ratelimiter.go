package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// limiter admits or rejects a single request. A rejection carries the time
// after which the client may try again.
type limiter interface {
	Admit() (bool, time.Duration)
}

type tokenBucket struct {
	limiter *rate.Limiter
}

// newTokenBucket returns nil when rps is not positive, leaving the routes it
// would guard unlimited.
func newTokenBucket(rps float64, burst int) limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &tokenBucket{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (b *tokenBucket) Admit() (bool, time.Duration) {
	res := b.limiter.Reserve()
	if !res.OK() {
		return false, time.Second
	}
	wait := res.Delay()
	if wait <= 0 {
		return true, 0
	}
	// hand the token back; the request is rejected, not queued
	res.Cancel()
	return false, wait
}

// limitRoute guards one route with l. message explains the rejection.
func limitRoute(l limiter, message string, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.Admit()
		if ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", retryAfter(wait))
		writeError(w, http.StatusTooManyRequests, "Too many requests", message)
	})
}

// retryAfter renders wait as whole seconds, never less than one.
func retryAfter(wait time.Duration) string {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
