package signal

import "golang.org/x/time/rate"

// inboundLimiter throttles the messages of one connection. A nil limiter
// allows everything.
type inboundLimiter struct {
	lim *rate.Limiter
}

func newInboundLimiter(perSecond float64, burst int) *inboundLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &inboundLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *inboundLimiter) Allow() bool {
	return l == nil || l.lim.Allow()
}
