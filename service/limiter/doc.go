// Package limiter implements the admission gate for outbound remote calls: a
// token bucket capping sustained request rate combined with a bounded
// concurrency slot pool, plus a recovery delay when the remote side signals
// overload.
package limiter
