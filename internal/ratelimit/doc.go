// Package ratelimit implements the sliding-window relay limiter described
// in spec.md §4.E: 30 requests per 60-second window, keyed by relay
// requester identity ("local" or a peer's remote address).
package ratelimit
