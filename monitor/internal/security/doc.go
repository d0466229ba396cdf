// Package security inspects the TLS certificate presented by a wss:// feed.
//
// CheckFeed(ctx, feedURL, insecure) dials the feed host and returns a
// CertStatus for the leaf certificate. It returns nil for plain ws:// feeds.
//
// Status values:
//
//	valid       more than 30 days left
//	expiring    30 days or fewer left
//	expired     NotAfter is in the past
//	unreachable the TLS handshake failed
//
// The monitor runs the check at startup and every CheckInterval after that,
// and reports the latest result on /api/v1/health.
package security
