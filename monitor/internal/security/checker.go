package security

import (
	"context"
	"crypto/tls"
	"log/slog"
	"math"
	"net"
	"net/url"
	"sync"
	"time"
)

const (
	// CheckInterval is how often Watch re-inspects the certificate.
	CheckInterval = time.Hour

	// expiringDays is the threshold below which a certificate is "expiring".
	expiringDays = 30

	dialTimeout = 10 * time.Second
)

// CertStatus describes the feed's leaf certificate.
type CertStatus struct {
	Endpoint  string    `json:"endpoint"`
	Status    string    `json:"status"` // valid | expiring | expired | unreachable
	Issuer    string    `json:"issuer,omitempty"`
	NotAfter  string    `json:"not_after,omitempty"` // RFC3339
	DaysLeft  int       `json:"days_left"`
	CheckedAt time.Time `json:"checked_at"`
}

// CheckFeed dials the TLS endpoint behind feedURL and returns a CertStatus
// describing the leaf certificate.
//
// Returns nil for ws:// and unparseable URLs.
func CheckFeed(ctx context.Context, feedURL string, insecure bool) *CertStatus {
	u, err := url.Parse(feedURL)
	if err != nil || u.Scheme != "wss" {
		return nil
	}

	now := time.Now()
	cs := &CertStatus{Endpoint: feedURL, CheckedAt: now.UTC()}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         u.Hostname(),
			InsecureSkipVerify: insecure, //nolint:gosec
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		slog.Debug("security: tls dial failed", "endpoint", feedURL, "err", err)
		cs.Status = "unreachable"
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = "unreachable"
		return cs
	}

	leaf := peerCerts[0]
	daysLeft := leaf.NotAfter.Sub(now).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	if cs.Issuer == "" && len(leaf.Issuer.Organization) > 0 {
		cs.Issuer = leaf.Issuer.Organization[0]
	}
	cs.DaysLeft = int(math.Floor(daysLeft))
	cs.Status = classify(daysLeft)
	return cs
}

func classify(daysLeft float64) string {
	switch {
	case daysLeft <= 0:
		return "expired"
	case daysLeft <= expiringDays:
		return "expiring"
	default:
		return "valid"
	}
}

// Monitor keeps the latest CertStatus for a feed.
type Monitor struct {
	feedURL  string
	insecure bool

	mu     sync.RWMutex
	latest *CertStatus
}

// NewMonitor returns a Monitor for feedURL. Nothing is checked until Check
// or Run is called.
func NewMonitor(feedURL string, insecure bool) *Monitor {
	return &Monitor{feedURL: feedURL, insecure: insecure}
}

// Check runs CheckFeed once, stores the result and logs anything other than
// a valid certificate.
func (m *Monitor) Check(ctx context.Context) *CertStatus {
	cs := CheckFeed(ctx, m.feedURL, m.insecure)
	if cs != nil && cs.Status != "valid" {
		slog.Warn("security: feed certificate needs attention",
			"endpoint", cs.Endpoint, "status", cs.Status, "days_left", cs.DaysLeft)
	}
	m.mu.Lock()
	m.latest = cs
	m.mu.Unlock()
	return cs
}

// Latest returns the most recent result, or nil for ws:// feeds and before
// the first check.
func (m *Monitor) Latest() *CertStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Run checks immediately and then every interval until ctx is cancelled.
// It returns at once for ws:// feeds.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if m.Check(ctx) == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
