package influx

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"
)

// expiringDays is the remaining-lifetime threshold below which a
// certificate reports "expiring".
const expiringDays = 30

// CertStatus describes the backend's leaf TLS certificate as seen by
// the connection check.
type CertStatus struct {
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"` // valid | expiring | expired | unreachable
	Issuer   string `json:"issuer,omitempty"`
	NotAfter string `json:"not_after,omitempty"`
	DaysLeft int    `json:"days_left"`
}

// InspectTLS dials the backend and reports on its certificate. Returns
// nil for plain-HTTP or unparseable URLs; nothing to inspect there.
// Verification is skipped on purpose: this is a diagnostic read of the
// certificate, including ones that would fail normal verification;
// Send still verifies on the delivery path.
func InspectTLS(ctx context.Context, rawURL string) *CertStatus {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}
	cs := &CertStatus{Endpoint: host}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
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
	daysLeft := time.Until(leaf.NotAfter).Hours() / 24

	cs.Issuer = leaf.Issuer.CommonName
	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.DaysLeft = int(math.Floor(daysLeft))

	switch {
	case daysLeft <= 0:
		cs.Status = "expired"
	case daysLeft <= expiringDays:
		cs.Status = "expiring"
	default:
		cs.Status = "valid"
	}

	return cs
}
