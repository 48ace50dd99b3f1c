package probes

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/duration"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

// TLSInfo captures the negotiated connection and leaf certificate.
type TLSInfo struct {
	Version     string    `json:"tls_version"`
	CipherSuite string    `json:"cipher_suite"`
	Protocol    string    `json:"protocol,omitempty"`
	SubjectCN   string    `json:"subject_cn,omitempty"`
	IssuerDN    string    `json:"issuer_dn,omitempty"`
	SubjectAN   []string  `json:"subject_an,omitempty"`
	NotBefore   time.Time `json:"not_before,omitempty"`
	NotAfter    time.Time `json:"not_after,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Expired     bool      `json:"expired"`
	SelfSigned  bool      `json:"self_signed"`
	Mismatched  bool      `json:"mismatched"`
}

// TLSProber inspects the transport security of the target.
type TLSProber struct {
	DialTimeout time.Duration
	logger      *slog.Logger
}

// NewTLSProber creates a TLS prober with defaults.
func NewTLSProber() *TLSProber {
	return &TLSProber{
		DialTimeout: duration.TLSHandshake,
		logger:      probeLogger("tls"),
	}
}

// Probe performs a handshake and extracts connection details.
func (p *TLSProber) Probe(ctx context.Context, host string, port int) (*TLSInfo, error) {
	if port == 0 {
		port = 443
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	// Old versions are allowed on purpose so they can be reported.
	cfg := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS10,
		MaxVersion:         tls.VersionTLS13,
		NextProtos:         []string{"h2", "http/1.1"},
	}

	dialer := &net.Dialer{Timeout: p.DialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		netConn.SetDeadline(deadline)
	} else {
		netConn.SetDeadline(time.Now().Add(p.DialTimeout))
	}

	tlsConn := tls.Client(netConn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("handshake %s: %w", addr, err)
	}
	defer tlsConn.Close()

	state := tlsConn.ConnectionState()
	info := &TLSInfo{
		Version:     versionToString(state.Version),
		CipherSuite: tls.CipherSuiteName(state.CipherSuite),
		Protocol:    state.NegotiatedProtocol,
	}

	if len(state.PeerCertificates) > 0 {
		cert := state.PeerCertificates[0]
		info.SubjectCN = cert.Subject.CommonName
		info.IssuerDN = cert.Issuer.String()
		info.SubjectAN = append([]string(nil), cert.DNSNames...)
		info.NotBefore = cert.NotBefore
		info.NotAfter = cert.NotAfter
		fp := sha256.Sum256(cert.Raw)
		info.Fingerprint = hex.EncodeToString(fp[:])

		now := time.Now()
		info.Expired = now.Before(cert.NotBefore) || now.After(cert.NotAfter)
		info.SelfSigned = cert.Subject.String() == cert.Issuer.String()
		info.Mismatched = cert.VerifyHostname(host) != nil
	}
	return info, nil
}

// Run evaluates the target's transport security. A plain-HTTP target is
// itself a high finding; on HTTPS the negotiated version and leaf
// certificate are judged.
func (p *TLSProber) Run(ctx context.Context, target string) []finding.Vulnerability {
	host := hostOf(target)

	if strings.HasPrefix(strings.ToLower(target), "http://") {
		v := finding.New("no_encryption", finding.High, "Target Served Over Plain HTTP")
		v.Description = "The target is reachable only over unencrypted HTTP. Credentials and session tokens transit the network in cleartext."
		v.ProofOfConcept = "Scan target URL uses the http:// scheme"
		v.Remediation = "Serve the application over HTTPS and redirect HTTP to it."
		v.CVSSScore = 7.4
		v.Endpoint = target
		return []finding.Vulnerability{v}
	}

	info, err := p.Probe(ctx, host, 443)
	if err != nil {
		p.logger.Debug("tls probe inconclusive",
			slog.String("host", host), slog.String("error", err.Error()))
		return nil
	}

	var vulns []finding.Vulnerability
	if info.Version == "TLS1.0" || info.Version == "TLS1.1" || info.Version == "SSLv3" {
		v := finding.New("weak_tls_version", finding.High, "Obsolete TLS Version Negotiated: "+info.Version)
		v.Description = fmt.Sprintf("The server negotiated %s with cipher %s. Versions below TLS 1.2 have known cryptographic weaknesses.", info.Version, info.CipherSuite)
		v.ProofOfConcept = fmt.Sprintf("Handshake with %s:443 negotiated %s", host, info.Version)
		v.Remediation = "Set the server's minimum protocol version to TLS 1.2."
		v.CVSSScore = 7.4
		v.Endpoint = host
		vulns = append(vulns, v)
	}
	if info.Expired {
		v := finding.New("expired_certificate", finding.Medium, "Expired TLS Certificate")
		v.Description = fmt.Sprintf("The certificate for %s is outside its validity window (not after %s).", host, info.NotAfter.Format(time.RFC3339))
		v.ProofOfConcept = "Leaf certificate fingerprint " + info.Fingerprint
		v.Remediation = "Renew the certificate and automate rotation."
		v.CVSSScore = finding.Medium.DefaultCVSS()
		v.Endpoint = host
		vulns = append(vulns, v)
	}
	if info.SelfSigned {
		v := finding.New("self_signed_certificate", finding.Medium, "Self-Signed TLS Certificate")
		v.Description = "The served certificate is self-signed; clients cannot establish trust and will train users to click through warnings."
		v.ProofOfConcept = "Subject equals issuer: " + info.IssuerDN
		v.Remediation = "Use a certificate issued by a trusted CA."
		v.CVSSScore = finding.Medium.DefaultCVSS()
		v.Endpoint = host
		vulns = append(vulns, v)
	}
	if info.Mismatched {
		v := finding.New("certificate_mismatch", finding.Medium, "TLS Certificate Hostname Mismatch")
		v.Description = fmt.Sprintf("The certificate (CN=%s) does not cover the host %s.", info.SubjectCN, host)
		v.ProofOfConcept = "SANs: " + strings.Join(info.SubjectAN, ", ")
		v.Remediation = "Issue a certificate covering the serving hostname."
		v.CVSSScore = finding.Medium.DefaultCVSS()
		v.Endpoint = host
		vulns = append(vulns, v)
	}
	return vulns
}

func versionToString(ver uint16) string {
	switch ver {
	case tls.VersionSSL30:
		return "SSLv3"
	case tls.VersionTLS10:
		return "TLS1.0"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS12:
		return "TLS1.2"
	case tls.VersionTLS13:
		return "TLS1.3"
	default:
		return fmt.Sprintf("Unknown(0x%04x)", ver)
	}
}
