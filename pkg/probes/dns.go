package probes

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/duration"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

// DNSResult contains resolution results for the target host.
type DNSResult struct {
	Host       string   `json:"host"`
	IPv4       []string `json:"ipv4,omitempty"`
	IPv6       []string `json:"ipv6,omitempty"`
	CNAME      string   `json:"cname,omitempty"`
	PrivateIPs []string `json:"private_ips,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// DNSProber resolves the target and flags internal address exposure.
type DNSProber struct {
	Timeout   time.Duration
	Resolvers []string
	logger    *slog.Logger
}

// NewDNSProber creates a DNS prober with defaults.
func NewDNSProber() *DNSProber {
	return &DNSProber{
		Timeout: duration.DNSLookup,
		logger:  probeLogger("dns"),
	}
}

// Resolve looks up A/AAAA and CNAME records for host.
func (p *DNSProber) Resolve(ctx context.Context, host string) *DNSResult {
	result := &DNSResult{Host: host}

	resolver := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			dialer := net.Dialer{Timeout: p.Timeout}
			if len(p.Resolvers) > 0 {
				return dialer.DialContext(ctx, network, p.Resolvers[0]+":53")
			}
			return dialer.DialContext(ctx, network, address)
		},
	}

	ips, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	for _, ip := range ips {
		s := ip.IP.String()
		if ip.IP.To4() != nil {
			result.IPv4 = append(result.IPv4, s)
		} else {
			result.IPv6 = append(result.IPv6, s)
		}
		if IsPrivateAddress(ip.IP) {
			result.PrivateIPs = append(result.PrivateIPs, s)
		}
	}

	cname, err := resolver.LookupCNAME(ctx, host)
	if err == nil && cname != "" && cname != host+"." {
		result.CNAME = strings.TrimSuffix(cname, ".")
	}
	return result
}

// IsPrivateAddress reports whether ip belongs to RFC 1918 space or the
// loopback range.
func IsPrivateAddress(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback()
}

// Run resolves the target host. Public DNS answering with private or
// loopback addresses reveals internal topology and is reported low.
func (p *DNSProber) Run(ctx context.Context, target string) []finding.Vulnerability {
	host := hostOf(target)
	if net.ParseIP(host) != nil {
		return nil
	}

	result := p.Resolve(ctx, host)
	if result.Error != "" {
		p.logger.Debug("dns probe inconclusive",
			slog.String("host", host), slog.String("error", result.Error))
		return nil
	}
	if len(result.PrivateIPs) == 0 {
		return nil
	}

	v := finding.New("internal_ip_disclosure", finding.Low, "DNS Resolves To Internal Address")
	v.Description = fmt.Sprintf("The public name %s resolves to private/loopback addresses (%s), disclosing internal network layout and enabling DNS rebinding setups.", host, strings.Join(result.PrivateIPs, ", "))
	v.ProofOfConcept = fmt.Sprintf("A/AAAA lookup of %s returned %s", host, strings.Join(result.PrivateIPs, ", "))
	v.Remediation = "Serve internal records from a split-horizon DNS view only."
	v.CVSSScore = finding.Low.DefaultCVSS()
	v.Endpoint = host
	return []finding.Vulnerability{v}
}
