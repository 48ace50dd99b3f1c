package probes

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/duration"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

// riskyServices maps commonly exposed ports to their service names.
// Web ports are scanned but only non-web services raise findings.
var riskyServices = map[int]string{
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	80:    "HTTP",
	110:   "POP3",
	143:   "IMAP",
	443:   "HTTPS",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	6379:  "Redis",
	8080:  "HTTP-Alt",
	27017: "MongoDB",
}

// webPorts carry the application itself and are expected to be open.
var webPorts = map[int]bool{80: true, 443: true, 8080: true}

// unencryptedWebPorts serve HTTP without TLS. Open on an HTTPS target
// they offer a plaintext downgrade path.
var unencryptedWebPorts = map[int]bool{80: true, 8080: true}

// ServiceName returns the well-known service for a scanned port.
func ServiceName(port int) string { return riskyServices[port] }

// ScannedPorts lists the port set in ascending order.
func ScannedPorts() []int {
	ports := make([]int, 0, len(riskyServices))
	for p := range riskyServices {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// PortProber checks the fixed service port set with short TCP connects.
type PortProber struct {
	DialTimeout time.Duration
	Concurrency int
	logger      *slog.Logger
}

// NewPortProber creates a port prober with defaults.
func NewPortProber() *PortProber {
	return &PortProber{
		DialTimeout: duration.DialTimeout,
		Concurrency: 5,
		logger:      probeLogger("ports"),
	}
}

// OpenPorts dials every scanned port and returns the open ones sorted.
func (p *PortProber) OpenPorts(ctx context.Context, host string) []int {
	var (
		mu   sync.Mutex
		open []int
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, p.Concurrency)

	for _, port := range ScannedPorts() {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(port int) {
			defer wg.Done()
			defer func() { <-sem }()
			dialer := net.Dialer{Timeout: p.DialTimeout}
			conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
			if err != nil {
				return
			}
			conn.Close()
			mu.Lock()
			open = append(open, port)
			mu.Unlock()
		}(port)
	}
	wg.Wait()

	sort.Ints(open)
	return open
}

// Run scans the target's host and reports each open non-web service
// port as a medium finding, plus unencrypted web ports when the target
// itself is HTTPS.
func (p *PortProber) Run(ctx context.Context, target string) []finding.Vulnerability {
	host := hostOf(target)
	open := p.OpenPorts(ctx, host)
	p.logger.Debug("port scan complete",
		slog.String("host", host), slog.Int("open", len(open)))
	return p.FindingsFor(schemeOf(target), host, open)
}

// FindingsFor converts an open-port list into findings. Web ports are
// expected and skipped, except that an unencrypted HTTP port open on an
// HTTPS target is reported as a plaintext exposure.
func (p *PortProber) FindingsFor(scheme, host string, open []int) []finding.Vulnerability {
	var vulns []finding.Vulnerability
	for _, port := range open {
		if webPorts[port] {
			if scheme == "https" && unencryptedWebPorts[port] {
				vulns = append(vulns, p.unencryptedFinding(host, port))
			}
			continue
		}
		service := riskyServices[port]
		v := finding.New("open_port", finding.Medium, fmt.Sprintf("Exposed Service Port: %d (%s)", port, service))
		v.Description = fmt.Sprintf("Port %d (%s) on %s accepts TCP connections from the scanner. Database and management services should not face the internet.", port, service, host)
		v.ProofOfConcept = fmt.Sprintf("tcp connect %s:%d succeeded", host, port)
		v.Remediation = "Firewall the service or bind it to an internal interface; use " + strings.ToUpper(service) + " over a VPN or bastion if remote access is needed."
		v.CVSSScore = finding.Medium.DefaultCVSS()
		v.Endpoint = net.JoinHostPort(host, strconv.Itoa(port))
		vulns = append(vulns, v)
	}
	return vulns
}

func (p *PortProber) unencryptedFinding(host string, port int) finding.Vulnerability {
	service := riskyServices[port]
	v := finding.New("unencrypted_service", finding.Medium, fmt.Sprintf("Unencrypted Service on Port %d", port))
	v.Description = fmt.Sprintf("The target serves HTTPS, yet unencrypted %s is accessible on port %d. Clients reaching the plaintext port can have their traffic intercepted.", service, port)
	v.ProofOfConcept = fmt.Sprintf("tcp connect %s:%d succeeded", host, port)
	v.Remediation = "Redirect HTTP traffic to HTTPS or disable plaintext access entirely."
	v.CVSSScore = finding.Medium.DefaultCVSS()
	v.Endpoint = net.JoinHostPort(host, strconv.Itoa(port))
	v.Method = "TCP"
	return v
}
