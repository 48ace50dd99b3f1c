package probes

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

func TestScannedPorts(t *testing.T) {
	t.Parallel()
	ports := ScannedPorts()
	require.Len(t, ports, 14)
	assert.IsIncreasing(t, ports)
	assert.Equal(t, "Redis", ServiceName(6379))
	assert.Equal(t, "MongoDB", ServiceName(27017))
	assert.Empty(t, ServiceName(31337))
}

func TestHostOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"https://shop.example.com/api", "shop.example.com"},
		{"http://10.0.0.5:8080", "10.0.0.5"},
		{"shop.example.com", "shop.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hostOf(tt.in), tt.in)
	}
}

func TestIsPrivateAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"172.32.0.1", false},
		{"8.8.8.8", false},
		{"93.184.216.34", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPrivateAddress(net.ParseIP(tt.ip)), tt.ip)
	}
}

func TestVersionToString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "TLS1.2", versionToString(0x0303))
	assert.Equal(t, "TLS1.3", versionToString(0x0304))
	assert.Equal(t, "TLS1.0", versionToString(0x0301))
}

func TestPlainHTTPTargetIsFinding(t *testing.T) {
	t.Parallel()
	vulns := NewTLSProber().Run(context.Background(), "http://shop.example.com")
	require.Len(t, vulns, 1)
	assert.Equal(t, "no_encryption", vulns[0].Type)
	assert.Equal(t, finding.High, vulns[0].Severity)
}

func TestMatchSignature(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Set("Cf-Ray", "7f1234abcdef-IAD")
	assert.Equal(t, "Cloudflare", matchSignature(h, ""))

	h = http.Header{}
	h.Set("Server", "BIG-IP")
	assert.Equal(t, "F5 BIG-IP", matchSignature(h, ""))

	assert.Equal(t, "ModSecurity", matchSignature(http.Header{}, "Request denied by Mod_Security"))
	assert.Empty(t, matchSignature(http.Header{}, "<html>welcome</html>"))
}

func TestWAFDetectBlocked(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewWAFProber()
	p.Client = srv.Client()
	det := p.Detect(context.Background(), srv.URL)
	assert.True(t, det.Blocked)

	// A blocking front end means no finding.
	assert.Empty(t, p.Run(context.Background(), srv.URL))
}

func TestWAFAbsent(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>search results</html>"))
	}))
	defer srv.Close()

	p := NewWAFProber()
	p.Client = srv.Client()
	vulns := p.Run(context.Background(), srv.URL)
	require.Len(t, vulns, 1)
	assert.Equal(t, "no_waf", vulns[0].Type)
	assert.Equal(t, finding.Low, vulns[0].Severity)
}

func TestWAFVendorSignatureSuppressesFinding(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Answers 200 but carries a vendor header.
		w.Header().Set("Cf-Ray", "7f1234abcdef-IAD")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p := NewWAFProber()
	p.Client = srv.Client()
	assert.Empty(t, p.Run(context.Background(), srv.URL))
}

func TestFaviconProbe(t *testing.T) {
	t.Parallel()
	icon := []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x10, 0x10}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/favicon.ico" {
			w.Header().Set("Content-Type", "image/x-icon")
			w.Write(icon)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewFaviconProber()
	p.Client = srv.Client()
	result := p.Probe(context.Background(), srv.URL)
	require.True(t, result.Found)
	assert.Equal(t, srv.URL+"/favicon.ico", result.URL)
	assert.Equal(t, len(icon), result.Size)
	assert.Equal(t, MMH3Hash(icon), result.MMH3Hash)
	assert.Contains(t, result.ShodanDork, "http.favicon.hash:")
}

func TestFaviconAbsent(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p := NewFaviconProber()
	p.Client = srv.Client()
	result := p.Probe(context.Background(), srv.URL)
	assert.False(t, result.Found)
	assert.NotEmpty(t, result.Error)
}

func TestMMH3HashDeterministic(t *testing.T) {
	t.Parallel()
	a := MMH3Hash([]byte("icon-bytes"))
	b := MMH3Hash([]byte("icon-bytes"))
	c := MMH3Hash([]byte("other-bytes"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.EqualValues(t, 0, MMH3Hash(nil))
}

func TestPortFindingsSkipExpectedWebPorts(t *testing.T) {
	t.Parallel()
	p := NewPortProber()
	assert.Empty(t, p.FindingsFor("http", "example.com", []int{80, 443}))
	assert.Empty(t, p.FindingsFor("https", "example.com", []int{443}))
}

func TestPortFindingsUnencryptedPortOnHTTPSTarget(t *testing.T) {
	t.Parallel()
	p := NewPortProber()

	vulns := p.FindingsFor("https", "example.com", []int{80})
	require.Len(t, vulns, 1)
	assert.Equal(t, "unencrypted_service", vulns[0].Type)
	assert.Equal(t, finding.Medium, vulns[0].Severity)
	assert.Equal(t, "example.com:80", vulns[0].Endpoint)

	vulns = p.FindingsFor("https", "example.com", []int{8080})
	require.Len(t, vulns, 1)
	assert.Equal(t, "unencrypted_service", vulns[0].Type)

	// A plain-HTTP target is expected to answer on port 80.
	assert.Empty(t, p.FindingsFor("http", "example.com", []int{80, 8080}))
}

func TestPortFindingsRiskyServices(t *testing.T) {
	t.Parallel()
	p := NewPortProber()
	vulns := p.FindingsFor("https", "example.com", []int{443, 6379})
	require.Len(t, vulns, 1)
	assert.Equal(t, "open_port", vulns[0].Type)
	assert.Contains(t, vulns[0].Title, "Redis")
}

func TestSchemeOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https", schemeOf("https://example.com"))
	assert.Equal(t, "http", schemeOf("HTTP://example.com/path"))
	assert.Empty(t, schemeOf("example.com"))
}
