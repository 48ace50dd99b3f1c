package probes

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/valkyrie-scanner/valkyrie/pkg/duration"
	"github.com/valkyrie-scanner/valkyrie/pkg/httpclient"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
)

// FaviconResult identifies the deployed application stack via the
// Shodan-compatible favicon hash. Telemetry only, never a finding.
type FaviconResult struct {
	Found       bool   `json:"found"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size"`
	MMH3Hash    int32  `json:"mmh3_hash,omitempty"`
	ShodanDork  string `json:"shodan_dork,omitempty"`
	Error       string `json:"error,omitempty"`
}

// FaviconProber fetches the favicon and computes its MMH3 hash.
type FaviconProber struct {
	Client      *http.Client
	Timeout     time.Duration
	UserAgent   string
	MaxFileSize int64
}

// NewFaviconProber creates a favicon prober with defaults.
func NewFaviconProber() *FaviconProber {
	return &FaviconProber{
		Client:      httpclient.Probing(),
		Timeout:     duration.HTTPProbing,
		MaxFileSize: 1 << 20,
	}
}

var faviconPaths = []string{
	"/favicon.ico",
	"/favicon.png",
	"/apple-touch-icon.png",
}

// Probe tries the conventional favicon paths and hashes the first hit.
func (p *FaviconProber) Probe(ctx context.Context, baseURL string) *FaviconResult {
	result := &FaviconResult{}
	baseURL = strings.TrimSuffix(baseURL, "/")

	for _, path := range faviconPaths {
		faviconURL := baseURL + path
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, faviconURL, nil)
		if err != nil {
			continue
		}
		if p.UserAgent != "" {
			req.Header.Set("User-Agent", p.UserAgent)
		}
		resp, err := p.Client.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode != http.StatusOK {
			iohelper.DrainAndClose(resp.Body)
			continue
		}
		data, err := iohelper.ReadBody(resp.Body, p.MaxFileSize)
		iohelper.DrainAndClose(resp.Body)
		if err != nil || len(data) == 0 {
			continue
		}

		result.Found = true
		result.URL = faviconURL
		result.ContentType = resp.Header.Get("Content-Type")
		result.Size = len(data)
		result.MMH3Hash = MMH3Hash(data)
		result.ShodanDork = fmt.Sprintf("http.favicon.hash:%d", result.MMH3Hash)
		return result
	}

	result.Error = "no favicon found"
	return result
}

// MMH3Hash computes the Shodan favicon hash: murmur3 32-bit over the
// base64 body wrapped at 76 columns with trailing newlines.
func MMH3Hash(data []byte) int32 {
	encoded := base64.StdEncoding.EncodeToString(data)

	var b strings.Builder
	b.Grow(len(encoded) + len(encoded)/76 + 1)
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		b.WriteString(encoded[i:end])
		b.WriteString("\n")
	}

	return int32(murmur3.Sum32([]byte(b.String())))
}
