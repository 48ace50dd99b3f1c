package probeconfig

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/httpclient"
)

func TestValidateFillsZeroValues(t *testing.T) {
	t.Parallel()
	var b Base
	b.Validate()
	assert.Equal(t, httpclient.TimeoutScanning, b.Timeout)
	assert.Equal(t, defaults.ConcurrencyLow, b.Concurrency)
	assert.NotNil(t, b.Client)
}

func TestValidateKeepsExplicitValues(t *testing.T) {
	t.Parallel()
	custom := &http.Client{}
	b := Base{Timeout: time.Second, Concurrency: 2, Client: custom}
	b.Validate()
	assert.Equal(t, time.Second, b.Timeout)
	assert.Equal(t, 2, b.Concurrency)
	assert.Same(t, custom, b.Client)
}

func TestNotifyVulnerabilityFound(t *testing.T) {
	t.Parallel()
	var fired int
	b := Base{OnVulnerabilityFound: func() { fired++ }}
	b.NotifyVulnerabilityFound()
	b.NotifyVulnerabilityFound()
	assert.Equal(t, 2, fired)

	var empty Base
	assert.NotPanics(t, empty.NotifyVulnerabilityFound)
}
