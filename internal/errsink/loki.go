package errsink

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/grafana/loki-client-go/loki"
	"github.com/grafana/loki-client-go/pkg/urlutil"
	"github.com/prometheus/common/model"

	"bibformat/internal/formaterror"
)

// LokiBackend ships registered errors to a Grafana Loki instance, labeled
// by error code so they're queryable per failure category.
type LokiBackend struct {
	client *loki.Client
}

// NewLokiBackend creates a Loki backend. Returns an error if lokiURL is
// empty or unreachable within the readiness window.
func NewLokiBackend(lokiURL string) (*LokiBackend, error) {
	if lokiURL == "" {
		return nil, fmt.Errorf("loki URL is empty")
	}

	u, err := url.Parse(lokiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Loki URL: %w", err)
	}

	readyURL := *u
	readyURL.Path = "/ready"
	httpClient := &http.Client{Timeout: 2 * time.Second}

	isConnected := false
	for i := 0; i < 15; i++ {
		resp, err := httpClient.Get(readyURL.String())
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			isConnected = true
			break
		}
		if err == nil {
			resp.Body.Close()
		}
		log.Printf("errsink: waiting for Loki at %s", readyURL.String())
		time.Sleep(2 * time.Second)
	}
	if !isConnected {
		return nil, fmt.Errorf("loki did not become ready in time")
	}

	cfg := loki.Config{
		URL:     urlutil.URLValue(flagext.URLValue{URL: u}),
		Timeout: 5 * time.Second,
	}

	client, err := loki.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Loki client: %w", err)
	}

	return &LokiBackend{client: client}, nil
}

func (b *LokiBackend) Name() string { return "loki" }

func (b *LokiBackend) Send(err *formaterror.FormatError) error {
	labels := model.LabelSet{
		"job":  "bibformat",
		"code": model.LabelValue(err.Code),
	}
	return b.client.Handle(labels, time.Now(), err.Error())
}

func (b *LokiBackend) Shutdown() {
	if b.client != nil {
		b.client.Stop()
	}
}
