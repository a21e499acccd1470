package assistant

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/leavewise/compliance-server-go/internal/config"
)

// CompletionClient is the slice of the upstream API the gateway uses.
// *openai.Client satisfies it; tests substitute a stub.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

var _ CompletionClient = (*openai.Client)(nil)

// ClientFactory builds a completion client for an API key. The key is
// resolved from the active configuration once per request, so the client
// is constructed per call rather than held as ambient state.
type ClientFactory func(apiKey string) CompletionClient

// NewClientFactory returns a factory with bounded connect/total timeouts.
// insecureSkipVerify disables upstream TLS verification and must only be
// set for local development builds.
func NewClientFactory(insecureSkipVerify bool) ClientFactory {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: config.UpstreamConnectTimeout,
		}).DialContext,
	}
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	httpClient := &http.Client{
		Timeout:   config.UpstreamTotalTimeout,
		Transport: transport,
	}

	return func(apiKey string) CompletionClient {
		cfg := openai.DefaultConfig(apiKey)
		cfg.HTTPClient = httpClient
		return openai.NewClientWithConfig(cfg)
	}
}
