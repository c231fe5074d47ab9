package retrieval

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
	openai "github.com/sashabaranov/go-openai"
)

// newOpenAIClient builds a client for an OpenAI-compatible endpoint. Both the
// chat and embedding bindings go through here so that proxies and self-hosted
// gateways work by pointing the binding host at them.
func newOpenAIClient(host, apiKey string, timeout time.Duration) *openai.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	httpClient := retryClient.StandardClient()
	httpClient.Timeout = timeout

	config := openai.DefaultConfig(apiKey)
	if host != "" {
		config.BaseURL = host
	}
	config.HTTPClient = httpClient
	return openai.NewClientWithConfig(config)
}
