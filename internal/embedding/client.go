package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client used for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates a client from the environment. It requires OPENAI_API_KEY
// and fails fast when it is missing so bad credentials surface before any
// document is processed.
func NewClient() (*Client, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	// openai-go reads OPENAI_API_KEY from the environment.
	client := openai.NewClient()
	return &Client{client: &client}, nil
}

// NewClientWithOptions creates a client with explicit request options,
// e.g. pointing at a test server.
func NewClientWithOptions(opts ...option.RequestOption) *Client {
	client := openai.NewClient(opts...)
	return &Client{client: &client}
}
