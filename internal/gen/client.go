// Package gen calls the hosted generation/search service and classifies its
// failures so the dispatcher can speak a precise remediation.
package gen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrorKind partitions service failures into the distinct user-facing cases.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindQuota
	KindCredential
	KindBilling
	KindOverloaded
	KindNetwork
)

// APIError is a classified service failure.
type APIError struct {
	Kind   ErrorKind
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gen: %s (status=%d kind=%d)", e.Msg, e.Status, e.Kind)
}

// Classify extracts the kind of a generation/search failure.
func Classify(err error) ErrorKind {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Product is one search hit; Image may be empty.
type Product struct {
	Name  string `json:"name"`
	Image []byte `json:"-"`
}

// Client is the interface the tool dispatcher consumes.
type Client interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	SearchProducts(ctx context.Context, query string) (string, []Product, error)
}

// HTTPClient talks to the hosted service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewHTTPClient builds a client for the given endpoint.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type imageRequest struct {
	Prompt string `json:"prompt"`
}

type imageResponse struct {
	Data string `json:"data"` // base64 image bytes
}

type searchResponse struct {
	Summary  string `json:"summary"`
	Products []struct {
		Name  string `json:"name"`
		Image string `json:"image,omitempty"`
	} `json:"products"`
}

// GenerateImage renders one image for the prompt.
func (c *HTTPClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	body, err := c.post(ctx, "/v1/images/generate", imageRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	var ir imageResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return nil, fmt.Errorf("gen: decode image response: %w", err)
	}
	img, err := base64.StdEncoding.DecodeString(ir.Data)
	if err != nil {
		return nil, fmt.Errorf("gen: decode image payload: %w", err)
	}
	if len(img) == 0 {
		return nil, &APIError{Kind: KindUnknown, Msg: "empty image payload"}
	}
	return img, nil
}

// SearchProducts returns a spoken summary plus the matching products.
func (c *HTTPClient) SearchProducts(ctx context.Context, query string) (string, []Product, error) {
	body, err := c.post(ctx, "/v1/products/search", map[string]string{"query": query})
	if err != nil {
		return "", nil, err
	}
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", nil, fmt.Errorf("gen: decode search response: %w", err)
	}
	products := make([]Product, 0, len(sr.Products))
	for _, p := range sr.Products {
		prod := Product{Name: p.Name}
		if p.Image != "" {
			if img, err := base64.StdEncoding.DecodeString(p.Image); err == nil {
				prod.Image = img
			}
		}
		products = append(products, prod)
	}
	return sr.Summary, products, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	if c.apiKey == "" {
		return nil, &APIError{Kind: KindCredential, Msg: "api key missing"}
	}
	reqBody, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Msg: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, string(body))
	}
	return body, nil
}

func classifyStatus(status int, body string) *APIError {
	lower := strings.ToLower(body)
	kind := KindUnknown
	switch {
	case status == 401 || status == 403 || strings.Contains(lower, "api key"):
		kind = KindCredential
	case status == 402 || strings.Contains(lower, "billing"):
		kind = KindBilling
	case status == 429 && strings.Contains(lower, "quota"):
		kind = KindQuota
	case status == 429, status == 503, strings.Contains(lower, "overloaded"):
		kind = KindOverloaded
	case status >= 500:
		kind = KindNetwork
	}
	msg := body
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &APIError{Kind: kind, Status: status, Msg: msg}
}
