package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// maxResponseSize is the maximum allowed response size from Shopify (10MB)
const maxResponseSize = 10 * 1024 * 1024

// defaultAPIVersion is used when a config does not pin an API version
const defaultAPIVersion = "2025-01"

// graphQLRequest is the JSON body of a GraphQL-over-HTTP call
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLError is a single entry of the top-level "errors" array
type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// graphQLEnvelope is the top-level GraphQL response shape
type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// userError is the wire shape of Shopify mutation userErrors entries
type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

// API names reported to the request observer
const (
	apiStorefront      = "storefront"
	apiCustomerAccount = "customer_account"
	apiAdmin           = "admin"
)

// RequestObserver is notified after every upstream call. Implementations must
// be safe for concurrent use. A nil observer disables observation.
type RequestObserver interface {
	ObserveRequest(ctx context.Context, api, operation string, duration time.Duration, err error)
}

// graphQLClient executes GraphQL documents against a single Shopify endpoint.
// It owns transport concerns only: encoding, size limits and error
// classification. Query documents and response shapes belong to the callers.
type graphQLClient struct {
	api        string
	endpoint   string
	headers    http.Header
	httpClient *http.Client
	observer   RequestObserver
}

// newGraphQLClient creates a client bound to one endpoint. The given headers
// are sent on every request; per-request headers (customer access tokens) are
// passed to execute.
func newGraphQLClient(api, endpoint string, timeout time.Duration, headers http.Header) *graphQLClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if headers == nil {
		headers = http.Header{}
	}
	return &graphQLClient{
		api:        api,
		endpoint:   endpoint,
		headers:    headers,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// execute posts the query and unmarshals the "data" object into out.
// A failed request maps onto the storefront sentinel errors so callers can
// branch with errors.Is without knowing transport details.
func (c *graphQLClient) execute(ctx context.Context, query string, variables map[string]any, extra http.Header, out any) (err error) {
	if c.observer != nil {
		start := time.Now()
		defer func() {
			c.observer.ObserveRequest(ctx, c.api, operationName(query), time.Since(start), err)
		}()
	}

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("shopify: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("shopify: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
	for key, values := range extra {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", storefront.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("shopify: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", storefront.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", storefront.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", storefront.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d", storefront.ErrRequestFailed, resp.StatusCode)
	}

	var envelope graphQLEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: decode response body: %v", storefront.ErrInvalidResponse, err)
	}

	if len(envelope.Errors) > 0 {
		return classifyGraphQLErrors(envelope.Errors)
	}

	if out != nil {
		if len(envelope.Data) == 0 {
			return fmt.Errorf("%w: response has no data", storefront.ErrInvalidResponse)
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: failed to parse data: %v", storefront.ErrInvalidResponse, err)
		}
	}

	return nil
}

// operationName extracts the operation name from a GraphQL document, e.g.
// "query Products($first: Int!)" yields "Products". Anonymous documents report
// as "anonymous".
func operationName(query string) string {
	doc := strings.TrimSpace(query)
	for _, keyword := range []string{"query", "mutation"} {
		if strings.HasPrefix(doc, keyword) {
			doc = strings.TrimSpace(doc[len(keyword):])
			break
		}
	}
	if end := strings.IndexAny(doc, " ({\n\t"); end >= 0 {
		doc = doc[:end]
	}
	if doc == "" {
		return "anonymous"
	}
	return doc
}

// classifyGraphQLErrors maps the top-level errors array onto sentinel errors.
// Shopify signals throttling and auth failures through extension codes rather
// than HTTP status, so both layers are checked.
func classifyGraphQLErrors(errs []graphQLError) error {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		switch e.Extensions.Code {
		case "THROTTLED", "MAX_COST_EXCEEDED":
			return fmt.Errorf("%w: %s", storefront.ErrRateLimited, e.Message)
		case "UNAUTHORIZED", "ACCESS_DENIED", "UNAUTHENTICATED":
			return fmt.Errorf("%w: %s", storefront.ErrAuthFailed, e.Message)
		}
		messages = append(messages, e.Message)
	}
	return fmt.Errorf("%w: %s", storefront.ErrRequestFailed, strings.Join(messages, "; "))
}

// convertUserErrors turns a mutation's userErrors array into a MutationError.
// Returns nil when the array is empty so callers can return it directly.
func convertUserErrors(operation string, errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	converted := make([]storefront.UserError, 0, len(errs))
	for _, e := range errs {
		converted = append(converted, storefront.UserError{
			Field:   strings.Join(e.Field, "."),
			Message: e.Message,
			Code:    e.Code,
		})
	}
	return &storefront.MutationError{Operation: operation, UserErrors: converted}
}
