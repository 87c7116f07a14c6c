// Package registrar wraps the external domain registrar API. Every method is
// a thin request/response mapping with a uniform error contract: non-2xx and
// network failures surface as *registrar.Error carrying the upstream status
// and message, never as a panic or an untyped error.
package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"nameclaim/internal/operation"
)

// Ownership is the result of a domain ownership check.
type Ownership struct {
	Domain    string
	Exists    bool
	Available bool
	OwnerRef  string
	OwnedByUs bool
}

// OperationRef identifies an asynchronous registrar operation.
type OperationRef struct {
	ID string
}

// OperationStatus is one entry of a status poll. A failed lookup degrades to
// Status ERROR with the failure in Detail instead of failing the batch.
type OperationStatus struct {
	OperationID string         `json:"operationId"`
	Status      string         `json:"status"`
	Detail      map[string]any `json:"data,omitempty"`
}

// Client is the registrar operation surface the orchestrator depends on.
type Client interface {
	CheckOwnership(ctx context.Context, domain string) (*Ownership, error)
	Reserve(ctx context.Context, domain string) (*OperationRef, error)
	TransferOwnership(ctx context.Context, domain, walletAddress string) (*OperationRef, error)
	ReturnDomain(ctx context.Context, domain string) (*OperationRef, error)
	PollOperations(ctx context.Context, operationIDs []string) ([]OperationStatus, error)
}

// Error is the typed failure for registrar calls.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("registrar: upstream status %d: %s", e.StatusCode, e.Message)
}

// HTTPClient talks to the registrar REST API.
type HTTPClient struct {
	baseURL      string
	apiKey       string
	ownerAddress string
	http         *http.Client
}

// NewHTTPClient builds a registrar client. ownerAddress is the custody
// wallet; ownership checks compare the upstream owner against it
// case-insensitively.
func NewHTTPClient(baseURL, apiKey, ownerAddress string) *HTTPClient {
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		ownerAddress: operation.NormalizeWallet(ownerAddress),
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

type domainResponse struct {
	Name         string `json:"name"`
	Owner        string `json:"owner"`
	Availability struct {
		Available bool `json:"available"`
	} `json:"availability"`
}

type operationResponse struct {
	Operation struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"operation"`
}

// CheckOwnership reports who holds a domain. A 404 means the domain is not
// registered at all and maps to {Exists:false}, not an error.
func (c *HTTPClient) CheckOwnership(ctx context.Context, domain string) (*Ownership, error) {
	domain = operation.NormalizeDomain(domain)

	var resp domainResponse
	status, err := c.do(ctx, http.MethodGet, "/domains/"+domain, nil, &resp)
	if status == http.StatusNotFound {
		return &Ownership{Domain: domain, Exists: false, Available: true}, nil
	}
	if err != nil {
		return nil, err
	}

	owner := operation.NormalizeWallet(resp.Owner)
	return &Ownership{
		Domain:    domain,
		Exists:    true,
		Available: resp.Availability.Available,
		OwnerRef:  owner,
		OwnedByUs: owner != "" && owner == c.ownerAddress,
	}, nil
}

// Reserve registers the domain to the custody account. Only valid when the
// domain is available or unregistered.
func (c *HTTPClient) Reserve(ctx context.Context, domain string) (*OperationRef, error) {
	domain = operation.NormalizeDomain(domain)

	var resp operationResponse
	if _, err := c.do(ctx, http.MethodPost, "/domains/"+domain+"/reserve", map[string]string{
		"owner": c.ownerAddress,
	}, &resp); err != nil {
		return nil, err
	}
	return &OperationRef{ID: resp.Operation.ID}, nil
}

// TransferOwnership moves the domain from the custody account to the wallet.
// Callers must re-check ownership first; the registrar rejects transfers of
// domains we do not hold.
func (c *HTTPClient) TransferOwnership(ctx context.Context, domain, walletAddress string) (*OperationRef, error) {
	domain = operation.NormalizeDomain(domain)

	var resp operationResponse
	if _, err := c.do(ctx, http.MethodPost, "/domains/"+domain+"/transfer", map[string]string{
		"to": operation.NormalizeWallet(walletAddress),
	}, &resp); err != nil {
		return nil, err
	}
	return &OperationRef{ID: resp.Operation.ID}, nil
}

// ReturnDomain releases a domain we hold back to the registrar pool.
func (c *HTTPClient) ReturnDomain(ctx context.Context, domain string) (*OperationRef, error) {
	domain = operation.NormalizeDomain(domain)

	var resp operationResponse
	if _, err := c.do(ctx, http.MethodPost, "/domains/"+domain+"/return", nil, &resp); err != nil {
		return nil, err
	}
	return &OperationRef{ID: resp.Operation.ID}, nil
}

// PollOperations fetches the status of each operation concurrently. One ID
// failing degrades that entry to ERROR with the failure attached; the rest
// of the batch proceeds.
func (c *HTTPClient) PollOperations(ctx context.Context, operationIDs []string) ([]OperationStatus, error) {
	results := make([]OperationStatus, len(operationIDs))

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range operationIDs {
		g.Go(func() error {
			var resp struct {
				ID     string         `json:"id"`
				Status string         `json:"status"`
				Domain string         `json:"domain"`
				Data   map[string]any `json:"data"`
			}
			if _, err := c.do(ctx, http.MethodGet, "/operations/"+id, nil, &resp); err != nil {
				results[i] = OperationStatus{
					OperationID: id,
					Status:      string(operation.StatusError),
					Detail:      map[string]any{"error": err.Error()},
				}
				return nil
			}
			detail := resp.Data
			if detail == nil {
				detail = map[string]any{}
			}
			if resp.Domain != "" {
				detail["domain"] = resp.Domain
			}
			results[i] = OperationStatus{OperationID: id, Status: resp.Status, Detail: detail}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// do issues a request and decodes a 2xx JSON response into out. It returns
// the HTTP status so callers can special-case expected non-2xx codes before
// inspecting the error.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, &Error{Message: fmt.Sprintf("encode request: %v", err)}
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, &Error{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &Error{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := readErrorMessage(resp.Body)
		return resp.StatusCode, &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
		}
	}
	return resp.StatusCode, nil
}

func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return string(raw)
}
