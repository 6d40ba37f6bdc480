package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/ledger"
)

// RemoteError is a rejection reported by the server. It unwraps to the
// matching settlement or ledger error, so errors.Is works across the wire.
type RemoteError struct {
	Status  int
	Message string
	Reason  string
}

func (e *RemoteError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s (%s)", e.Status, e.Message, e.Reason)
}

func (e *RemoteError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ledger.ErrAccountNotFound
	}
	return ledger.ReasonError(e.Reason)
}

// HTTPSubmitter sends transactions to a bond market server.
type HTTPSubmitter struct {
	baseURL string
	http    *http.Client
}

// NewHTTPSubmitter targets the server at baseURL, e.g. http://localhost:8080.
func NewHTTPSubmitter(baseURL string, hc *http.Client) *HTTPSubmitter {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSubmitter{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (h *HTTPSubmitter) Submit(ctx context.Context, tx *ledger.Transaction) (*ledger.Receipt, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/api/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var receipt ledger.Receipt
	if err := h.do(req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (h *HTTPSubmitter) Account(ctx context.Context, id address.ID) (*ledger.AccountInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/v1/accounts/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	var info ledger.AccountInfo
	if err := h.do(req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (h *HTTPSubmitter) do(req *http.Request, out any) error {
	resp, err := h.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var body struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(raw, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(raw))
		}
		return &RemoteError{Status: resp.StatusCode, Message: body.Error, Reason: body.Details}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
