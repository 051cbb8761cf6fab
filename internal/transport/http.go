package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// HTTPInvoker calls host operations with one POST per call to
// {base}/api/host/{op}.
type HTTPInvoker struct {
	client *resty.Client
}

// NewHTTPInvoker creates an invoker for the host server at baseURL.
func NewHTTPInvoker(baseURL string) *HTTPInvoker {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPInvoker{client: client}
}

// Invoke implements fs.Invoker.
func (h *HTTPInvoker) Invoke(ctx context.Context, op string, args, result any) error {
	body, err := Encode(args)
	if err != nil {
		return fmt.Errorf("invoke %s: encode arguments: %w", op, err)
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetPathParam("op", op).
		SetBody([]byte(body)).
		Post("/api/host/{op}")
	if err != nil {
		return fmt.Errorf("invoke %s: %w", op, err)
	}

	var r Response
	if err := sonic.Unmarshal(resp.Body(), &r); err != nil {
		return fmt.Errorf("invoke %s: status %d: %w", op, resp.StatusCode(), err)
	}
	if err := r.Err(); err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("invoke %s: status %d", op, resp.StatusCode())
	}
	return r.Decode(result)
}
