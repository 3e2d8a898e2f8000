package invoicing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	maxArtifactBytes      int64 = 5 << 20
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("invoice renderer base url is required")

// InvoiceLine is one rendered row on the invoice.
type InvoiceLine struct {
	Description string `json:"description"`
	Seller      string `json:"seller"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

// Invoice is the document data sent to the renderer. Amounts are preformatted strings.
type Invoice struct {
	OrderNumber  string        `json:"order_number"`
	IssuedAt     time.Time     `json:"issued_at"`
	BuyerName    string        `json:"buyer_name"`
	BuyerEmail   string        `json:"buyer_email"`
	GSTIN        string        `json:"gstin,omitempty"`
	BusinessName string        `json:"business_name,omitempty"`
	Lines        []InvoiceLine `json:"lines"`
	Subtotal     string        `json:"subtotal"`
	Discount     string        `json:"discount"`
	Shipping     string        `json:"shipping"`
	GSTMode      string        `json:"gst_mode"`
	CGST         string        `json:"cgst"`
	SGST         string        `json:"sgst"`
	IGST         string        `json:"igst"`
	Total        string        `json:"total"`
	Currency     string        `json:"currency"`
}

// Artifact is the rendered document.
type Artifact struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Client renders invoices through the document service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg config.InvoiceConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(cfg.APIToken),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Render posts the invoice and returns the produced document bytes.
func (c *Client) Render(ctx context.Context, invoice Invoice) (*Artifact, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoice renderer not configured")
	}
	if invoice.OrderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice order number is required")
	}

	payload, err := json.Marshal(invoice)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal invoice")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoices", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build invoice request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/pdf")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute invoice request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "invoice render failed")
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read invoice artifact")
	}
	if int64(len(content)) > maxArtifactBytes {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoice artifact too large")
	}
	if len(content) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoice artifact empty")
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &Artifact{
		FileName:    fmt.Sprintf("invoice-%s.pdf", invoice.OrderNumber),
		ContentType: contentType,
		Content:     content,
	}, nil
}
