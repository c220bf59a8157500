// Package accounting is a client for the external books API that issues quotes,
// sales orders and invoices.
package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds connection settings for the books API.
type Config struct {
	BaseURL        string
	AuthURL        string
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	OrganizationID string
	Timeout        time.Duration
}

// Client wraps interactions with the books API.
type Client struct {
	baseURL    string
	orgID      string
	httpClient *http.Client
	tokens     *TokenSource
	logger     *slog.Logger
}

// NewClient constructs a new client. rdb caches access tokens and may be nil.
func NewClient(cfg Config, rdb *redis.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		orgID:      cfg.OrganizationID,
		httpClient: httpClient,
		tokens:     NewTokenSource(cfg, httpClient, rdb, logger),
		logger:     logger,
	}
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// do sends an authenticated request and returns the raw body. A rejected token is
// refreshed and the request retried once.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = raw
	}

	for attempt := 0; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		data, status, err := c.send(ctx, method, path, query, body, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrRemote, method, path, err)
		}
		if status == http.StatusUnauthorized && attempt == 0 {
			c.tokens.Invalidate(ctx)
			continue
		}
		if status >= 400 {
			var env envelope
			_ = json.Unmarshal(data, &env)
			return nil, &APIError{Status: status, Code: env.Code, Message: env.Message}
		}
		return data, nil
	}
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, token string) ([]byte, int, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.orgID != "" {
		query.Set("organization_id", c.orgID)
	}
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// EnsureCustomer returns the id of the contact with the same email, creating the contact when absent.
func (c *Client) EnsureCustomer(ctx context.Context, contact Contact) (string, error) {
	if contact.Email != "" {
		data, err := c.do(ctx, http.MethodGet, "contacts", url.Values{"email": {contact.Email}}, nil)
		if err != nil {
			return "", err
		}
		var found struct {
			Contacts []struct {
				ContactID string `json:"contact_id"`
			} `json:"contacts"`
		}
		if err := json.Unmarshal(data, &found); err != nil {
			return "", fmt.Errorf("%w: decode contacts: %v", ErrRemote, err)
		}
		if len(found.Contacts) > 0 && found.Contacts[0].ContactID != "" {
			return found.Contacts[0].ContactID, nil
		}
	}

	payload := map[string]any{
		"contact_name": contact.Name,
		"contact_type": "customer",
	}
	if contact.Email != "" || contact.Phone != "" {
		payload["contact_persons"] = []map[string]any{{
			"email":              contact.Email,
			"phone":              contact.Phone,
			"is_primary_contact": true,
		}}
	}
	if contact.Address != "" {
		payload["billing_address"] = map[string]string{"address": contact.Address, "zip": contact.Pincode}
	}
	data, err := c.do(ctx, http.MethodPost, "contacts", nil, payload)
	if err != nil {
		return "", err
	}
	var created struct {
		Contact struct {
			ContactID string `json:"contact_id"`
		} `json:"contact"`
	}
	if err := json.Unmarshal(data, &created); err != nil || created.Contact.ContactID == "" {
		return "", fmt.Errorf("%w: contact id missing in response", ErrRemote)
	}
	return created.Contact.ContactID, nil
}

// CreateQuote issues an estimate.
func (c *Client) CreateQuote(ctx context.Context, doc Document) (string, error) {
	return c.create(ctx, DocEstimate, doc)
}

// CreateSalesOrder issues a sales order.
func (c *Client) CreateSalesOrder(ctx context.Context, doc Document) (string, error) {
	return c.create(ctx, DocSalesOrder, doc)
}

// CreateInvoice issues an invoice.
func (c *Client) CreateInvoice(ctx context.Context, doc Document) (string, error) {
	return c.create(ctx, DocInvoice, doc)
}

func (c *Client) create(ctx context.Context, docType DocType, doc Document) (string, error) {
	data, err := c.do(ctx, http.MethodPost, string(docType), nil, doc)
	if err != nil {
		return "", err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("%w: decode %s: %v", ErrRemote, docType, err)
	}
	var record map[string]any
	if err := json.Unmarshal(raw[docType.responseKey()], &record); err != nil {
		return "", fmt.Errorf("%w: decode %s record: %v", ErrRemote, docType, err)
	}
	id, _ := record[docType.idField()].(string)
	if id == "" {
		return "", fmt.Errorf("%w: %s id missing in response", ErrRemote, docType)
	}
	c.logger.Info("accounting document created",
		slog.String("type", string(docType)),
		slog.String("id", id),
		slog.String("reference", doc.ReferenceNumber))
	return id, nil
}

// EmailDocument asks the provider to email a document to the recipients.
func (c *Client) EmailDocument(ctx context.Context, docType DocType, id string, to []string) error {
	payload := map[string]any{"to_mail_ids": to}
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s/email", docType, url.PathEscape(id)), nil, payload)
	return err
}

// FetchPDF downloads the rendered document.
func (c *Client) FetchPDF(ctx context.Context, docType DocType, id string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s", docType, url.PathEscape(id)), url.Values{"accept": {"pdf"}}, nil)
}
