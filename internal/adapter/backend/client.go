// Package backend talks to the marketplace REST API that owns message and
// ticket persistence. Responses follow a single documented envelope; anything
// else is treated as a malformed response rather than guessed at.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gigspace/internal/domain/entity"
	"gigspace/pkg/errors"
)

type Client struct {
	baseURL     string
	token       string
	localUserID string
	httpClient  *http.Client
}

func NewClient(baseURL, token, localUserID string) *Client {
	return &Client{
		baseURL:     baseURL,
		token:       token,
		localUserID: localUserID,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// messagesEnvelope is the documented shape of every message-list response.
type messagesEnvelope struct {
	Success  bool              `json:"success"`
	Messages *[]entity.Message `json:"messages"`
	Error    string            `json:"error,omitempty"`
}

type ticketsEnvelope struct {
	Success bool             `json:"success"`
	Tickets *[]entity.Ticket `json:"tickets"`
	Error   string           `json:"error,omitempty"`
}

func (c *Client) FetchOrderMessages(ctx context.Context, orderID int64) ([]entity.Message, error) {
	query := url.Values{"order_id": {strconv.FormatInt(orderID, 10)}}
	return c.fetchMessages(ctx, "/messages", query)
}

func (c *Client) FetchDirectMessages(ctx context.Context, receiverID string) ([]entity.Message, error) {
	query := url.Values{"clerk_id": {c.localUserID}}
	if receiverID != "" {
		query.Set("receiver_clerk_id", receiverID)
	}
	return c.fetchMessages(ctx, "/messages/direct", query)
}

func (c *Client) FetchTickets(ctx context.Context) ([]entity.Ticket, error) {
	query := url.Values{"clerk_id": {c.localUserID}}

	body, err := c.get(ctx, "/messages/tickets", query)
	if err != nil {
		return nil, err
	}

	var envelope ticketsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Malformed("unexpected tickets response", err)
	}
	if !envelope.Success {
		return nil, errors.Application(backendMessage(envelope.Error, "failed to fetch tickets"), nil)
	}
	if envelope.Tickets == nil {
		return nil, errors.Malformed("tickets response has no tickets field", nil)
	}

	return *envelope.Tickets, nil
}

func (c *Client) GetByID(ctx context.Context, id string) (*entity.User, error) {
	body, err := c.get(ctx, "/users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var user entity.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, errors.Malformed("unexpected user response", err)
	}
	if user.ID == "" {
		user.ID = id
	}

	return &user, nil
}

func (c *Client) fetchMessages(ctx context.Context, path string, query url.Values) ([]entity.Message, error) {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var envelope messagesEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Malformed("unexpected messages response", err)
	}
	if !envelope.Success {
		return nil, errors.Application(backendMessage(envelope.Error, "failed to fetch messages"), nil)
	}
	if envelope.Messages == nil {
		return nil, errors.Malformed("messages response has no messages field", nil)
	}

	return *envelope.Messages, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Internal("failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Transport(fmt.Sprintf("request to %s failed", path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Transport("failed to read response body", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.Unauthorized("backend rejected bearer token", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Transport(fmt.Sprintf("%s returned status %d", path, resp.StatusCode), nil)
	}

	return body, nil
}

func backendMessage(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
