// Package meta is a small client for the Graph API endpoints the helpdesk
// needs: Messenger/Instagram send, WhatsApp Cloud send and media lookup.
package meta

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

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
)

const maxResponseBytes = 1 << 20

// Client calls the Graph API. The zero value is not usable; use NewClient.
type Client struct {
	baseURL string
	version string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, version string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: strings.Trim(version, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("component", "graph_client")),
	}
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type messengerSendRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	MessagingType string `json:"messaging_type"`
}

type messengerSendResponse struct {
	RecipientID string      `json:"recipient_id"`
	MessageID   string      `json:"message_id"`
	Error       *graphError `json:"error,omitempty"`
}

type whatsAppSendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type whatsAppSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *graphError `json:"error,omitempty"`
}

type mediaResponse struct {
	URL   string      `json:"url"`
	Error *graphError `json:"error,omitempty"`
}

// SendMessengerText sends a text reply through the page's Send API. Instagram
// messaging uses the same endpoint with the page token; channel only labels errors.
func (c *Client) SendMessengerText(ctx context.Context, channel, pageAccessToken, recipientID, text string) (string, error) {
	var req messengerSendRequest
	req.Recipient.ID = recipientID
	req.Message.Text = text
	req.MessagingType = "RESPONSE"

	q := url.Values{}
	q.Set("access_token", pageAccessToken)
	endpoint := c.endpoint("me/messages") + "?" + q.Encode()

	var resp messengerSendResponse
	status, err := c.do(ctx, http.MethodPost, endpoint, "", req, &resp)
	if err != nil {
		return "", &appErrors.ProviderError{Channel: channel, StatusCode: status, Message: err.Error()}
	}
	if resp.Error != nil {
		return "", &appErrors.ProviderError{Channel: channel, StatusCode: status, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if status/100 != 2 || resp.MessageID == "" {
		return "", &appErrors.ProviderError{Channel: channel, StatusCode: status, Message: "unexpected send response"}
	}
	return resp.MessageID, nil
}

// SendWhatsAppText sends a text message from the business phone number.
func (c *Client) SendWhatsAppText(ctx context.Context, phoneNumberID, accessToken, to, text string) (string, error) {
	const channel = "whatsapp"
	req := whatsAppSendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	req.Text.Body = text

	var resp whatsAppSendResponse
	status, err := c.do(ctx, http.MethodPost, c.endpoint(url.PathEscape(phoneNumberID)+"/messages"), accessToken, req, &resp)
	if err != nil {
		return "", &appErrors.ProviderError{Channel: channel, StatusCode: status, Message: err.Error()}
	}
	if resp.Error != nil {
		return "", &appErrors.ProviderError{Channel: channel, StatusCode: status, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if status/100 != 2 || len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", &appErrors.ProviderError{Channel: channel, StatusCode: status, Message: "unexpected send response"}
	}
	return resp.Messages[0].ID, nil
}

// MediaURL resolves a WhatsApp media id to its download URL.
func (c *Client) MediaURL(ctx context.Context, accessToken, mediaID string) (string, error) {
	if accessToken == "" {
		return "", fmt.Errorf("missing access token for media %s", mediaID)
	}
	var resp mediaResponse
	status, err := c.do(ctx, http.MethodGet, c.endpoint(url.PathEscape(mediaID)), accessToken, nil, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", &appErrors.ProviderError{Channel: "whatsapp", StatusCode: status, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if resp.URL == "" {
		return "", fmt.Errorf("media %s: no url in response (http %d)", mediaID, status)
	}
	return resp.URL, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + c.version + "/" + path
}

// do sends body as JSON and decodes the response into out. It returns the HTTP
// status even when decoding fails so callers can report it.
func (c *Client) do(ctx context.Context, method, endpoint, bearer string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read graph response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("unparseable graph response", slog.Int("status", resp.StatusCode), slog.Any("error", err))
		return resp.StatusCode, fmt.Errorf("unparseable graph response (http %d)", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
