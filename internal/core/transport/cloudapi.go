// Package transport adapts internal/core/compose's outbound payloads to
// the WhatsApp Cloud API's wire JSON, and parses inbound Cloud API
// webhook deliveries into the engine's transport-agnostic Event schema.
// Token refresh, webhook signature verification, and media upload are
// explicitly out of scope (spec.md §1) — this adapter only does
// interactive-message send/receive translation.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"whatsapp-commerce-gateway/internal/core/compose"
	"whatsapp-commerce-gateway/internal/core/waproto"
)

// Transport is the capability the Dispatcher sends OutboundPlans
// through. An implementation never blocks on decorative phrasing or
// conversation-store writes — those are separate suspension points.
type Transport interface {
	SendText(ctx context.Context, to string, payload compose.TextOut) error
	SendButtons(ctx context.Context, to string, payload compose.ButtonsOut) error
	SendList(ctx context.Context, to string, payload compose.ListOut) error
	SendCarousel(ctx context.Context, to string, payload compose.CarouselOut) error
	SendLocation(ctx context.Context, to string, payload compose.LocationOut) error
	SendLocationRequest(ctx context.Context, to string, payload compose.LocationRequestOut) error
	SendContacts(ctx context.Context, to string, payload compose.ContactsOut) error
}

// CloudAPIConfig holds configuration for WhatsApp Cloud API.
type CloudAPIConfig struct {
	PhoneID     string
	AccessToken string
	APIVersion  string
}

// CloudAPIProvider implements Transport against the official WhatsApp
// Cloud API (https://developers.facebook.com/docs/whatsapp/cloud-api).
type CloudAPIProvider struct {
	baseURL     string
	phoneID     string
	accessToken string
	client      *http.Client
}

// NewCloudAPIProvider creates a new WhatsApp Cloud API provider.
func NewCloudAPIProvider(cfg CloudAPIConfig) (*CloudAPIProvider, error) {
	if cfg.PhoneID == "" {
		return nil, fmt.Errorf("transport: phone_id is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("transport: access_token is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v18.0"
	}

	return &CloudAPIProvider{
		baseURL:     fmt.Sprintf("https://graph.facebook.com/%s/%s", cfg.APIVersion, cfg.PhoneID),
		phoneID:     cfg.PhoneID,
		accessToken: cfg.AccessToken,
		client:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (p *CloudAPIProvider) SendText(ctx context.Context, to string, payload compose.TextOut) error {
	to = waproto.CleanPhoneNumber(to)
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text":              map[string]interface{}{"preview_url": false, "body": payload.Text},
	}
	return p.sendRequest(ctx, body)
}

func (p *CloudAPIProvider) SendButtons(ctx context.Context, to string, payload compose.ButtonsOut) error {
	to = waproto.CleanPhoneNumber(to)
	buttons := make([]map[string]interface{}, len(payload.Buttons))
	for i, b := range payload.Buttons {
		buttons[i] = map[string]interface{}{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Title},
		}
	}
	interactive := map[string]interface{}{
		"type": "button",
		"body": map[string]string{"text": payload.Body},
		"action": map[string]interface{}{
			"buttons": buttons,
		},
	}
	if payload.Header != "" {
		interactive["header"] = map[string]interface{}{"type": "text", "text": payload.Header}
	}
	if payload.Footer != "" {
		interactive["footer"] = map[string]string{"text": payload.Footer}
	}
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "interactive",
		"interactive":       interactive,
	}
	return p.sendRequest(ctx, body)
}

func (p *CloudAPIProvider) SendList(ctx context.Context, to string, payload compose.ListOut) error {
	to = waproto.CleanPhoneNumber(to)
	sections := make([]map[string]interface{}, len(payload.Sections))
	for i, s := range payload.Sections {
		rows := make([]map[string]string, len(s.Rows))
		for j, r := range s.Rows {
			rows[j] = map[string]string{"id": r.ID, "title": r.Title, "description": r.Description}
		}
		sections[i] = map[string]interface{}{"title": s.Title, "rows": rows}
	}
	interactive := map[string]interface{}{
		"type": "list",
		"body": map[string]string{"text": payload.Body},
		"action": map[string]interface{}{
			"button":   payload.ActionText,
			"sections": sections,
		},
	}
	if payload.Header != "" {
		interactive["header"] = map[string]interface{}{"type": "text", "text": payload.Header}
	}
	if payload.Footer != "" {
		interactive["footer"] = map[string]string{"text": payload.Footer}
	}
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "interactive",
		"interactive":       interactive,
	}
	return p.sendRequest(ctx, body)
}

// SendCarousel sends one message per card, matching the Cloud API's
// "interactive product carousel" wire shape, which has no single bundled
// payload for cards — it is a sequence of media messages framed by one
// leading body text.
func (p *CloudAPIProvider) SendCarousel(ctx context.Context, to string, payload compose.CarouselOut) error {
	to = waproto.CleanPhoneNumber(to)
	if err := p.SendText(ctx, to, compose.TextOut{Text: payload.Body}); err != nil {
		return err
	}
	for _, card := range payload.Cards {
		mediaType := "image"
		if card.HeaderType == compose.HeaderVideo {
			mediaType = "video"
		}
		body := map[string]interface{}{
			"messaging_product": "whatsapp",
			"recipient_type":    "individual",
			"to":                to,
			"type":              "interactive",
			"interactive": map[string]interface{}{
				"type":   "button",
				"header": map[string]interface{}{"type": mediaType, mediaType: map[string]string{"link": card.HeaderLink}},
				"body":   map[string]string{"text": card.Body},
				"action": map[string]interface{}{
					"buttons": []map[string]interface{}{
						{"type": "reply", "reply": map[string]string{"id": fmt.Sprintf("card_%d", card.Index), "title": card.Button.Text}},
					},
				},
			},
		}
		if err := p.sendRequest(ctx, body); err != nil {
			return fmt.Errorf("transport: carousel card %d: %w", card.Index, err)
		}
	}
	return nil
}

func (p *CloudAPIProvider) SendLocation(ctx context.Context, to string, payload compose.LocationOut) error {
	to = waproto.CleanPhoneNumber(to)
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "location",
		"location": map[string]interface{}{
			"latitude":  payload.Lat,
			"longitude": payload.Lng,
			"name":      payload.Name,
			"address":   payload.Address,
		},
	}
	return p.sendRequest(ctx, body)
}

func (p *CloudAPIProvider) SendLocationRequest(ctx context.Context, to string, payload compose.LocationRequestOut) error {
	to = waproto.CleanPhoneNumber(to)
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type": "location_request_message",
			"body": map[string]string{"text": payload.Body},
			"action": map[string]string{
				"name": "send_location",
			},
		},
	}
	return p.sendRequest(ctx, body)
}

func (p *CloudAPIProvider) SendContacts(ctx context.Context, to string, payload compose.ContactsOut) error {
	to = waproto.CleanPhoneNumber(to)
	contacts := make([]map[string]interface{}, len(payload.Contacts))
	for i, c := range payload.Contacts {
		contacts[i] = map[string]interface{}{
			"name":  map[string]string{"formatted_name": c.Name},
			"phones": phonesOf(c.Phones),
		}
	}
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "contacts",
		"contacts":          contacts,
	}
	return p.sendRequest(ctx, body)
}

func phonesOf(numbers []string) []map[string]string {
	out := make([]map[string]string, len(numbers))
	for i, n := range numbers {
		out[i] = map[string]string{"phone": n}
	}
	return out
}

func (p *CloudAPIProvider) sendRequest(ctx context.Context, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transport: cloud api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	log.Debug().Int("status", resp.StatusCode).Msg("cloud api send ok")
	return nil
}
