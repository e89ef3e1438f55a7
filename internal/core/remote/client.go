// Package remote implements the single HTTP collaborator every other core
// package depends on: the restaurant backend behind menu, delivery, order,
// and conversation-state endpoints. It owns retry/backoff, bounded
// concurrency, envelope normalization, and in-memory metrics so the rest of
// the engine never touches net/http directly.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"whatsapp-commerce-gateway/internal/core/compose"
	"whatsapp-commerce-gateway/internal/core/ids"
)

// Config configures a Client; every field maps to an env var documented in
// SPEC_FULL.md's ambient config section.
type Config struct {
	BaseURL               string
	APIKey                string
	RequestTimeout        time.Duration
	MaxRetries            int
	RetryDelay            time.Duration
	RateLimitMode         Mode
	MaxConcurrentRequests int
}

// Client is the single shared RemoteClient per (process, tenant). It is
// safe for concurrent use by many sessions at once.
type Client struct {
	http    *resty.Client
	cfg     Config
	sem     semaphore
	bucket  *TokenBucket // non-nil only under RATE_LIMIT_MODE=adaptive
	metrics Metrics
}

// New builds a Client from cfg, applying spec.md defaults for any zero
// field (10s timeout, 3 retries, 1s base delay, exponential mode, 10
// concurrent requests).
func New(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.RateLimitMode == "" {
		cfg.RateLimitMode = ModeExponential
	}
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = 10
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Service-API-Key", cfg.APIKey)

	client := &Client{
		http: httpClient,
		cfg:  cfg,
		sem:  newSemaphore(cfg.MaxConcurrentRequests),
	}
	if cfg.RateLimitMode == ModeAdaptive {
		// Continuous refill at one token per in-flight slot per second,
		// on top of (not instead of) the semaphore: the semaphore caps
		// burst concurrency, the bucket smooths the rate of new requests
		// admitted into that burst window.
		client.bucket = NewTokenBucket(float64(cfg.MaxConcurrentRequests), float64(cfg.MaxConcurrentRequests))
	}
	return client
}

// GetMetrics returns a snapshot of the in-memory counters.
func (c *Client) GetMetrics() Snapshot { return c.metrics.GetMetrics() }

// ResetMetrics zeroes the in-memory counters.
func (c *Client) ResetMetrics() { c.metrics.ResetMetrics() }

// envelope is the union of the remote's two interchangeable response
// shapes; do builds the normalized (ok, data, message) result the rest of
// this package works with and leaks no further.
type envelope struct {
	Type    string          `json:"type"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) ok() bool {
	if e.Success != nil {
		return *e.Success
	}
	return e.Type != "3"
}

// do executes one logical request (including retries) against path with
// method/body, decodes the envelope, and unmarshals its data field into
// out (which may be nil for endpoints with no meaningful payload).
func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body interface{}, out interface{}) error {
	if err := c.sem.acquire(ctx); err != nil {
		return NewError(KindTransient, 0, "request queue cancelled", err)
	}
	defer c.sem.release()

	if c.bucket != nil {
		if err := c.bucket.Wait(ctx); err != nil {
			return NewError(KindTransient, 0, "rate limiter cancelled", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay
			if lastErr != nil {
				if rerr, ok := lastErr.(*Error); ok && rerr.Kind == KindRateLimited && rerr.retryAfter >= 0 {
					delay = rerr.retryAfter
				} else {
					delay = delayForAttempt(c.cfg.RateLimitMode, c.cfg.RetryDelay, attempt-1)
				}
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return NewError(KindTransient, 0, "context cancelled during backoff", ctx.Err())
			}
			c.metrics.recordRetry()
		}

		c.metrics.recordAttempt()
		start := time.Now()

		req := c.http.R().SetContext(ctx)
		for k, v := range query {
			req.SetQueryParam(k, v)
		}
		if body != nil {
			req.SetBody(body)
		}
		var raw envelope
		resp, err := req.SetResult(&raw).Execute(method, path)
		elapsed := time.Since(start)

		if err != nil {
			lastErr = NewError(KindTransient, 0, "network error", err)
			c.metrics.recordResult(false, elapsed)
			continue
		}

		status := resp.StatusCode()
		if status == http.StatusTooManyRequests {
			c.metrics.recordRateLimited()
			c.metrics.recordResult(false, elapsed)
			lastErr = c.rateLimitedError(resp)
			continue
		}
		if status >= 500 {
			c.metrics.recordResult(false, elapsed)
			lastErr = NewError(KindTransient, status, resp.String(), nil)
			continue
		}
		if status >= 400 {
			c.metrics.recordResult(false, elapsed)
			return NewError(ClassifyStatus(status), status, resp.String(), nil)
		}

		if !raw.ok() {
			c.metrics.recordResult(false, elapsed)
			return NewError(KindPermanent, status, raw.Message, nil)
		}

		c.metrics.recordResult(true, elapsed)
		if out != nil && len(raw.Data) > 0 {
			if err := json.Unmarshal(raw.Data, out); err != nil {
				return NewError(KindPermanent, status, "malformed response payload", err)
			}
		}
		return nil
	}

	return lastErr
}

// rateLimitedError reads Retry-After (seconds) when present so the next
// attempt honors the server's pacing instead of guessing.
func (c *Client) rateLimitedError(resp *resty.Response) *Error {
	e := NewError(KindRateLimited, resp.StatusCode(), resp.String(), nil)
	e.retryAfter = -1 // no usable hint
	if ra := resp.Header().Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			e.retryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}

// --- Menu ---------------------------------------------------------------

// MenuTree is the full category/product tree returned by bot-structure.
type MenuTree struct {
	Categories []MenuCategory `json:"categories"`
}

type MenuCategory struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Products []MenuProduct `json:"products"`
}

type MenuProduct struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BasePrice   string `json:"basePrice"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// GetMenuBotStructure fetches the full category/product tree for a branch.
// The backend is documented to send either basePrice|price and
// imageUrl|image_url for a product — this runs the raw payload through
// compose.NormalizeProductFieldNames before decoding into MenuTree, so
// MenuProduct's basePrice/imageUrl fields are always populated regardless
// of which variant the backend used.
func (c *Client) GetMenuBotStructure(ctx context.Context, subDomain, localID string) (*MenuTree, error) {
	var rawData json.RawMessage
	query := map[string]string{"subDomain": subDomain, "localId": localID}
	if err := c.do(ctx, http.MethodGet, "/menu/bot-structure", query, nil, &rawData); err != nil {
		return nil, err
	}
	if len(rawData) == 0 {
		return &MenuTree{}, nil
	}
	normalized, err := normalizeMenuTreeFields(rawData)
	if err != nil {
		return nil, NewError(KindPermanent, 0, "malformed menu tree payload", err)
	}
	var out MenuTree
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, NewError(KindPermanent, 0, "malformed menu tree payload", err)
	}
	return &out, nil
}

// normalizeMenuTreeFields decodes a raw menu-tree JSON payload just far
// enough to reach each product object, canonicalizes its field names via
// compose.NormalizeProductFieldNames, and re-encodes — so the strongly
// typed MenuTree/MenuProduct decode that follows never has to special-case
// the backend's two documented product field-name variants.
func normalizeMenuTreeFields(raw json.RawMessage) (json.RawMessage, error) {
	var generic struct {
		Categories []map[string]interface{} `json:"categories"`
	}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	for _, category := range generic.Categories {
		products, ok := category["products"].([]interface{})
		if !ok {
			continue
		}
		for i, p := range products {
			pm, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			products[i] = compose.NormalizeProductFieldNames(pm)
		}
		category["products"] = products
	}
	return json.Marshal(generic)
}

// ProductDetail carries presentations (sizes) and modifier groups for one
// product, as returned by product-details.
type ProductDetail struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Presentations  []ProductPresentation `json:"presentations"`
	ModifierGroups []ModifierGroup      `json:"modifierGroups"`
}

type ProductPresentation struct {
	ID    string `json:"id"`
	Size  string `json:"size"`
	Price string `json:"price"`
}

type ModifierGroup struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Required  bool       `json:"required"`
	Modifiers []Modifier `json:"modifiers"`
}

type Modifier struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// GetProductDetails fetches full detail (sizes, modifiers) for a batch of
// product ids in one call.
func (c *Client) GetProductDetails(ctx context.Context, subDomain, localID string, productIDs []string) ([]ProductDetail, error) {
	var out []ProductDetail
	body := map[string]interface{}{"productIds": productIDs}
	path := fmt.Sprintf("/menu/product-details/%s/%s", subDomain, localID)
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Delivery ------------------------------------------------------------

// Zone is one entry of the zone catalog.
type Zone struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	BaseFee                string `json:"baseFee"`
	BaseDistanceKm         string `json:"baseDistanceKm"`
	PerKmFee               string `json:"perKmFee"`
	MinimumOrder           string `json:"minimumOrder,omitempty"`
	MinimumForFreeDelivery string `json:"minimumForFreeDelivery,omitempty"`
}

// GetDeliveryZones fetches the zone catalog for a branch.
func (c *Client) GetDeliveryZones(ctx context.Context, subDomain, localID string) ([]Zone, error) {
	var out []Zone
	path := fmt.Sprintf("/delivery/zones/%s/%s", subDomain, localID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GeoPoint is a bare lat/lng pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DeliveryCost is the computed distance/fee/zone result.
type DeliveryCost struct {
	Zone       *Zone   `json:"zone"`
	DistanceKm float64 `json:"distanceKm"`
	Fee        string  `json:"fee"`
}

// CalculateDeliveryCost asks the backend to resolve a zone and fee for a
// delivery location. A nil Zone in the result means out of zone.
func (c *Client) CalculateDeliveryCost(ctx context.Context, subDomain, localID string, restaurant, delivery GeoPoint) (*DeliveryCost, error) {
	var out DeliveryCost
	body := map[string]interface{}{
		"restaurantLocation": restaurant,
		"deliveryLocation":   delivery,
		"subDomain":          subDomain,
		"localId":            localID,
	}
	if err := c.do(ctx, http.MethodPost, "/delivery/calculate-cost", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Orders ---------------------------------------------------------------

// OrderPayload is the order-create request body; fields mirror spec.md's
// Order entity closely enough for the backend to reconstruct it.
type OrderPayload struct {
	TenantID       string                 `json:"tenantId"`
	BranchID       string                 `json:"branchId"`
	CustomerPhone  string                 `json:"customerPhone"`
	Items          []OrderPayloadItem     `json:"items"`
	Subtotal       string                 `json:"subtotal"`
	TaxAmount      string                 `json:"taxAmount"`
	DeliveryFee    string                 `json:"deliveryFee"`
	Discount       string                 `json:"discount"`
	Total          string                 `json:"total"`
	FulfillmentType string                `json:"fulfillmentType"`
	DeliveryLoc    *GeoPoint              `json:"deliveryLocation,omitempty"`
	ZoneID         string                 `json:"zoneId,omitempty"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
}

type OrderPayloadItem struct {
	ProductID      string   `json:"productId"`
	PresentationID string   `json:"presentationId,omitempty"`
	Quantity       int      `json:"quantity"`
	UnitPrice      string   `json:"unitPrice"`
	ModifierIDs    []string `json:"modifierIds,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// OrderResult is what the backend returns after order creation.
type OrderResult struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// CreateOrder places an order, attaching idempotencyKey so retried
// attempts (transport-level or caller-level replays within the same
// logical attempt) are safe on the server side.
func (c *Client) CreateOrder(ctx context.Context, subDomain, localID string, payload OrderPayload, idempotencyKey ids.IdempotencyKey) (*OrderResult, error) {
	var out OrderResult
	query := map[string]string{"subDomain": subDomain, "localId": localID}
	return c.createOrderWithKey(ctx, query, payload, idempotencyKey, &out)
}

func (c *Client) createOrderWithKey(ctx context.Context, query map[string]string, payload OrderPayload, key ids.IdempotencyKey, out *OrderResult) (*OrderResult, error) {
	if err := c.sem.acquire(ctx); err != nil {
		return nil, NewError(KindTransient, 0, "request queue cancelled", err)
	}
	defer c.sem.release()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := delayForAttempt(c.cfg.RateLimitMode, c.cfg.RetryDelay, attempt-1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, NewError(KindTransient, 0, "context cancelled during backoff", ctx.Err())
			}
			c.metrics.recordRetry()
		}
		c.metrics.recordAttempt()
		start := time.Now()

		var raw envelope
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("X-Idempotency-Key", key.String()).
			SetQueryParams(query).
			SetBody(payload).
			SetResult(&raw).
			Post("/orders")
		elapsed := time.Since(start)

		if err != nil {
			lastErr = NewError(KindTransient, 0, "network error", err)
			c.metrics.recordResult(false, elapsed)
			continue
		}
		status := resp.StatusCode()
		if status == http.StatusTooManyRequests {
			c.metrics.recordRateLimited()
			c.metrics.recordResult(false, elapsed)
			lastErr = c.rateLimitedError(resp)
			continue
		}
		if status >= 500 {
			c.metrics.recordResult(false, elapsed)
			lastErr = NewError(KindTransient, status, resp.String(), nil)
			continue
		}
		if status >= 400 {
			c.metrics.recordResult(false, elapsed)
			return nil, NewError(ClassifyStatus(status), status, resp.String(), nil)
		}
		if !raw.ok() {
			c.metrics.recordResult(false, elapsed)
			return nil, NewError(KindPermanent, status, raw.Message, nil)
		}
		c.metrics.recordResult(true, elapsed)
		if err := json.Unmarshal(raw.Data, out); err != nil {
			return nil, NewError(KindPermanent, status, "malformed response payload", err)
		}
		return out, nil
	}
	return nil, lastErr
}

// GetOrder fetches one order by id.
func (c *Client) GetOrder(ctx context.Context, orderID ids.OrderId) (*OrderResult, error) {
	var out OrderResult
	path := fmt.Sprintf("/orders/%s", orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrdersByPhone fetches order history for a customer phone number.
func (c *Client) GetOrdersByPhone(ctx context.Context, phone ids.UserRef) ([]OrderResult, error) {
	var out []OrderResult
	query := map[string]string{"phone": phone.String()}
	if err := c.do(ctx, http.MethodGet, "/orders", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Conversation state ----------------------------------------------------

// ConversationState is the remote's record of one session, mirrored by
// internal/core/convstore.
type ConversationState struct {
	SessionID ids.SessionId          `json:"sessionId"`
	Intent    string                 `json:"intent,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	OrderID   string                 `json:"orderId,omitempty"`
	Active    bool                   `json:"active"`
}

func (c *Client) CreateConversation(ctx context.Context, tenantID ids.TenantId, user ids.UserRef) (*ConversationState, error) {
	var out ConversationState
	body := map[string]interface{}{"tenantId": tenantID, "userRef": user}
	if err := c.do(ctx, http.MethodPost, "/conversations", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetConversation(ctx context.Context, sessionID ids.SessionId) (*ConversationState, error) {
	var out ConversationState
	path := fmt.Sprintf("/conversations/%s", sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateConversationIntent(ctx context.Context, sessionID ids.SessionId, intent string) error {
	path := fmt.Sprintf("/conversations/%s/intent", sessionID)
	return c.do(ctx, http.MethodPost, path, nil, map[string]string{"intent": intent}, nil)
}

func (c *Client) UpdateConversationContext(ctx context.Context, sessionID ids.SessionId, contextPatch map[string]interface{}) error {
	path := fmt.Sprintf("/conversations/%s/context", sessionID)
	return c.do(ctx, http.MethodPost, path, nil, map[string]interface{}{"context": contextPatch}, nil)
}

func (c *Client) AppendConversationMessage(ctx context.Context, sessionID ids.SessionId, direction, text string) error {
	path := fmt.Sprintf("/conversations/%s/messages", sessionID)
	body := map[string]string{"direction": direction, "text": text}
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

func (c *Client) LinkConversationOrder(ctx context.Context, sessionID ids.SessionId, orderID ids.OrderId) error {
	path := fmt.Sprintf("/conversations/%s/order", sessionID)
	return c.do(ctx, http.MethodPost, path, nil, map[string]string{"orderId": orderID.String()}, nil)
}

func (c *Client) ResetConversation(ctx context.Context, sessionID ids.SessionId) error {
	path := fmt.Sprintf("/conversations/%s/reset", sessionID)
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

func (c *Client) ExtendConversation(ctx context.Context, sessionID ids.SessionId) error {
	path := fmt.Sprintf("/conversations/%s/extend", sessionID)
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

func (c *Client) EndConversation(ctx context.Context, sessionID ids.SessionId) error {
	path := fmt.Sprintf("/conversations/%s/end", sessionID)
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

func (c *Client) ListConversations(ctx context.Context, tenantID ids.TenantId) ([]ConversationState, error) {
	var out []ConversationState
	query := map[string]string{"tenantId": tenantID.String()}
	if err := c.do(ctx, http.MethodGet, "/conversations", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
