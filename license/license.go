package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"airsync/models"
)

const (
	// DefaultVerifyURL is the license verification endpoint.
	DefaultVerifyURL = "https://api.gumroad.com/v2/licenses/verify"
	// DefaultProductID identifies the AirSync+ product.
	DefaultProductID = "smrIThhDxoQI33gQm3wwxw=="
	// TesterKey always verifies without a network call.
	TesterKey = "i-am-a-tester"
	// DefaultTimeout bounds one verification request.
	DefaultTimeout = 15 * time.Second

	maxResponseBytes = 1 << 20
)

// ErrNoPurchase indicates a successful verify response without purchase data.
var ErrNoPurchase = errors.New("license: verify response has no purchase")

// Options configures a Verifier.
type Options struct {
	VerifyURL  string
	ProductID  string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Verifier checks license keys against the verify endpoint.
type Verifier struct {
	verifyURL string
	productID string
	client    *http.Client
	log       zerolog.Logger
}

// NewVerifier builds a verifier with defaults filled in.
func NewVerifier(options Options) *Verifier {
	if options.VerifyURL == "" {
		options.VerifyURL = DefaultVerifyURL
	}
	if options.ProductID == "" {
		options.ProductID = DefaultProductID
	}
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Verifier{
		verifyURL: options.VerifyURL,
		productID: options.ProductID,
		client:    options.HTTPClient,
		log:       options.Logger.With().Str("component", "license").Logger(),
	}
}

type verifyResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Purchase *purchase `json:"purchase"`
}

type purchase struct {
	Email       string          `json:"email"`
	ProductName string          `json:"product_name"`
	OrderNumber json.RawMessage `json:"order_number"`
	PurchaserID string          `json:"purchaser_id"`
}

// Check verifies key. Any failure, including transport and decode errors,
// yields nil.
func (v *Verifier) Check(ctx context.Context, key string) *models.LicenseDetails {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if key == TesterKey {
		return &models.LicenseDetails{
			Email:       "tester@example.com",
			ProductName: "AirSync+ (Tester)",
			OrderNumber: "TESTER-12345",
			PurchaserID: "TESTER-ABCDEF",
			Key:         key,
		}
	}

	details, err := v.verify(ctx, key)
	if err != nil {
		v.log.Warn().Err(err).Msg("license verification failed")
		return nil
	}
	return details
}

func (v *Verifier) verify(ctx context.Context, key string) (*models.LicenseDetails, error) {
	form := url.Values{}
	form.Set("product_id", v.productID)
	form.Set("license_key", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post verify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("verify endpoint returned %s", resp.Status)
	}

	var decoded verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	if !decoded.Success {
		v.log.Info().Str("message", decoded.Message).Msg("license rejected")
		return nil, nil
	}
	if decoded.Purchase == nil {
		return nil, ErrNoPurchase
	}

	p := decoded.Purchase
	return &models.LicenseDetails{
		Email:       orDefault(p.Email, "unknown"),
		ProductName: orDefault(p.ProductName, "unknown"),
		OrderNumber: orderNumber(p.OrderNumber),
		PurchaserID: p.PurchaserID,
		Key:         key,
	}, nil
}

// orderNumber accepts either a JSON number or string.
func orderNumber(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "0"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return "0"
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
