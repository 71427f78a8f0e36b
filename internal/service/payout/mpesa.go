// internal/service/payout/mpesa.go
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"boda-service/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MpesaGateway sends B2C payments through the Daraja API.
type MpesaGateway struct {
	cfg    config.MpesaConfig
	client *http.Client
	logger *zap.Logger
}

func NewMpesaGateway(cfg config.MpesaConfig, logger *zap.Logger) *MpesaGateway {
	return &MpesaGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

type b2cRequest struct {
	InitiatorName   string `json:"InitiatorName"`
	CommandID       string `json:"CommandID"`
	Amount          string `json:"Amount"`
	PartyA          string `json:"PartyA"`
	PartyB          string `json:"PartyB"`
	Remarks         string `json:"Remarks"`
	QueueTimeOutURL string `json:"QueueTimeOutURL"`
	ResultURL       string `json:"ResultURL"`
}

type b2cResponse struct {
	ConversationID      string `json:"ConversationID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
}

func (g *MpesaGateway) Pay(ctx context.Context, phone string, amount decimal.Decimal) (*PayResult, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	payload := b2cRequest{
		InitiatorName: g.cfg.InitiatorName,
		CommandID:     "BusinessPayment",
		Amount:        amount.StringFixed(2),
		PartyA:        g.cfg.ShortCode,
		PartyB:        phone,
		Remarks:       "Rider payout",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal B2C request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/mpesa/b2c/v1/paymentrequest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("B2C request failed: %w", err)
	}
	defer resp.Body.Close()

	var result b2cResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode B2C response: %w", err)
	}
	if result.ResponseCode != "0" {
		return nil, fmt.Errorf("B2C rejected: %s (%s)", result.ResponseDescription, result.ResponseCode)
	}

	g.logger.Info("B2C payment accepted",
		zap.String("phone", phone),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("conversation_id", result.ConversationID),
	)

	return &PayResult{TransactionID: result.ConversationID}, nil
}

func (g *MpesaGateway) accessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.AccessToken, nil
}
