package floorapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/shopspring/decimal"
)

type startRequest struct {
	MachineID int64 `json:"machine_id"`
	GameID    int64 `json:"game_id"`
	PricingID int64 `json:"pricing_id"`
}

type startResponse struct {
	Session *models.Session `json:"session,omitempty"`
}

type stopRequest struct {
	MatchesPlayed *int `json:"matches_played,omitempty"`
}

type extendRequest struct {
	PricingID int64 `json:"pricing_id"`
}

type extendResponse struct {
	TotalPaid decimal.Decimal `json:"total_paid"`
}

type paymentRequest struct {
	AmountGiven decimal.Decimal `json:"amount_given"`
}

type paymentResponse struct {
	Receipt struct {
		Amount decimal.Decimal `json:"amount"`
		Change decimal.Decimal `json:"change"`
	} `json:"receipt"`
}

// StartSession opens a session. The service may echo the created session;
// nil means the caller has to refresh to learn it.
func (c *FloorApiClient) StartSession(ctx context.Context, machineID, gameID, pricingID int64) (*models.Session, error) {
	var resp startResponse
	req := startRequest{MachineID: machineID, GameID: gameID, PricingID: pricingID}
	if err := c.Do(ctx, "start session", http.MethodPost, SessionsEndpoint, req, &resp); err != nil {
		return nil, err
	}
	return resp.Session, nil
}

// GetSessionStatus reports how a running session is billed.
func (c *FloorApiClient) GetSessionStatus(ctx context.Context, sessionID int64) (*models.SessionStatus, error) {
	var status models.SessionStatus
	endpoint := fmt.Sprintf(SessionStatusEndpoint, sessionID)
	if err := c.Do(ctx, "get session status", http.MethodGet, endpoint, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StopSession ends a session. matchesPlayed is required for per_match
// sessions and must be nil otherwise.
func (c *FloorApiClient) StopSession(ctx context.Context, sessionID int64, matchesPlayed *int) (*models.StopResult, error) {
	var result models.StopResult
	endpoint := fmt.Sprintf(SessionStopEndpoint, sessionID)
	if err := c.Do(ctx, "stop session", http.MethodPost, endpoint, stopRequest{MatchesPlayed: matchesPlayed}, &result); err != nil {
		return nil, err
	}
	if matchesPlayed != nil {
		result.MatchesPlayed = *matchesPlayed
	}
	return &result, nil
}

// ExtendSession buys another block for a fixed session and returns the total
// paid so far.
func (c *FloorApiClient) ExtendSession(ctx context.Context, sessionID, pricingID int64) (decimal.Decimal, error) {
	var resp extendResponse
	endpoint := fmt.Sprintf(SessionExtendEndpoint, sessionID)
	if err := c.Do(ctx, "extend session", http.MethodPost, endpoint, extendRequest{PricingID: pricingID}, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.TotalPaid, nil
}

// ConfirmPayment records the tender for a stopped session.
func (c *FloorApiClient) ConfirmPayment(ctx context.Context, sessionID int64, amountGiven decimal.Decimal) (*models.Receipt, error) {
	var resp paymentResponse
	endpoint := fmt.Sprintf(SessionPaymentEndpoint, sessionID)
	if err := c.Do(ctx, "confirm payment", http.MethodPost, endpoint, paymentRequest{AmountGiven: amountGiven}, &resp); err != nil {
		return nil, err
	}
	return &models.Receipt{
		SessionID:   sessionID,
		Amount:      resp.Receipt.Amount,
		AmountGiven: amountGiven,
		Change:      resp.Receipt.Change,
	}, nil
}
