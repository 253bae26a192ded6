package payment

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Terminal authorizes card charges through the payment terminal gateway the
// till's card reader is paired with. An empty base URL means no reader.
type Terminal struct {
	baseURL    string
	terminalID string
	client     *resty.Client
}

type authorizeRequest struct {
	Amount     string `json:"amount"`
	TerminalID string `json:"terminal_id"`
	Reference  string `json:"reference"`
}

type authorizeResponse struct {
	Approved      bool   `json:"approved"`
	TransactionID string `json:"transaction_id"`
	CardBrand     string `json:"card_brand"`
	Reason        string `json:"reason"`
}

func NewTerminal(baseURL, terminalID string) *Terminal {
	return &Terminal{
		baseURL:    baseURL,
		terminalID: terminalID,
		client:     resty.New().SetHeader("Content-Type", "application/json"),
	}
}

func (t *Terminal) Connected() bool {
	return t.baseURL != ""
}

func (t *Terminal) TerminalID() string {
	return t.terminalID
}

// Authorize sends one charge and waits for the cardholder to finish at the
// reader. The request carries an idempotency key so gateway retries do not
// charge twice.
func (t *Terminal) Authorize(ctx context.Context, amount decimal.Decimal) (Authorization, error) {
	reference := uuid.NewString()

	var out authorizeResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", reference).
		SetBody(authorizeRequest{
			Amount:     amount.StringFixed(2),
			TerminalID: t.terminalID,
			Reference:  reference,
		}).
		SetResult(&out).
		Post(t.baseURL + "/authorizations")
	if err != nil {
		return Authorization{}, err
	}
	if resp.IsError() {
		return Authorization{}, fmt.Errorf("terminal answered %d: %s", resp.StatusCode(), resp.String())
	}

	return Authorization{
		Approved:      out.Approved,
		TransactionID: out.TransactionID,
		CardBrand:     out.CardBrand,
		Reason:        out.Reason,
	}, nil
}
