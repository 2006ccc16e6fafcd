package paymentprovider

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Статусы платежа на стороне шлюза.
const (
	StatusInitiated = "INITIATED"
	StatusCaptured  = "CAPTURED"
	StatusFailed    = "FAILED"
	StatusDeclined  = "DECLINED"
	StatusCancelled = "CANCELLED"
)

// Amount сумма, которая в JSON пишется числом, а не строкой.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// ChargeRequest тело запроса на создание платежа.
type ChargeRequest struct {
	Amount              Amount            `json:"amount"`
	Currency            string            `json:"currency"`
	ThreeDSecure        bool              `json:"threeDSecure"`
	SaveCard            bool              `json:"save_card"`
	Description         string            `json:"description"`
	StatementDescriptor string            `json:"statement_descriptor"`
	Metadata            map[string]string `json:"metadata"`
	Reference           Reference         `json:"reference"`
	Receipt             Receipt           `json:"receipt"`
	Customer            Customer          `json:"customer"`
	Source              Source            `json:"source"`
	Post                URL               `json:"post"`
	Redirect            URL               `json:"redirect"`
}

type Reference struct {
	Transaction string `json:"transaction,omitempty"`
	Order       string `json:"order,omitempty"`
}

type Receipt struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type Source struct {
	ID            string `json:"id,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type URL struct {
	URL string `json:"url"`
}

// GatewayResponse код и сообщение шлюза по платежу.
type GatewayResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Charge платеж в ответах шлюза и в webhook.
type Charge struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Amount      Amount          `json:"amount"`
	Currency    string          `json:"currency"`
	Transaction URL             `json:"transaction"`
	Source      Source          `json:"source"`
	Response    GatewayResponse `json:"response"`
	Reference   Reference       `json:"reference"`

	// Raw исходное тело, сохраняется в транзакции для аудита.
	Raw json.RawMessage `json:"-"`
}

// PaymentMethod возвращает способ оплаты или nil, если шлюз его не прислал.
func (c *Charge) PaymentMethod() *string {
	if c.Source.PaymentMethod == "" {
		return nil
	}
	m := c.Source.PaymentMethod
	return &m
}

// FailureMessage возвращает причину отказа.
func (c *Charge) FailureMessage() string {
	if c.Response.Message != "" {
		return c.Response.Message
	}
	return "Payment failed"
}

// DecodeCharge разбирает тело webhook или ответа шлюза.
func DecodeCharge(raw []byte) (*Charge, error) {
	var ch Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}
	ch.Raw = append(json.RawMessage(nil), raw...)
	return &ch, nil
}
