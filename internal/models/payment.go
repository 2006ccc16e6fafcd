package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus статус платежной транзакции.
type TransactionStatus string

const (
	TxInitiated  TransactionStatus = "initiated"
	TxProcessing TransactionStatus = "processing"
	TxCompleted  TransactionStatus = "completed"
	TxFailed     TransactionStatus = "failed"
	TxRefunded   TransactionStatus = "refunded"
)

// Terminal сообщает, что транзакция больше не меняет статус.
func (s TransactionStatus) Terminal() bool {
	return s == TxCompleted || s == TxFailed || s == TxRefunded
}

// PaymentTransaction попытка оплаты подписки, адресуемая идентификатором списания шлюза.
type PaymentTransaction struct {
	ID             int64             `json:"id"`
	UserID         string            `json:"user_id"`
	SubscriptionID int64             `json:"subscription_id"`
	ChargeID       string            `json:"charge_id"`
	TransactionURL string            `json:"transaction_url,omitempty"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Status         TransactionStatus `json:"status"`
	PaymentMethod  string            `json:"payment_method,omitempty"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	CustomerPhone  string            `json:"customer_phone,omitempty"`
	RawResponse    json.RawMessage   `json:"-"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}
