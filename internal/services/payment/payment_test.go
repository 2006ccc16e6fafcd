package payment

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	"github.com/magabrotheeeer/motivation-hub/internal/paymentprovider"
)

type record struct {
	pt       models.PaymentTransaction
	sub      models.Subscription
	owner    models.User
	payloads [][]byte
}

// RepoMock хранит транзакции в памяти. Полезная нагрузка сохраняется всегда,
// остальные изменения только при успешном fn, вернувшем true.
type RepoMock struct {
	mock.Mock
	records map[string]*record
	writes  int
}

func (m *RepoMock) ApplyWebhook(
	_ context.Context,
	chargeID string,
	raw []byte,
	fn func(pt *models.PaymentTransaction, sub *models.Subscription, owner *models.User) (bool, error),
) (bool, error) {
	rec, ok := m.records[chargeID]
	if !ok {
		return false, nil
	}
	pt, sub, owner := rec.pt, rec.sub, rec.owner
	pt.RawResponse = raw
	write, err := fn(&pt, &sub, &owner)
	if err != nil {
		return false, err
	}
	rec.payloads = append(rec.payloads, raw)
	if write {
		rec.pt, rec.sub, rec.owner = pt, sub, owner
		m.writes++
	} else {
		rec.pt.RawResponse = raw
	}
	return true, nil
}

func (m *RepoMock) GetTransactionByChargeID(ctx context.Context, chargeID string) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

func (m *RepoMock) ListTransactions(ctx context.Context, userID string) ([]models.PaymentTransaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PaymentTransaction), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(routingKey string, message any) error {
	return m.Called(routingKey, message).Error(0)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) GetCharge(ctx context.Context, chargeID string) (*paymentprovider.Charge, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Charge), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newRepo() *RepoMock {
	return &RepoMock{records: map[string]*record{
		"X": {
			pt: models.PaymentTransaction{
				ID: 1, UserID: "u1", SubscriptionID: 10, ChargeID: "X",
				Amount: decimal.RequireFromString("19.99"), Status: models.TxInitiated,
			},
			sub: models.Subscription{
				ID: 10, UserID: "u1", Status: models.StatusPending,
				Package:        &models.Package{Name: "Growth", DurationDays: 30, MaxScopes: 2, MessagesPerDay: 1},
				SelectedScopes: []models.Scope{{ID: 1}, {ID: 2}},
			},
			owner: models.User{ID: "u1", Username: "ann", Email: "ann@example.com", Role: models.RoleNormal},
		},
	}}
}

func newService(repo *RepoMock, pub Publisher) *Service {
	s := New(repo, nil, pub, newNoopLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestProcessWebhook_CapturedIsIdempotent(t *testing.T) {
	repo := newRepo()
	pub := new(PublisherMock)
	pub.On("Publish", rabbitmq.RoutingSubscriptionActivated, mock.MatchedBy(func(n *models.SubscriptionNotice) bool {
		return n.SubscriptionID == 10 && n.Email == "ann@example.com" && n.PackageName == "Growth"
	})).Return(nil).Once()
	s := newService(repo, pub)
	payload := []byte(`{"id":"X","status":"CAPTURED","source":{"payment_method":"VISA"}}`)

	handled, err := s.ProcessWebhook(context.Background(), payload)
	require.NoError(t, err)
	require.True(t, handled)

	rec := repo.records["X"]
	assert.Equal(t, models.TxCompleted, rec.pt.Status)
	assert.Equal(t, fixedNow, *rec.pt.CompletedAt)
	assert.Equal(t, payload, []byte(rec.pt.RawResponse))
	assert.Equal(t, models.StatusActive, rec.sub.Status)
	assert.Equal(t, "X", rec.sub.PaymentID)
	assert.Equal(t, "VISA", *rec.sub.PaymentMethod)
	assert.True(t, decimal.RequireFromString("19.99").Equal(*rec.sub.AmountPaid))
	assert.Equal(t, models.RoleSubscriber, rec.owner.Role)
	endDate := *rec.sub.EndDate
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), endDate)

	caps := access.Resolve(&rec.owner, []models.Subscription{rec.sub}, fixedNow)
	assert.True(t, caps.HasScope(access.ScopeSubscriber))
	assert.True(t, caps.HasScope(access.MessagesPerDayScope(1)))

	// Повторная доставка позже не продлевает подписку, но ее нагрузка сохраняется.
	redelivered := []byte(`{"status":"CAPTURED", "id":"X","attempt":2}`)
	s.now = func() time.Time { return fixedNow.Add(time.Hour) }
	handled, err = s.ProcessWebhook(context.Background(), redelivered)
	require.NoError(t, err)
	assert.True(t, handled)
	rec = repo.records["X"]
	assert.Equal(t, endDate, *rec.sub.EndDate)
	assert.Equal(t, models.TxCompleted, rec.pt.Status)
	assert.Equal(t, fixedNow, *rec.pt.CompletedAt)
	assert.Equal(t, redelivered, []byte(rec.pt.RawResponse))
	assert.Equal(t, [][]byte{payload, redelivered}, rec.payloads)
	assert.Equal(t, 1, repo.writes)
	pub.AssertExpectations(t)
}

func TestProcessWebhook_Failed(t *testing.T) {
	repo := newRepo()
	s := newService(repo, nil)

	handled, err := s.ProcessWebhook(context.Background(), []byte(`{"id":"X","status":"FAILED","response":{"message":"Insufficient funds"}}`))
	require.NoError(t, err)
	assert.True(t, handled)

	rec := repo.records["X"]
	assert.Equal(t, models.TxFailed, rec.pt.Status)
	assert.Equal(t, "Insufficient funds", rec.pt.ErrorMessage)
	assert.Equal(t, models.StatusFailed, rec.sub.Status)
	assert.Equal(t, models.RoleNormal, rec.owner.Role)
	assert.Nil(t, rec.pt.CompletedAt)
}

func TestProcessWebhook_OtherStatusStoresPayloadOnly(t *testing.T) {
	repo := newRepo()
	s := newService(repo, nil)
	payload := []byte(`{"id":"X","status":"INITIATED"}`)

	handled, err := s.ProcessWebhook(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, handled)

	rec := repo.records["X"]
	assert.Equal(t, models.TxInitiated, rec.pt.Status)
	assert.Equal(t, models.StatusPending, rec.sub.Status)
	assert.Equal(t, payload, []byte(rec.pt.RawResponse))
	assert.Equal(t, 0, repo.writes)
}

func TestProcessWebhook_UnknownCharge(t *testing.T) {
	repo := newRepo()
	before := *repo.records["X"]
	s := newService(repo, nil)

	handled, err := s.ProcessWebhook(context.Background(), []byte(`{"id":"unknown-id","status":"CAPTURED"}`))
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, 0, repo.writes)
	assert.Equal(t, before, *repo.records["X"])
}

func TestProcessWebhook_InvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{`},
		{name: "no id", body: `{"status":"CAPTURED"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService(newRepo(), nil).ProcessWebhook(context.Background(), []byte(tt.body))
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestProcessWebhook_PublishFailureIsNotFatal(t *testing.T) {
	repo := newRepo()
	pub := new(PublisherMock)
	pub.On("Publish", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	handled, err := newService(repo, pub).ProcessWebhook(context.Background(), []byte(`{"id":"X","status":"CAPTURED"}`))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, models.StatusActive, repo.records["X"].sub.Status)
	assert.Nil(t, repo.records["X"].sub.PaymentMethod)
}

func TestVerifyPayment(t *testing.T) {
	repo := newRepo()
	repo.On("GetTransactionByChargeID", mock.Anything, "X").Return(&models.PaymentTransaction{ChargeID: "X", UserID: "u1"}, nil)
	gw := new(GatewayMock)
	gw.On("GetCharge", mock.Anything, "X").Return(&paymentprovider.Charge{ID: "X", Status: paymentprovider.StatusCaptured}, nil).Once()

	s := New(repo, gw, nil, newNoopLogger())

	ch, err := s.VerifyPayment(context.Background(), "u1", "X")
	require.NoError(t, err)
	assert.Equal(t, paymentprovider.StatusCaptured, ch.Status)

	_, err = s.VerifyPayment(context.Background(), "u2", "X")
	assert.ErrorIs(t, err, models.ErrNotFound)
	gw.AssertExpectations(t)
}
