package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/digibank/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/digibank/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/ledger"
)

const stripeSecret = "whsec_handler_test"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t     *testing.T
	app   *fiber.App
	store *memory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	opts := ledger.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	accounts := ledger.NewAccounts(store, nil, domain.AZN, opts)

	app := fiber.New()
	Register(app, Routes{
		Accounts:      &AccountHandler{Accounts: accounts, Keys: store},
		Transactions:  &TransactionHandler{Engine: ledger.NewEngine(store, opts), Accounts: accounts},
		Notifications: &NotificationHandler{Notifications: ledger.NewNotifications(store, opts)},
		Payments:      &PaymentHandler{Intake: ledger.NewIntake(store, opts), WebhookSecret: stripeSecret},
		Keys:          store,
		Responses:     store,
	})
	return &testAPI{t: t, app: app, store: store}
}

func (a *testAPI) call(method, path, apiKey string, body string, headers map[string]string) (int, envelope) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if apiKey != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := a.app.Test(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	require.NoError(a.t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

// openAccount creates an account and an API key for it.
func (a *testAPI) openAccount(first, last string) (AccountResponse, string) {
	a.t.Helper()
	status, env := a.call(http.MethodPost, "/v1/accounts", "", fmt.Sprintf(`{"first_name":%q,"last_name":%q}`, first, last), nil)
	require.Equal(a.t, http.StatusCreated, status, env.Message)
	var acc AccountResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &acc))

	status, env = a.call(http.MethodPost, fmt.Sprintf("/v1/accounts/%d/keys", acc.ID), "", "", nil)
	require.Equal(a.t, http.StatusCreated, status, env.Message)
	var key struct {
		APIKey string `json:"api_key"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &key))
	return acc, key.APIKey
}

func (a *testAPI) topUp(eventID string, accountID int64, amount string) (int, envelope) {
	a.t.Helper()
	payload := fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_%s","object":"checkout.session","payment_status":"paid","currency":"azn","metadata":{"user_id":"%d","amount":%q}}}}`,
		eventID, eventID, accountID, amount)
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(stripeSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	sig := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
	return a.call(http.MethodPost, "/v1/payments/webhook", "", payload, map[string]string{HeaderStripeSignature: sig})
}

func TestAPI_TransferFlow(t *testing.T) {
	api := newTestAPI(t)
	ali, aliKey := api.openAccount("ali", "veliyev")
	leyla, leylaKey := api.openAccount("Leyla", "Mammadova")
	assert.Equal(t, "Ali Veliyev", ali.Name)
	assert.Regexp(t, `^4200-\d{4}-\d{4}-\d{4}$`, ali.AccountNumber)

	status, env := api.topUp("evt_1", ali.ID, "1000")
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = api.topUp("evt_1", ali.ID, "1000")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(domain.KindDuplicateEvent), env.Kind)

	status, env = api.call(http.MethodPost, "/v1/transfers", aliKey,
		fmt.Sprintf(`{"receiver_account_number":%q,"amount":"250.00","description":"dinner"}`, leyla.AccountNumber), nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var tr TransferResponse
	require.NoError(t, json.Unmarshal(env.Data, &tr))
	assert.Equal(t, "750.00", tr.SenderNewBalance)
	assert.Equal(t, "250.00", tr.ReceiverNewBalance)
	assert.Equal(t, "AZN", tr.Currency)

	status, env = api.call(http.MethodGet, "/v1/me", leylaKey, "", nil)
	require.Equal(t, http.StatusOK, status)
	var me AccountResponse
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "250.00", me.Balance)

	status, env = api.call(http.MethodGet, "/v1/me/transactions", aliKey, "", nil)
	require.Equal(t, http.StatusOK, status)
	var history []EntryResponse
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 2)
	assert.Equal(t, "out", history[0].Direction)
	assert.Equal(t, "topup", history[1].Direction)

	status, env = api.call(http.MethodGet, "/v1/notifications", leylaKey, "", nil)
	require.Equal(t, http.StatusOK, status)
	var notes []domain.Notification
	require.NoError(t, json.Unmarshal(env.Data, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "Ali Veliyev sent you 250.00 AZN", notes[0].Message)

	status, _ = api.call(http.MethodPost, fmt.Sprintf("/v1/notifications/%d/read", notes[0].ID), aliKey, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.call(http.MethodPost, fmt.Sprintf("/v1/notifications/%d/read", notes[0].ID), leylaKey, "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = api.call(http.MethodGet, "/v1/notifications", leylaKey, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestAPI_TransferErrors(t *testing.T) {
	api := newTestAPI(t)
	ali, aliKey := api.openAccount("Ali", "Veliyev")
	leyla, _ := api.openAccount("Leyla", "Mammadova")
	_, _ = api.topUp("evt_seed", ali.ID, "100")

	cases := []struct {
		name   string
		body   string
		status int
		kind   domain.ErrorKind
	}{
		{"insufficient", fmt.Sprintf(`{"receiver_account_number":%q,"amount":"100.01"}`, leyla.AccountNumber), http.StatusUnprocessableEntity, domain.KindInsufficientFunds},
		{"self", fmt.Sprintf(`{"receiver_account_number":%q,"amount":"1"}`, ali.AccountNumber), http.StatusBadRequest, domain.KindSelfTransferNotAllowed},
		{"unknown receiver", `{"receiver_account_number":"4200 0000 0000 0000","amount":"1"}`, http.StatusNotFound, domain.KindReceiverNotFound},
		{"bad number", `{"receiver_account_number":"12-34","amount":"1"}`, http.StatusBadRequest, domain.KindInvalidAccountNumber},
		{"blank number", `{"receiver_account_number":"","amount":"1"}`, http.StatusBadRequest, domain.KindInvalidAccountNumber},
		{"missing number", `{"amount":"1"}`, http.StatusBadRequest, domain.KindInvalidAccountNumber},
		{"zero amount", fmt.Sprintf(`{"receiver_account_number":%q,"amount":"0"}`, leyla.AccountNumber), http.StatusBadRequest, domain.KindInvalidAmount},
		{"sub-cent amount", fmt.Sprintf(`{"receiver_account_number":%q,"amount":"0.001"}`, leyla.AccountNumber), http.StatusBadRequest, domain.KindInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := api.call(http.MethodPost, "/v1/transfers", aliKey, tc.body, nil)
			assert.Equal(t, tc.status, status, env.Message)
			assert.False(t, env.Success)
			assert.Equal(t, string(tc.kind), env.Kind)
		})
	}

	status, env := api.call(http.MethodGet, "/v1/me", aliKey, "", nil)
	require.Equal(t, http.StatusOK, status)
	var me AccountResponse
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "100.00", me.Balance)
}

func TestAPI_TransferIdempotencyKey(t *testing.T) {
	api := newTestAPI(t)
	ali, aliKey := api.openAccount("Ali", "Veliyev")
	leyla, leylaKey := api.openAccount("Leyla", "Mammadova")
	_, _ = api.topUp("evt_seed", ali.ID, "100")

	body := fmt.Sprintf(`{"receiver_account_number":%q,"amount":"10"}`, leyla.AccountNumber)
	headers := map[string]string{middleware.HeaderIdempotencyKey: "7d1e4a4e-3f0b-4f4e-8a53-5e3b2b9c0a01"}

	for i := 0; i < 3; i++ {
		status, env := api.call(http.MethodPost, "/v1/transfers", aliKey, body, headers)
		require.Equal(t, http.StatusOK, status, env.Message)
	}

	_, env := api.call(http.MethodGet, "/v1/me", leylaKey, "", nil)
	var me AccountResponse
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "10.00", me.Balance)
	assert.Len(t, api.store.LedgerEntries(), 2)
}

func TestAPI_WebhookRejectsBadSignature(t *testing.T) {
	api := newTestAPI(t)
	status, env := api.call(http.MethodPost, "/v1/payments/webhook", "", `{"id":"evt_x"}`,
		map[string]string{HeaderStripeSignature: "t=1,v1=deadbeef"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(domain.KindSignatureInvalid), env.Kind)
}

func TestAPI_RequiresKey(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/v1/me", "/v1/me/transactions", "/v1/notifications"} {
		status, env := api.call(http.MethodGet, path, "", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.False(t, env.Success)
	}
}

func TestAPI_AccountValidation(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.call(http.MethodPost, "/v1/accounts", "", `{"first_name":"Ali"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(domain.KindInvalidRequest), env.Kind)

	status, _ = api.call(http.MethodPost, "/v1/accounts", "", `{"first_name":"Ali","last_name":"V","currency":"EUR"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = api.call(http.MethodPost, "/v1/accounts/999/keys", "", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(domain.KindAccountNotFound), env.Kind)
}
