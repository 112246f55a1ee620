/**
 * @description
 * Midtrans implementation of the Gateway port. Checkouts go through Snap
 * (hosted payment page), status checks and refunds through the Core API,
 * and webhook notifications are authenticated with the provider's
 * SHA512(order_id + status_code + gross_amount + server_key) signature.
 *
 * @dependencies
 * - github.com/midtrans/midtrans-go: Official Midtrans SDK (snap + coreapi).
 *
 * @notes
 * - The provider charges whole currency units, so cent amounts are rounded
 *   to the nearest unit on the way out.
 */
package paygate

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// Snap is the Midtrans-backed payment gateway.
type Snap struct {
	snapClient snap.Client
	coreClient coreapi.Client
	serverKey  string
}

// NewSnap creates a Midtrans gateway against the sandbox or production
// environment.
func NewSnap(serverKey string, production bool) *Snap {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	s := &Snap{serverKey: serverKey}
	s.snapClient.New(serverKey, env)
	s.coreClient.New(serverKey, env)
	return s
}

// CreatePayment creates a Snap transaction and returns its hosted checkout
// URL. The generated order id doubles as the gateway payment id webhooks
// will reference.
func (s *Snap) CreatePayment(_ context.Context, params CreatePaymentParams) (*CreatePaymentResult, error) {
	orderID := uuid.NewString()

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: centsToUnits(params.AmountCents),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: params.UserName,
			Email: params.UserEmail,
		},
	}

	resp, merr := s.snapClient.CreateTransaction(req)
	if merr != nil {
		return nil, fmt.Errorf("failed to create snap transaction: %w", merr)
	}

	return &CreatePaymentResult{
		Success:     true,
		PaymentID:   orderID,
		RedirectURL: resp.RedirectURL,
		Status:      StatusPending,
	}, nil
}

// VerifyPayment asks the Core API for the transaction's current status.
func (s *Snap) VerifyPayment(_ context.Context, paymentID string) (PaymentStatus, error) {
	resp, merr := s.coreClient.CheckTransaction(paymentID)
	if merr != nil {
		if merr.StatusCode == http.StatusNotFound {
			return StatusUnknown, ErrPaymentNotFound
		}
		return StatusUnknown, fmt.Errorf("failed to check transaction: %w", merr)
	}
	return mapSnapStatus(resp.TransactionStatus, resp.FraudStatus), nil
}

// snapNotification is the subset of the Midtrans webhook body we act on.
type snapNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
}

// ProcessWebhook verifies the embedded signature_key and maps the
// notification to a WebhookResult. The transport signature argument is
// ignored; Midtrans signs inside the payload.
func (s *Snap) ProcessWebhook(_ context.Context, payload []byte, _ string) (*WebhookResult, error) {
	var notif snapNotification
	if err := json.Unmarshal(payload, &notif); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	want := strings.ToLower(notif.SignatureKey)
	sum := sha512.Sum512([]byte(notif.OrderID + notif.StatusCode + notif.GrossAmount + s.serverKey))
	got := hex.EncodeToString(sum[:])
	if want == "" || got != want {
		return nil, ErrInvalidSignature
	}

	return &WebhookResult{
		PaymentID: notif.OrderID,
		Status:    mapSnapStatus(notif.TransactionStatus, notif.FraudStatus),
		Raw:       payload,
	}, nil
}

// Refund reverses a settled transaction. A nil amount refunds in full.
func (s *Snap) Refund(_ context.Context, paymentID string, amountCents *int64, reason string) (*RefundResult, error) {
	req := &coreapi.RefundReq{Reason: reason}
	if amountCents != nil {
		req.Amount = centsToUnits(*amountCents)
	}

	resp, merr := s.coreClient.RefundTransaction(paymentID, req)
	if merr != nil {
		if merr.StatusCode == http.StatusNotFound {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to refund transaction: %w", merr)
	}

	return &RefundResult{
		Success:  true,
		RefundID: resp.RefundKey,
		Status:   StatusRefunded,
	}, nil
}

// GetPaymentStatus reports the provider's current view of the payment.
func (s *Snap) GetPaymentStatus(ctx context.Context, paymentID string) (PaymentStatus, error) {
	return s.VerifyPayment(ctx, paymentID)
}

// mapSnapStatus translates Midtrans transaction/fraud statuses onto the
// gateway-neutral set.
func mapSnapStatus(transactionStatus, fraudStatus string) PaymentStatus {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "accept":
			return StatusCompleted
		case "challenge":
			return StatusPending
		default:
			return StatusFailed
		}
	case "settlement":
		return StatusCompleted
	case "pending":
		return StatusPending
	case "deny", "failure":
		return StatusFailed
	case "cancel":
		return StatusCancelled
	case "expire":
		return StatusExpired
	case "refund", "partial_refund":
		return StatusRefunded
	default:
		return StatusUnknown
	}
}

func centsToUnits(cents int64) int64 {
	return (cents + 50) / 100
}
