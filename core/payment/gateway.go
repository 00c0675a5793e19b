package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

var ErrGatewayUnavailable = errors.New("payment gateway not available")

type (
	// OrderRequest is an intent to collect a specific amount, expressed in
	// the gateway's minor currency unit.
	OrderRequest struct {
		Amount   int64
		Currency string
		Receipt  string
		Notes    map[string]string
	}

	// GatewayOrder is the transient order created with the payment processor.
	GatewayOrder struct {
		ID       string
		Amount   int64
		Currency string
	}

	// OrderGateway creates orders with a third-party payment processor.
	OrderGateway interface {
		CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error)
	}
)

// Sign computes the hex-encoded HMAC-SHA256 signature the gateway attaches to
// a payment confirmation: HMAC(secret, "{order_id}|{payment_id}").
func Sign(orderID, gatewayPaymentID string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(orderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(h.Sum(nil))
}

// signatureValid compares the supplied signature against the recomputed one
// in constant time.
func signatureValid(orderID, gatewayPaymentID, signature string, secret []byte) bool {
	expected := Sign(orderID, gatewayPaymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
