package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/flow"
)

const notifierWriteTimeout = 10 * time.Second

// SettlementNotifier is the websocket alternative to polling the settlement
// check endpoint. A client connects with its invoice token and receives one
// settlement message, with the settlement token, as soon as the invoice is
// paid.
type SettlementNotifier struct {
	manager  *flow.Manager
	payments paywall.PaymentHandler
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewSettlementNotifier builds the notifier endpoint. The payment handler
// must be the one the manager's flows write to, so its events cover the
// notifier's invoices.
func NewSettlementNotifier(manager *flow.Manager, payments paywall.PaymentHandler) *SettlementNotifier {
	return &SettlementNotifier{
		manager:  manager,
		payments: payments,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: slog.Default(),
	}
}

func (n *SettlementNotifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	paymentFlow, err := n.manager.FlowFromInvoiceToken(r.Context(), r)
	if err != nil {
		writeFlowError(w, n.log, err)
		return
	}
	preImageHash := paymentFlow.PreImageHash()

	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Register before the settled check so a settlement between check and
	// registration cannot be missed.
	settledCh := make(chan struct{}, 1)
	listenerID := n.payments.RegisterListener(
		paywall.PaymentListenerFunc(func(paywall.PaymentEvent) {
			select {
			case settledCh <- struct{}{}:
			default:
			}
		}),
		paywall.PaymentEventFilter{
			PreImageHash:         preImageHash,
			Type:                 paywall.EventInvoiceSettled,
			UnregisterAfterEvent: true,
		},
	)
	defer n.payments.UnregisterListener(listenerID)

	if settled, err := paymentFlow.IsSettled(r.Context()); err == nil && settled {
		n.push(conn, paymentFlow)
		return
	}

	// Read pump only to observe the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-settledCh:
		n.push(conn, paymentFlow)
	case <-closed:
	case <-r.Context().Done():
	}
}

func (n *SettlementNotifier) push(conn *websocket.Conn, paymentFlow flow.PaymentFlow) {
	result, err := paymentFlow.GetSettlement(context.Background())
	if err != nil {
		n.log.Error("failed to build settlement for websocket client", "error", err)
		return
	}
	resp := SettlementResponse{
		Status:       "SETTLED",
		Settled:      true,
		PreImageHash: paywall.PreImageHashString(result.Settlement.PreImageHash),
		Token:        result.Token,
		TokenExpire:  &result.TokenExpire,
		ValidUntil:   &result.Settlement.ValidUntil,
		ValidFrom:    result.Settlement.ValidFrom,
	}
	conn.SetWriteDeadline(time.Now().Add(notifierWriteTimeout))
	if err := conn.WriteJSON(resp); err != nil {
		n.log.Warn("failed to push settlement to websocket client", "error", err)
		return
	}
	n.log.Info("settlement pushed to websocket client",
		"preImageHash", resp.PreImageHash)
}
