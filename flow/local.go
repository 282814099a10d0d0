package flow

import (
	"context"
	"time"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/token"
)

// LocalFlow runs the whole payment flow inside one node: order, invoice,
// settlement and token generation all happen against local collaborators.
type LocalFlow struct {
	mgr         *Manager
	declaration *paywall.PaymentRequired
	request     *paywall.CachableRequest
	requestData *paywall.RequestData
	claims      *token.Claims

	preImageHash []byte
	settlement   *paywall.Settlement
}

var _ PaymentFlow = (*LocalFlow)(nil)

func (f *LocalFlow) IsPaymentRequired(ctx context.Context) (bool, error) {
	if f.claims == nil || f.claims.Settlement == nil {
		return true, nil
	}
	if f.requestData == nil || f.claims.RequestData == nil || !f.claims.RequestData.Equal(*f.requestData) {
		return true, &paywall.TokenError{
			Reason: paywall.TokenErrorInvalid,
			Detail: "settlement token is bound to a different request",
			Err:    paywall.ErrRequestMismatch,
		}
	}

	settlement := f.claims.Settlement
	now := f.mgr.now()
	if now.After(settlement.ValidUntil) {
		return true, paywall.NewTokenError(paywall.TokenErrorExpired,
			"settlement expired at %s", settlement.ValidUntil.Format(time.RFC3339))
	}
	if settlement.ValidFrom != nil && now.Before(*settlement.ValidFrom) {
		return true, paywall.NewTokenError(paywall.TokenErrorNotYetValid,
			"settlement not valid before %s", settlement.ValidFrom.Format(time.RFC3339))
	}
	if settlement.PayPerRequest {
		// The executed flag lives in the payment handler, not the token.
		if _, err := f.mgr.payments.CheckSettlement(ctx, settlement.PreImageHash, false); err != nil {
			return true, err
		}
	}

	f.settlement = settlement
	f.preImageHash = settlement.PreImageHash
	return false, nil
}

func (f *LocalFlow) RequestPayment(ctx context.Context) (*InvoiceResult, error) {
	if f.declaration == nil {
		return nil, paywall.ErrMissingDeclaration
	}
	generator, err := f.mgr.generators.Generator(f.declaration)
	if err != nil {
		return nil, err
	}
	orderRequest, err := generator.GenerateOrderRequest(f.declaration, f.request)
	if err != nil {
		return nil, err
	}
	preImage, err := token.GenPreImageData()
	if err != nil {
		return nil, &paywall.InternalError{Op: "flow.GenPreImageData", Err: err}
	}

	order, err := f.mgr.payments.CreateOrder(ctx, preImage.PreImageHash, orderRequest)
	if err != nil {
		return nil, err
	}
	converted, err := f.mgr.currency.Convert(ctx, order.OrderAmount)
	if err != nil {
		return nil, err
	}
	invoice, err := f.mgr.lightning.GenerateInvoice(ctx, &paywall.ConvertedOrder{
		Order:           *order,
		ConvertedAmount: converted,
	})
	if err != nil {
		return nil, &paywall.InternalError{Op: "flow.GenerateInvoice", Err: err}
	}
	if err := f.mgr.payments.RegisterInvoice(ctx, invoice); err != nil {
		return nil, err
	}

	expire := invoice.ExpireDate
	if expire.IsZero() {
		expire = f.mgr.now().Add(f.mgr.invoiceTokenValidity())
	}
	claims := &token.Claims{
		Invoice:      paywall.NewMinimalInvoice(invoice),
		RequestData:  f.requestData,
		OrderRequest: orderRequest,
	}
	raw, err := f.mgr.tokens.GenerateToken(ctx, token.ContextInvoice, expire, f.mgr.tokenNotBefore(), "", claims)
	if err != nil {
		return nil, err
	}

	f.preImageHash = preImage.PreImageHash
	f.claims = claims
	f.mgr.log.Info("payment requested",
		"preImageHash", paywall.PreImageHashString(preImage.PreImageHash),
		"articleId", orderRequest.ArticleID,
		"payPerRequest", orderRequest.PayPerRequest)
	return &InvoiceResult{Invoice: invoice, Token: raw, TokenExpire: expire}, nil
}

func (f *LocalFlow) IsSettled(ctx context.Context) (bool, error) {
	hash := f.PreImageHash()
	if hash == nil {
		return false, &paywall.TokenError{
			Reason: paywall.TokenErrorNotFound,
			Detail: "flow is not bound to a payment",
			Err:    paywall.ErrTokenAbsent,
		}
	}
	settlement, err := f.mgr.payments.CheckSettlement(ctx, hash, true)
	if err != nil {
		return false, err
	}
	f.settlement = settlement
	return settlement != nil, nil
}

func (f *LocalFlow) GetSettlement(ctx context.Context) (*SettlementResult, error) {
	if f.settlement == nil {
		settled, err := f.IsSettled(ctx)
		if err != nil {
			return nil, err
		}
		if !settled {
			return nil, paywall.ErrNotSettled
		}
	}

	// The settlement claim is minimized and bound to the fingerprint of the
	// originally paid request, carried over from the invoice token.
	claimSettlement := *f.settlement
	claimSettlement.MinimizeData()
	var requestData *paywall.RequestData
	if f.claims != nil {
		requestData = f.claims.RequestData
	}
	claims := &token.Claims{Settlement: &claimSettlement, RequestData: requestData}

	expire := f.settlement.ValidUntil
	if expire.IsZero() {
		expire = f.mgr.now().Add(f.mgr.settlementTokenValidity())
	}
	raw, err := f.mgr.tokens.GenerateToken(ctx, token.ContextSettlement, expire, f.mgr.tokenNotBefore(), "", claims)
	if err != nil {
		return nil, err
	}
	return &SettlementResult{Settlement: f.settlement, Token: raw, TokenExpire: expire}, nil
}

// CheckSettledInvoice is only meaningful when settlement happens on a remote
// node. The local flow settles through its own lightning listener instead.
func (f *LocalFlow) CheckSettledInvoice(context.Context) (*SettlementResult, error) {
	return nil, &paywall.InternalError{Op: "flow.CheckSettledInvoice", Err: paywall.ErrUnsupportedInFlow}
}

func (f *LocalFlow) MarkAsExecuted(ctx context.Context) error {
	hash := f.PreImageHash()
	if hash == nil {
		return &paywall.TokenError{
			Reason: paywall.TokenErrorNotFound,
			Detail: "flow is not bound to a payment",
			Err:    paywall.ErrTokenAbsent,
		}
	}
	return f.mgr.payments.MarkAsExecuted(ctx, hash)
}

func (f *LocalFlow) IsPayPerRequest() bool {
	switch {
	case f.settlement != nil:
		return f.settlement.PayPerRequest
	case f.claims != nil && f.claims.Settlement != nil:
		return f.claims.Settlement.PayPerRequest
	case f.claims != nil && f.claims.OrderRequest != nil:
		return f.claims.OrderRequest.PayPerRequest
	case f.declaration != nil:
		return f.declaration.PayPerRequest
	default:
		return false
	}
}

// CurrentSettlement returns the settlement the flow is bound to, nil before
// a settled state was reached.
func (f *LocalFlow) CurrentSettlement() *paywall.Settlement {
	return f.settlement
}

func (f *LocalFlow) PreImageHash() []byte {
	if f.preImageHash != nil {
		return f.preImageHash
	}
	if f.claims == nil {
		return nil
	}
	switch {
	case f.claims.Settlement != nil:
		return f.claims.Settlement.PreImageHash
	case f.claims.Invoice != nil:
		return f.claims.Invoice.PreImageHash
	case f.claims.Order != nil:
		return f.claims.Order.PreImageHash
	}
	return nil
}
