package paymenthandler

import (
	"context"

	paywall "github.com/lnpaywall/go-paywall"
)

// ArticlePricer prices an order request. The returned amount is the total for
// all requested units.
type ArticlePricer interface {
	PriceOrder(ctx context.Context, request *paywall.OrderRequest) (paywall.Amount, string, error)
}

// Article is one priced entry in a CatalogPricer.
type Article struct {
	UnitPrice   paywall.Amount
	Description string
}

// CatalogPricer prices orders from a static article catalog, multiplying the
// unit price by the requested unit count.
type CatalogPricer struct {
	Articles map[string]Article
}

// NewCatalogPricer builds a pricer over the given catalog.
func NewCatalogPricer(articles map[string]Article) *CatalogPricer {
	return &CatalogPricer{Articles: articles}
}

func (p *CatalogPricer) PriceOrder(_ context.Context, request *paywall.OrderRequest) (paywall.Amount, string, error) {
	article, ok := p.Articles[request.ArticleID]
	if !ok {
		return nil, "", paywall.ErrArticleNotFound
	}
	units := int64(request.Units)
	if units <= 0 {
		units = 1
	}
	switch price := article.UnitPrice.(type) {
	case paywall.CryptoAmount:
		price.Value *= units
		return price, article.Description, nil
	case paywall.FiatAmount:
		price.Value *= float64(units)
		return price, article.Description, nil
	default:
		return nil, "", &paywall.InvalidCurrencyError{CurrencyCode: article.UnitPrice.Currency()}
	}
}
