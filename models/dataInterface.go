package models

import "github.com/shopspring/decimal"

// CareDocument is the uniform view bundle aggregation takes over the
// two billing document kinds.
type CareDocument interface {
	DocumentId() int
	DocumentKind() DocumentKind
	TotalAmount() decimal.Decimal
	BundleRef() *int
}
