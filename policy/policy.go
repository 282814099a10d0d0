// Package policy computes request fingerprints. A fingerprint binds a token
// to the significant content of the HTTP request it was issued for, with the
// granularity chosen per resource: method and URL only, plus parameters, or
// the full body. Resource owners can register custom policies for anything
// else.
package policy

import (
	"crypto/sha256"
	"time"

	paywall "github.com/lnpaywall/go-paywall"
)

// RequestPolicy digests the significant parts of a request into RequestData.
// Implementations must be deterministic: the same request content always
// produces the same digest, regardless of header order or parameter order in
// the raw request.
type RequestPolicy interface {
	SignificantRequestData(r *paywall.CachableRequest) (paywall.RequestData, error)
}

// digest hashes the given fields into RequestData stamped with the current
// time. Fields are length-prefix separated so adjacent values cannot collide
// by concatenation.
func digest(fields ...[]byte) paywall.RequestData {
	h := sha256.New()
	var lenBuf [8]byte
	for _, f := range fields {
		n := len(f)
		for i := 7; i >= 0; i-- {
			lenBuf[i] = byte(n)
			n >>= 8
		}
		h.Write(lenBuf[:])
		h.Write(f)
	}
	return paywall.RequestData{
		SignificantData: h.Sum(nil),
		RequestDate:     time.Now(),
	}
}
