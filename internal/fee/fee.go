package fee

import "github.com/holiman/uint256"

// Policy charges Numerator/Denominator of every transfer between two
// non-exempt accounts. Division truncates.
type Policy struct {
	Numerator   uint64
	Denominator uint64
}

// Default is the 7% transfer fee.
func Default() Policy {
	return Policy{Numerator: 7, Denominator: 100}
}

// For returns the fee owed on amount. Either party being exempt waives it.
func (p Policy) For(amount uint256.Int, senderExempt, recipientExempt bool) uint256.Int {
	if senderExempt || recipientExempt || p.Numerator == 0 || p.Denominator == 0 {
		return uint256.Int{}
	}
	var fee uint256.Int
	// 512-bit intermediate product
	fee.MulDivOverflow(&amount, uint256.NewInt(p.Numerator), uint256.NewInt(p.Denominator))
	return fee
}
