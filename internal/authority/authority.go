package authority

import (
	"log/slog"

	contract "vcregistry/contracts/authority"
	id "vcregistry/pkg/domain"
)

// Authority answers requests addressed to Address using Policy.
type Authority struct {
	Address id.Address
	Policy  *Policy
	logger  *slog.Logger
}

func New(address id.Address, policy *Policy, logger *slog.Logger) *Authority {
	if policy == nil {
		policy = NewPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authority{Address: address, Policy: policy, logger: logger}
}

// Decide grants the request only when it is addressed to this Authority
// and the caller controls the DID.
func (a *Authority) Decide(authority id.Address, did id.DID, caller id.Address) bool {
	if authority != a.Address {
		a.logger.Warn("authorization request addressed to another authority",
			"authority", authority.String(),
			"did", did.String(),
		)
		return false
	}
	return a.Policy.Allows(did, caller)
}

// Answer decides a wire request. Requests with unparseable addresses are denied.
func (a *Authority) Answer(req contract.Request) contract.Verdict {
	v := contract.Verdict{RequestID: req.RequestID}
	authority, err := id.ParseAddress(req.Authority)
	if err != nil {
		return v
	}
	caller, err := id.ParseAddress(req.Caller)
	if err != nil {
		return v
	}
	v.Success = a.Decide(authority, id.DID(req.DID), caller)
	return v
}
