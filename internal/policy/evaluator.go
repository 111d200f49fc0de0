// Package policy evaluates a policy's condition set against a client's
// current connection context. Evaluation is pure: no I/O, no clock access
// beyond the instant passed in.
package policy

import (
	"fmt"
	"net/netip"
	"slices"
	"time"

	"github.com/firezone/firezone-sub013/internal/model"
)

// ClientContext is the snapshot of a client's state at evaluation time.
type ClientContext struct {
	RemoteIP   netip.Addr
	Region     string
	Verified   bool
	ProviderID string
}

// Conforms checks every condition in the set against the context at the
// given instant. All conditions must hold. The returned expiration is the
// earliest instant at which any conformant condition must be re-checked;
// it is nil when no condition is time-bounded.
func Conforms(conditions []model.Condition, ctx ClientContext, now time.Time) (bool, *time.Time, error) {
	var expiresAt *time.Time

	for _, cond := range conditions {
		ok, condExpiry, err := conforms(cond, ctx, now)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			return false, nil, nil
		}
		if condExpiry != nil && (expiresAt == nil || condExpiry.Before(*expiresAt)) {
			expiresAt = condExpiry
		}
	}
	return true, expiresAt, nil
}

func conforms(cond model.Condition, ctx ClientContext, now time.Time) (bool, *time.Time, error) {
	switch cond.Property {
	case model.PropertyRemoteIPRegion:
		return membership(cond, ctx.Region)

	case model.PropertyProviderID:
		return membership(cond, ctx.ProviderID)

	case model.PropertyRemoteIP:
		return cidrMembership(cond, ctx.RemoteIP)

	case model.PropertyClientVerified:
		if cond.Operator != model.OperatorIs {
			return false, nil, operatorError(cond)
		}
		want := len(cond.Values) > 0 && cond.Values[0] == "true"
		return ctx.Verified == want, nil, nil

	case model.PropertyCurrentUTCDatetime:
		if cond.Operator != model.OperatorIsInDayOfWeekRanges {
			return false, nil, operatorError(cond)
		}
		var ranges []DayTimeRange
		for _, v := range cond.Values {
			parsed, err := ParseDayTimeRanges(v)
			if err != nil {
				return false, nil, err
			}
			ranges = append(ranges, parsed...)
		}
		end, ok := FindDayOfWeekTimeRange(ranges, now)
		if !ok {
			return false, nil, nil
		}
		return true, &end, nil

	default:
		return false, nil, fmt.Errorf("unknown condition property %q", cond.Property)
	}
}

func membership(cond model.Condition, value string) (bool, *time.Time, error) {
	contained := slices.Contains(cond.Values, value)
	switch cond.Operator {
	case model.OperatorIsIn:
		return contained, nil, nil
	case model.OperatorIsNotIn:
		return !contained, nil, nil
	default:
		return false, nil, operatorError(cond)
	}
}

func cidrMembership(cond model.Condition, ip netip.Addr) (bool, *time.Time, error) {
	if !ip.IsValid() {
		return false, nil, nil
	}
	var contained bool
	for _, v := range cond.Values {
		prefix, err := parseIPOrCIDR(v)
		if err != nil {
			return false, nil, fmt.Errorf("invalid CIDR %q: %w", v, err)
		}
		if prefix.Contains(ip.Unmap()) {
			contained = true
			break
		}
	}
	switch cond.Operator {
	case model.OperatorIsInCIDR:
		return contained, nil, nil
	case model.OperatorIsNotInCIDR:
		return !contained, nil, nil
	default:
		return false, nil, operatorError(cond)
	}
}

// parseIPOrCIDR accepts either a bare address or a prefix; a bare address
// becomes a single-address prefix.
func parseIPOrCIDR(v string) (netip.Prefix, error) {
	if prefix, err := netip.ParsePrefix(v); err == nil {
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(v)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func operatorError(cond model.Condition) error {
	return fmt.Errorf("operator %q is not valid for property %q", cond.Operator, cond.Property)
}
