package policy

import (
	"fmt"
	"time"

	"github.com/firezone/firezone-sub013/internal/model"
)

var validOperators = map[string][]string{
	model.PropertyRemoteIP:           {model.OperatorIsInCIDR, model.OperatorIsNotInCIDR},
	model.PropertyRemoteIPRegion:     {model.OperatorIsIn, model.OperatorIsNotIn},
	model.PropertyClientVerified:     {model.OperatorIs},
	model.PropertyCurrentUTCDatetime: {model.OperatorIsInDayOfWeekRanges},
	model.PropertyProviderID:         {model.OperatorIsIn, model.OperatorIsNotIn},
}

// ValidateConditions checks a stored condition set before authorize-time
// evaluation has to deal with it. Errors are descriptive parse failures
// suitable for surfacing to the operator.
func ValidateConditions(conditions []model.Condition) error {
	for _, cond := range conditions {
		operators, ok := validOperators[cond.Property]
		if !ok {
			return fmt.Errorf("unknown condition property %q", cond.Property)
		}
		supported := false
		for _, op := range operators {
			if op == cond.Operator {
				supported = true
				break
			}
		}
		if !supported {
			return operatorError(cond)
		}
		if err := validateValues(cond); err != nil {
			return err
		}
	}
	return nil
}

func validateValues(cond model.Condition) error {
	switch cond.Property {
	case model.PropertyRemoteIP:
		for _, v := range cond.Values {
			if _, err := parseIPOrCIDR(v); err != nil {
				return fmt.Errorf("invalid CIDR %q: %w", v, err)
			}
		}
	case model.PropertyClientVerified:
		for _, v := range cond.Values {
			if v != "true" && v != "false" {
				return fmt.Errorf("invalid client_verified value %q: must be true or false", v)
			}
		}
	case model.PropertyCurrentUTCDatetime:
		for _, v := range cond.Values {
			if _, err := ParseDayTimeRanges(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// EarliestExpiration is a convenience for callers combining a subject's
// session expiry with a conformance expiration; nil means unbounded.
func EarliestExpiration(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Before(*b):
		return a
	default:
		return b
	}
}
