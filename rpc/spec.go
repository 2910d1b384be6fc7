package rpc

import (
	"fmt"
	"strings"
)

// Validator checks one request field. present reports whether the field
// appeared in the request at all.
type Validator interface {
	Validate(field string, value any, present bool) *Status
}

// FieldSpec binds a field name to its validators, in evaluation order.
type FieldSpec struct {
	Field      string
	Validators []Validator
}

// Spec is the declarative validation table of one command.
type Spec []FieldSpec

// Field is shorthand for building a FieldSpec.
func Field(name string, validators ...Validator) FieldSpec {
	return FieldSpec{Field: name, Validators: validators}
}

// Validate runs every field's validators against the request parameters.
// The first failure wins.
func (s Spec) Validate(params map[string]any) *Status {
	for _, field := range s {
		value, present := params[field.Field]
		for _, v := range field.Validators {
			if status := v.Validate(field.Field, value, present); status != nil {
				return status
			}
		}
	}
	return nil
}

// Required fails when the field is absent.
type Required struct{}

func (Required) Validate(field string, _ any, present bool) *Status {
	if !present {
		return InvalidParams(fmt.Sprintf("Required field '%s' missing", field))
	}
	return nil
}

// IsString requires a string value when the field is present.
type IsString struct{}

func (IsString) Validate(field string, value any, present bool) *Status {
	if !present {
		return nil
	}
	if _, ok := value.(string); !ok {
		return InvalidParams(fmt.Sprintf("%sNotString", field))
	}
	return nil
}

// IsBool requires a boolean value when the field is present.
type IsBool struct{}

func (IsBool) Validate(field string, value any, present bool) *Status {
	if !present {
		return nil
	}
	if _, ok := value.(bool); !ok {
		return InvalidParams(fmt.Sprintf("%sNotBool", field))
	}
	return nil
}

// IsArray requires an array value when the field is present.
type IsArray struct{}

func (IsArray) Validate(field string, value any, present bool) *Status {
	if !present {
		return nil
	}
	if _, ok := value.([]any); !ok {
		return InvalidParams(fmt.Sprintf("%sNotArray", field))
	}
	return nil
}

// AccountID validates a classic XRPL account address.
type AccountID struct{}

const base58Alphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

func (AccountID) Validate(field string, value any, present bool) *Status {
	if !present {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return MalformedAccount(field)
	}
	if !ValidAccountID(s) {
		return MalformedAccount(field)
	}
	return nil
}

// ValidAccountID checks the shape of a classic address: base58 with the
// 'r' prefix and plausible length. Checksum verification belongs to the
// codec.
func ValidAccountID(s string) bool {
	if len(s) < 25 || len(s) > 35 || !strings.HasPrefix(s, "r") {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(base58Alphabet, c) {
			return false
		}
	}
	return true
}

// Uint256Hex validates a 64-character hex string (ledger or transaction
// hash).
type Uint256Hex struct{}

func (Uint256Hex) Validate(field string, value any, present bool) *Status {
	if !present {
		return nil
	}
	s, ok := value.(string)
	if !ok || len(s) != 64 {
		return InvalidParams(fmt.Sprintf("%sMalformed", field))
	}
	for _, c := range s {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		if !isHex {
			return InvalidParams(fmt.Sprintf("%sMalformed", field))
		}
	}
	return nil
}

// LedgerIndex validates a ledger selector: a number, or the string
// "validated".
type LedgerIndex struct{}

func (LedgerIndex) Validate(field string, value any, present bool) *Status {
	if !present {
		return nil
	}
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return InvalidParams("ledgerIndexMalformed")
		}
		return nil
	case string:
		if v == "validated" {
			return nil
		}
		return InvalidParams("ledgerIndexMalformed")
	default:
		return InvalidParams("ledgerIndexMalformed")
	}
}

// Deprecated marks a field that is accepted and ignored.
type Deprecated struct{}

func (Deprecated) Validate(string, any, bool) *Status { return nil }

// NotSupported rejects a field with a fixed status when present; used for
// admin-only fields this service does not expose.
type NotSupported struct {
	Status *Status
}

func (n NotSupported) Validate(_ string, _ any, present bool) *Status {
	if !present {
		return nil
	}
	return n.Status
}
