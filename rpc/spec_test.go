package rpc

import "testing"

func TestSpecValidate(t *testing.T) {
	spec := Spec{
		Field("account", Required{}, AccountID{}),
		Field("ledger_hash", Uint256Hex{}),
		Field("ledger_index", LedgerIndex{}),
		Field("account_index", Deprecated{}),
		Field("strict", Deprecated{}),
		Field("vetoed", NotSupported{Status: NoPermission("The admin portion of this API is not available.")}),
	}

	tests := []struct {
		name     string
		params   map[string]any
		wantCode string
	}{
		{
			name:     "missing required field",
			params:   map[string]any{},
			wantCode: "invalidParams",
		},
		{
			name:   "valid account",
			params: map[string]any{"account": "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn"},
		},
		{
			name:     "malformed account",
			params:   map[string]any{"account": "not-an-account"},
			wantCode: "actMalformed",
		},
		{
			name:     "account wrong type",
			params:   map[string]any{"account": float64(7)},
			wantCode: "actMalformed",
		},
		{
			name: "valid ledger hash",
			params: map[string]any{
				"account":     "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn",
				"ledger_hash": "4BC50C9B0D8515D3EAAE1E74B29A95804346C491EE1A95BF25E4AAB854A6A652",
			},
		},
		{
			name: "short ledger hash",
			params: map[string]any{
				"account":     "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn",
				"ledger_hash": "4BC5",
			},
			wantCode: "invalidParams",
		},
		{
			name: "numeric ledger index",
			params: map[string]any{
				"account":      "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn",
				"ledger_index": float64(30),
			},
		},
		{
			name: "validated ledger index",
			params: map[string]any{
				"account":      "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn",
				"ledger_index": "validated",
			},
		},
		{
			name: "bad ledger index string",
			params: map[string]any{
				"account":      "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn",
				"ledger_index": "closed",
			},
			wantCode: "invalidParams",
		},
		{
			name: "deprecated fields accepted and ignored",
			params: map[string]any{
				"account":       "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn",
				"account_index": float64(1),
				"strict":        true,
			},
		},
		{
			name: "unsupported admin field rejected",
			params: map[string]any{
				"account": "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn",
				"vetoed":  "SomeAmendment",
			},
			wantCode: "noPermission",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := spec.Validate(tt.params)
			if tt.wantCode == "" {
				if status != nil {
					t.Fatalf("unexpected status: %v", status)
				}
				return
			}
			if status == nil {
				t.Fatalf("expected %s, got success", tt.wantCode)
			}
			if status.Code != tt.wantCode {
				t.Errorf("status code: got %s, want %s", status.Code, tt.wantCode)
			}
		})
	}
}

func TestTypeValidators(t *testing.T) {
	tests := []struct {
		name      string
		validator Validator
		value     any
		ok        bool
	}{
		{"string ok", IsString{}, "hello", true},
		{"string wrong type", IsString{}, float64(1), false},
		{"bool ok", IsBool{}, true, true},
		{"bool wrong type", IsBool{}, "true", false},
		{"array ok", IsArray{}, []any{"a"}, true},
		{"array wrong type", IsArray{}, "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := tt.validator.Validate("field", tt.value, true)
			if tt.ok && status != nil {
				t.Errorf("unexpected status: %v", status)
			}
			if !tt.ok && status == nil {
				t.Error("expected validation failure")
			}
		})
	}
}

func TestValidatorsSkipAbsentFields(t *testing.T) {
	validators := []Validator{IsString{}, IsBool{}, IsArray{}, AccountID{}, Uint256Hex{}, LedgerIndex{}}
	for _, v := range validators {
		if status := v.Validate("field", nil, false); status != nil {
			t.Errorf("%T flagged an absent field: %v", v, status)
		}
	}
}
