package chain

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseChainNumber(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"0", "0"},
		{"164,000,000", "164000000"},
		{"  1,000,000,000,000,000,000 ", "1000000000000000000"},
		{"42", "42"},
	}
	for _, tc := range cases {
		got, err := parseChainNumber(tc.raw)
		if err != nil {
			t.Fatalf("parseChainNumber(%q): %v", tc.raw, err)
		}
		want, _ := new(big.Int).SetString(tc.want, 10)
		if got.Cmp(want) != 0 {
			t.Errorf("parseChainNumber(%q) = %s, want %s", tc.raw, got, want)
		}
	}
}

func TestParseChainNumber_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "12.5"} {
		if _, err := parseChainNumber(raw); !errors.Is(err, ErrDecode) {
			t.Errorf("parseChainNumber(%q): expected ErrDecode, got %v", raw, err)
		}
	}
}

func TestParseAuditStatus(t *testing.T) {
	for status, name := range auditStatusNames {
		got, err := ParseAuditStatus(name)
		if err != nil {
			t.Fatalf("ParseAuditStatus(%q): %v", name, err)
		}
		if got != status {
			t.Errorf("ParseAuditStatus(%q) = %v, want %v", name, got, status)
		}
	}

	if _, err := ParseAuditStatus("AuditVanished"); !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode for unknown status, got %v", err)
	}
}
