// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package market

import (
	"strings"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

// Kind identifies a class of upstream market data. Circuit breakers, cache
// TTLs, and source orderings are all scoped per kind, not per source.
type Kind string

const (
	KindMetals Kind = "metals"
	KindRates  Kind = "rates"
	KindEquity Kind = "equity"
)

// Valid reports whether k is a recognized market data kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMetals, KindRates, KindEquity:
		return true
	default:
		return false
	}
}

func (k Kind) String() string { return string(k) }

// ParseKind parses a case-insensitive string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	if !k.Valid() {
		return "", zrerr.Errorf(zrerr.CodeKindInvalid, "invalid market data kind: %q", s)
	}
	return k, nil
}

// Kinds returns all recognized kinds in stable order.
func Kinds() []Kind {
	return []Kind{KindMetals, KindRates, KindEquity}
}
