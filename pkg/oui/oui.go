/*
 * Copyright 2025 Subterra Systems Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package oui maps hardware address vendor prefixes to device classes.
//
// The index is built once at startup from the builtin tables plus any
// operator-supplied entries, and answers longest-prefix-match lookups over
// normalized addresses. Prefixes are hex strings without separators; the
// common case is the 24-bit organizationally-assigned prefix (6 hex chars),
// but shorter and longer prefixes are supported.
package oui

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/subterra/tunnelsense/pkg/models"
)

var (
	errInvalidAddress = errors.New("invalid hardware address")
	errInvalidPrefix  = errors.New("invalid vendor prefix")
)

// Entry associates a vendor prefix with a classification.
type Entry struct {
	Prefix string                `json:"prefix"`
	Vendor string                `json:"vendor"`
	Class  models.Classification `json:"class"`
}

// Index is a prefix-indexed vendor lookup table.
type Index struct {
	entries map[string]Entry
	lengths []int // distinct prefix lengths, longest first
}

// NewIndex builds an index from the builtin vendor tables plus extra entries.
// Extra entries override builtin ones on exact prefix collision.
func NewIndex(extra ...Entry) (*Index, error) {
	ix := &Index{entries: make(map[string]Entry)}

	for _, e := range builtinEntries() {
		ix.entries[e.Prefix] = e
	}

	for _, e := range extra {
		prefix, err := normalizePrefix(e.Prefix)
		if err != nil {
			return nil, err
		}

		e.Prefix = prefix
		ix.entries[prefix] = e
	}

	seen := make(map[int]struct{})

	for prefix := range ix.entries {
		if _, ok := seen[len(prefix)]; !ok {
			seen[len(prefix)] = struct{}{}
			ix.lengths = append(ix.lengths, len(prefix))
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(ix.lengths)))

	return ix, nil
}

// Lookup returns the longest-prefix table entry for the address, if any.
func (ix *Index) Lookup(address string) (Entry, bool) {
	normalized, err := Normalize(address)
	if err != nil {
		return Entry{}, false
	}

	for _, l := range ix.lengths {
		if l > len(normalized) {
			continue
		}

		if e, ok := ix.entries[normalized[:l]]; ok {
			return e, true
		}
	}

	return Entry{}, false
}

// Size returns the number of entries in the index.
func (ix *Index) Size() int {
	return len(ix.entries)
}

// Normalize converts a hardware address to uppercase hex without separators.
func Normalize(address string) (string, error) {
	cleaned := strings.ToUpper(address)
	cleaned = strings.NewReplacer(":", "", "-", "", ".", "").Replace(cleaned)

	if len(cleaned) != 12 {
		return "", fmt.Errorf("%w: %q", errInvalidAddress, address)
	}

	for _, c := range cleaned {
		if !isHex(c) {
			return "", fmt.Errorf("%w: %q", errInvalidAddress, address)
		}
	}

	return cleaned, nil
}

// IsLocallyAdministered reports whether the address has the
// locally-administered bit set in its first octet. Modern phones and tablets
// set this bit when randomizing their address for privacy.
func IsLocallyAdministered(address string) bool {
	normalized, err := Normalize(address)
	if err != nil {
		return false
	}

	firstOctet := hexVal(rune(normalized[0]))<<4 | hexVal(rune(normalized[1]))

	return firstOctet&0x02 != 0
}

func normalizePrefix(prefix string) (string, error) {
	cleaned := strings.ToUpper(prefix)
	cleaned = strings.NewReplacer(":", "", "-", "", ".", "").Replace(cleaned)

	if len(cleaned) == 0 || len(cleaned) > 12 {
		return "", fmt.Errorf("%w: %q", errInvalidPrefix, prefix)
	}

	for _, c := range cleaned {
		if !isHex(c) {
			return "", fmt.Errorf("%w: %q", errInvalidPrefix, prefix)
		}
	}

	return cleaned, nil
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

func hexVal(c rune) int {
	if c >= '0' && c <= '9' {
		return int(c - '0')
	}

	return int(c-'A') + 10
}
