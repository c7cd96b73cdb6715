// Package wire implements the compact, delimiter-separated wire format
// spec §6 requires for every entity that crosses the network: a stable
// round-trip to_string/from_string pair, deterministic for identical
// inputs (the batch digest is hashed over the transaction half of this
// encoding).
//
// Two kinds of joins are used, matched to what they carry:
//
//   - Leaf joins (field ",", record ";", proof entry "/" then "|")
//     concatenate parts that never contain the delimiter they are joined
//     with — ids, hex hashes, decimal counts, and, inside a proof entry,
//     encoded transactions.
//   - Composite joins (JoinGroup, and JoinBlock, which uses the same
//     encoding) concatenate already-encoded sub-entities, which may
//     recursively contain any delimiter character (a proof string
//     embedded in a Tx-with-proof pair, a batch embedded in an AC-block).
//     Those are length-prefixed ("<count>$" once, then "<len>%<item>" per
//     item) rather than character-delimited, so a
//     delimiter byte occurring inside nested content can never be
//     misread as a boundary — the fix for spec §9 Open Question (c),
//     which called out exactly this fragility in the original receipt
//     encoding.
package wire

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	fieldSep  = ","
	recordSep = ";"
	entrySep  = "/"
	txSetSep  = "|"
)

// ErrMalformed is returned by any Decode helper when the input does not
// match the expected shape.
var ErrMalformed = fmt.Errorf("wire: malformed payload")

// JoinFields joins the scalar fields of a single leaf record.
func JoinFields(fields ...string) string {
	return strings.Join(fields, fieldSep)
}

// SplitFields splits a single leaf record back into its fields.
func SplitFields(record string) []string {
	return strings.Split(record, fieldSep)
}

// JoinRecords joins a sequence of leaf-encoded records.
func JoinRecords(records ...string) string {
	return strings.Join(records, recordSep)
}

// SplitRecords splits a sequence back into its records.
func SplitRecords(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, recordSep)
}

// =============================================================================
// Composite (length-prefixed) joins. Safe for any number of
// already-encoded, arbitrary-content parts — the "block" and "group"
// delimiters of spec §6.

// JoinGroup length-prefix encodes items so Decode can recover exactly
// len(items) elements regardless of what delimiter characters the
// items themselves contain. Format: "<count>$<len1>%<item1><len2>%<item2>...".
func JoinGroup(items []string) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(items)))
	b.WriteByte('$')
	for _, item := range items {
		b.WriteString(strconv.Itoa(len(item)))
		b.WriteByte('%')
		b.WriteString(item)
	}
	return b.String()
}

// SplitGroup decodes a group produced by JoinGroup.
func SplitGroup(s string) ([]string, error) {
	countStr, rest, ok := strings.Cut(s, "$")
	if !ok {
		return nil, fmt.Errorf("%w: group %q missing count prefix", ErrMalformed, s)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return nil, fmt.Errorf("%w: group count: %s", ErrMalformed, err)
	}

	items := make([]string, 0, count)
	for i := 0; i < count; i++ {
		lenStr, tail, ok := strings.Cut(rest, "%")
		if !ok {
			return nil, fmt.Errorf("%w: group %q truncated at item %d", ErrMalformed, s, i)
		}

		n, err := strconv.Atoi(lenStr)
		if err != nil {
			return nil, fmt.Errorf("%w: group item length: %s", ErrMalformed, err)
		}
		if n > len(tail) {
			return nil, fmt.Errorf("%w: group %q item %d declares length %d past end of input", ErrMalformed, s, i, n)
		}

		items = append(items, tail[:n])
		rest = tail[n:]
	}

	if rest != "" {
		return nil, fmt.Errorf("%w: group %q has %d trailing bytes", ErrMalformed, s, len(rest))
	}

	if len(items) == 0 {
		return nil, nil
	}

	return items, nil
}

// JoinBlock is an alias for JoinGroup used where a single top-level
// entity composes a fixed, heterogeneous tuple of already-encoded parts
// (an AC-block's header plus its A_vec, say) rather than a homogeneous
// list — same length-prefixed safety, named for readability at the
// call site.
func JoinBlock(parts ...string) string {
	return JoinGroup(parts)
}

// SplitBlock decodes a fixed-arity block produced by JoinBlock, and
// checks it has exactly want parts.
func SplitBlock(s string, want int) ([]string, error) {
	parts, err := SplitGroup(s)
	if err != nil {
		return nil, err
	}
	if len(parts) != want {
		return nil, fmt.Errorf("%w: block %q has %d parts, want %d", ErrMalformed, s, len(parts), want)
	}
	return parts, nil
}

// =============================================================================
// Proof sub-records: "/" separates the txn_set from the height, "|"
// separates the individual encoded transactions (which contain "," but
// never "/" or "|") within the txn_set.

// JoinProofEntry encodes one proof (txn_set, ac_height) entry: the
// encoded transactions joined by "|", then "/", then the height.
func JoinProofEntry(txSet []string, height uint64) string {
	return strings.Join(txSet, txSetSep) + entrySep + strconv.FormatUint(height, 10)
}

// SplitProofEntry decodes one proof entry produced by JoinProofEntry.
func SplitProofEntry(entry string) (txSet []string, height uint64, err error) {
	txPart, heightPart, ok := strings.Cut(entry, entrySep)
	if !ok {
		return nil, 0, fmt.Errorf("%w: proof entry %q missing height", ErrMalformed, entry)
	}

	height, err = strconv.ParseUint(heightPart, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: proof entry height: %s", ErrMalformed, err)
	}

	if txPart == "" {
		return nil, height, fmt.Errorf("%w: proof entry has an empty txn_set", ErrMalformed)
	}

	return strings.Split(txPart, txSetSep), height, nil
}
