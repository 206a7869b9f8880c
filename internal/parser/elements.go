package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/atomicbase/squril/internal/apierrors"
)

// ElementKind discriminates the variants a single dot-separated path
// component can take: one shared struct, an exhaustive kind tag, and
// per-variant fields left zero when not meaningful.
type ElementKind int

const (
	// Key is plain object-key access: "name".
	Key ElementKind = iota
	// ArraySpecific indexes a single array element: "name[N]".
	ArraySpecific
	// ArraySpecificSingle pulls one sub-key out of the Nth element: "name[N|k]".
	ArraySpecificSingle
	// ArraySpecificMultiple pulls a tuple of sub-keys out of the Nth element: "name[N|k1,k2]".
	ArraySpecificMultiple
	// ArrayBroadcastSingle collects one sub-key across every array element: "name[*|k]".
	ArrayBroadcastSingle
	// ArrayBroadcastMultiple collects a tuple of sub-keys across every array element: "name[*|k1,k2]".
	ArrayBroadcastMultiple
)

// Element is one dot-separated path component with its discriminated
// payload. Fields not meaningful for a given Kind are left zero, except
// Index, which the broadcast variants set to -1.
type Element struct {
	Kind    ElementKind
	Raw     string   // original source text of this element
	Key     string   // bare key name, all variants
	Index   int      // array index for ArraySpecific/ArraySpecificSingle/ArraySpecificMultiple
	SubKeys []string // sub-selected keys for *Single (len 1) and *Multiple (len >=2) variants
}

// IsBroadcast reports whether the element projects across an entire array
// rather than a single indexed slot.
func (e Element) IsBroadcast() bool {
	return e.Kind == ArrayBroadcastSingle || e.Kind == ArrayBroadcastMultiple
}

// HasSubKeys reports whether the element carries a sub-key projection list.
func (e Element) HasSubKeys() bool {
	return len(e.SubKeys) > 0
}

var (
	reKey                   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reArraySpecific         = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(\d+)\]$`)
	reArraySpecificSingle   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(\d+)\|([A-Za-z_][A-Za-z0-9_]*)\]$`)
	reArraySpecificMultiple = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(\d+)\|([A-Za-z_][A-Za-z0-9_]*(?:,[A-Za-z_][A-Za-z0-9_]*)+)\]$`)
	reArrayBroadcastSingle  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[\*\|([A-Za-z_][A-Za-z0-9_]*)\]$`)
	reArrayBroadcastMulti   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[\*\|([A-Za-z_][A-Za-z0-9_]*(?:,[A-Za-z_][A-Za-z0-9_]*)+)\]$`)
)

// parseElement disambiguates a single path component by regex: exactly one
// variant must match, anything else is a parse error.
func parseElement(raw string) (Element, error) {
	var matched []Element

	if reKey.MatchString(raw) {
		matched = append(matched, Element{Kind: Key, Raw: raw, Key: raw})
	}
	if m := reArraySpecific.FindStringSubmatch(raw); m != nil {
		idx, _ := strconv.Atoi(m[2])
		matched = append(matched, Element{Kind: ArraySpecific, Raw: raw, Key: m[1], Index: idx})
	}
	if m := reArraySpecificSingle.FindStringSubmatch(raw); m != nil {
		idx, _ := strconv.Atoi(m[2])
		matched = append(matched, Element{Kind: ArraySpecificSingle, Raw: raw, Key: m[1], Index: idx, SubKeys: []string{m[3]}})
	}
	if m := reArraySpecificMultiple.FindStringSubmatch(raw); m != nil {
		idx, _ := strconv.Atoi(m[2])
		matched = append(matched, Element{Kind: ArraySpecificMultiple, Raw: raw, Key: m[1], Index: idx, SubKeys: strings.Split(m[3], ",")})
	}
	if m := reArrayBroadcastSingle.FindStringSubmatch(raw); m != nil {
		matched = append(matched, Element{Kind: ArrayBroadcastSingle, Raw: raw, Key: m[1], Index: -1, SubKeys: []string{m[2]}})
	}
	if m := reArrayBroadcastMulti.FindStringSubmatch(raw); m != nil {
		matched = append(matched, Element{Kind: ArrayBroadcastMultiple, Raw: raw, Key: m[1], Index: -1, SubKeys: strings.Split(m[2], ",")})
	}

	switch len(matched) {
	case 0:
		return Element{}, apierrors.NewParseError("element %q does not match any select variant", raw)
	case 1:
		return matched[0], nil
	default:
		return Element{}, apierrors.NewParseError("element %q is ambiguous between multiple select variants", raw)
	}
}

// parsePath splits a dot-joined path into its discriminated elements.
func parsePath(raw string) ([]Element, error) {
	if raw == "" {
		return nil, apierrors.NewParseError("empty path")
	}
	parts := strings.Split(raw, ".")
	elems := make([]Element, 0, len(parts))
	for _, p := range parts {
		e, err := parseElement(p)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return elems, nil
}
