package parser

import (
	"strconv"
	"strings"

	"github.com/atomicbase/squril/internal/apierrors"
)

// AggFunc is an aggregate function a select term may be wrapped in.
type AggFunc string

const (
	AggNone  AggFunc = ""
	AggCount AggFunc = "count"
	AggAvg   AggFunc = "avg"
	AggSum   AggFunc = "sum"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
	AggMinTs AggFunc = "min_ts"
	AggMaxTs AggFunc = "max_ts"
)

var aggFuncs = map[string]AggFunc{
	"count": AggCount, "avg": AggAvg, "sum": AggSum,
	"min": AggMin, "max": AggMax, "min_ts": AggMinTs, "max_ts": AggMaxTs,
}

// SelectTerm is one comma-separated entry of a select= clause: an optional
// aggregate wrapper around a dotted element path. Star ("*") is represented
// as Star=true with an empty Path, meaning "whole document".
type SelectTerm struct {
	Agg  AggFunc
	Star bool
	Path []Element
}

func parseSelectTerm(raw string) (SelectTerm, error) {
	raw = strings.TrimSpace(raw)
	if raw == "*" {
		return SelectTerm{Star: true}, nil
	}
	if raw == "count(*)" || raw == "count(1)" {
		return SelectTerm{Agg: AggCount}, nil
	}
	if i := strings.IndexByte(raw, '('); i > 0 && strings.HasSuffix(raw, ")") {
		name := raw[:i]
		inner := raw[i+1 : len(raw)-1]
		agg, ok := aggFuncs[name]
		if !ok {
			return SelectTerm{}, apierrors.NewParseError("unknown aggregate function %q", name)
		}
		path, err := parsePath(inner)
		if err != nil {
			return SelectTerm{}, err
		}
		return SelectTerm{Agg: agg, Path: path}, nil
	}
	path, err := parsePath(raw)
	if err != nil {
		return SelectTerm{}, err
	}
	return SelectTerm{Path: path}, nil
}

// ValueKind discriminates the literal shape of a where-term's right-hand
// value.
type ValueKind int

const (
	ValueBareword ValueKind = iota
	ValueQuoted
	ValueNull
	ValueList
)

var whereOps = []string{"eq", "neq", "gt", "gte", "lt", "lte", "like", "ilike", "is", "in", "fts"}

// WhereTerm is one comma-separated entry of a where= clause.
type WhereTerm struct {
	OpenParens  int
	CloseParens int
	Combinator  string // "", "and", "or"
	Path        []Element
	Op          string
	Negated     bool
	ValueKind   ValueKind
	Value       string
	ValueList   []string
}

func parseWhereTerm(raw string) (WhereTerm, error) {
	t := WhereTerm{}

	for len(raw) > 0 && raw[0] == '(' {
		t.OpenParens++
		raw = raw[1:]
	}
	for len(raw) > 0 && raw[len(raw)-1] == ')' {
		t.CloseParens++
		raw = raw[:len(raw)-1]
	}

	switch {
	case strings.HasPrefix(raw, "and:"):
		t.Combinator = "and"
		raw = raw[len("and:"):]
	case strings.HasPrefix(raw, "or:"):
		t.Combinator = "or"
		raw = raw[len("or:"):]
	}

	eq := strings.IndexByte(raw, '=')
	if eq < 0 {
		return t, apierrors.NewParseError("where term %q is missing '='", raw)
	}
	pathRaw, rest := raw[:eq], raw[eq+1:]

	path, err := parsePath(pathRaw)
	if err != nil {
		return t, err
	}
	t.Path = path

	op, negated, value, err := parseOpValue(rest)
	if err != nil {
		return t, err
	}
	t.Op = op
	t.Negated = negated

	switch {
	case value == "null":
		t.ValueKind = ValueNull
	case op == "in" && strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]"):
		t.ValueKind = ValueList
		inner := value[1 : len(value)-1]
		for _, v := range splitTopLevel(inner, ',') {
			t.ValueList = append(t.ValueList, unquote(strings.TrimSpace(v)))
		}
	case isQuoted(value):
		t.ValueKind = ValueQuoted
		t.Value = unquote(value)
	default:
		t.ValueKind = ValueBareword
		t.Value = value
	}

	return t, nil
}

func parseOpValue(rest string) (op string, negated bool, value string, err error) {
	if strings.HasPrefix(rest, "not.") {
		sub := rest[len("not."):]
		for _, o := range whereOps {
			if strings.HasPrefix(sub, o+".") {
				return o, true, sub[len(o)+1:], nil
			}
		}
		return "", false, "", apierrors.NewParseError("unrecognized operator in %q", rest)
	}
	for _, o := range whereOps {
		if strings.HasPrefix(rest, o+".not.") {
			return o, true, rest[len(o)+len(".not."):], nil
		}
	}
	for _, o := range whereOps {
		if strings.HasPrefix(rest, o+".") {
			return o, false, rest[len(o)+1:], nil
		}
	}
	return "", false, "", apierrors.NewParseError("unrecognized operator in %q", rest)
}

// OrderTerm is the single order= entry: a path plus direction.
type OrderTerm struct {
	Path      []Element
	Direction string // "asc" or "desc"
}

func parseOrderTerm(raw string) (OrderTerm, error) {
	i := strings.LastIndexByte(raw, '.')
	if i < 0 {
		return OrderTerm{}, apierrors.NewParseError("order term %q is missing .asc/.desc", raw)
	}
	dir := raw[i+1:]
	if dir != "asc" && dir != "desc" {
		return OrderTerm{}, apierrors.NewParseError("order direction %q must be asc or desc", dir)
	}
	path, err := parsePath(raw[:i])
	if err != nil {
		return OrderTerm{}, err
	}
	return OrderTerm{Path: path, Direction: dir}, nil
}

// RangeTerm is the single range= entry: [Start, End).
type RangeTerm struct {
	Start int
	End   int
}

func parseRangeTerm(raw string) (RangeTerm, error) {
	i := strings.IndexByte(raw, '.')
	if i < 0 {
		return RangeTerm{}, apierrors.NewParseError("range %q must be <start>.<end>", raw)
	}
	start, err := strconv.Atoi(raw[:i])
	if err != nil {
		return RangeTerm{}, apierrors.NewParseError("range start %q is not an integer", raw[:i])
	}
	end, err := strconv.Atoi(raw[i+1:])
	if err != nil {
		return RangeTerm{}, apierrors.NewParseError("range end %q is not an integer", raw[i+1:])
	}
	if end < start {
		return RangeTerm{}, apierrors.NewParseError("range end %d precedes start %d", end, start)
	}
	return RangeTerm{Start: start, End: end}, nil
}

// SetKind discriminates the three forms a set= term can take.
type SetKind int

const (
	SetChange     SetKind = iota // plain key, add or change
	SetRemove                    // "-k"
	SetReplaceAll                // "*"
)

// SetTerm is one comma-separated entry of a set= clause.
type SetTerm struct {
	Kind SetKind
	Path []Element // empty for SetReplaceAll
}

func parseSetTerm(raw string) (SetTerm, error) {
	if raw == "*" {
		return SetTerm{Kind: SetReplaceAll}, nil
	}
	kind := SetChange
	if strings.HasPrefix(raw, "-") {
		kind = SetRemove
		raw = raw[1:]
	}
	path, err := parsePath(raw)
	if err != nil {
		return SetTerm{}, err
	}
	// Nested paths (a.b, a.b[N], a[N|k]) are fine; broadcast and
	// multi-key sub-selection are not valid set targets.
	for _, e := range path {
		if e.Kind == ArrayBroadcastSingle || e.Kind == ArrayBroadcastMultiple || e.Kind == ArraySpecificMultiple {
			return SetTerm{}, apierrors.NewParseError("set target %q cannot use broadcast or multi-key selection", raw)
		}
	}
	return SetTerm{Kind: kind, Path: path}, nil
}

// GroupByTerm is one comma-separated entry of a group_by= clause. Only
// plain Key paths are allowed; no functions, no array selection.
type GroupByTerm struct {
	Path []Element
}

func parseGroupByTerm(raw string) (GroupByTerm, error) {
	path, err := parsePath(raw)
	if err != nil {
		return GroupByTerm{}, err
	}
	for _, e := range path {
		if e.Kind != Key {
			return GroupByTerm{}, apierrors.NewParseError("group_by term %q must be a plain key path", raw)
		}
	}
	return GroupByTerm{Path: path}, nil
}

// AlterTerm carries the new table name from an alter=name=eq.<value> clause.
type AlterTerm struct {
	NewName string
}

func parseAlterClause(body string) (AlterTerm, error) {
	const prefix = "name=eq."
	if !strings.HasPrefix(body, prefix) {
		return AlterTerm{}, apierrors.NewParseError("alter clause %q must be name=eq.<new_name>", body)
	}
	name := unquote(body[len(prefix):])
	if name == "" {
		return AlterTerm{}, apierrors.NewParseError("alter clause is missing a new table name")
	}
	return AlterTerm{NewName: name}, nil
}
