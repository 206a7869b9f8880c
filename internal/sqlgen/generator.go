package sqlgen

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atomicbase/squril/internal/apierrors"
	"github.com/atomicbase/squril/internal/parser"
)

// Generator turns a parsed UriQuery into dialect SQL. One instance is bound
// to one Dialect and reused across calls; it holds no per-query state.
type Generator struct {
	Dialect Dialect
}

// New returns a Generator for the given dialect.
func New(d Dialect) *Generator { return &Generator{Dialect: d} }

// Result is the full set of artifacts one generation pass produces.
type Result struct {
	SelectQuery  string
	UpdateQuery  []string
	DeleteQuery  string
	AlterQuery   string
	Message      string
	HasAggregate bool
}

// Options carries the optional generation parameters beyond the
// table/query/payload triple.
type Options struct {
	Payload      map[string]any
	BackupCutoff *time.Time
	ArrayAggWrap bool
	IsAuditTable bool
	// RenameTarget renders the right-hand side of an alter's "rename to":
	// the embedded backend folds the schema into the new table name, the
	// server backend renames within the schema. Defaults to a bare quoted
	// identifier.
	RenameTarget func(name string) string
}

const dataColumn = "data"

// Generate walks q and produces the select/update/delete/alter artifacts
// against fqtn (a pre-quoted, fully qualified table reference).
func (g *Generator) Generate(fqtn string, q *parser.UriQuery, opts Options) (*Result, error) {
	res := &Result{Message: q.Message, HasAggregate: q.HasAggregate()}

	from := fqtn
	if opts.BackupCutoff != nil {
		from = g.retentionFrom(fqtn, *opts.BackupCutoff)
	}

	selectSQL, err := g.generateSelect(from, q, opts)
	if err != nil {
		return nil, err
	}
	res.SelectQuery = selectSQL

	if len(q.Set) > 0 {
		if opts.IsAuditTable {
			return nil, apierrors.NewOperationNotPermittedError("set= is not allowed on an audit table")
		}
		update, err := g.generateUpdate(fqtn, q, opts.Payload)
		if err != nil {
			return nil, err
		}
		res.UpdateQuery = update
	}

	deleteSQL, err := g.generateDelete(fqtn, q)
	if err != nil {
		return nil, err
	}
	res.DeleteQuery = deleteSQL

	if q.Alter != nil {
		if opts.IsAuditTable {
			return nil, apierrors.NewOperationNotPermittedError("alter is not allowed on an audit table")
		}
		target := g.Dialect.QuoteIdent(q.Alter.NewName)
		if opts.RenameTarget != nil {
			target = opts.RenameTarget(q.Alter.NewName)
		}
		res.AlterQuery = fmt.Sprintf("alter table %s rename to %s", fqtn, target)
	}

	return res, nil
}

// retentionFrom rewrites the from target to a subquery dropping audit
// events older than the cutoff.
func (g *Generator) retentionFrom(fqtn string, cutoff time.Time) string {
	tsExpr := g.Dialect.ExtractText(dataColumn, []PathSegment{{Key: "timestamp"}})
	return fmt.Sprintf("(select * from %s where %s >= %s)a",
		fqtn, tsExpr, g.Dialect.QuoteLiteral(cutoff.UTC().Format(time.RFC3339)))
}

func toSegments(path []parser.Element) []PathSegment {
	segs := make([]PathSegment, 0, len(path))
	for _, e := range path {
		switch e.Kind {
		case parser.Key:
			segs = append(segs, PathSegment{Key: e.Key})
		case parser.ArraySpecific:
			segs = append(segs, PathSegment{Key: e.Key, Index: idx(e.Index)})
		default:
			// Sub-selection and broadcast variants are handled by the
			// caller; only their bare key participates in a prefix walk.
			segs = append(segs, PathSegment{Key: e.Key})
		}
	}
	return segs
}

// projectExpr builds the projection expression for one select/group-by
// path, dispatching on the final element's variant.
func (g *Generator) projectExpr(path []parser.Element, text bool) (string, error) {
	if len(path) == 0 {
		return dataColumn, nil
	}
	last := path[len(path)-1]
	prefix := toSegments(path[:len(path)-1])

	switch last.Kind {
	case parser.Key:
		full := append(append([]PathSegment{}, prefix...), PathSegment{Key: last.Key})
		if text {
			return g.Dialect.ExtractText(dataColumn, full), nil
		}
		return g.Dialect.ExtractTyped(dataColumn, full), nil

	case parser.ArraySpecific:
		full := append(append([]PathSegment{}, prefix...), PathSegment{Key: last.Key, Index: idx(last.Index)})
		if text {
			return g.Dialect.ExtractText(dataColumn, full), nil
		}
		return g.Dialect.ExtractTyped(dataColumn, full), nil

	case parser.ArraySpecificSingle:
		full := append(append([]PathSegment{}, prefix...), PathSegment{Key: last.Key, Index: idx(last.Index)}, PathSegment{Key: last.SubKeys[0]})
		return g.Dialect.ExtractText(dataColumn, full), nil

	case parser.ArraySpecificMultiple:
		var exprs []string
		for _, sub := range last.SubKeys {
			full := append(append([]PathSegment{}, prefix...), PathSegment{Key: last.Key, Index: idx(last.Index)}, PathSegment{Key: sub})
			exprs = append(exprs, g.Dialect.ExtractText(dataColumn, full))
		}
		return g.Dialect.ArrayConstructor(exprs), nil

	case parser.ArrayBroadcastSingle:
		arrPath := append(append([]PathSegment{}, prefix...), PathSegment{Key: last.Key})
		source, alias := g.Dialect.IterateArray(dataColumn, arrPath)
		elemExpr := g.Dialect.ElementText(alias, last.SubKeys[0])
		return fmt.Sprintf("(select %s from %s)", g.Dialect.CollectArray(elemExpr), source), nil

	case parser.ArrayBroadcastMultiple:
		arrPath := append(append([]PathSegment{}, prefix...), PathSegment{Key: last.Key})
		source, alias := g.Dialect.IterateArray(dataColumn, arrPath)
		var exprs []string
		for _, sub := range last.SubKeys {
			exprs = append(exprs, g.Dialect.ElementText(alias, sub))
		}
		tuple := g.Dialect.ArrayConstructor(exprs)
		return fmt.Sprintf("(select %s from %s)", g.Dialect.CollectArray(tuple), source), nil
	}
	return "", apierrors.NewParseError("unhandled select element kind")
}

func (g *Generator) generateSelect(from string, q *parser.UriQuery, opts Options) (string, error) {
	var projections []string

	if len(q.Select) == 0 {
		projections = append(projections, dataColumn)
	}
	for _, term := range q.Select {
		if term.Star {
			projections = append(projections, dataColumn)
			continue
		}
		if term.Agg != parser.AggNone {
			expr, err := g.aggregateExpr(term)
			if err != nil {
				return "", err
			}
			projections = append(projections, expr)
			continue
		}
		expr, err := g.projectExpr(term.Path, false)
		if err != nil {
			return "", err
		}
		projections = append(projections, expr)
	}

	projection := dataColumn
	if len(q.Select) > 0 {
		if len(projections) == 1 {
			projection = projections[0]
		} else {
			projection = g.Dialect.ArrayConstructor(projections)
		}
	}

	stmt := fmt.Sprintf("select %s as data from %s", projection, from)

	where, err := g.generateWhere(q)
	if err != nil {
		return "", err
	}
	if where != "" {
		stmt += " where " + where
	}

	if len(q.GroupBy) > 0 {
		var cols []string
		for _, t := range q.GroupBy {
			expr, err := g.projectExpr(t.Path, false)
			if err != nil {
				return "", err
			}
			cols = append(cols, expr)
		}
		stmt += " group by " + strings.Join(cols, ",")
	} else if q.Order != nil {
		expr, err := g.projectExpr(q.Order.Path, false)
		if err != nil {
			return "", err
		}
		stmt += fmt.Sprintf(" order by %s %s", expr, q.Order.Direction)
	}

	if q.Range != nil {
		stmt += fmt.Sprintf(" limit %d offset %d", q.Range.End-q.Range.Start, q.Range.Start)
	}

	if opts.ArrayAggWrap && !q.HasAggregate() {
		stmt = g.Dialect.WrapWholeQuery(stmt)
	}

	return stmt, nil
}

func (g *Generator) aggregateExpr(term parser.SelectTerm) (string, error) {
	if term.Agg == parser.AggCount && len(term.Path) == 0 {
		return "count(1)", nil
	}
	text := term.Agg == parser.AggMinTs || term.Agg == parser.AggMaxTs
	inner, err := g.projectExpr(term.Path, text)
	if err != nil {
		return "", err
	}
	fn := string(term.Agg)
	if term.Agg == parser.AggMinTs {
		fn = "min"
	} else if term.Agg == parser.AggMaxTs {
		fn = "max"
	}
	return fmt.Sprintf("%s(%s)", fn, inner), nil
}

func (g *Generator) generateWhere(q *parser.UriQuery) (string, error) {
	if len(q.Where) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, t := range q.Where {
		if i > 0 {
			combinator := t.Combinator
			if combinator == "" {
				combinator = "and"
			}
			b.WriteString(" " + strings.ToUpper(combinator) + " ")
		}
		clause, err := g.whereTermSQL(t)
		if err != nil {
			return "", err
		}
		b.WriteString(strings.Repeat("(", t.OpenParens))
		b.WriteString(clause)
		b.WriteString(strings.Repeat(")", t.CloseParens))
	}
	return b.String(), nil
}

// whereColumn builds the comparison column for a where term. Broadcast and
// multi-key sub-selections have no scalar comparison semantics and are
// rejected.
func (g *Generator) whereColumn(t parser.WhereTerm) (string, error) {
	last := t.Path[len(t.Path)-1]
	segs := toSegments(t.Path[:len(t.Path)-1])
	switch last.Kind {
	case parser.Key:
		segs = append(segs, PathSegment{Key: last.Key})
	case parser.ArraySpecific:
		segs = append(segs, PathSegment{Key: last.Key, Index: idx(last.Index)})
	case parser.ArraySpecificSingle:
		segs = append(segs, PathSegment{Key: last.Key, Index: idx(last.Index)}, PathSegment{Key: last.SubKeys[0]})
	default:
		return "", apierrors.NewParseError("where path %q cannot use broadcast or multi-key selection", last.Raw)
	}
	return g.Dialect.WhereExtract(dataColumn, segs), nil
}

func (g *Generator) whereTermSQL(t parser.WhereTerm) (string, error) {
	col, err := g.whereColumn(t)
	if err != nil {
		return "", err
	}

	if t.Op == "fts" {
		pred := g.Dialect.FtsPredicate(col, t.Value)
		if t.Negated {
			pred = "NOT (" + pred + ")"
		}
		return pred, nil
	}

	op, _ := sqlOperator(t.Op, t.Negated)

	switch t.Op {
	case "eq", "neq":
		col = g.Dialect.EqText(col)
	case "gt", "gte", "lt", "lte":
		if t.ValueKind == parser.ValueBareword {
			col = g.Dialect.NumericCast(col, t.Value)
		}
	}

	switch t.ValueKind {
	case parser.ValueNull:
		return fmt.Sprintf("%s %s NULL", col, op), nil
	case parser.ValueList:
		var quoted []string
		for _, v := range t.ValueList {
			quoted = append(quoted, g.Dialect.QuoteLiteral(v))
		}
		return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(quoted, ",")), nil
	case parser.ValueQuoted:
		val := t.Value
		if t.Op == "like" || t.Op == "ilike" {
			val = strings.ReplaceAll(val, "*", "%")
		}
		return fmt.Sprintf("%s %s %s", col, op, g.Dialect.QuoteLiteral(val)), nil
	default: // ValueBareword
		return fmt.Sprintf("%s %s %s", col, op, g.whereValue(t.Op, t.Value)), nil
	}
}

// whereValue renders a bareword right-hand value: integers quote for
// eq/neq (both dialects compare those textually) and pass bare for the
// numeric operators; everything else defers to the dialect's own literal
// handling.
func (g *Generator) whereValue(op, val string) string {
	if _, err := strconv.Atoi(val); err == nil {
		if op == "eq" || op == "neq" {
			return g.Dialect.QuoteLiteral(val)
		}
		return val
	}
	if op == "like" || op == "ilike" {
		return g.Dialect.QuoteLiteral(strings.ReplaceAll(val, "*", "%"))
	}
	return g.Dialect.BarewordLiteral(val)
}

func sqlOperator(op string, negated bool) (sql string, textual bool) {
	switch op {
	case "eq":
		if negated {
			return "!=", true
		}
		return "=", true
	case "neq":
		if negated {
			return "=", true
		}
		return "!=", true
	case "gt":
		return ">", false
	case "gte":
		return ">=", false
	case "lt":
		return "<", false
	case "lte":
		return "<=", false
	case "like":
		if negated {
			return "NOT LIKE", true
		}
		return "LIKE", true
	case "ilike":
		if negated {
			return "NOT ILIKE", true
		}
		return "ILIKE", true
	case "is":
		if negated {
			return "IS NOT", true
		}
		return "IS", true
	case "in":
		if negated {
			return "NOT IN", true
		}
		return "IN", true
	}
	return "=", true
}

func (g *Generator) generateUpdate(fqtn string, q *parser.UriQuery, payload map[string]any) ([]string, error) {
	where, err := g.generateWhere(q)
	if err != nil {
		return nil, err
	}

	var changes []UpdateChange
	var removes []string
	var replaceAll string

	for _, t := range q.Set {
		switch t.Kind {
		case parser.SetReplaceAll:
			if payload == nil {
				return nil, apierrors.NewParseError("set=* requires a full object payload")
			}
			enc, err := json.Marshal(payload)
			if err != nil {
				return nil, apierrors.NewParseError("set=* payload is not valid JSON: %v", err)
			}
			replaceAll = strings.ReplaceAll(string(enc), "'", "''")
		case parser.SetRemove:
			if len(t.Path) != 1 || t.Path[0].Kind != parser.Key {
				return nil, apierrors.NewParseError("set=-%s must target a top-level key", pathRaw(t.Path))
			}
			removes = append(removes, t.Path[0].Key)
		case parser.SetChange:
			segs, val, err := setChange(t.Path, payload)
			if err != nil {
				return nil, err
			}
			enc, err := json.Marshal(val)
			if err != nil {
				return nil, apierrors.NewParseError("set value for %q is not valid JSON: %v", pathRaw(t.Path), err)
			}
			changes = append(changes, UpdateChange{
				Segments: segs,
				Encoded:  strings.ReplaceAll(string(enc), "'", "''"),
			})
		}
	}

	stmts := g.Dialect.UpdatePatch(fqtn, changes, removes, replaceAll, where)
	return stmts, nil
}

// setChange resolves one set= change target: the path segments the dialect
// writes through, and the payload value found by descending the same path
// through the caller's payload object. A missing key at any step is a
// parse-time error, per the payload contract.
func setChange(path []parser.Element, payload map[string]any) ([]PathSegment, any, error) {
	var segs []PathSegment
	var cur any = payload
	for _, e := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, nil, apierrors.NewParseError("set=%s requires payload key %q", pathRaw(path), e.Key)
		}
		val, present := obj[e.Key]
		if !present {
			return nil, nil, apierrors.NewParseError("set=%s requires payload key %q", pathRaw(path), e.Key)
		}
		cur = val

		switch e.Kind {
		case parser.Key:
			segs = append(segs, PathSegment{Key: e.Key})
		case parser.ArraySpecific:
			segs = append(segs, PathSegment{Key: e.Key, Index: idx(e.Index)})
			arr, ok := cur.([]any)
			if !ok || e.Index >= len(arr) {
				return nil, nil, apierrors.NewParseError("set=%s payload has no element %d under %q", pathRaw(path), e.Index, e.Key)
			}
			cur = arr[e.Index]
		case parser.ArraySpecificSingle:
			segs = append(segs, PathSegment{Key: e.Key, Index: idx(e.Index)}, PathSegment{Key: e.SubKeys[0]})
			arr, ok := cur.([]any)
			if !ok || e.Index >= len(arr) {
				return nil, nil, apierrors.NewParseError("set=%s payload has no element %d under %q", pathRaw(path), e.Index, e.Key)
			}
			elem, ok := arr[e.Index].(map[string]any)
			if !ok {
				return nil, nil, apierrors.NewParseError("set=%s payload element %d under %q is not an object", pathRaw(path), e.Index, e.Key)
			}
			sub, present := elem[e.SubKeys[0]]
			if !present {
				return nil, nil, apierrors.NewParseError("set=%s requires payload key %q", pathRaw(path), e.SubKeys[0])
			}
			cur = sub
		default:
			return nil, nil, apierrors.NewParseError("set target %q cannot use broadcast or multi-key selection", pathRaw(path))
		}
	}
	return segs, cur, nil
}

func pathRaw(path []parser.Element) string {
	parts := make([]string, len(path))
	for i, e := range path {
		parts[i] = e.Raw
	}
	return strings.Join(parts, ".")
}

func (g *Generator) generateDelete(fqtn string, q *parser.UriQuery) (string, error) {
	where, err := g.generateWhere(q)
	if err != nil {
		return "", err
	}
	if where == "" {
		return fmt.Sprintf("drop table %s", fqtn), nil
	}
	return fmt.Sprintf("delete from %s where %s", fqtn, where), nil
}
