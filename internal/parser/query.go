// Package parser implements the SQURIL lexer and parser: it turns a URI
// query string into a typed UriQuery AST. The lexer honors single-quoting
// and bracket nesting when locating clause and term boundaries; each
// clause body is then handed to its term parser.
package parser

import (
	"net/url"
	"strings"

	"github.com/atomicbase/squril/internal/apierrors"
)

// UriQuery is the fully parsed representation of one SQURIL query string
// against one table. Raw keeps the original query text for audit
// recording.
type UriQuery struct {
	Table string
	Raw   string

	Select  []SelectTerm
	Where   []WhereTerm
	Order   *OrderTerm
	Range   *RangeTerm
	Set     []SetTerm
	GroupBy []GroupByTerm
	Alter   *AlterTerm

	Message string

	Restore    bool
	PrimaryKey string // dotted path, required when Restore is set
}

// HasAggregate reports whether any select term uses an aggregate function.
func (q *UriQuery) HasAggregate() bool {
	for _, t := range q.Select {
		if t.Agg != AggNone {
			return true
		}
	}
	return false
}

// Parse parses query against table, producing a fully validated UriQuery or
// a *apierrors.ParseError. Parsing is never partial.
func Parse(table, query string) (*UriQuery, error) {
	q := &UriQuery{Table: table, Raw: query}

	var sawGroupBy, sawOrder bool

	for _, clause := range splitAmpersand(query) {
		if clause == "" {
			continue
		}
		if clause == "restore" {
			q.Restore = true
			continue
		}

		eq := strings.IndexByte(clause, '=')
		if eq < 0 {
			return nil, apierrors.NewParseError("clause %q has no recognized prefix", clause)
		}
		prefix, body := clause[:eq], clause[eq+1:]

		switch prefix {
		case "select":
			for _, raw := range splitComma(body) {
				t, err := parseSelectTerm(raw)
				if err != nil {
					return nil, err
				}
				q.Select = append(q.Select, t)
			}
		case "where":
			for _, raw := range splitComma(body) {
				t, err := parseWhereTerm(raw)
				if err != nil {
					return nil, err
				}
				q.Where = append(q.Where, t)
			}
		case "order":
			t, err := parseOrderTerm(body)
			if err != nil {
				return nil, err
			}
			q.Order = &t
			sawOrder = true
		case "range":
			t, err := parseRangeTerm(body)
			if err != nil {
				return nil, err
			}
			q.Range = &t
		case "set":
			for _, raw := range splitComma(body) {
				t, err := parseSetTerm(raw)
				if err != nil {
					return nil, err
				}
				q.Set = append(q.Set, t)
			}
		case "group_by":
			for _, raw := range splitComma(body) {
				t, err := parseGroupByTerm(raw)
				if err != nil {
					return nil, err
				}
				q.GroupBy = append(q.GroupBy, t)
			}
			sawGroupBy = true
		case "alter":
			t, err := parseAlterClause(body)
			if err != nil {
				return nil, err
			}
			q.Alter = &t
		case "message":
			decoded, err := url.QueryUnescape(body)
			if err != nil {
				return nil, apierrors.NewParseError("message could not be url-decoded: %v", err)
			}
			q.Message = decoded
		case "primary_key":
			q.PrimaryKey = body
		default:
			return nil, apierrors.NewParseError("unrecognized clause prefix %q", prefix)
		}
	}

	if sawGroupBy && sawOrder {
		return nil, apierrors.NewParseError("order= cannot be combined with group_by=")
	}
	if sawGroupBy {
		if err := validateGroupBySubsetOfSelect(q); err != nil {
			return nil, err
		}
	}
	if q.Restore && q.PrimaryKey == "" {
		return nil, apierrors.NewParseError("restore requires primary_key=")
	}

	return q, nil
}

// validateGroupBySubsetOfSelect enforces that every group_by path also
// appears in the select list, either as a plain term or inside an
// aggregate.
func validateGroupBySubsetOfSelect(q *UriQuery) error {
	selected := make(map[string]bool, len(q.Select))
	for _, s := range q.Select {
		selected[pathKey(s.Path)] = true
	}
	for _, g := range q.GroupBy {
		if !selected[pathKey(g.Path)] {
			return apierrors.NewParseError("group_by path %q must also appear in select=", pathKey(g.Path))
		}
	}
	return nil
}

func pathKey(path []Element) string {
	parts := make([]string, len(path))
	for i, e := range path {
		parts[i] = e.Raw
	}
	return strings.Join(parts, ".")
}
