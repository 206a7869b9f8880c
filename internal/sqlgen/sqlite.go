package sqlgen

import (
	"fmt"
	"strconv"
	"strings"
)

// SQLiteDialect targets the embedded backend: SQLite's json1 extension
// functions.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) QuoteTable(schema, table string) string {
	return fmt.Sprintf(`"%s_%s"`, schema, table)
}

func (SQLiteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func jsonPointer(path []PathSegment) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range path {
		b.WriteString(".")
		b.WriteString(seg.Key)
		if seg.Index != nil {
			fmt.Fprintf(&b, "[%d]", *seg.Index)
		}
	}
	return b.String()
}

func (SQLiteDialect) ExtractTyped(col string, path []PathSegment) string {
	return fmt.Sprintf("json_extract(%s,'%s')", col, jsonPointer(path))
}

func (d SQLiteDialect) ExtractText(col string, path []PathSegment) string {
	return fmt.Sprintf("CAST(%s AS TEXT)", d.ExtractTyped(col, path))
}

// WhereExtract keeps the typed extraction: SQLite's dynamic typing compares
// the extracted value against numeric literals natively.
func (d SQLiteDialect) WhereExtract(col string, path []PathSegment) string {
	return d.ExtractTyped(col, path)
}

func (SQLiteDialect) IterateArray(col string, path []PathSegment) (string, string) {
	arr := fmt.Sprintf("json_extract(%s,'%s')", col, jsonPointer(path))
	return fmt.Sprintf("json_each(%s)", arr), "value"
}

func (SQLiteDialect) ElementText(alias, key string) string {
	return fmt.Sprintf("json_extract(%s,'$.%s')", alias, key)
}

func (SQLiteDialect) ArrayConstructor(exprs []string) string {
	return "json_array(" + strings.Join(exprs, ",") + ")"
}

func (d SQLiteDialect) ObjectConstructor(key, valueExpr string) string {
	return fmt.Sprintf("json_object(%s,%s)", d.QuoteLiteral(key), valueExpr)
}

func (SQLiteDialect) CollectArray(expr string) string {
	return fmt.Sprintf("json_group_array(%s)", expr)
}

func (SQLiteDialect) WrapWholeQuery(innerSelect string) string {
	return fmt.Sprintf("select json_group_array(data) from (%s)", innerSelect)
}

func (d SQLiteDialect) EqText(expr string) string {
	return fmt.Sprintf("CAST(%s AS TEXT)", expr)
}

func (SQLiteDialect) NumericCast(expr, literal string) string {
	// The typed json_extract already carries SQLite's own numeric affinity.
	return expr
}

// BarewordLiteral lets a literal whose canonical float form round-trips
// pass bare, and quotes everything else.
func (d SQLiteDialect) BarewordLiteral(val string) string {
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		if strconv.FormatFloat(f, 'g', -1, 64) == val {
			return val
		}
	}
	return d.QuoteLiteral(val)
}

func (d SQLiteDialect) UpdatePatch(fqtn string, changes []UpdateChange, removes []string, replaceAll string, where string) []string {
	if replaceAll != "" {
		stmt := fmt.Sprintf("update %s set data = '%s'", fqtn, replaceAll)
		if where != "" {
			stmt += " where " + where
		}
		return []string{stmt + ";"}
	}

	// Top-level single-key changes merge into one json_patch; nested or
	// indexed targets chain through json_set, which can address an array
	// slot the merge-patch form cannot.
	var patchParts []string
	var nested []UpdateChange
	for _, c := range changes {
		if len(c.Segments) == 1 && c.Segments[0].Index == nil {
			patchParts = append(patchParts, fmt.Sprintf(`"%s":%s`, c.Segments[0].Key, c.Encoded))
		} else {
			nested = append(nested, c)
		}
	}
	expr := "data"
	if len(patchParts) > 0 {
		patch := "{" + strings.Join(patchParts, ",") + "}"
		expr = fmt.Sprintf("json_patch(%s, '%s')", expr, patch)
	}
	for _, c := range nested {
		expr = fmt.Sprintf("json_set(%s,'%s',json('%s'))", expr, jsonPointer(c.Segments), c.Encoded)
	}
	for _, k := range removes {
		expr = fmt.Sprintf(`json_remove(%s,'$.%s')`, expr, k)
	}
	if expr == "data" {
		return nil
	}
	stmt := fmt.Sprintf("update %s set data = %s", fqtn, expr)
	if where != "" {
		stmt += " where " + where
	}
	return []string{stmt + ";"}
}

func (SQLiteDialect) QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FtsPredicate approximates full-text search with a substring match. The
// embedded backend has no FTS5 virtual table wired into this engine's
// lazily-created table lifecycle (a shadow table would need its own
// create/trigger-sync path this engine does not otherwise have), so this
// is a documented simplification, not the FTS5 MATCH operator.
func (d SQLiteDialect) FtsPredicate(col, literal string) string {
	return fmt.Sprintf("%s LIKE '%%' || %s || '%%' ESCAPE '\\'", col, d.QuoteLiteral(literal))
}
