package sqlgen

import (
	"fmt"
	"strconv"
	"strings"
)

// PostgresDialect targets the server backend: native jsonb operators.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) QuoteTable(schema, table string) string {
	return fmt.Sprintf(`%s."%s"`, schema, table)
}

func (PostgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func pgPathLiteral(path []PathSegment) string {
	var parts []string
	for _, seg := range path {
		if seg.Key != "" {
			parts = append(parts, seg.Key)
		}
		if seg.Index != nil {
			parts = append(parts, strconv.Itoa(*seg.Index))
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (PostgresDialect) ExtractTyped(col string, path []PathSegment) string {
	return fmt.Sprintf("%s#>'%s'", col, pgPathLiteral(path))
}

func (PostgresDialect) ExtractText(col string, path []PathSegment) string {
	return fmt.Sprintf("%s#>>'%s'", col, pgPathLiteral(path))
}

// WhereExtract reads the path as text: jsonb has no comparison operators
// against bare SQL literals, so every where value is compared textually and
// numeric comparisons cast the text explicitly (NumericCast).
func (d PostgresDialect) WhereExtract(col string, path []PathSegment) string {
	return d.ExtractText(col, path)
}

func (PostgresDialect) IterateArray(col string, path []PathSegment) (string, string) {
	arr := fmt.Sprintf("%s#>'%s'", col, pgPathLiteral(path))
	return fmt.Sprintf("jsonb_array_elements(%s) elem", arr), "elem"
}

func (PostgresDialect) ElementText(alias, key string) string {
	return fmt.Sprintf("%s#>>'{%s}'", alias, key)
}

func (PostgresDialect) ArrayConstructor(exprs []string) string {
	return "jsonb_build_array(" + strings.Join(exprs, ",") + ")"
}

func (d PostgresDialect) ObjectConstructor(key, valueExpr string) string {
	return fmt.Sprintf("jsonb_build_object(%s,%s)", d.QuoteLiteral(key), valueExpr)
}

func (PostgresDialect) CollectArray(expr string) string {
	return fmt.Sprintf("json_agg(%s)", expr)
}

func (PostgresDialect) WrapWholeQuery(innerSelect string) string {
	return fmt.Sprintf("select json_agg(data) from (%s) a", innerSelect)
}

func (PostgresDialect) EqText(expr string) string {
	return expr
}

func (PostgresDialect) NumericCast(expr, literal string) string {
	if _, err := strconv.Atoi(literal); err == nil {
		return fmt.Sprintf("(%s)::int", expr)
	}
	if _, err := strconv.ParseFloat(literal, 64); err == nil {
		return fmt.Sprintf("(%s)::real", expr)
	}
	return expr
}

// BarewordLiteral always quotes: the where extraction yields text, so even
// float-shaped values compare as strings here.
func (d PostgresDialect) BarewordLiteral(val string) string {
	return d.QuoteLiteral(val)
}

func (d PostgresDialect) UpdatePatch(fqtn string, changes []UpdateChange, removes []string, replaceAll string, where string) []string {
	var stmts []string

	if replaceAll != "" {
		stmt := fmt.Sprintf("update %s set data = '%s'::jsonb", fqtn, replaceAll)
		if where != "" {
			stmt += " where " + where
		}
		return []string{stmt + ";"}
	}

	for _, c := range changes {
		stmt := fmt.Sprintf(
			"update %s set data = jsonb_set(data, '%s', '%s'::jsonb, true)",
			fqtn, pgPathLiteral(c.Segments), c.Encoded,
		)
		if where != "" {
			stmt += " where " + where
		}
		stmts = append(stmts, stmt+";")
	}
	for _, k := range removes {
		stmt := fmt.Sprintf("update %s set data = data - '%s'", fqtn, k)
		if where != "" {
			stmt += " where " + where
		}
		stmts = append(stmts, stmt+";")
	}
	return stmts
}

func (PostgresDialect) QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FtsPredicate uses Postgres's native text search over the JSON path's
// extracted text.
func (d PostgresDialect) FtsPredicate(col, literal string) string {
	return fmt.Sprintf("to_tsvector('english', %s) @@ plainto_tsquery('english', %s)", col, d.QuoteLiteral(literal))
}

// PostgresInitSQL is the process-wide database-init SQL block: the dedup
// trigger function and the array-filtering helper. Run once per database;
// callers tolerate a concurrent-tuple-update error on repeated
// initialization.
const PostgresInitSQL = `
CREATE OR REPLACE FUNCTION filter_array_elements(arr jsonb)
RETURNS jsonb AS $$
    SELECT jsonb_agg(elem ORDER BY elem)
    FROM jsonb_array_elements(arr) elem
$$ LANGUAGE sql IMMUTABLE;

CREATE OR REPLACE FUNCTION unique_data() RETURNS trigger AS $$
BEGIN
    NEW.uniq := md5(NEW.data::text);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;
`
