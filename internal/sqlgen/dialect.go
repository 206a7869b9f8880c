// Package sqlgen walks a parsed UriQuery AST and emits SQL for one of two
// dialects: one generator written once against a Dialect capability.
package sqlgen

// PathSegment is one step of a JSON path: a key, optionally followed by an
// array index at that same step (e.g. "k3[0]" is Key:"k3" Index:ptr(0)).
type PathSegment struct {
	Key   string
	Index *int
}

func idx(i int) *int { return &i }

// UpdateChange is one key (possibly nested, possibly indexed) an update
// statement must set, with its JSON-encoded value (single quotes already
// doubled for inline SQL use).
type UpdateChange struct {
	Segments []PathSegment
	Encoded  string
}

// Dialect captures everything that differs between the embedded (SQLite)
// and server (PostgreSQL) JSON-document backends: path extraction,
// aggregation, array/object construction, and update expressions.
type Dialect interface {
	// Name identifies the dialect for diagnostics.
	Name() string

	// QuoteTable returns the fully qualified table reference.
	QuoteTable(schema, table string) string

	// QuoteIdent quotes a bare identifier.
	QuoteIdent(name string) string

	// ExtractTyped returns an expression reading the JSON path out of col,
	// preserving the underlying JSON type.
	ExtractTyped(col string, path []PathSegment) string

	// ExtractText returns an expression reading the JSON path out of col as
	// text.
	ExtractText(col string, path []PathSegment) string

	// WhereExtract returns the expression a where comparison reads the
	// path through. The embedded dialect keeps the typed extraction (its
	// dynamic typing compares numerics natively); the server dialect
	// extracts text, so integer comparisons can be cast explicitly.
	WhereExtract(col string, path []PathSegment) string

	// IterateArray returns a FROM-clause source iterating the array found
	// at path, and the alias bound to each element.
	IterateArray(col string, path []PathSegment) (source, alias string)

	// ElementText returns an expression reading a sub-key of the element
	// bound to alias (as produced by IterateArray). The embedded dialect
	// keeps the JSON type; the server dialect reads the value as text.
	ElementText(alias, key string) string

	// ArrayConstructor wraps a list of expressions into one JSON array
	// value.
	ArrayConstructor(exprs []string) string

	// ObjectConstructor wraps a single key/value pair into one JSON object
	// value: {key: valueExpr}. Used by wildcard/list selects to key each
	// sub-table's result by its table name.
	ObjectConstructor(key, valueExpr string) string

	// CollectArray wraps a single expression in the dialect's row-collecting
	// aggregate, producing one JSON array value per group of rows.
	CollectArray(expr string) string

	// WrapWholeQuery wraps an entire select statement (whose rows each
	// yield a "data" value) so the call returns a single JSON array
	// aggregating every row.
	WrapWholeQuery(innerSelect string) string

	// EqText wraps expr for use in an eq/neq comparison. The embedded
	// dialect casts to text (so "123" == 123 holds); the server dialect
	// returns expr unchanged.
	EqText(expr string) string

	// NumericCast wraps expr for a gt/gte/lt/lte comparison against the
	// bareword literal. The server dialect casts to int or real based on
	// the literal's lexical form; the embedded dialect compares its typed
	// extraction natively and returns expr unchanged.
	NumericCast(expr, literal string) string

	// BarewordLiteral renders an unquoted where value that is not an
	// integer for inline SQL. The embedded dialect lets float-shaped
	// literals pass bare; the server dialect quotes everything, since its
	// where extraction yields text.
	BarewordLiteral(val string) string

	// UpdatePatch returns the update statement(s) applying changed/added
	// keys (possibly nested), removed top-level keys (removes), and an
	// optional whole-document replacement (replaceAll, empty when unused)
	// against fqtn filtered by where.
	UpdatePatch(fqtn string, changes []UpdateChange, removes []string, replaceAll string, where string) []string

	// QuoteLiteral quotes a string literal for inline use in generated SQL.
	QuoteLiteral(s string) string

	// FtsPredicate returns a full-text-match predicate testing col (a
	// text-extraction expression) against literal.
	FtsPredicate(col, literal string) string
}
