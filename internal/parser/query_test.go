package parser

import "testing"

func TestParseSelectAndWhere(t *testing.T) {
	q, err := Parse("T", "select=a,b.c&where=a=eq.5&message=M")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Select) != 2 {
		t.Fatalf("expected 2 select terms, got %d", len(q.Select))
	}
	if q.Select[1].Path[1].Key != "c" {
		t.Errorf("expected nested key c, got %q", q.Select[1].Path[1].Key)
	}
	if len(q.Where) != 1 || q.Where[0].Op != "eq" || q.Where[0].Value != "5" {
		t.Errorf("unexpected where term: %+v", q.Where)
	}
	if q.Message != "M" {
		t.Errorf("expected message M, got %q", q.Message)
	}
}

func TestParseQuotedWhereValue(t *testing.T) {
	q, err := Parse("T", `where=loop=eq.'g\'n kat oor die pad'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "g'n kat oor die pad"
	if q.Where[0].Value != want {
		t.Errorf("expected %q, got %q", want, q.Where[0].Value)
	}
}

func TestParseInList(t *testing.T) {
	q, err := Parse("T", "where=a=in.[1,2,3]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Where[0].ValueList) != 3 {
		t.Fatalf("expected 3 values, got %v", q.Where[0].ValueList)
	}
}

func TestParseNegatedOperator(t *testing.T) {
	q, err := Parse("T", "where=c=not.is.null")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Where[0].Op != "is" || !q.Where[0].Negated {
		t.Errorf("expected negated is, got %+v", q.Where[0])
	}
	if q.Where[0].ValueKind != ValueNull {
		t.Errorf("expected null value kind")
	}
}

func TestParseBroadcastSelect(t *testing.T) {
	q, err := Parse("T", "select=a.k3[*|h,s]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elem := q.Select[0].Path[1]
	if elem.Kind != ArrayBroadcastMultiple {
		t.Fatalf("expected ArrayBroadcastMultiple, got %v", elem.Kind)
	}
	if len(elem.SubKeys) != 2 || elem.SubKeys[0] != "h" || elem.SubKeys[1] != "s" {
		t.Errorf("unexpected sub keys: %v", elem.SubKeys)
	}
}

func TestParseMalformedElementRejected(t *testing.T) {
	if _, err := parseElement("a[0|"); err == nil {
		t.Fatalf("expected parse error for malformed element")
	}
}

func TestGroupByMustAppearInSelect(t *testing.T) {
	_, err := Parse("T", "select=a&group_by=b")
	if err == nil {
		t.Fatalf("expected error when group_by path is not selected")
	}
}

func TestOrderWithGroupByRejected(t *testing.T) {
	_, err := Parse("T", "select=a&group_by=a&order=a.asc")
	if err == nil {
		t.Fatalf("expected error combining order= and group_by=")
	}
}

func TestRestoreRequiresPrimaryKey(t *testing.T) {
	_, err := Parse("T", "restore")
	if err == nil {
		t.Fatalf("expected error: restore without primary_key")
	}
	q, err := Parse("T", "restore&primary_key=id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Restore || q.PrimaryKey != "id" {
		t.Errorf("unexpected restore query: %+v", q)
	}
}

func TestAlterClause(t *testing.T) {
	q, err := Parse("T", "alter=name=eq.newname")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Alter == nil || q.Alter.NewName != "newname" {
		t.Errorf("unexpected alter term: %+v", q.Alter)
	}
}

func TestRangeTerm(t *testing.T) {
	q, err := Parse("T", "range=0.10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Range.Start != 0 || q.Range.End != 10 {
		t.Errorf("unexpected range: %+v", q.Range)
	}
}

func TestSetTermVariants(t *testing.T) {
	q, err := Parse("T", "set=a,-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Set[0].Kind != SetChange || q.Set[1].Kind != SetRemove {
		t.Errorf("unexpected set kinds: %+v", q.Set)
	}
}

func TestSetReplaceAll(t *testing.T) {
	q, err := Parse("T", "set=*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Set[0].Kind != SetReplaceAll {
		t.Errorf("expected SetReplaceAll, got %v", q.Set[0].Kind)
	}
}

func TestAmpersandInsideQuotesIsLiteral(t *testing.T) {
	q, err := Parse("T", "where=a=eq.'x&y'&order=a.asc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Where[0].Value != "x&y" {
		t.Errorf("expected quoted ampersand preserved, got %q", q.Where[0].Value)
	}
	if q.Order == nil || q.Order.Direction != "asc" {
		t.Errorf("expected order clause parsed after the quoted value, got %+v", q.Order)
	}
}

func TestCommaInsideBracketsIsLiteral(t *testing.T) {
	q, err := Parse("T", "select=a,b[0|h,s]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Select) != 2 {
		t.Fatalf("expected 2 select terms, got %d", len(q.Select))
	}
	if q.Select[1].Path[0].Kind != ArraySpecificMultiple {
		t.Errorf("expected ArraySpecificMultiple, got %v", q.Select[1].Path[0].Kind)
	}
}

func TestUnknownClauseRejected(t *testing.T) {
	if _, err := Parse("T", "frobnicate=1"); err == nil {
		t.Fatal("expected ParseError for unknown clause prefix")
	}
}

func TestMessageURLDecoded(t *testing.T) {
	q, err := Parse("T", "message=hello%20world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Message != "hello world" {
		t.Errorf("expected decoded message, got %q", q.Message)
	}
}

func TestParenGroupedWhereTerms(t *testing.T) {
	q, err := Parse("T", "where=(a=eq.1,or:b=eq.2)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Where) != 2 {
		t.Fatalf("expected 2 where terms, got %d", len(q.Where))
	}
	if q.Where[0].OpenParens != 1 || q.Where[1].CloseParens != 1 {
		t.Errorf("expected paren bookkeeping, got %+v", q.Where)
	}
	if q.Where[1].Combinator != "or" {
		t.Errorf("expected or combinator on the second term, got %q", q.Where[1].Combinator)
	}
}

func TestGroupByRejectsArrayElements(t *testing.T) {
	if _, err := Parse("T", "select=a[0]&group_by=a[0]"); err == nil {
		t.Fatal("expected ParseError for an array element in group_by")
	}
}

func TestSetRejectsBroadcastTargets(t *testing.T) {
	if _, err := Parse("T", "set=a[*|h]"); err == nil {
		t.Fatal("expected ParseError for a broadcast set target")
	}
}

func TestRangeValidation(t *testing.T) {
	if _, err := Parse("T", "range=5.2"); err == nil {
		t.Fatal("expected ParseError when range end precedes start")
	}
	if _, err := Parse("T", "range=x.2"); err == nil {
		t.Fatal("expected ParseError for a non-integer range bound")
	}
}

func TestOrderValidation(t *testing.T) {
	if _, err := Parse("T", "order=a.sideways"); err == nil {
		t.Fatal("expected ParseError for an unknown order direction")
	}
}
