package apierrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDescribeClassifiesSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code Code
	}{
		{NewParseError("bad clause"), CodeParseError},
		{NewDataIntegrityError("pk not unique"), CodeDataIntegrity},
		{NewOperationNotPermittedError("audit table"), CodeOperationNotPermitted},
		{errors.New("driver exploded"), CodeInternalError},
	}
	for _, c := range cases {
		if got := Describe(c.err); got.Code != c.code {
			t.Errorf("Describe(%v): got %s, want %s", c.err, got.Code, c.code)
		}
	}
}

func TestDescribeUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("running update: %w", NewParseError("bad set term"))
	if got := Describe(wrapped); got.Code != CodeParseError {
		t.Errorf("expected wrapped ParseError classified, got %s", got.Code)
	}
}

func TestDriverErrorClassification(t *testing.T) {
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: p_T.data")) {
		t.Error("sqlite unique violation not recognized")
	}
	if !IsUniqueViolation(errors.New(`pq: duplicate key value violates unique constraint "T_uniq_key"`)) {
		t.Error("postgres unique violation not recognized")
	}
	if !IsMissingRelation(errors.New("no such table: p_T")) {
		t.Error("sqlite missing table not recognized")
	}
	if !IsMissingRelation(errors.New(`pq: relation "p.T" does not exist`)) {
		t.Error("postgres missing relation not recognized")
	}
	if IsUniqueViolation(nil) || IsMissingRelation(nil) || IsConcurrentUpdate(nil) {
		t.Error("nil must classify as no error")
	}
	if IsUniqueViolation(errors.New("syntax error")) {
		t.Error("unrelated error misclassified as unique violation")
	}
}
