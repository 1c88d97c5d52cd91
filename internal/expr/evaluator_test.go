// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr_test

import (
	"bytes"
	"errors"
	"log/slog"
	"time"

	. "gopkg.in/check.v1"

	"github.com/blinkfox/fenix/internal/expr"
)

type EvaluatorSuite struct {
	eval *expr.Evaluator
	logs *bytes.Buffer
}

var _ = Suite(&EvaluatorSuite{})

func (s *EvaluatorSuite) SetUpTest(c *C) {
	s.logs = &bytes.Buffer{}
	var err error
	s.eval, err = expr.NewEvaluator(expr.Config{
		Logger: slog.New(slog.NewTextHandler(s.logs, nil)),
	})
	c.Assert(err, IsNil)
}

type M = map[string]any

func (s *EvaluatorSuite) TestEvalValue(c *C) {
	act := M{
		"a":    1,
		"name": "Ann",
		"user": M{"id": 7, "tags": []string{"x", "y"}},
	}
	tests := []struct {
		src      string
		expected any
	}{
		{"a + 1", int64(2)},
		{"name", "Ann"},
		{"'%' + name + '%'", "%Ann%"},
		{"user.id", int64(7)},
		{"size(user.tags)", int64(2)},
		{"[1, 2]", []any{int64(1), int64(2)}},
		{"null", nil},
		{"a > 0 ? 'yes' : 'no'", "yes"},
	}
	for _, t := range tests {
		v, err := s.eval.EvalValue(t.src, act)
		c.Assert(err, IsNil, Commentf("expression %q", t.src))
		c.Check(v, DeepEquals, t.expected, Commentf("expression %q", t.src))
	}
}

func (s *EvaluatorSuite) TestEvalValueErrors(c *C) {
	tests := []string{"1 +", "", "   ", "missing", "a.b"}
	for _, src := range tests {
		_, err := s.eval.EvalValue(src, M{"a": M{}})
		c.Assert(err, NotNil, Commentf("expression %q", src))
		c.Check(errors.Is(err, expr.ErrExpression), Equals, true, Commentf("expression %q", src))
		var ee *expr.Error
		c.Check(errors.As(err, &ee), Equals, true)
	}
}

func (s *EvaluatorSuite) TestEvalBool(c *C) {
	b, err := s.eval.EvalBool("a > 1 && name != ''", M{"a": 2, "name": "x"})
	c.Assert(err, IsNil)
	c.Check(b, Equals, true)

	_, err = s.eval.EvalBool("name", M{"name": "x"})
	c.Check(err, ErrorMatches, `expression "name": expected bool, got string`)
	c.Check(errors.Is(err, expr.ErrExpression), Equals, true)
}

func (s *EvaluatorSuite) TestIsTrue(c *C) {
	c.Check(s.eval.IsTrue("a == 1", M{"a": 1}), Equals, true)
	c.Check(s.eval.IsTrue("a == 1", M{"a": 2}), Equals, false)
	c.Check(s.logs.Len(), Equals, 0)

	// Failures are logged and read as false.
	c.Check(s.eval.IsTrue("missing > 1", M{}), Equals, false)
	c.Check(s.logs.String(), Matches, `(?s).*match expression failed, fragment skipped.*missing > 1.*`)
}

func (s *EvaluatorSuite) TestRender(c *C) {
	act := M{"table": "t_user", "id": 5, "n": nil}
	tests := []struct{ tmpl, expected string }{
		{"SELECT * FROM t", "SELECT * FROM t"},
		{"SELECT * FROM @{table}", "SELECT * FROM t_user"},
		{"id = @{id} AND n = '@{n}'", "id = 5 AND n = ''"},
		{"@{table}.@{ 'id' }", "t_user.id"},
		{"keep #{id}", "keep #{id}"},
	}
	for _, t := range tests {
		out, err := s.eval.Render(t.tmpl, act)
		c.Assert(err, IsNil, Commentf("template %q", t.tmpl))
		c.Check(out, Equals, t.expected)
	}

	_, err := s.eval.Render("x @{table", act)
	c.Check(errors.Is(err, expr.ErrExpression), Equals, true)
	_, err = s.eval.Render("x @{nope}", act)
	c.Check(errors.Is(err, expr.ErrExpression), Equals, true)
}

func (s *EvaluatorSuite) TestBindings(c *C) {
	parts, err := s.eval.Bindings("plain")
	c.Assert(err, IsNil)
	c.Check(parts, DeepEquals, []expr.Part{&expr.Literal{Text: "plain"}})

	parts, err = s.eval.Bindings("a = #{u.id}")
	c.Assert(err, IsNil)
	c.Check(parts, DeepEquals, []expr.Part{
		&expr.Literal{Text: "a = "},
		&expr.Embedded{Source: "u.id", Raw: "#{u.id}"},
	})
}

func (s *EvaluatorSuite) TestCaching(c *C) {
	act := M{"a": 3}
	cold, err := s.eval.EvalValue("a * 2", act)
	c.Assert(err, IsNil)
	warm, err := s.eval.EvalValue("a * 2", act)
	c.Assert(err, IsNil)
	c.Check(warm, DeepEquals, cold)

	_, err = s.eval.Render("v = @{a}", act)
	c.Assert(err, IsNil)
	programs, templates := s.eval.CacheLen()
	c.Check(programs, Equals, 2)
	c.Check(templates, Equals, 1)

	s.eval.Purge()
	programs, templates = s.eval.CacheLen()
	c.Check(programs, Equals, 0)
	c.Check(templates, Equals, 0)

	again, err := s.eval.EvalValue("a * 2", act)
	c.Assert(err, IsNil)
	c.Check(again, DeepEquals, cold)
}

func (s *EvaluatorSuite) TestCacheBounds(c *C) {
	eval, err := expr.NewEvaluator(expr.Config{CacheSize: 2, CacheTTL: time.Hour})
	c.Assert(err, IsNil)
	for _, src := range []string{"1", "2", "3", "4"} {
		_, err := eval.EvalValue(src, nil)
		c.Assert(err, IsNil)
	}
	programs, _ := eval.CacheLen()
	c.Check(programs, Equals, 2)
}

func (s *EvaluatorSuite) TestInvalidExpressionNotCached(c *C) {
	_, err := s.eval.EvalValue("1 +", nil)
	c.Assert(err, NotNil)
	programs, _ := s.eval.CacheLen()
	c.Check(programs, Equals, 0)
}
