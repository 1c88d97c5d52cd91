// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix_test

import (
	"errors"
	"fmt"
	"sync"

	. "gopkg.in/check.v1"

	"github.com/blinkfox/fenix"
)

type RegistrySuite struct{}

var _ = Suite(&RegistrySuite{})

func (s *RegistrySuite) TestBuiltins(c *C) {
	r := fenix.NewRegistry()
	fenix.RegisterBuiltins(r)

	c.Check(r.Tags(), HasLen, 55)
	c.Check(r.Kinds(), DeepEquals, []string{
		"between", "choose", "condition", "endsWith", "import", "in",
		"isNull", "like", "startsWith", "text", "where",
	})

	tests := []struct {
		tag    string
		prefix string
		symbol string
		typ    string
	}{
		{"equal", fenix.PrefixNone, fenix.SymbolEqual, "fenix.ConditionHandler"},
		{"andNotEqual", fenix.PrefixAnd, fenix.SymbolNotEqual, "fenix.ConditionHandler"},
		{"orGreaterThanEqual", fenix.PrefixOr, fenix.SymbolGreaterThanEqual, "fenix.ConditionHandler"},
		{"andLike", fenix.PrefixAnd, fenix.SymbolLike, "fenix.LikeHandler"},
		{"orNotStartsWith", fenix.PrefixOr, fenix.SymbolNotLike, "fenix.StartsWithHandler"},
		{"notEndsWith", fenix.PrefixNone, fenix.SymbolNotLike, "fenix.EndsWithHandler"},
		{"andBetween", fenix.PrefixAnd, fenix.SymbolBetween, "fenix.BetweenHandler"},
		{"orNotIn", fenix.PrefixOr, fenix.SymbolNotIn, "fenix.InHandler"},
		{"andIsNotNull", fenix.PrefixAnd, fenix.SymbolIsNotNull, "fenix.IsNullHandler"},
		{"text", fenix.PrefixNone, "", "fenix.TextHandler"},
		{"import", fenix.PrefixNone, "", "fenix.ImportHandler"},
		{"choose", fenix.PrefixNone, "", "fenix.ChooseHandler"},
		{"where", fenix.PrefixNone, "", "fenix.WhereHandler"},
	}
	for _, t := range tests {
		th, ok := r.Lookup(t.tag)
		c.Assert(ok, Equals, true, Commentf("tag %q", t.tag))
		c.Check(th.Name, Equals, t.tag)
		c.Check(th.Prefix, Equals, t.prefix, Commentf("tag %q", t.tag))
		c.Check(th.Symbol, Equals, t.symbol, Commentf("tag %q", t.tag))
		c.Check(th.TypeName(), Equals, t.typ, Commentf("tag %q", t.tag))
	}

	_, ok := r.Lookup("andText")
	c.Check(ok, Equals, false)
}

func (s *RegistrySuite) TestRegisterReplaces(c *C) {
	r := fenix.NewRegistry()
	fenix.RegisterBuiltins(r)
	r.Register("equal", fenix.PrefixAnd, "==", func() fenix.Handler { return fenix.ConditionHandler{} })

	th, ok := r.Lookup("equal")
	c.Assert(ok, Equals, true)
	c.Check(th.Prefix, Equals, fenix.PrefixAnd)
	c.Check(th.Symbol, Equals, "==")
	c.Check(th.TypeName(), Equals, "factory")
	c.Check(r.Tags(), HasLen, 55)
}

func (s *RegistrySuite) TestRegisterNil(c *C) {
	r := fenix.NewRegistry()
	c.Check(r.RegisterType("x", "", "", nil), ErrorMatches, `cannot register tag "x": nil handler`)
	c.Check(r.RegisterKind("x", (*counter)(nil)), ErrorMatches, `cannot register kind "x": nil handler`)
	c.Check(r.Tags(), HasLen, 0)
	c.Check(r.Kinds(), HasLen, 0)
}

// counter counts the builds it runs. Being a pointer type, each dispatch
// gets a fresh one.
type counter struct {
	n int
}

func (h *counter) Build(src *fenix.BuildSource) error {
	h.n++
	src.WriteText(fmt.Sprintf("n%d", h.n), nil)
	return nil
}

func (s *PackageSuite) TestFreshHandlerPerDispatch(c *C) {
	c.Assert(s.registry.RegisterType("count", fenix.PrefixNone, "", &counter{n: 10}), IsNil)
	info, err := s.engine.BuildFromNode("test", template(c, `<fenix id="q"><count/><count/></fenix>`), nil)
	c.Assert(err, IsNil)
	c.Check(info.SQL(), Equals, "n1 n1")
}

func (s *PackageSuite) TestInstantiationErrors(c *C) {
	s.registry.Register("boom", fenix.PrefixNone, "", func() fenix.Handler { panic("no luck") })
	s.registry.Register("none", fenix.PrefixNone, "", func() fenix.Handler { return nil })
	s.registry.Register("nilptr", fenix.PrefixNone, "", func() fenix.Handler { return (*counter)(nil) })

	tests := []struct {
		tag string
		err string
	}{
		{"boom", `line 1: tag "boom": cannot instantiate handler factory: panic: no luck`},
		{"none", `line 1: tag "none": cannot instantiate handler factory: no handler created`},
		{"nilptr", `line 1: tag "nilptr": cannot instantiate handler factory: no handler created`},
	}
	for _, t := range tests {
		_, err := s.engine.BuildFromNode("test", template(c, `<fenix id="q"><`+t.tag+`/></fenix>`), nil)
		c.Check(err, ErrorMatches, t.err)
		c.Check(errors.Is(err, fenix.ErrInstantiation), Equals, true)
		var ierr *fenix.InstantiationError
		c.Assert(errors.As(err, &ierr), Equals, true)
		c.Check(ierr.Type, Equals, "factory")
	}
}

func (s *PackageSuite) TestConcurrentRegisterAndBuild(c *C) {
	node := template(c, `<fenix id="q">SELECT * FROM t <where><andEqual field="a" value="a"/></where></fenix>`)
	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.registry.Register(fmt.Sprintf("tag%d", i), fenix.PrefixNone, "", func() fenix.Handler { return fenix.TextHandler{} })
		}(i)
		go func() {
			defer wg.Done()
			info, err := s.engine.BuildFromNode("test", node, fenix.M{"a": 1})
			if err == nil && info.SQL() != "SELECT * FROM t WHERE a = :a" {
				err = fmt.Errorf("unexpected sql %q", info.SQL())
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		c.Check(err, IsNil)
	}
	c.Check(s.registry.Tags(), HasLen, 105)
}

func (s *PackageSuite) TestBuiltinsWithoutNode(c *C) {
	for _, th := range s.registry.Tags() {
		src, err := s.engine.NewSource("test", nil, fenix.M{"a": 1})
		c.Assert(err, IsNil)
		err = s.engine.BuildFromTag(src, th.Name)
		c.Check(errors.Is(err, fenix.ErrInvalidNode), Equals, true, Commentf("tag %q: %v", th.Name, err))
		c.Check(src.Info().SQL(), Equals, "", Commentf("tag %q", th.Name))
	}

	src, err := s.engine.NewSource("test", nil, fenix.M{})
	c.Assert(err, IsNil)
	c.Check(s.engine.BuildFromTag(src, "text"), ErrorMatches, `fenix: invalid node: <text> needs a document node`)
}
