// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix_test

import (
	"errors"

	. "gopkg.in/check.v1"

	"github.com/blinkfox/fenix"
)

func (s *PackageSuite) TestBuilderFamilies(c *C) {
	tests := []struct {
		summary string
		build   func(b *fenix.Builder) *fenix.Builder
		sql     string
		params  map[string]any
	}{{
		"equal",
		func(b *fenix.Builder) *fenix.Builder { return b.Equal("u.id", 1) },
		"u.id = :u_id",
		map[string]any{"u_id": 1},
	}, {
		"comparisons",
		func(b *fenix.Builder) *fenix.Builder {
			return b.NotEqual("a", 1).AndGreaterThan("b", 2).OrLessThan("c", 3).
				AndGreaterThanEqual("d", 4).OrLessThanEqual("e", 5).AndNotEqual("f", 6).OrEqual("g", 7)
		},
		"a <> :a AND b > :b OR c < :c AND d >= :d OR e <= :e AND f <> :f OR g = :g",
		map[string]any{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": 6, "g": 7},
	}, {
		"like escaping",
		func(b *fenix.Builder) *fenix.Builder { return b.Like("title", "100%done") },
		"title LIKE :title",
		map[string]any{"title": `%100\%done%`},
	}, {
		"like escaping backslashes",
		func(b *fenix.Builder) *fenix.Builder {
			return b.Like("a", `a\`).AndStartsWith("b", `c:\dir`).OrEndsWith("c", `\%`)
		},
		"a LIKE :a AND b LIKE :b OR c LIKE :c",
		map[string]any{"a": `%a\\%`, "b": `c:\\dir%`, "c": `%\\\%`},
	}, {
		"like family",
		func(b *fenix.Builder) *fenix.Builder {
			return b.StartsWith("a", "x").AndNotStartsWith("b", "y").OrEndsWith("c", "z").
				AndNotEndsWith("d", "w").OrNotLike("e", "v").AndLike("f", nil)
		},
		"a LIKE :a AND b NOT LIKE :b OR c LIKE :c AND d NOT LIKE :d OR e NOT LIKE :e AND f LIKE :f",
		map[string]any{"a": "x%", "b": "y%", "c": "%z", "d": "%w", "e": "%v%", "f": "%%"},
	}, {
		"like patterns",
		func(b *fenix.Builder) *fenix.Builder {
			return b.LikePattern("a", "x_%").AndNotLikePattern("b", "it's%").OrLikePattern("c", "%z")
		},
		"a LIKE 'x_%' AND b NOT LIKE 'it''s%' OR c LIKE '%z'",
		map[string]any{},
	}, {
		"between with both bounds",
		func(b *fenix.Builder) *fenix.Builder { return b.Between("age", 18, 30) },
		"age BETWEEN :age_start AND :age_end",
		map[string]any{"age_start": 18, "age_end": 30},
	}, {
		"between with end only",
		func(b *fenix.Builder) *fenix.Builder { return b.Between("age", nil, "2019-08-07") },
		"age <= :age_end",
		map[string]any{"age_end": "2019-08-07"},
	}, {
		"between with start only",
		func(b *fenix.Builder) *fenix.Builder { return b.Equal("a", 1).OrBetween("u.age", 18, (*int)(nil)) },
		"a = :a OR u.age >= :u_age_start",
		map[string]any{"a": 1, "u_age_start": 18},
	}, {
		"between without bounds",
		func(b *fenix.Builder) *fenix.Builder { return b.Between("age", nil, nil).AndBetween("age", nil, nil) },
		"",
		map[string]any{},
	}, {
		"in",
		func(b *fenix.Builder) *fenix.Builder {
			return b.In("id", []int{1, 2}).AndNotIn("status", [2]string{"a", "b"}).OrIn("kind", []any{})
		},
		"id IN :id AND status NOT IN :status OR kind IN :kind",
		map[string]any{"id": []int{1, 2}, "status": [2]string{"a", "b"}, "kind": []any{}},
	}, {
		"null checks",
		func(b *fenix.Builder) *fenix.Builder { return b.IsNull("a").AndIsNotNull("b").OrIsNull("c").AndIsNull("d") },
		"a IS NULL AND b IS NOT NULL OR c IS NULL AND d IS NULL",
		map[string]any{},
	}, {
		"match guards",
		func(b *fenix.Builder) *fenix.Builder {
			return b.Equal("a", 1, false).AndEqual("b", 2, true).AndIn("c", []int{1}, false).
				OrLike("d", "x", true, false).AndIsNull("e", false).OrBetween("f", 1, 2, false)
		},
		"AND b = :b",
		map[string]any{"b": 2},
	}, {
		"duplicate field keeps last value",
		func(b *fenix.Builder) *fenix.Builder { return b.Equal("a", 1).OrEqual("a", 2) },
		"a = :a OR a = :a",
		map[string]any{"a": 2},
	}}
	for i, t := range tests {
		comment := Commentf("test %d failed (%s)", i, t.summary)
		info, err := t.build(s.engine.Start()).End()
		c.Assert(err, IsNil, comment)
		c.Check(info.SQL(), Equals, t.sql, comment)
		c.Check(info.Params(), DeepEquals, t.params, comment)
	}
}

func (s *PackageSuite) TestBuilderKeywords(c *C) {
	tests := []struct {
		summary string
		builder *fenix.Builder
		sql     string
		params  map[string]any
	}{{
		"select",
		s.engine.Start().Select("*").From("t_user AS u").Where("1 = 1").
			AndEqual("u.id", 1).AndLike("u.name", "a%b").OrIn("u.status", []int{1, 2}).
			OrderBy("u.id"),
		"SELECT * FROM t_user AS u WHERE 1 = 1 AND u.id = :u_id AND u.name LIKE :u_name OR u.status IN :u_status ORDER BY u.id",
		map[string]any{"u_id": 1, "u_name": `%a\%b%`, "u_status": []int{1, 2}},
	}, {
		"joins and grouping",
		s.engine.Start().Select("u.name", "count(*)").From("t_user AS u").
			LeftJoin("t_role AS r ON r.uid = u.id").InnerJoin("t_org AS o ON o.id = u.oid").Join("t_x AS x ON x.id = u.xid").
			GroupBy("u.name").Having("count(*) > 1").Limit(10).Offset(20),
		"SELECT u.name, count(*) FROM t_user AS u LEFT JOIN t_role AS r ON r.uid = u.id INNER JOIN t_org AS o ON o.id = u.oid " +
			"JOIN t_x AS x ON x.id = u.xid GROUP BY u.name HAVING count(*) > 1 LIMIT 10 OFFSET 20",
		map[string]any{},
	}, {
		"insert",
		s.engine.Start().InsertInto("t_user", "name", "age").Values("ann", 20),
		"INSERT INTO t_user (name, age) VALUES (:text1, :text2)",
		map[string]any{"text1": "ann", "text2": 20},
	}, {
		"update",
		s.engine.Start().Update("t_user").Set("name = :name", "age = :age").Params(map[string]any{"name": "bob", "age": 30}).
			Where().Equal("id", 1),
		"UPDATE t_user SET name = :name, age = :age WHERE id = :id",
		map[string]any{"name": "bob", "age": 30, "id": 1},
	}, {
		"delete",
		s.engine.Start().DeleteFrom("t_user").Where().IsNull("a").OrIsNotNull("b"),
		"DELETE FROM t_user WHERE a IS NULL OR b IS NOT NULL",
		map[string]any{},
	}, {
		"text",
		s.engine.Start().Select("*").From("t").Where().
			Text("a = ? AND b = '?' AND c = :c", 1).Param("c", 3).Text("OR d = ?", 4),
		"SELECT * FROM t WHERE a = :text1 AND b = '?' AND c = :c OR d = :text2",
		map[string]any{"text1": 1, "c": 3, "text2": 4},
	}, {
		"dynamic where",
		s.engine.Start().Select("*").From("t").WhereDynamic(func(b *fenix.Builder) {
			b.AndEqual("a", 1).OrEqual("b", 2, false)
		}).OrderBy("a"),
		"SELECT * FROM t WHERE a = :a ORDER BY a",
		map[string]any{"a": 1},
	}, {
		"empty dynamic where",
		s.engine.Start().Select("*").From("t").WhereDynamic(func(b *fenix.Builder) {
			b.AndEqual("a", 1, false).OrBetween("b", nil, nil)
		}).OrderBy("a"),
		"SELECT * FROM t ORDER BY a",
		map[string]any{},
	}}
	for i, t := range tests {
		comment := Commentf("test %d failed (%s)", i, t.summary)
		info, err := t.builder.End()
		c.Assert(err, IsNil, comment)
		c.Check(info.SQL(), Equals, t.sql, comment)
		c.Check(info.Params(), DeepEquals, t.params, comment)
	}
}

func (s *PackageSuite) TestBuilderFalseMatchLeavesStateAlone(c *C) {
	b := s.engine.Start().Select("*").From("t").Where("1 = 1").AndEqual("a", 1)
	before, err := b.End()
	c.Assert(err, IsNil)
	sql, params := before.SQL(), before.Params()

	after, err := b.AndIn("b", []int{1, 2}, false).OrIn("c", nil, false).End()
	c.Assert(err, IsNil)
	c.Check(after.SQL(), Equals, sql)
	c.Check(after.Params(), DeepEquals, params)
}

func (s *PackageSuite) TestBuilderResultType(c *C) {
	info, err := s.engine.Start().Select("*").From("t").ResultType("User").End()
	c.Assert(err, IsNil)
	c.Check(info.ResultType(), Equals, "User")
}

func (s *PackageSuite) TestBuilderErrors(c *C) {
	_, err := s.engine.Start().Select("*").From("t").Where().In("id", "x").AndEqual("a", 1).End()
	c.Check(errors.Is(err, fenix.ErrTypeMismatch), Equals, true)
	c.Check(err, ErrorMatches, "fenix: type mismatch: id IN needs a slice or an array, got string")

	b := s.engine.Start().NotIn("id", nil)
	c.Check(errors.Is(b.Err(), fenix.ErrTypeMismatch), Equals, true)
	// The first error sticks.
	b.Text("a = ?")
	_, err = b.End()
	c.Check(err, ErrorMatches, "fenix: type mismatch: id NOT IN needs a slice or an array, got nil")

	_, err = s.engine.Start().Text("a = ? AND b = ?", 1).End()
	c.Check(err, ErrorMatches, `text "a = \? AND b = \?" has 2 placeholders, got 1 values`)

	_, err = s.engine.Start().Text("a = 1", 1).End()
	c.Check(err, ErrorMatches, `text "a = 1" has 0 placeholders, got 1 values`)
}

func (s *PackageSuite) TestBuilderOnDatabase(c *C) {
	db, err := userDB()
	c.Assert(err, IsNil)
	defer db.Close()

	info, err := s.engine.Start().
		Select("name").
		From("t_user").
		WhereDynamic(func(b *fenix.Builder) {
			b.AndLike("name", "an").
				AndBetween("age", 18, 30).
				AndIn("id", []int{1}, false)
		}).
		OrderBy("name").
		End()
	c.Assert(err, IsNil)

	rows, err := db.Query(info.SQL(), info.Args()...)
	c.Assert(err, IsNil)
	c.Check(names(c, rows), DeepEquals, []string{"ann", "hank"})

	info, err = s.engine.Start().Select("name").From("t_user").Where().
		Text("id > ?", 1).Text("AND email LIKE ?", "%@example.com").OrderBy("name DESC").Limit(2).End()
	c.Assert(err, IsNil)
	c.Check(info.SQL(), Equals, "SELECT name FROM t_user WHERE id > :text1 AND email LIKE :text2 ORDER BY name DESC LIMIT 2")

	rows, err = db.Query(info.SQL(), info.Args()...)
	c.Assert(err, IsNil)
	c.Check(names(c, rows), DeepEquals, []string{"hank", "dan"})
}

func (s *PackageSuite) TestDefaultStart(c *C) {
	info, err := fenix.Start().Select("*").From("t").Where().Equal("a", 1).End()
	c.Assert(err, IsNil)
	c.Check(info.SQL(), Equals, "SELECT * FROM t WHERE a = :a")
	c.Check(fenix.Default().Registry(), Equals, fenix.DefaultRegistry())
}
