// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix_test

import (
	"context"
	"database/sql"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5"
	. "gopkg.in/check.v1"

	"github.com/blinkfox/fenix"
)

type SQLInfoSuite struct{}

var _ = Suite(&SQLInfoSuite{})

func (s *SQLInfoSuite) TestAccessors(c *C) {
	info := fenix.NewSQLInfo()
	c.Check(info.SQL(), Equals, "")
	c.Check(info.Params(), DeepEquals, map[string]any{})
	c.Check(info.Args(), HasLen, 0)

	info.Append("SELECT * FROM t WHERE ")
	info.Append("a = :a")
	info.SetParam("a", 1)
	info.SetParam("a", 2)
	info.SetResultType("T")
	c.Check(info.SQL(), Equals, "SELECT * FROM t WHERE a = :a")
	c.Check(info.ResultType(), Equals, "T")

	v, ok := info.Param("a")
	c.Check(ok, Equals, true)
	c.Check(v, Equals, 2)
	_, ok = info.Param("b")
	c.Check(ok, Equals, false)

	// Params hands out a copy.
	params := info.Params()
	params["b"] = 3
	_, ok = info.Param("b")
	c.Check(ok, Equals, false)
}

func (s *SQLInfoSuite) TestArgsAreSorted(c *C) {
	info := fenix.NewSQLInfo()
	info.SetParam("b", 2)
	info.SetParam("c", "x")
	info.SetParam("a", nil)
	c.Check(info.Args(), DeepEquals, []any{sql.Named("a", nil), sql.Named("b", 2), sql.Named("c", "x")})
}

func (s *SQLInfoSuite) TestString(c *C) {
	info := fenix.NewSQLInfo()
	info.Append("a = :a AND b = :b")
	info.SetParam("b", "x")
	info.SetParam("a", 1)
	c.Check(info.String(), Equals, `SQLInfo[a = :a AND b = :b] a=1 b="x"`)
}

func (s *SQLInfoSuite) TestPgxArgs(c *C) {
	info := fenix.NewSQLInfo()
	info.Append("SELECT ':x', a::text FROM t WHERE a = :a AND b IN :b -- :c\nAND c = ?")
	info.SetParam("a", 1)
	info.SetParam("b", []int{1, 2})

	query, args := info.PgxArgs()
	c.Check(query, Equals, "SELECT ':x', a::text FROM t WHERE a = @a AND b IN @b -- :c\nAND c = ?")
	c.Check(args, DeepEquals, pgx.NamedArgs{"a": 1, "b": []int{1, 2}})

	info = fenix.NewSQLInfo()
	info.Append("SELECT * FROM t WHERE a = :a AND b = :b OR a > :a")
	info.SetParam("a", 1)
	info.SetParam("b", "x")
	query, args = info.PgxArgs()
	rewritten, values, err := args.RewriteQuery(context.Background(), nil, query, nil)
	c.Assert(err, IsNil)
	c.Check(rewritten, Equals, "SELECT * FROM t WHERE a = $1 AND b = $2 OR a > $1")
	c.Check(values, DeepEquals, []any{1, "x"})
}

func (s *PackageSuite) TestArgsReachTheDriver(c *C) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	c.Assert(err, IsNil)
	defer db.Close()

	info, err := s.engine.BuildFromNode("test", template(c, `<fenix id="q">
		SELECT name FROM t_user
		<where>
			<andEqual field="id" value="id"/>
			<andStartsWith field="name" value="name"/>
		</where>
	</fenix>`), fenix.M{"id": 7, "name": "an"})
	c.Assert(err, IsNil)

	mock.ExpectQuery("SELECT name FROM t_user WHERE id = :id AND name LIKE :name").
		WithArgs(sql.Named("id", 7), sql.Named("name", "an%")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ann"))

	rows, err := db.Query(info.SQL(), info.Args()...)
	c.Assert(err, IsNil)
	c.Check(names(c, rows), DeepEquals, []string{"ann"})
	c.Check(mock.ExpectationsWereMet(), IsNil)
}
