// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix_test

import (
	"context"
	"errors"

	. "gopkg.in/check.v1"

	"github.com/blinkfox/fenix"
)

const userQueries = `<fenixs namespace="user">
	<fenix id="search">
		SELECT id, name FROM t_user
		<where>
			<andLike field="name" value="name" match="name != ''"/>
			<andGreaterThan field="age" value="age" match="age > 0"/>
		</where>
		ORDER BY id
	</fenix>
	<fenix id="byID">SELECT name, age FROM t_user WHERE id = #{id}</fenix>
	<fenix id="rename">UPDATE t_user SET name = #{name} WHERE id = #{id}</fenix>
</fenixs>`

func (s *PackageSuite) newDB(c *C) *fenix.DB {
	sqldb, err := userDB()
	c.Assert(err, IsNil)
	// Every connection to ":memory:" opens a database of its own.
	sqldb.SetMaxOpenConns(1)
	s.load(c, userQueries)
	return fenix.NewDB(sqldb, s.engine)
}

func (s *PackageSuite) TestDBGet(c *C) {
	db := s.newDB(c)
	defer db.PlainDB().Close()
	c.Check(db.Engine(), Equals, s.engine)

	var name string
	var age int
	err := db.Query(context.Background(), "user.byID", fenix.M{"id": 2}).Get(&name, &age)
	c.Assert(err, IsNil)
	c.Check(name, Equals, "bob")
	c.Check(age, Equals, 25)

	err = db.Query(nil, "user.byID", fenix.M{"id": 99}).Get(&name, &age)
	c.Check(errors.Is(err, fenix.ErrNoRows), Equals, true)

	err = db.Query(context.Background(), "user.nope", nil).Get(&name)
	c.Check(errors.Is(err, fenix.ErrNotFound), Equals, true)

	err = db.Query(context.Background(), "user.byID", nil).Get(&name)
	c.Check(errors.Is(err, fenix.ErrExpression), Equals, true)
}

func (s *PackageSuite) TestDBGetMaps(c *C) {
	db := s.newDB(c)
	defer db.PlainDB().Close()

	q := db.Query(context.Background(), "user.search", fenix.M{"name": "an", "age": 19})
	c.Check(q.SQLInfo().SQL(), Equals, "SELECT id, name FROM t_user WHERE name LIKE :name AND age > :age ORDER BY id")
	rows, err := q.GetMaps()
	c.Assert(err, IsNil)
	c.Check(rows, DeepEquals, []fenix.M{{"id": int64(1), "name": "ann"}, {"id": int64(3), "name": "dan"}})

	_, err = db.Query(context.Background(), "user.search", fenix.M{"name": "zed", "age": 0}).GetMaps()
	c.Check(errors.Is(err, fenix.ErrNoRows), Equals, true)
}

func (s *PackageSuite) TestDBIter(c *C) {
	db := s.newDB(c)
	defer db.PlainDB().Close()

	iter := db.Query(context.Background(), "user.search", fenix.M{"name": "", "age": 0}).Iter()
	c.Check(iter.Get(new(int)), ErrorMatches, "cannot get result: cannot call Get before Next")
	var names []string
	for iter.Next() {
		var id int
		var name string
		c.Assert(iter.Get(&id, &name), IsNil)
		names = append(names, name)
	}
	c.Assert(iter.Close(), IsNil)
	c.Check(iter.Close(), IsNil)
	c.Check(names, DeepEquals, []string{"ann", "bob", "dan", "hank"})
}

func (s *PackageSuite) TestDBBuilderQuery(c *C) {
	db := s.newDB(c)
	defer db.PlainDB().Close()

	info, err := s.engine.Start().InsertInto("t_user", "id", "name", "age", "email").Values(5, "eve", 33, "eve@example.com").End()
	c.Assert(err, IsNil)
	res, err := db.QueryInfo(context.Background(), info).Exec()
	c.Assert(err, IsNil)
	n, err := res.RowsAffected()
	c.Assert(err, IsNil)
	c.Check(n, Equals, int64(1))

	info, err = s.engine.Start().Select("name").From("t_user").Where().GreaterThanEqual("age", 33).OrderBy("age DESC").End()
	c.Assert(err, IsNil)
	var name string
	c.Assert(db.QueryInfo(context.Background(), info).Get(&name), IsNil)
	c.Check(name, Equals, "dan")

	_, err = db.QueryInfo(context.Background(), nil).Exec()
	c.Check(err, ErrorMatches, "cannot run query: nil SQLInfo")
}

func (s *PackageSuite) TestDBTransaction(c *C) {
	db := s.newDB(c)
	defer db.PlainDB().Close()
	ctx := context.Background()

	tx, err := db.Begin(ctx, nil)
	c.Assert(err, IsNil)
	_, err = tx.Query(ctx, "user.rename", fenix.M{"id": 1, "name": "anna"}).Exec()
	c.Assert(err, IsNil)
	c.Assert(tx.Rollback(), IsNil)
	c.Check(tx.Rollback(), Equals, fenix.ErrTXDone)
	_, err = tx.Query(ctx, "user.rename", fenix.M{"id": 1, "name": "anna"}).Exec()
	c.Check(err, Equals, fenix.ErrTXDone)

	var name string
	c.Assert(db.Query(ctx, "user.byID", fenix.M{"id": 1}).Get(&name, new(int)), IsNil)
	c.Check(name, Equals, "ann")

	tx, err = db.Begin(ctx, &fenix.TXOptions{})
	c.Assert(err, IsNil)
	q := tx.Query(ctx, "user.rename", fenix.M{"id": 1, "name": "anna"})
	_, err = q.Exec()
	c.Assert(err, IsNil)
	c.Assert(tx.Commit(), IsNil)
	_, err = q.Exec()
	c.Check(err, Equals, fenix.ErrTXDone)

	c.Assert(db.Query(ctx, "user.byID", fenix.M{"id": 1}).Get(&name, new(int)), IsNil)
	c.Check(name, Equals, "anna")
}
