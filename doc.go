/*
Fenix builds parameterized SQL from template documents and from a fluent
builder. Both produce a [SQLInfo]: query text using ":name" placeholders and
the map of values to bind to them.

# Documents

A document is an XML file naming a namespace and holding templates, each
with an id local to the namespace:

	<fenixs namespace="user">
	    <fenix id="queryUsers" resultType="User" removeIfExist="1 = 1 AND|WHERE 1 = 1">
	        SELECT * FROM t_user AS u WHERE 1 = 1
	        <andEqual field="u.id" value="user.id" match="has(user.id)"/>
	        <andLike field="u.name" value="user.name" match="user.name != ''"/>
	        <andBetween field="u.age" start="minAge" end="maxAge"/>
	        ORDER BY @{order}
	    </fenix>
	</fenixs>

Templates are addressed by a fenix identifier, "<namespace>.<id>". The
namespace may contain dots, the id is what follows the last one:

	repo := fenix.NewRepository(nil)
	if _, err := repo.LoadDir("queries"); err != nil {
		// Some documents could not be loaded, the others were.
	}
	engine := fenix.MustNew(fenix.Config{Documents: repo})
	info, err := engine.Build("user.queryUsers", ctx)

Text children are appended as they are. Element children are dispatched by
tag name to the [Handler] registered for the tag, which decides, usually
through its "match" expression, whether to write a fragment.

When the children are done the text is finalised: "@{expr}" markers left
are replaced by the value of expr, runs of whitespace collapse to a single
space and each "#{expr}" marker becomes a ":name" placeholder bound to the
value of expr, name being expr with its dots and other non identifier
runs turned into underscores. The snippets listed in removeIfExist,
separated by "|", are then removed once each.

# Expressions

Match, value and template expressions are written in the Common Expression
Language. They see the keys of the context, which may be a map with string
keys or a struct. Struct fields are known by their "fenix" tag, or by their
name with its leading capitals lowered:

	type Query struct {
		User   User   `fenix:"user"`
		MinAge int    `fenix:"minAge,omitempty"`
		Order  string
	}

A match expression that fails to evaluate is logged and reads as false.
Value and template expressions that fail return an [*ExpressionError].

# Tags

Each condition tag comes in three forms: bare, with an "and" prefix and with
an "or" prefix, e.g. equal, andEqual and orEqual. The conditions are equal,
notEqual, greaterThan, lessThan, greaterThanEqual, lessThanEqual, like,
notLike, startsWith, notStartsWith, endsWith, notEndsWith, between, in,
notIn, isNull and isNotNull. The text, import, choose and where tags have a
single form.

New tags are registered on a [Registry], either in code with
[Registry.Register] or found by [Registry.Discover] from handler types and
YAML descriptors.

# Builder

The [Builder] writes the same fragments in code, naming each parameter after
its field:

	info, err := fenix.Start().
		Select("*").
		From("t_user AS u").
		Where("1 = 1").
		AndEqual("u.id", id, id != "").
		AndIn("u.status", []int{1, 2}).
		End()
	rows, err := db.QueryContext(ctx, info.SQL(), info.Args()...)
*/
package fenix
