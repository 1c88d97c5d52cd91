// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package document holds the tree form of template documents.

A document is an XML file whose root element names a namespace and whose
children are the templates of that namespace, each with a local id:

	<fenixs namespace="user">
	    <fenix id="queryUsers" resultType="User" removeIfExist="WHERE 1=1 AND|WHERE 1=1">
	        SELECT * FROM t_user AS u WHERE 1=1
	        <andEqual field="u.id" value="user.id" match="has(user.id)"/>
	        <andLike field="u.name" value="user.name"/>
	    </fenix>
	</fenixs>

Parse only builds the tree. Checking the namespace, ids and tags is left to
the engine.
*/
package document
