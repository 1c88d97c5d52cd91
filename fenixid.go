// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"fmt"
	"strings"
)

// ParseID splits a fenix identifier "<namespace>.<id>" at its last dot, so
// namespaces may themselves contain dots. Both parts must be non-blank.
func ParseID(fenixID string) (namespace, id string, err error) {
	s := strings.TrimSpace(fenixID)
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return "", "", fmt.Errorf("%w: %q has no namespace", ErrInvalidID, fenixID)
	}
	namespace, id = strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	if namespace == "" || id == "" {
		return "", "", fmt.Errorf("%w: %q needs a namespace and an id", ErrInvalidID, fenixID)
	}
	return namespace, id, nil
}

// JoinID is the inverse of ParseID.
func JoinID(namespace, id string) string {
	return namespace + "." + id
}
