package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeRewritesLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM t WHERE id > ? ORDER BY id asc LIMIT ?,?", []interface{}{"a", 0, 100})
	require.Equal(t, "SELECT id FROM t WHERE id > $1 ORDER BY id asc LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"a", 100, 0}, args)
}

func TestFinalizeWithoutLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM t WHERE ns = ?", []interface{}{"x"})
	require.Equal(t, "SELECT id FROM t WHERE ns = $1", query)
	require.Equal(t, []interface{}{"x"}, args)
}
