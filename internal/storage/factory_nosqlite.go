//go:build !sqlite

package storage

import "fmt"

func newSQLiteStore(path string) (Store, error) {
	return nil, fmt.Errorf("%s store %q needs a binary built with -tags sqlite", KindSQLite, path)
}
