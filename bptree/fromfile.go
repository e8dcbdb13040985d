package bptree

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/relstore/core/lockmgr"
	"github.com/relstore/core/storage"
)

// InsertFromFile bulk-loads a newline-delimited list of integer keys
// into an int64-keyed index, deriving each entry's RID from its key via
// storage.NewRID. This is a supplement over spec.md's bare Insert
// contract, generalizing the bustub-style "*_from_file" test harness
// convention that original_source/ implementations of this tree build
// their scenario fixtures with.
func InsertFromFile(t *Tree[int64, storage.RID], path string, txn *lockmgr.Transaction) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return fmt.Errorf("bptree: parsing key %q: %w", line, err)
		}
		if _, err := t.Insert(key, storage.NewRID(key), txn); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// RemoveFromFile mirrors InsertFromFile for bulk deletion.
func RemoveFromFile(t *Tree[int64, storage.RID], path string, txn *lockmgr.Transaction) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return fmt.Errorf("bptree: parsing key %q: %w", line, err)
		}
		if err := t.Remove(key, txn); err != nil {
			return err
		}
	}
	return scanner.Err()
}
