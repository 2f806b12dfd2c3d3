package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestIsDuplicate(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !isDuplicate(dup) {
		t.Fatal("expected 1062 to be a duplicate")
	}
	if !isDuplicate(fmt.Errorf("insert: %w", dup)) {
		t.Fatal("expected wrapped 1062 to be a duplicate")
	}
	if isDuplicate(&mysql.MySQLError{Number: 1452}) {
		t.Fatal("foreign key error is not a duplicate")
	}
	if isDuplicate(errors.New("boom")) {
		t.Fatal("plain error is not a duplicate")
	}
}
