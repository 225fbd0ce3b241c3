package migrate

import "testing"

func TestRunValidation(t *testing.T) {
	if err := Run("", "up"); err == nil {
		t.Fatal("empty DSN should fail")
	}
	if err := Run("postgres://localhost/db", "sideways"); err == nil {
		t.Fatal("unknown direction should fail")
	}
}
