package db

import "testing"

func TestRebind(t *testing.T) {
	cases := []struct {
		driver string
		in     string
		want   string
	}{
		{DriverSQLite, `SELECT * FROM scores WHERE id=?`, `SELECT * FROM scores WHERE id=?`},
		{DriverPostgres, `UPDATE scores SET lane=? WHERE id=?`, `UPDATE scores SET lane=$1 WHERE id=$2`},
		{"pg", `SELECT '?' , ?`, `SELECT '?' , $1`},
	}
	for _, tc := range cases {
		if got := Rebind(tc.driver, tc.in); got != tc.want {
			t.Fatalf("Rebind(%s, %q) = %q, want %q", tc.driver, tc.in, got, tc.want)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "mysql"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := Open(Config{Driver: "postgres"}); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
}
