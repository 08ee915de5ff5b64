package importer

import (
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	data := []byte("service,username,password\n" +
		"github.com,octocat,hunter2\n" +
		"example.org,alice,correct horse\n")

	result, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(result.Entries))
	}
	if result.Entries[0].Service != "github.com" || result.Entries[0].Username != "octocat" || result.Entries[0].Password != "hunter2" {
		t.Errorf("first entry = %+v", result.Entries[0])
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestParseCSVServiceAliases(t *testing.T) {
	for _, header := range []string{"name", "url", "site"} {
		data := []byte(header + ",username,password\ngithub.com,octocat,pw\n")
		result, err := ParseCSV(data)
		if err != nil {
			t.Fatalf("ParseCSV() with %q header error = %v", header, err)
		}
		if len(result.Entries) != 1 || result.Entries[0].Service != "github.com" {
			t.Errorf("header %q: entries = %+v", header, result.Entries)
		}
	}
}

func TestParseCSVReorderedColumns(t *testing.T) {
	data := []byte("password,service,username,notes\n" +
		"pw,github.com,octocat,something\n")

	result, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(result.Entries))
	}
	e := result.Entries[0]
	if e.Service != "github.com" || e.Username != "octocat" || e.Password != "pw" {
		t.Errorf("entry = %+v", e)
	}
}

func TestParseCSVBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("service,username,password\nsvc,user,pw\n")...)
	result, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(result.Entries) != 1 {
		t.Errorf("got %d entries, want 1", len(result.Entries))
	}
}

func TestParseCSVMissingColumns(t *testing.T) {
	if _, err := ParseCSV([]byte("username,password\nuser,pw\n")); err == nil {
		t.Error("ParseCSV() accepted missing service column")
	}
	if _, err := ParseCSV([]byte("service,password\nsvc,pw\n")); err == nil {
		t.Error("ParseCSV() accepted missing username column")
	}
}

func TestParseCSVSkipsBadRows(t *testing.T) {
	data := []byte("service,username,password\n" +
		"github.com,octocat,hunter2\n" +
		"missing-fields,,\n" +
		"example.org,alice,pw\n")

	result, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(result.Entries) != 2 {
		t.Errorf("got %d entries, want 2", len(result.Entries))
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "row 3") {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestParseCSVNormalizesUnicode(t *testing.T) {
	// "café" with a combining acute accent must come out precomposed.
	data := []byte("service,username,password\ncafé.fr,user,pw\n")
	result, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Service != "café.fr" {
		t.Errorf("entries = %+v", result.Entries)
	}
}
