// Package importer parses credential exports from other password
// managers into plain entries the vault can add. Parsing is
// header-based: columns are located by name, not position, so exports
// with extra or reordered columns still load.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Required CSV column names.
const (
	colService  = "service"
	colUsername = "username"
	colPassword = "password"
)

// Aliases accepted for the service column. Most managers export the
// site under "name" or "url".
var serviceAliases = []string{colService, "name", "url", "site"}

// Entry is a single parsed credential.
type Entry struct {
	Service  string
	Username string
	Password string
}

// Result holds the parsed entries plus per-row warnings for rows that
// could not be used. A bad row never aborts the whole import.
type Result struct {
	Entries  []Entry
	Warnings []string
}

// ParseCSV reads a CSV credential export. The first row must be a
// header naming at least a service column (or one of its aliases),
// "username" and "password". Values are trimmed and normalized to NFC
// so visually identical entries compare equal later.
func ParseCSV(data []byte) (*Result, error) {
	// Strip UTF-8 BOM if present
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("importer: failed to read CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	serviceCol := -1
	for _, alias := range serviceAliases {
		if idx, ok := colIndex[alias]; ok {
			serviceCol = idx
			break
		}
	}
	if serviceCol < 0 {
		return nil, fmt.Errorf("importer: missing service column (accepted: %s)", strings.Join(serviceAliases, ", "))
	}
	usernameCol, ok := colIndex[colUsername]
	if !ok {
		return nil, fmt.Errorf("importer: missing required column: %s", colUsername)
	}
	passwordCol, ok := colIndex[colPassword]
	if !ok {
		return nil, fmt.Errorf("importer: missing required column: %s", colPassword)
	}

	result := &Result{}
	rowNum := 1
	for {
		rowNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: failed to parse: %v", rowNum, err))
			continue
		}

		entry := Entry{
			Service:  fieldAt(row, serviceCol),
			Username: fieldAt(row, usernameCol),
			Password: fieldAt(row, passwordCol),
		}
		if entry.Service == "" || entry.Username == "" || entry.Password == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: missing required field, skipped", rowNum))
			continue
		}
		result.Entries = append(result.Entries, entry)
	}

	return result, nil
}

func fieldAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return norm.NFC.String(strings.TrimSpace(row[idx]))
}
