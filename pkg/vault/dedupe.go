package vault

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/passguard/passguard/pkg/audit"
)

// DuplicateGroup is a set of credentials that collapse to the same
// normalized (service, username) pair. Entries are ordered newest
// first by UpdatedAt, so Entries[0] is the record Resolve keeps.
type DuplicateGroup struct {
	Service  string
	Username string
	Entries  []*Credential
}

// dedupeKey normalizes an identifying pair for duplicate detection.
// Storage uniqueness is exact-match; the scan is deliberately looser,
// folding case and Unicode representation so "GitHub" and "github"
// surface as the same service.
func dedupeKey(service, username string) string {
	s := strings.ToLower(norm.NFC.String(strings.TrimSpace(service)))
	u := strings.ToLower(norm.NFC.String(strings.TrimSpace(username)))
	return s + "\x00" + u
}

// FindDuplicates scans the store and groups credentials whose
// normalized pairs collide. Groups with a single entry are omitted.
func (v *Vault) FindDuplicates() ([]*DuplicateGroup, error) {
	byKey := make(map[string]*DuplicateGroup)
	var order []string

	for cred, err := range v.Find("") {
		if err != nil {
			return nil, err
		}
		key := dedupeKey(cred.Service, cred.Username)
		group, ok := byKey[key]
		if !ok {
			group = &DuplicateGroup{Service: cred.Service, Username: cred.Username}
			byKey[key] = group
			order = append(order, key)
		}
		group.Entries = append(group.Entries, cred)
	}

	var groups []*DuplicateGroup
	for _, key := range order {
		group := byKey[key]
		if len(group.Entries) < 2 {
			continue
		}
		sort.SliceStable(group.Entries, func(i, j int) bool {
			return group.Entries[i].UpdatedAt.After(group.Entries[j].UpdatedAt)
		})
		groups = append(groups, group)
	}
	return groups, nil
}

// ResolveDuplicates deletes every entry in each group except the most
// recently updated one. Returns the number of deleted credentials.
func (v *Vault) ResolveDuplicates(groups []*DuplicateGroup) (int, error) {
	if err := v.requireUnlocked(); err != nil {
		return 0, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	tx, err := v.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("vault: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleted := 0
	for _, group := range groups {
		for _, cred := range group.Entries[1:] {
			res, err := tx.Exec(`DELETE FROM credentials WHERE id = ?`, cred.ID)
			if err != nil {
				return 0, fmt.Errorf("vault: failed to delete duplicate %s: %w", cred.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				deleted++
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("vault: failed to commit: %w", err)
	}

	_ = v.audit.Log(audit.OpDedupe, audit.ResultSuccess, fmt.Sprintf("removed %d", deleted))
	return deleted, nil
}
