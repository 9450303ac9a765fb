package repositories

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/shared"
)

// CSV column names of the credential file.
const (
	ColumnIdentifier = "email"
	ColumnSecret     = "password"
	ColumnToken      = "auth_token"
)

// CredentialStore persists account credentials and cached session keys in a CSV file.
//
// Save writes the file back as it was read: extra columns and rows without an identifier
// are kept verbatim, only token cells change. The store is not safe for concurrent use;
// the orchestrator updates it once after every workflow has finished.
type CredentialStore struct {
	path    string
	table   *CredentialTable
	records []models.CredentialRecord
	index   map[string]int
}

// NewCredentialStore creates a store backed by the CSV file at path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path, index: make(map[string]int)}
}

// Path returns the backing file path.
func (s *CredentialStore) Path() string { return s.path }

// Load reads every record from disk, replacing the in-memory contents.
//
// Any failure is a [shared.PersistenceError].
func (s *CredentialStore) Load() error {
	f, err := os.Open(s.path)
	if err != nil {
		return &shared.PersistenceError{Path: s.path, Cause: err}
	}
	defer f.Close()

	table, err := ReadCredentialTable(f)
	if err != nil {
		return &shared.PersistenceError{Path: s.path, Cause: err}
	}

	s.table = table
	s.records = table.Records()
	s.index = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.Identifier] = i
	}
	return nil
}

// CredentialTable is a parsed credential file: the header, every data row as read, and the
// positions of the known columns.
type CredentialTable struct {
	header []string
	rows   [][]string
	idCol  int
	secCol int
	tokCol int   // -1 when the file has no token column
	recRow []int // row index of each record, in record order
}

// ReadCredentialTable parses credential CSV with a header row.
//
// The identifier and secret columns are required, in any order and case; the token column
// is optional. Rows with an empty identifier are kept in the table but yield no record.
func ReadCredentialTable(r io.Reader) (*CredentialTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty credential file", shared.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	idCol, okID := cols[ColumnIdentifier]
	secCol, okSecret := cols[ColumnSecret]
	if !okID || !okSecret {
		return nil, fmt.Errorf("%w: header must contain %q and %q", shared.ErrInvalidInput, ColumnIdentifier, ColumnSecret)
	}
	tokCol, hasToken := cols[ColumnToken]
	if !hasToken {
		tokCol = -1
	}

	t := &CredentialTable{header: header, idCol: idCol, secCol: secCol, tokCol: tokCol}
	seen := make(map[string]struct{})
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		t.rows = append(t.rows, row)
		id := t.field(row, idCol)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", shared.ErrDuplicateIdentity, id)
		}
		seen[id] = struct{}{}
		t.recRow = append(t.recRow, len(t.rows)-1)
	}
	return t, nil
}

func (t *CredentialTable) field(row []string, i int) string {
	if i >= 0 && i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// Records returns one record per row with an identifier, in file order.
func (t *CredentialTable) Records() []models.CredentialRecord {
	records := make([]models.CredentialRecord, 0, len(t.recRow))
	for _, i := range t.recRow {
		row := t.rows[i]
		records = append(records, models.CredentialRecord{
			Identifier: t.field(row, t.idCol),
			Secret:     t.field(row, t.secCol),
			Token:      t.field(row, t.tokCol),
		})
	}
	return records
}

// Write encodes the table with the tokens of records, which must be in [CredentialTable.Records]
// order. A token column is appended when the file had none. Every other cell is written as read.
func (t *CredentialTable) Write(w io.Writer, records []models.CredentialRecord) error {
	if len(records) != len(t.recRow) {
		return fmt.Errorf("%w: %d records for %d credential rows", shared.ErrInvalidInput, len(records), len(t.recRow))
	}

	header := slices.Clone(t.header)
	tokCol := t.tokCol
	if tokCol < 0 {
		header = append(header, ColumnToken)
		tokCol = len(header) - 1
	}

	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rows[i] = slices.Clone(row)
	}
	for i, ri := range t.recRow {
		row := rows[ri]
		for len(row) <= tokCol {
			row = append(row, "")
		}
		row[tokCol] = records[i].Token
		rows[ri] = row
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// newCredentialTable builds a table holding only records, with the standard header.
func newCredentialTable(records []models.CredentialRecord) *CredentialTable {
	t := &CredentialTable{
		header: []string{ColumnIdentifier, ColumnSecret, ColumnToken},
		idCol:  0,
		secCol: 1,
		tokCol: 2,
	}
	for i, r := range records {
		t.rows = append(t.rows, []string{r.Identifier, r.Secret, r.Token})
		t.recRow = append(t.recRow, i)
	}
	return t
}

// Records returns a copy of every record in file order.
func (s *CredentialStore) Records() []models.CredentialRecord {
	return slices.Clone(s.records)
}

// Get returns the record for identifier.
func (s *CredentialStore) Get(identifier string) (models.CredentialRecord, bool) {
	i, ok := s.index[identifier]
	if !ok {
		return models.CredentialRecord{}, false
	}
	return s.records[i], true
}

// Update copies the tokens of the given records into the store and returns how many changed.
//
// Unknown identifiers and empty tokens are ignored, so a record keeps its last-known token.
func (s *CredentialStore) Update(records []models.CredentialRecord) int {
	changed := 0
	for _, r := range records {
		i, ok := s.index[r.Identifier]
		if !ok || r.Token == "" || s.records[i].Token == r.Token {
			continue
		}
		s.records[i].Token = r.Token
		changed++
	}
	return changed
}

// Save writes the file back atomically, changing only token cells.
func (s *CredentialStore) Save() error {
	table := s.table
	if table == nil {
		table = newCredentialTable(s.records)
	}

	var buf bytes.Buffer
	if err := table.Write(&buf, s.records); err != nil {
		return &shared.PersistenceError{Path: s.path, Cause: err}
	}
	if err := shared.WriteFileAtomic(s.path, buf.Bytes(), 0o600); err != nil {
		return &shared.PersistenceError{Path: s.path, Cause: err}
	}
	return nil
}
