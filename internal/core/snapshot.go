package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is written into every exported backup.
const SnapshotVersion = "1.0.0"

// Snapshot is the portable backup of the ledger and settings.
type Snapshot struct {
	Version    string    `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
	Budget     float64   `json:"budget"`
	Categories []string  `json:"categories"`
	Expenses   []Expense `json:"expenses"`
}

// BackupDocument is the lenient, decoded form of a backup file. Optional
// sections are nil when the file does not carry them.
type BackupDocument struct {
	Version    string
	Timestamp  string
	Budget     *float64
	Categories []string
	Expenses   []BackupExpense
}

// BackupExpense is one expense as found in a backup file. Older backups
// carry the identifier as "_id".
type BackupExpense struct {
	ID          string     `json:"id"`
	LegacyID    string     `json:"_id"`
	Title       string     `json:"title"`
	Amount      float64    `json:"amount"`
	Category    string     `json:"category"`
	PaymentMode string     `json:"paymentMode"`
	Notes       string     `json:"notes"`
	Date        Date       `json:"date"`
	CreatedAt   *time.Time `json:"createdAt"`
}

// Identifier returns the record id, falling back to the legacy field.
func (b BackupExpense) Identifier() string {
	if b.ID != "" {
		return b.ID
	}
	return b.LegacyID
}

// Document converts an in-memory snapshot into the form restore consumes.
func (s Snapshot) Document() BackupDocument {
	doc := BackupDocument{
		Version:    s.Version,
		Timestamp:  s.Timestamp.Format(time.RFC3339Nano),
		Categories: s.Categories,
	}
	if s.Budget != 0 {
		b := s.Budget
		doc.Budget = &b
	}
	if s.Expenses != nil {
		doc.Expenses = make([]BackupExpense, 0, len(s.Expenses))
		for _, e := range s.Expenses {
			createdAt := e.CreatedAt
			doc.Expenses = append(doc.Expenses, BackupExpense{
				ID:          e.ID,
				Title:       e.Title,
				Amount:      e.Amount,
				Category:    e.Category,
				PaymentMode: string(e.PaymentMode),
				Notes:       e.Notes,
				Date:        e.Date,
				CreatedAt:   &createdAt,
			})
		}
	}
	return doc
}

// ParseBackup decodes a backup file. It fails with *InvalidBackupError when
// the document is not a JSON object, when "expenses" is missing or is not an
// array, or when a present section has the wrong shape.
func ParseBackup(data []byte) (BackupDocument, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return BackupDocument{}, &InvalidBackupError{Reason: "not a JSON object", Err: err}
	}

	expenses, ok := raw["expenses"]
	if !ok || isNull(expenses) {
		return BackupDocument{}, &InvalidBackupError{Reason: "missing expenses data"}
	}
	if trimmed := bytes.TrimSpace(expenses); len(trimmed) == 0 || trimmed[0] != '[' {
		return BackupDocument{}, &InvalidBackupError{Reason: "expenses must be an array"}
	}

	var doc BackupDocument
	if err := json.Unmarshal(expenses, &doc.Expenses); err != nil {
		return BackupDocument{}, &InvalidBackupError{Reason: "malformed expense record", Err: err}
	}
	if doc.Expenses == nil {
		doc.Expenses = []BackupExpense{}
	}

	if v, ok := raw["budget"]; ok && !isNull(v) {
		var budget float64
		if err := json.Unmarshal(v, &budget); err != nil {
			return BackupDocument{}, &InvalidBackupError{Reason: "budget must be a number", Err: err}
		}
		doc.Budget = &budget
	}
	if v, ok := raw["categories"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &doc.Categories); err != nil {
			return BackupDocument{}, &InvalidBackupError{Reason: "categories must be a list of names", Err: err}
		}
		if doc.Categories == nil {
			doc.Categories = []string{}
		}
	}
	if v, ok := raw["version"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &doc.Version); err != nil {
			return BackupDocument{}, &InvalidBackupError{Reason: fmt.Sprintf("version must be a string, got %s", v)}
		}
	}
	if v, ok := raw["timestamp"]; ok && !isNull(v) {
		_ = json.Unmarshal(v, &doc.Timestamp)
	}
	return doc, nil
}

func isNull(b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
