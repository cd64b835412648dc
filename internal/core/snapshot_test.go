package core

import (
	"testing"
)

func TestParseBackupRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{oops`},
		{"array document", `[]`},
		{"missing expenses", `{"budget": 5000, "categories": ["Sand"]}`},
		{"null expenses", `{"expenses": null}`},
		{"object expenses", `{"expenses": {"id": "1"}}`},
		{"string expenses", `{"expenses": "[]"}`},
		{"bad budget", `{"expenses": [], "budget": "lots"}`},
		{"bad categories", `{"expenses": [], "categories": "Sand"}`},
		{"bad record", `{"expenses": [{"amount": "ten"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBackup([]byte(tt.data))
			if !IsInvalidBackup(err) {
				t.Fatalf("expected InvalidBackupError, got %v", err)
			}
		})
	}
}

func TestParseBackupOptionalSections(t *testing.T) {
	doc, err := ParseBackup([]byte(`{"expenses": []}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Budget != nil || doc.Categories != nil {
		t.Fatalf("absent sections must stay nil: %+v", doc)
	}
	if doc.Expenses == nil || len(doc.Expenses) != 0 {
		t.Fatalf("expected empty expenses, got %v", doc.Expenses)
	}
}

func TestParseBackupLegacyRecord(t *testing.T) {
	data := `{
		"version": "1.0.0",
		"timestamp": "2024-02-20T10:00:00.000Z",
		"budget": 750000,
		"categories": ["Cement", "Tiles"],
		"expenses": [
			{"_id": "legacy-1", "title": "Tiles", "amount": 4200, "category": "Tiles",
			 "paymentMode": "Online/UPI", "date": "2024-02-18", "createdAt": "2024-02-18T08:00:00.000Z"},
			{"title": "Labour", "amount": 900, "category": "Labour", "date": "2024-02-19T05:30:00Z"}
		]
	}`
	doc, err := ParseBackup([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Budget == nil || *doc.Budget != 750000 {
		t.Fatalf("budget not decoded: %v", doc.Budget)
	}
	if len(doc.Expenses) != 2 {
		t.Fatalf("expected 2 records, got %d", len(doc.Expenses))
	}
	if doc.Expenses[0].Identifier() != "legacy-1" {
		t.Fatalf("legacy id lost: %+v", doc.Expenses[0])
	}
	if doc.Expenses[1].Identifier() != "" || doc.Expenses[1].CreatedAt != nil {
		t.Fatalf("second record should have no identity: %+v", doc.Expenses[1])
	}
	if doc.Expenses[1].Date.String() != "2024-02-19" {
		t.Fatalf("timestamp date not truncated: %s", doc.Expenses[1].Date)
	}
}
