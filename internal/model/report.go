package model

import "time"

// Clause is a titled excerpt of the analysed document.
type Clause struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// StructuredReport is the validated analysis result for one document.
// A report is only accepted once it carries a summary.
type StructuredReport struct {
	Summary        string   `json:"summary"`
	Parties        []string `json:"parties"`
	ImportantDates []string `json:"important_dates"`
	DocumentType   string   `json:"document_type"`
	Clauses        []Clause `json:"clauses"`
	Signatories    []string `json:"signatories"`
}

// ReportRecord is the persisted (locator, report, owner) tuple.
// Records are created once per successful run and never updated.
type ReportRecord struct {
	ID        int64            `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	FileLink  string           `json:"fileLink"`
	Report    StructuredReport `json:"report"`
	UserID    string           `json:"userId"`
}
