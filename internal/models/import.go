package models

// ImportRowError describes one rejected spreadsheet row
type ImportRowError struct {
	Row     int    `json:"row"`
	Cedula  string `json:"cedula,omitempty"`
	Message string `json:"message"`
}

// ImportResult reports the outcome of a spreadsheet import
type ImportResult struct {
	Rows     int              `json:"rows"`
	Inserted int64            `json:"inserted"`
	Updated  int64            `json:"updated"`
	Failed   int              `json:"failed"`
	Errors   []ImportRowError `json:"errors,omitempty"`
	Warnings []ImportRowError `json:"warnings,omitempty"`
}

// MigrationResult reports how many rows a maintenance migration touched
type MigrationResult struct {
	Name     string `json:"name"`
	Scanned  int64  `json:"scanned"`
	Modified int64  `json:"modified"`
}
