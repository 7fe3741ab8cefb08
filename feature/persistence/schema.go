package persistence

import (
	"fmt"
	"slices"

	"entity-persister/core/database"
	"entity-persister/core/metadata"

	"gorm.io/gorm"
)

// SchemaReport is the result of comparing entity definitions with the
// database schema.
type SchemaReport struct {
	Matched bool                   `json:"matched"`
	Tables  map[string]TableReport `json:"tables"`
	Errors  []string               `json:"errors"`
}

// TableReport lists the problems found on one table.
type TableReport struct {
	Entity         string   `json:"entity,omitempty"`
	MissingColumns []string `json:"missing_columns"`
	Status         string   `json:"status"` // "ok", "missing", "error"
}

// CheckSchema verifies that every entity table and join table exists with the
// columns the entity definitions expect.
func CheckSchema(db *gorm.DB, registry *metadata.Registry) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	report := &SchemaReport{
		Matched: true,
		Tables:  make(map[string]TableReport),
		Errors:  []string{},
	}

	for table, expected := range expectedTables(registry) {
		tblReport := TableReport{
			Entity:         expected.entity,
			MissingColumns: []string{},
			Status:         "ok",
		}

		actualCols, err := database.GetTableColumns(db, table)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to inspect table %s: %v", table, err))
			report.Matched = false
			tblReport.Status = "error"
			report.Tables[table] = tblReport
			continue
		}
		if len(actualCols) == 0 {
			tblReport.Status = "missing"
			tblReport.MissingColumns = append(tblReport.MissingColumns, expected.columns...)
			report.Tables[table] = tblReport
			report.Matched = false
			continue
		}

		actual := make(map[string]bool, len(actualCols))
		for _, col := range actualCols {
			actual[col.Field] = true
		}
		for _, col := range expected.columns {
			if !actual[col] {
				tblReport.MissingColumns = append(tblReport.MissingColumns, col)
				tblReport.Status = "error"
				report.Matched = false
			}
		}
		report.Tables[table] = tblReport
	}

	return report, nil
}

type tableColumns struct {
	entity  string
	columns []string
}

func expectedTables(registry *metadata.Registry) map[string]*tableColumns {
	tables := make(map[string]*tableColumns)
	add := func(table, entity string, cols ...string) {
		t, ok := tables[table]
		if !ok {
			t = &tableColumns{entity: entity}
			tables[table] = t
		}
		for _, c := range cols {
			if !slices.Contains(t.columns, c) {
				t.columns = append(t.columns, c)
			}
		}
	}

	for _, e := range registry.Entities() {
		add(e.TableName(), e.Name)
		for _, col := range e.Columns {
			if !col.IsVirtual {
				add(e.TableName(), e.Name, database.NormalizeColumnName(col.Name()))
			}
		}
		for _, rel := range e.Relations {
			switch {
			case rel.IsOwningToOne():
				add(e.TableName(), e.Name, database.NormalizeColumnName(rel.JoinColumn))
			case rel.IsManyToMany() && rel.JoinTable != "":
				add(rel.JoinTable, "",
					database.NormalizeColumnName(rel.JoinTableSourceColumn),
					database.NormalizeColumnName(rel.JoinTableTargetColumn))
			}
		}
	}
	return tables
}
