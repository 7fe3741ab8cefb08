package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ColumnInfo describes one column of a live table. Field is reported in the
// NormalizeColumnName form and Type in lower case.
type ColumnInfo struct {
	Field   string
	Type    string
	Null    string
	Key     string
	Default *string
	Extra   string
}

// GetTableColumns lists the columns of tableName. A table that does not exist
// yields no columns and no error.
func GetTableColumns(db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	if !db.Migrator().HasTable(tableName) {
		return nil, nil
	}

	var (
		columns []ColumnInfo
		err     error
	)
	switch db.Dialector.Name() {
	case DriverSQLite:
		columns, err = sqliteColumns(db, tableName)
	default:
		columns, err = mysqlColumns(db, tableName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
	}

	for i := range columns {
		columns[i].Field = NormalizeColumnName(columns[i].Field)
		columns[i].Type = strings.ToLower(columns[i].Type)
	}
	return columns, nil
}

// sqliteColumns reads PRAGMA table_info.
func sqliteColumns(db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	var rows []struct {
		Cid       int
		Name      string
		Type      string
		Notnull   int
		DfltValue *string
		Pk        int
	}
	if err := db.Raw(fmt.Sprintf("PRAGMA table_info(%s)", db.Statement.Quote(tableName))).Scan(&rows).Error; err != nil {
		return nil, err
	}

	columns := make([]ColumnInfo, 0, len(rows))
	for _, r := range rows {
		col := ColumnInfo{Field: r.Name, Type: r.Type, Null: "YES", Default: r.DfltValue}
		if r.Notnull != 0 {
			col.Null = "NO"
		}
		if r.Pk != 0 {
			col.Key = "PRI"
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// mysqlColumns reads SHOW COLUMNS, whose rows map onto ColumnInfo directly.
func mysqlColumns(db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	var columns []ColumnInfo
	err := db.Raw(fmt.Sprintf("SHOW COLUMNS FROM %s", db.Statement.Quote(tableName))).Scan(&columns).Error
	return columns, err
}

// NormalizeColumnName returns the form under which GetTableColumns reports a
// column name.
func NormalizeColumnName(name string) string {
	return strings.ToLower(name)
}
