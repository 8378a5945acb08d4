// Package datarecording stores flat records into a SQLite database.
package datarecording

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/fatih/structs"
	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of the tables created so far.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

// New creates a DataRecorder that writes into path. A path without the
// ".sqlite3" extension gets it appended, and an empty path picks a unique name.
// The file must not exist.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "rowpressure_" + xid.New().String()
	}

	filename := path
	if !strings.HasSuffix(filename, ".sqlite3") {
		filename += ".sqlite3"
	}

	_, err := os.Stat(filename)
	if err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}

	w := newSQLiteWriter(db)
	w.filename = filename
	w.ownsDB = true

	atexit.Register(func() { _ = w.Close() })

	return w, nil
}

// NewWithDB creates a DataRecorder on an open database. The caller keeps
// ownership of the database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newSQLiteWriter(db)
}

type table struct {
	name       string
	structType reflect.Type
	columns    []string
	entries    []any
}

type sqliteWriter struct {
	db        *sql.DB
	filename  string
	ownsDB    bool
	closed    bool
	batchSize int

	tables     map[string]*table
	tableOrder []string
	numEntries int
}

func newSQLiteWriter(db *sql.DB) *sqliteWriter {
	return &sqliteWriter{
		db:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}
}

func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) error {
	if _, exists := w.tables[tableName]; exists {
		return fmt.Errorf("table %s already exists", tableName)
	}

	t := reflect.TypeOf(sampleEntry)
	if t == nil || t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("entry of table %s is not a struct", tableName))
	}

	names := structs.Names(sampleEntry)
	defs := make([]string, 0, len(names))

	for _, name := range names {
		field, _ := t.FieldByName(name)

		colType, ok := columnType(field.Type.Kind())
		if !ok {
			panic(fmt.Sprintf("field %s of table %s has unsupported type %s",
				field.Name, tableName, field.Type))
		}

		defs = append(defs, `"`+name+`" `+colType)
	}

	stmt := "CREATE TABLE " + tableName +
		" (\n\t" + strings.Join(defs, ",\n\t") + "\n);"

	_, err := w.db.Exec(stmt)
	if err != nil {
		return errors.Wrapf(err, "creating table %s", tableName)
	}

	w.tables[tableName] = &table{
		name:       tableName,
		structType: t,
		columns:    names,
	}
	w.tableOrder = append(w.tableOrder, tableName)

	return nil
}

func (w *sqliteWriter) InsertData(tableName string, entry any) error {
	t, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.structType {
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}

	t.entries = append(t.entries, entry)

	w.numEntries++
	if w.numEntries >= w.batchSize {
		return w.Flush()
	}

	return nil
}

func (w *sqliteWriter) ListTables() []string {
	tables := make([]string, len(w.tableOrder))
	copy(tables, w.tableOrder)

	return tables
}

func (w *sqliteWriter) Flush() error {
	if w.numEntries == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}

	for _, name := range w.tableOrder {
		err = w.flushTable(tx, w.tables[name])
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	for _, t := range w.tables {
		t.entries = nil
	}

	w.numEntries = 0

	return nil
}

func (w *sqliteWriter) flushTable(tx *sql.Tx, t *table) error {
	if len(t.entries) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	query := "INSERT INTO " + t.name + " VALUES (" + placeholders + ")"

	stmt, err := tx.Prepare(query)
	if err != nil {
		return errors.Wrapf(err, "preparing insert into %s", t.name)
	}
	defer stmt.Close()

	for _, entry := range t.entries {
		_, err = stmt.Exec(values(entry)...)
		if err != nil {
			return errors.Wrapf(err, "inserting into %s", t.name)
		}
	}

	return nil
}

func values(entry any) []any {
	out := structs.Values(entry)

	for i, v := range out {
		// database/sql rejects uint64 values with the high bit set.
		if u, ok := v.(uint64); ok && u > math.MaxInt64 {
			out[i] = strconv.FormatUint(u, 10)
		}
	}

	return out
}

func (w *sqliteWriter) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	err := w.Flush()
	if err != nil {
		return err
	}

	if !w.ownsDB {
		return nil
	}

	return w.db.Close()
}
