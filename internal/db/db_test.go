package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGormLogger_SkipsRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	l := newGormLogger(&buf)
	query := func() (string, int64) { return "SELECT * FROM appointments WHERE origin_appointment_id = 'x'", 0 }

	l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(context.Background(), time.Now(), query, errors.New("no such table: appointments"))
	assert.Contains(t, buf.String(), "no such table: appointments")
}

type item struct {
	ID int
}

func TestNewSQLiteDB_MissingRowIsNotLogged(t *testing.T) {
	gdb, err := NewSQLiteDB(":memory:")
	require.NoError(t, err)

	var buf bytes.Buffer
	gdb.Logger = newGormLogger(&buf)
	require.NoError(t, gdb.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY)").Error)

	var row item
	err = gdb.Table("items").Where("id = ?", 1).First(&row).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())
}
