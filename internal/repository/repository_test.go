package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"filevault/internal/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)
	return gdb, mock
}

func TestUserRepository_FindByUsername_IsCaseInsensitive(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewUserRepository(gdb)

	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "verified"}).
		AddRow(7, "Alice", "alice@example.com", "hash", true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE LOWER(username) = ?")).
		WithArgs("alice", 1).
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "ALICE")

	require.NoError(t, err)
	assert.Equal(t, uint(7), user.ID)
	assert.Equal(t, "Alice", user.Username)
	assert.True(t, user.Verified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByUsername_NotFound(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewUserRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	user, err := repo.FindByUsername(context.Background(), "ghost")

	assert.Nil(t, user)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByUsernameOrEmail(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewUserRepository(gdb)

	rows := sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(2, "bob", "Bob@Example.com")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE LOWER(username) = ? OR LOWER(email) = ?")).
		WithArgs("alice", "bob@example.com", 1).
		WillReturnRows(rows)

	user, err := repo.FindByUsernameOrEmail(context.Background(), "Alice", "BOB@example.com")

	require.NoError(t, err)
	assert.Equal(t, uint(2), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListInactiveSince(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewUserRepository(gdb)

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "username", "email"}).
		AddRow(1, "old", "old@example.com").
		AddRow(2, "older", "older@example.com")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE COALESCE(last_login, created_at) < ? ORDER BY id")).
		WithArgs(cutoff).
		WillReturnRows(rows)

	users, err := repo.ListInactiveSince(context.Background(), cutoff)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "older", users[1].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_Touch(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewFileRepository(gdb)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `files` SET `updated_at`=? WHERE user_id = ? AND file_name = ?")).
		WithArgs(at, 3, "a.txt").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	found, err := repo.Touch(context.Background(), 3, "a.txt", at)

	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_Touch_NoMatch(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewFileRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `files`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	found, err := repo.Touch(context.Background(), 3, "missing.txt", time.Now())

	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileRepository_Remove(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewFileRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `files` WHERE user_id = ? AND file_name = ?")).
		WithArgs(3, "a.txt").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Remove(context.Background(), 3, "a.txt")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_Append_DuplicateIsTranslated(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewFileRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `files`")).
		WillReturnError(&mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := repo.Append(context.Background(), &model.FileMetadata{UserID: 3, FileName: "a.txt", FileType: "txt"})

	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_ListByUser_InUploadOrder(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewFileRepository(gdb)

	rows := sqlmock.NewRows([]string{"id", "user_id", "file_name", "file_type"}).
		AddRow(4, 3, "b.txt", "txt").
		AddRow(7, 3, "a.png", "png")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `files` WHERE user_id = ? ORDER BY id")).
		WithArgs(3).
		WillReturnRows(rows)

	files, err := repo.ListByUser(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "b.txt", files[0].FileName)
	assert.Equal(t, "a.png", files[1].FileName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
