package messages

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

type passthrough struct{}

func (passthrough) ConvertValue(v any) (driver.Value, error) { return v, nil }

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(passthrough{}),
	)
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var msgCols = []string{"id", "chat_id", "sender_id", "content", "created_at"}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+messages\s*\(id,\s*chat_id,\s*sender_id,\s*content\).*RETURNING\s+created_at`).
		WithArgs("m-1", "c-1", "u1", "hi").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	msg := &models.Message{ID: "m-1", ChatID: "c-1", SenderID: "u1", Content: "hi"}
	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !msg.CreatedAt.Equal(now) {
		t.Fatal("created_at not set")
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+messages`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Message{})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListByChat_AttachesReaders(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+messages\s+m\s+WHERE\s+m\.chat_id\s*=\s*\$1\s+ORDER\s+BY\s+m\.created_at`).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m-1", "c-1", "u1", "hi", now).
			AddRow("m-2", "c-1", "u2", "yo", now.Add(time.Second)))
	mock.ExpectQuery(`(?s)FROM\s+message_reads\s+WHERE\s+message_id\s*=\s*ANY\(\$1::uuid\[\]\)`).
		WithArgs([]string{"m-1", "m-2"}).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "user_id"}).
			AddRow("m-1", "u2").AddRow("m-1", "u3").AddRow("m-2", "u1"))

	got, err := repo.ListByChat(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("ListByChat error: %v", err)
	}
	if len(got) != 2 || len(got[0].ReadBy) != 2 || got[1].ReadBy[0] != "u1" {
		t.Fatalf("unexpected messages: %+v %+v", got[0], got[1])
	}
}

func TestListUnread_ExcludesOwnAndRead(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)JOIN\s+chat_members\s+cm\s+ON\s+cm\.chat_id\s*=\s*m\.chat_id\s+AND\s+cm\.user_id\s*=\s*\$1` +
		`\s+WHERE\s+m\.sender_id\s*<>\s*\$1\s+AND\s+NOT\s+EXISTS`
	mock.ExpectQuery(q).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(msgCols).AddRow("m-2", "c-1", "u2", "yo", now))
	mock.ExpectQuery(`FROM\s+message_reads`).
		WithArgs([]string{"m-2"}).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "user_id"}))

	got, err := repo.ListUnread(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListUnread error: %v", err)
	}
	if len(got) != 1 || got[0].SenderID == "u1" {
		t.Fatalf("unexpected unread: %+v", got)
	}
}

func TestMarkRead_Idempotent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+message_reads\s*\(message_id,\s*user_id\)\s+SELECT\s+m\.id,\s*\$2\s+FROM\s+messages\s+m` +
		`\s+WHERE\s+m\.chat_id\s*=\s*\$1\s+AND\s+m\.sender_id\s*<>\s*\$2\s+ON\s+CONFLICT\s+DO\s+NOTHING`
	mock.ExpectExec(q).WithArgs("c-1", "u1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(q).WithArgs("c-1", "u1").WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.MarkRead(context.Background(), "c-1", "u1")
	if err != nil || n != 3 {
		t.Fatalf("first MarkRead = %d, %v", n, err)
	}
	n, err = repo.MarkRead(context.Background(), "c-1", "u1")
	if err != nil || n != 0 {
		t.Fatalf("second MarkRead = %d, %v", n, err)
	}
}

func TestGetByIDs_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	got, err := repo.GetByIDs(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("GetByIDs(nil) = %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMalformedChatID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	bad := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "nope"`}

	mock.ExpectQuery(`WHERE\s+m\.chat_id\s*=\s*\$1`).WithArgs("nope").WillReturnError(bad)
	if _, err := repo.ListByChat(context.Background(), "nope"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("ListByChat: expected ErrorNotFound, got %v", err)
	}

	mock.ExpectExec(`INSERT\s+INTO\s+message_reads`).WithArgs("nope", "u1").WillReturnError(bad)
	if _, err := repo.MarkRead(context.Background(), "nope", "u1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("MarkRead: expected ErrorNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
