package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/todmy/visa-advisor/pkg/models"
)

func TestPostgresQuestionPriorityRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresQuestionPriorityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "visa_type", "question", "priority"}).
		AddRow(uuid.New().String(), "E", "company meets the E visa requirements", 0).
		AddRow(uuid.New().String(), "E", "applicant meets the E visa requirements", 1)

	mock.ExpectQuery("SELECT (.+) FROM question_priorities WHERE visa_type").
		WithArgs("E").
		WillReturnRows(rows)

	priorities, err := repo.List(context.Background(), "E")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(priorities) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(priorities))
	}
	if priorities[0].Priority != 0 || priorities[1].Priority != 1 {
		t.Errorf("expected ascending priorities, got %d and %d",
			priorities[0].Priority, priorities[1].Priority)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresQuestionPriorityRepository_UpdatePriority_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresQuestionPriorityRepository(db)
	id := uuid.New()

	mock.ExpectExec("UPDATE question_priorities SET priority").
		WithArgs(id, 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdatePriority(context.Background(), id, 5); err != ErrQuestionNotFound {
		t.Errorf("expected ErrQuestionNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresQuestionPriorityRepository_Replace(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresQuestionPriorityRepository(db)

	ranked := []models.QuestionRank{
		{Question: "shared question", RequiredByCount: 2, MinLeafSetSize: 3},
		{Question: "narrow question", RequiredByCount: 1, MinLeafSetSize: 1},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM question_priorities WHERE visa_type").
		WithArgs("E").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectPrepare("INSERT INTO question_priorities")
	mock.ExpectExec("INSERT INTO question_priorities").
		WithArgs(sqlmock.AnyArg(), "E", "shared question", 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO question_priorities").
		WithArgs(sqlmock.AnyArg(), "E", "narrow question", 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	count, err := repo.Replace(context.Background(), "E", ranked)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows written, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresQuestionPriorityRepository_Reset(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresQuestionPriorityRepository(db)

	mock.ExpectExec("DELETE FROM question_priorities").
		WillReturnResult(sqlmock.NewResult(0, 10))

	if err := repo.Reset(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
