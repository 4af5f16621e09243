package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

func newUserRepoMock(t *testing.T) (pgxmock.PgxPoolIface, *UserRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	return mock, NewUserRepository(mock)
}

func TestUserRepository_Create(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	now := time.Now().UTC()
	user := domain.User{
		ID:                "user-1",
		Username:          "founder",
		Email:             "founder@example.com",
		PasswordHash:      "$argon2id$hash",
		Name:              "Founder",
		CompanyName:       "Acme",
		Role:              domain.RoleOwner,
		IsActive:          true,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(
			user.ID,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.Name,
			user.CompanyName,
			user.Role,
			user.IsActive,
			user.PasswordChangedAt,
			user.CreatedAt,
			user.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(userColumns).AddRow(
		"user-1", "founder", "founder@example.com", "$argon2id$hash", "Founder", "Acme",
		domain.RoleOwner, true, 0, nil, now, nil, nil, nil, now, now,
	)

	mock.ExpectQuery(`SELECT .*FROM users`).WithArgs("user-1").WillReturnRows(rows)

	user, err := repo.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if user.Username != "founder" {
		t.Fatalf("expected username founder, got %s", user.Username)
	}
	if user.LockedUntil != nil || user.ResetTokenHash != nil {
		t.Fatal("expected nullable columns to stay nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	mock.ExpectQuery(`SELECT .*FROM users`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_FindExisting(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	rows := pgxmock.NewRows([]string{"email_taken", "username_taken"}).AddRow(true, false)
	mock.ExpectQuery(`SELECT`).
		WithArgs("taken@example.com", "freshname").
		WillReturnRows(rows)

	emailTaken, usernameTaken, err := repo.FindExisting(context.Background(), "taken@example.com", "freshname")
	if err != nil {
		t.Fatalf("FindExisting returned error: %v", err)
	}
	if !emailTaken || usernameTaken {
		t.Fatalf("expected (true, false), got (%v, %v)", emailTaken, usernameTaken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_RecordFailedLogin(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	rows := pgxmock.NewRows([]string{"failed_login_attempts"}).AddRow(3)
	mock.ExpectQuery(`UPDATE users`).WithArgs("user-1").WillReturnRows(rows)

	attempts, err := repo.RecordFailedLogin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RecordFailedLogin returned error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdateProfileNotFound(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	mock.ExpectExec(`UPDATE users`).
		WithArgs("New Name", "New Co", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateProfile(context.Background(), "missing", "New Name", "New Co")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdateEmail(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	mock.ExpectExec(`UPDATE users`).
		WithArgs("new@example.com", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdateEmail(context.Background(), "user-1", "new@example.com"); err != nil {
		t.Fatalf("UpdateEmail returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_RemoveRefreshToken(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	mock.ExpectExec(`DELETE FROM refresh_tokens`).
		WithArgs("hash-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	removed, err := repo.RemoveRefreshToken(context.Background(), "user-1", "hash-1")
	if err != nil {
		t.Fatalf("RemoveRefreshToken returned error: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to be reported")
	}

	mock.ExpectExec(`DELETE FROM refresh_tokens`).
		WithArgs("hash-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	removed, err = repo.RemoveRefreshToken(context.Background(), "user-1", "hash-1")
	if err != nil {
		t.Fatalf("second RemoveRefreshToken returned error: %v", err)
	}
	if removed {
		t.Fatal("expected absent token to report false")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_ListRefreshTokens(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	now := time.Now().UTC()
	ip := "203.0.113.10"
	rows := pgxmock.NewRows([]string{"id", "user_id", "token_hash", "ip", "user_agent", "created_at"}).
		AddRow("token-2", "user-1", "hash-2", &ip, nil, now).
		AddRow("token-1", "user-1", "hash-1", nil, nil, now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT .*FROM refresh_tokens`).WithArgs("user-1").WillReturnRows(rows)

	tokens, err := repo.ListRefreshTokens(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListRefreshTokens returned error: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].IP == nil || *tokens[0].IP != ip {
		t.Fatal("expected ip metadata on newest token")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetRefreshTokenNotFound(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	mock.ExpectQuery(`SELECT .*FROM refresh_tokens`).
		WithArgs("hash-x", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token_hash", "ip", "user_agent", "created_at"}))

	_, err := repo.GetRefreshToken(context.Background(), "user-1", "hash-x")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_SetResetTokenNotFound(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	expires := time.Now().UTC().Add(30 * time.Minute)
	mock.ExpectExec(`UPDATE users`).
		WithArgs("hash-1", expires, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SetResetToken(context.Background(), "missing", "hash-1", expires)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_ListAuthActivity(t *testing.T) {
	mock, repo := newUserRepoMock(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "user_id", "action", "ip", "user_agent", "success", "created_at"}).
		AddRow("act-2", "user-1", domain.ActivityLogin, nil, nil, true, now).
		AddRow("act-1", "user-1", domain.ActivityRegister, nil, nil, true, now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT .*FROM auth_activity`).WithArgs("user-1").WillReturnRows(rows)

	activities, err := repo.ListAuthActivity(context.Background(), "user-1", 50)
	if err != nil {
		t.Fatalf("ListAuthActivity returned error: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(activities))
	}
	if activities[0].Action != domain.ActivityLogin {
		t.Fatalf("expected newest row first, got %s", activities[0].Action)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
