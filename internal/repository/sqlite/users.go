// Package sqlite implements the repository contracts on a local SQLite file.
// All timestamps are written in UTC so lexical comparison in SQL matches
// chronological order.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"gmpportal/internal/models"
	"gmpportal/internal/repository"
)

type Users struct {
	db  *sql.DB
	now func() time.Time
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db, now: time.Now}
}

var _ repository.UserStore = (*Users)(nil)

const userColumns = `id, name, email, password_hash, role, email_verified, status, last_login, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.User, error) {
	var (
		user      models.User
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.EmailVerified,
		&user.Status,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return models.User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (u *Users) Create(ctx context.Context, user models.User) error {
	now := u.now().UTC()
	_, err := u.db.ExecContext(ctx, `
		insert into users (id, name, email, password_hash, role, email_verified, status, created_at, updated_at)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), user.EmailVerified, string(user.Status), now, now)
	if isUniqueViolation(err) {
		return repository.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (u *Users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return u.getOne(ctx, `select `+userColumns+` from users where email = ?`, email)
}

func (u *Users) GetByID(ctx context.Context, id string) (models.User, error) {
	return u.getOne(ctx, `select `+userColumns+` from users where id = ?`, id)
}

func (u *Users) getOne(ctx context.Context, query string, arg any) (models.User, error) {
	user, err := scanUser(u.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, repository.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

func (u *Users) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return u.execOne(ctx, `update users set last_login = ?, updated_at = ? where id = ?`, at.UTC(), u.now().UTC(), id)
}

func (u *Users) UpdateRole(ctx context.Context, id string, role models.Role) error {
	return u.execOne(ctx, `update users set role = ?, updated_at = ? where id = ?`, string(role), u.now().UTC(), id)
}

func (u *Users) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	return u.execOne(ctx, `update users set status = ?, updated_at = ? where id = ?`, string(status), u.now().UTC(), id)
}

func (u *Users) UpdateProfile(ctx context.Context, id string, name string) error {
	return u.execOne(ctx, `update users set name = ?, updated_at = ? where id = ?`, name, u.now().UTC(), id)
}

func (u *Users) execOne(ctx context.Context, query string, args ...any) error {
	res, err := u.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (u *Users) List(ctx context.Context, filter repository.ListFilter) ([]models.User, int, error) {
	filter = filter.Normalize()
	const where = `
		where (?1 = '' or lower(name) like '%' || lower(?1) || '%' or email like '%' || lower(?1) || '%')
		  and (?2 = '' or role = ?2)`

	var total int
	if err := u.db.QueryRowContext(ctx, `select count(*) from users`+where, filter.Search, string(filter.Role)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := u.db.QueryContext(ctx,
		`select `+userColumns+` from users`+where+` order by created_at desc, id desc limit ?3 offset ?4`,
		filter.Search, string(filter.Role), filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

const countDependentsQuery = `
	select (select count(*) from progress where user_id = ?1)
	     + (select count(*) from enrollments where user_id = ?1)`

func (u *Users) CountDependents(ctx context.Context, id string) (int, error) {
	var n int
	if err := u.db.QueryRowContext(ctx, countDependentsQuery, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dependents: %w", err)
	}
	return n, nil
}

func (u *Users) Delete(ctx context.Context, id string) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, countDependentsQuery, id).Scan(&n); err != nil {
		return fmt.Errorf("count dependents: %w", err)
	}
	if n > 0 {
		return repository.ErrUserReferenced
	}

	if _, err := tx.ExecContext(ctx, `delete from user_sessions where user_id = ?`, id); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	res, err := tx.ExecContext(ctx, `delete from users where id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrUserNotFound
	}
	return tx.Commit()
}

func (u *Users) Stats(ctx context.Context) (models.UserStats, error) {
	rows, err := u.db.QueryContext(ctx, `
		select role, status, email_verified, count(*)
		from users
		group by role, status, email_verified`)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	defer rows.Close()

	stats := repository.NewStats()
	for rows.Next() {
		var (
			role     string
			status   string
			verified bool
			n        int
		)
		if err := rows.Scan(&role, &status, &verified, &n); err != nil {
			return models.UserStats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += n
		stats.ByRole[models.Role(role)] += n
		stats.ByStatus[models.UserStatus(status)] += n
		if verified {
			stats.Verified += n
		}
	}
	return stats, rows.Err()
}
