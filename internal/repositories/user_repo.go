package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"edulearn-connect/internal/database"
	"edulearn-connect/internal/models"

	"go.uber.org/zap"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, user *models.User) (int64, error) // Returns the new user ID
}

// sqlUserRepository implements UserRepository on database/sql for every supported dialect
type sqlUserRepository struct {
	db      *sql.DB
	dialect database.Dialect
	logger  *zap.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB, dialect database.Dialect, logger *zap.Logger) UserRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sqlUserRepository{db: db, dialect: dialect, logger: logger}
}

// ListUsers returns every user, newest (highest id) first.
func (r *sqlUserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, name, email, profile_pic FROM users ORDER BY id DESC`
	r.logger.Debug("Executing ListUsers query", zap.String("query", query))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Error querying users", zap.Error(err))
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		var profilePic sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &profilePic); err != nil {
			r.logger.Error("Failed to scan user row", zap.Error(err))
			return nil, fmt.Errorf("error scanning user row: %w", err)
		}
		if profilePic.Valid {
			u.ProfilePic = profilePic.String
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error during iteration over user rows", zap.Error(err))
		return nil, fmt.Errorf("user row iteration error: %w", err)
	}
	return users, nil
}

// CreateUser inserts user and sets user.ID to the generated key.
func (r *sqlUserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	query := fmt.Sprintf(`INSERT INTO users (name, email, profile_pic) VALUES (%s)`, r.dialect.Placeholders(1, 3))
	r.logger.Debug("Executing CreateUser query", zap.String("query", query), zap.String("name", user.Name))

	var newID int64
	var err error
	switch r.dialect {
	case database.Oracle:
		_, err = r.db.ExecContext(ctx, query+` RETURNING id INTO :4`,
			user.Name, user.Email, user.ProfilePic, sql.Out{Dest: &newID})
	case database.SQLite:
		var res sql.Result
		res, err = r.db.ExecContext(ctx, query, user.Name, user.Email, user.ProfilePic)
		if err == nil {
			newID, err = res.LastInsertId()
		}
	default:
		err = r.db.QueryRowContext(ctx, query+` RETURNING id`, user.Name, user.Email, user.ProfilePic).Scan(&newID)
	}
	if err != nil {
		r.logger.Error("Error creating user", zap.String("name", user.Name), zap.Error(err))
		return 0, fmt.Errorf("error creating user %s: %w", user.Name, err)
	}

	user.ID = newID
	r.logger.Info("User created successfully", zap.String("name", user.Name), zap.Int64("newID", newID))
	return newID, nil
}
