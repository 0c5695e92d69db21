package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exstoreapp/exstore/internal/models"
)

// UserStore is a read-mostly view of the users table. Account management
// lives outside this service; orders only need the owner's identity and
// notification address.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	var role string
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, role, created_at FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &role, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = models.UserRole(role)
	return &user, nil
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, user.ID, user.Name, user.Email, string(user.Role)).Scan(&user.CreatedAt)
}
