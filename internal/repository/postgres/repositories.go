package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups the concrete PostgreSQL repository implementations.
type Repositories struct {
	Users    *UserRepository
	Projects *ProjectRepository
	Chat     *ChatRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:    NewUserRepository(pool),
		Projects: NewProjectRepository(pool),
		Chat:     NewChatRepository(pool),
	}
}
