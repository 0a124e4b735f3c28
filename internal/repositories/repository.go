package repositories

import "context"

// Repository aggregates all entity repositories behind one handle so
// services can receive a single dependency.
type Repository interface {
	// Question supply
	QuestionBank() QuestionBankRepository
	Question() QuestionRepository

	// Exam assembly
	Matrix() MatrixRepository
	Exam() ExamRepository

	// Attempt domain
	Attempt() AttemptRepository
	Answer() AnswerRepository

	// User domain (read-only, identities live in Casdoor)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
