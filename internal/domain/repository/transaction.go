package repository

import "context"

// TransactionManager defines the interface for managing database transactions.
// This allows the use case layer to handle transactions without depending on a
// specific DB driver like GORM. All cross-request coordination in this service
// is pushed down to the storage layer: the reset-token claim and the refresh
// token rotation each run as a single atomic unit here, never behind an
// in-process lock (which would not hold across replicas).
type TransactionManager interface {
	// Execute runs a function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, it's committed. All repository operations within the function
	// will use the same database transaction.
	Execute(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error
}

// RepositoryFactory provides repository instances bound to a specific
// transaction, so every operation inside a TransactionManager.Execute callback
// shares one connection.
type RepositoryFactory interface {
	// NewUserRepository returns a UserRepository bound to the current transaction.
	NewUserRepository() UserRepository

	// NewRefreshTokenRepository returns a RefreshTokenRepository bound to the current transaction.
	NewRefreshTokenRepository() RefreshTokenRepository

	// NewPasswordResetTokenRepository returns a PasswordResetTokenRepository bound to the current transaction.
	NewPasswordResetTokenRepository() PasswordResetTokenRepository
}
