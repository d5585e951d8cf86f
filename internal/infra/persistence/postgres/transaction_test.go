package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"

	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/repository"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// deadConnector refuses every connection so Begin fails deterministically.
type deadConnector struct{}

func (deadConnector) Connect(context.Context) (driver.Conn, error) {
	return nil, errors.New("connection refused")
}

func (deadConnector) Driver() driver.Driver { return deadDriver{} }

type deadDriver struct{}

func (deadDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("connection refused")
}

func newDeadDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(
		gormpostgres.New(gormpostgres.Config{Conn: sql.OpenDB(deadConnector{})}),
		&gorm.Config{
			DisableAutomaticPing: true,
			Logger:               logger.Discard,
		},
	)
	require.NoError(t, err)

	return db
}

func TestTransactionManager_BeginFailure(t *testing.T) {
	tm := NewTransactionManager(newDeadDB(t))

	called := false
	err := tm.Execute(context.Background(), func(repository.RepositoryFactory) error {
		called = true

		return nil
	})

	require.Error(t, err)
	assert.False(t, called)

	var appErr domainerrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, domainerrors.ErrTransactionFailed.ErrorCode(), appErr.ErrorCode())
	assert.Equal(t, domainerrors.ErrTransactionFailed.HTTPCode(), appErr.HTTPCode())
}
