package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-dispatch/internal/repository"
)

const testTemplateID = "3b241101-e2bb-4255-8caf-4136c566a962"

func TestFindActiveByIDMalformedSkipsQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTemplateRepository(db)

	_, err := repo.FindActiveByID(context.Background(), "tmpl-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveByIDInactiveIsNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTemplateRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "email_templates" WHERE .*id = \$1 AND is_active = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindActiveByID(context.Background(), testTemplateID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTemplateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "email_templates"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "template_type", "subject", "html_body", "usage_count", "is_active"}).
			AddRow(testTemplateID, "welcome", "outreach", "Welcome {{name}}", "<p>Hi {{name}}</p>", 3, true))

	tmpl, err := repo.FindActiveByID(context.Background(), testTemplateID)
	require.NoError(t, err)
	assert.Equal(t, "welcome", tmpl.Name)
	assert.Equal(t, 3, tmpl.UsageCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementUsage(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTemplateRepository(db)

	mock.ExpectExec(`UPDATE "email_templates" SET .*"usage_count"=usage_count \+ 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementUsage(context.Background(), testTemplateID, time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
