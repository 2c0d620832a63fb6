package repository

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/mining-enricher/constants"
	"github.com/joseph-ayodele/mining-enricher/internal/common"
	"github.com/joseph-ayodele/mining-enricher/internal/entity"
	"github.com/joseph-ayodele/mining-enricher/internal/utils"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "enricher.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "/tmp/a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", SQLiteDSN("/tmp/a.db"))
	assert.Equal(t, "/tmp/a.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", SQLiteDSN("sqlite:///tmp/a.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(1)", SQLiteDSN("x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(1)"))
}

func TestTables_BuildsForeignKeysAndIndexes(t *testing.T) {
	tables, err := Tables()
	require.NoError(t, err)
	require.Len(t, tables, 3)

	names := []string{}
	for _, tb := range tables {
		names = append(names, tb.Name)
	}
	assert.Equal(t, []string{"projects", "project_documents", "extract_jobs"}, names)

	docs := tables[1]
	require.Len(t, docs.ForeignKeys, 1)
	assert.Equal(t, "projects", docs.ForeignKeys[0].RefTable.Name)
	assert.True(t, docs.PrimaryKey[0].Increment)

	var unique bool
	for _, idx := range docs.Indexes {
		if idx.Name == "project_documents_project_id_source_ref" {
			unique = idx.Unique
		}
	}
	assert.True(t, unique)
	assert.Len(t, tables[2].ForeignKeys, 2)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
}

func TestProjects_EnsureGetList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	projects := NewProjectRepository(db, nil)

	p, err := projects.EnsureProject(ctx, "p-1", "Copper Flat", "Themac")
	require.NoError(t, err)
	assert.Equal(t, "Copper Flat", p.Name)
	assert.Equal(t, "Themac", p.Company)
	assert.Nil(t, p.NPV)
	assert.Nil(t, p.UpdatedAt)

	// re-ensure refreshes name and company
	p, err = projects.EnsureProject(ctx, "p-1", "Copper Flat Project", "")
	require.NoError(t, err)
	assert.Equal(t, "Copper Flat Project", p.Name)
	assert.Equal(t, "", p.Company)

	_, err = projects.EnsureProject(ctx, "a-0", "", "")
	require.NoError(t, err)

	list, err := projects.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a-0", list[0].ID)
	assert.Equal(t, "a-0", list[0].Name)

	_, err = projects.Get(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = projects.EnsureProject(ctx, " ", "x", "")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestProjects_UpsertFieldsMonotonic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	projects := NewProjectRepository(db, nil)
	_, err := projects.EnsureProject(ctx, "p-1", "Copper Flat", "")
	require.NoError(t, err)

	changed, err := projects.UpsertFields(ctx, "p-1", entity.AggregatedResult{
		NPV:         utils.Ptr(250.0),
		Commodities: []string{"Gold", "Silver"},
		Stage:       utils.Ptr("PEA"),
	})
	require.NoError(t, err)
	assert.True(t, changed)

	p, err := projects.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 250.0, *p.NPV)
	assert.Equal(t, []string{"Gold", "Silver"}, p.Commodities)
	assert.Equal(t, "PEA", *p.Stage)
	assert.Nil(t, p.IRR)
	require.NotNil(t, p.UpdatedAt)

	// same values again: nothing changes
	changed, err = projects.UpsertFields(ctx, "p-1", entity.AggregatedResult{
		NPV:         utils.Ptr(250.0),
		Commodities: []string{"Gold", "Silver"},
	})
	require.NoError(t, err)
	assert.False(t, changed)

	// absent fields never clear stored values
	changed, err = projects.UpsertFields(ctx, "p-1", entity.AggregatedResult{IRR: utils.Ptr(0.0)})
	require.NoError(t, err)
	assert.True(t, changed)
	p, err = projects.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 250.0, *p.NPV)
	assert.Equal(t, 0.0, *p.IRR)
	assert.Equal(t, "PEA", *p.Stage)
	assert.Equal(t, "Copper Flat", p.Name)
}

func TestProjects_UpsertEmptyIsSkipped(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	projects := NewProjectRepository(db, nil)

	changed, err := projects.UpsertFields(ctx, "ghost", entity.AggregatedResult{})
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = projects.Get(ctx, "ghost")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestProjects_UpsertCreatesMissingProject(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	projects := NewProjectRepository(db, nil)

	changed, err := projects.UpsertFields(ctx, "new", entity.AggregatedResult{Location: utils.Ptr("")})
	require.NoError(t, err)
	assert.True(t, changed)

	p, err := projects.Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", p.Name)
	require.NotNil(t, p.Location)
	assert.Equal(t, "", *p.Location)
}

func TestProjects_UpsertAfterCloseIsPersistenceError(t *testing.T) {
	db := openTestDB(t)
	projects := NewProjectRepository(db, nil)
	db.Close()

	_, err := projects.UpsertFields(context.Background(), "p", entity.AggregatedResult{NPV: utils.Ptr(1.0)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPersistence))
	assert.Equal(t, common.CodePersistence, common.ErrorCode(err))
}

func TestDocuments_AddAndOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := NewProjectRepository(db, nil).EnsureProject(ctx, "p-1", "P", "")
	require.NoError(t, err)
	docs := NewDocumentRepository(db, nil)

	jan := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

	undated, err := docs.Add(ctx, entity.ProjectDocument{ProjectID: "p-1", SourceRef: "https://x/undated.pdf"})
	require.NoError(t, err)
	_, err = docs.Add(ctx, entity.ProjectDocument{ProjectID: "p-1", SourceRef: "https://x/mar.pdf", FiledAt: &mar, Title: "PEA"})
	require.NoError(t, err)
	first, err := docs.Add(ctx, entity.ProjectDocument{ProjectID: "p-1", SourceRef: "https://x/jan.pdf", FiledAt: &jan, DocType: "NI 43-101"})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	again, err := docs.Add(ctx, entity.ProjectDocument{ProjectID: "p-1", SourceRef: "https://x/undated.pdf"})
	require.NoError(t, err)
	assert.Equal(t, undated.ID, again.ID)

	list, err := docs.ListByProject(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "https://x/jan.pdf", list[0].SourceRef)
	assert.Equal(t, "NI 43-101", list[0].DocType)
	assert.Equal(t, "https://x/mar.pdf", list[1].SourceRef)
	assert.Equal(t, "PEA", list[1].Title)
	assert.Equal(t, "https://x/undated.pdf", list[2].SourceRef)
	assert.Nil(t, list[2].FiledAt)

	ids, err := docs.ListProjectIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, ids)
}

func TestDocuments_UnknownProjectRejected(t *testing.T) {
	db := openTestDB(t)
	_, err := NewDocumentRepository(db, nil).Add(context.Background(), entity.ProjectDocument{ProjectID: "nope", SourceRef: "a.pdf"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPersistence))
}

func TestExtractJobs_StartFinishList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := NewProjectRepository(db, nil).EnsureProject(ctx, "p-1", "P", "")
	require.NoError(t, err)
	doc, err := NewDocumentRepository(db, nil).Add(ctx, entity.ProjectDocument{ProjectID: "p-1", SourceRef: "r.pdf"})
	require.NoError(t, err)

	jobs := NewExtractJobRepository(db, nil)
	job, err := jobs.Start(ctx, "p-1", doc.ID, "r.pdf")
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusRunning), job.Status)

	job.Status = string(constants.JobStatusOK)
	job.Format = utils.Ptr(string(constants.PDF))
	job.TextLength = utils.Ptr(12000)
	job.ExcerptLength = utils.Ptr(5000)
	job.Attempts = 2
	job.ExtractedJSON = json.RawMessage(`{"npv":100}`)
	job.ModelName = utils.Ptr("gpt-4o-mini")
	require.NoError(t, jobs.Finish(ctx, job))

	list, err := jobs.ListByProject(ctx, "p-1", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, doc.ID, got.DocumentID)
	assert.Equal(t, "OK", got.Status)
	assert.Equal(t, "PDF", *got.Format)
	assert.Equal(t, 12000, *got.TextLength)
	assert.Nil(t, got.PageCount)
	assert.Equal(t, 2, got.Attempts)
	assert.JSONEq(t, `{"npv":100}`, string(got.ExtractedJSON))
	require.NotNil(t, got.FinishedAt)
}

func TestExtractJobs_FinishRejectsUnknownStatus(t *testing.T) {
	db := openTestDB(t)
	jobs := NewExtractJobRepository(db, nil)
	err := jobs.Finish(context.Background(), entity.ExtractJob{Status: "DONE"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
}
