package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/mining-enricher/internal/entity"
	"github.com/joseph-ayodele/mining-enricher/internal/utils"
)

type listStore struct {
	recs []entity.ProjectRecord
	err  error
}

func (l listStore) EnsureProject(context.Context, string, string, string) (entity.ProjectRecord, error) {
	return entity.ProjectRecord{}, nil
}
func (l listStore) Get(context.Context, string) (entity.ProjectRecord, error) {
	return entity.ProjectRecord{}, nil
}
func (l listStore) List(context.Context) ([]entity.ProjectRecord, error) { return l.recs, l.err }
func (l listStore) UpsertFields(context.Context, string, entity.AggregatedResult) (bool, error) {
	return false, nil
}

func TestExportProjectsXLSX(t *testing.T) {
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := listStore{recs: []entity.ProjectRecord{
		{
			ID: "p-1", Name: "Copper Flat", Company: "Themac",
			NPV: utils.Ptr(250.0), IRR: utils.Ptr(0.0),
			Commodities: []string{"Copper", "Molybdenum"},
			Location:    utils.Ptr("New Mexico, USA"),
			UpdatedAt:   &updated,
		},
		{ID: "p-2", Name: "Unknown Creek"},
	}}

	data, err := NewService(store, nil).ExportProjectsXLSX(context.Background())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Projects"}, f.GetSheetList())

	rows, err := f.GetRows("Projects")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])

	first := rows[1]
	assert.Equal(t, "p-1", first[0])
	assert.Equal(t, "250", first[3])
	assert.Equal(t, "0", first[4]) // a known zero is written
	assert.Equal(t, "", first[5])  // absent capex stays blank
	assert.Equal(t, "New Mexico, USA", first[9])
	assert.Equal(t, "Copper, Molybdenum", first[10])
	assert.Equal(t, "2024-05-01T12:00:00Z", first[14])

	assert.Equal(t, []string{"p-2", "Unknown Creek"}, rows[2][:2])
	for col := 4; col <= len(headers); col++ {
		cell, _ := excelize.CoordinatesToCellName(col, 3)
		v, err := f.GetCellValue("Projects", cell)
		require.NoError(t, err)
		assert.Empty(t, v, cell)
	}
}

func TestExportProjectsXLSX_StoreError(t *testing.T) {
	_, err := NewService(listStore{err: errors.New("down")}, nil).ExportProjectsXLSX(context.Background())
	assert.ErrorContains(t, err, "query projects")
}

func TestFieldSummary(t *testing.T) {
	got := FieldSummary(entity.ExtractionResult{
		NPV:         utils.Ptr(1.5),
		Stage:       utils.Ptr("PEA"),
		Commodities: []string{"Gold", "Silver"},
	})
	assert.Equal(t, []string{"npv=1.5", `stage="PEA"`, "commodities=Gold|Silver"}, got)
	assert.Empty(t, FieldSummary(entity.ExtractionResult{}))
}
