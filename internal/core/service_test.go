package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Mocks
// ============================================================================

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateDataset(ctx context.Context, p CreateDatasetParams) (Dataset, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(Dataset), args.Error(1)
}

func (m *mockStore) GetDataset(ctx context.Context, id int64) (Dataset, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Dataset), args.Error(1)
}

func (m *mockStore) ListDatasets(ctx context.Context, f DatasetFilter) ([]Dataset, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]Dataset), args.Error(1)
}

func (m *mockStore) DatasetRows(ctx context.Context, q RowQuery) (RowPage, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(RowPage), args.Error(1)
}

func (m *mockStore) AllRows(ctx context.Context, f DatasetFilter) ([]Row, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]Row), args.Error(1)
}

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) Save(name string, data []byte) (string, string, error) {
	args := m.Called(name, data)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockArchiver) Open(path string) (io.ReadCloser, error) {
	args := m.Called(path)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockArchiver) Remove(path string) error {
	return m.Called(path).Error(0)
}

func newTestService(store Store, arch Archiver) *Service {
	return NewService(store, arch, ServiceConfig{
		AmountColumn: "金額",
		DateColumn:   "日付",
	})
}

func expenseRow(branch, account string) Row {
	return Row{
		Columns: []string{"金額", "勘定科目", "支店"},
		Values:  []string{"1200", account, branch},
	}
}

// ============================================================================
// Upload Tests
// ============================================================================

func TestService_Upload(t *testing.T) {
	store := new(mockStore)
	arch := new(mockArchiver)
	svc := newTestService(store, arch)

	csvData := []byte("金額,勘定科目,備考\n1200,交通費,地下鉄\n800,会議費,コーヒー\n")

	arch.On("Save", "keihi.csv", csvData).
		Return("uploads/20251001_120000_keihi.csv", "abc123", nil)
	store.On("CreateDataset", mock.Anything, mock.MatchedBy(func(p CreateDatasetParams) bool {
		return p.FileName == "20251001_120000_keihi.csv" &&
			p.BranchName == "大阪支店" &&
			p.Period == "2025-10" &&
			p.Uploader == "admin" &&
			p.Checksum == "abc123" &&
			len(p.Header) == 3 && len(p.Rows) == 2
	})).Return(Dataset{
		ID:         1,
		FileName:   "20251001_120000_keihi.csv",
		RowCount:   2,
		BranchName: "大阪支店",
		Period:     "2025-10",
	}, nil)

	result, err := svc.Upload(context.Background(), UploadInput{
		FileName:   "keihi.csv",
		Data:       csvData,
		BranchName: "大阪支店",
		Period:     "2025-10",
		Uploader:   "admin",
	})
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, int64(1), result.DatasetID)
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, 0, result.Warnings)

	store.AssertExpectations(t)
	arch.AssertExpectations(t)
}

func TestService_Upload_InvalidPeriod(t *testing.T) {
	store := new(mockStore)
	arch := new(mockArchiver)
	svc := newTestService(store, arch)

	for _, period := range []string{"", "2025", "2025-13", "2025-00", "2025/10", "25-10", "2025-1"} {
		t.Run("period "+period, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), UploadInput{
				FileName:   "a.csv",
				Data:       []byte("a,b\n1,2\n"),
				BranchName: "大阪支店",
				Period:     period,
			})
			assert.Equal(t, KindInvalidArgument, KindOf(err))
		})
	}

	arch.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "CreateDataset", mock.Anything, mock.Anything)
}

func TestService_Upload_ValidationFailureArchivesNothing(t *testing.T) {
	store := new(mockStore)
	arch := new(mockArchiver)
	svc := newTestService(store, arch)

	_, err := svc.Upload(context.Background(), UploadInput{
		FileName:   "a.csv",
		Data:       []byte("a,a\n1,2\n"),
		BranchName: "東京支店",
		Period:     "2025-10",
	})
	assert.Equal(t, KindDuplicateHeader, KindOf(err))

	arch.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "CreateDataset", mock.Anything, mock.Anything)
}

func TestService_Upload_StoreFailureRemovesArchivedFile(t *testing.T) {
	store := new(mockStore)
	arch := new(mockArchiver)
	svc := newTestService(store, arch)

	arch.On("Save", mock.Anything, mock.Anything).
		Return("uploads/20251001_120000_a.csv", "abc", nil)
	store.On("CreateDataset", mock.Anything, mock.Anything).
		Return(Dataset{}, errors.New("connection refused"))
	arch.On("Remove", "uploads/20251001_120000_a.csv").Return(nil)

	_, err := svc.Upload(context.Background(), UploadInput{
		FileName:   "a.csv",
		Data:       []byte("a,b\n1,2\n"),
		BranchName: "東京支店",
		Period:     "2025-10",
	})
	require.Error(t, err)

	arch.AssertCalled(t, "Remove", "uploads/20251001_120000_a.csv")
}

// ============================================================================
// DatasetPage Tests
// ============================================================================

func TestService_DatasetPage_ParamValidation(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, new(mockArchiver))

	tests := []struct {
		name       string
		page, size int
	}{
		{"zero page", 0, 20},
		{"negative page", -1, 20},
		{"zero size", 1, 0},
		{"size over cap", 1, MaxPageSize + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.DatasetPage(context.Background(), 1, tt.page, tt.size, "", "")
			assert.Equal(t, KindInvalidArgument, KindOf(err))
		})
	}
}

func TestService_DatasetPage_UnknownDataset(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, new(mockArchiver))

	store.On("GetDataset", mock.Anything, int64(99)).Return(Dataset{}, ErrDatasetNotFound)

	_, err := svc.DatasetPage(context.Background(), 99, 1, 20, "", "")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestService_DatasetPage_FilterColumnChecks(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, new(mockArchiver))

	ds := Dataset{ID: 1, Columns: []string{"金額", "勘定科目"}}
	store.On("GetDataset", mock.Anything, int64(1)).Return(ds, nil)

	// Unknown column is rejected against the dataset header.
	_, err := svc.DatasetPage(context.Background(), 1, 1, 20, "備考", "x")
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	// Column without value (and vice versa) is rejected.
	_, err = svc.DatasetPage(context.Background(), 1, 1, 20, "金額", "")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
	_, err = svc.DatasetPage(context.Background(), 1, 1, 20, "", "1200")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestService_DatasetPage_PassesFilterIndexAndWindow(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, new(mockArchiver))

	ds := Dataset{ID: 1, BranchName: "大阪支店", Period: "2025-10", Columns: []string{"金額", "勘定科目"}}
	store.On("GetDataset", mock.Anything, int64(1)).Return(ds, nil)
	store.On("DatasetRows", mock.Anything, RowQuery{
		DatasetID:   1,
		FilterIndex: 1,
		FilterValue: "会議費",
		Limit:       10,
		Offset:      20,
	}).Return(RowPage{Total: 21}, nil)

	page, err := svc.DatasetPage(context.Background(), 1, 3, 10, "勘定科目", "会議費")
	require.NoError(t, err)

	assert.Equal(t, 21, page.Total)
	assert.Equal(t, 3, page.Page)
	assert.Empty(t, page.Rows, "page past the end returns no rows but the real total")
	assert.Equal(t, "大阪支店", page.BranchName)
	store.AssertExpectations(t)
}

// ============================================================================
// FilteredRows / ExportCSV Tests
// ============================================================================

func TestService_FilteredRows_Pagination(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, new(mockArchiver))

	var all []Row
	for i := 0; i < 5; i++ {
		r := expenseRow("大阪支店", "会議費")
		r.Values = []string{fmt.Sprintf("%d", i), "会議費", "大阪支店"}
		all = append(all, r)
	}
	store.On("AllRows", mock.Anything, DatasetFilter{Branch: "大阪支店"}).Return(all, nil)

	// Concatenating all pages reproduces the full sequence exactly once.
	var got []string
	for page := 1; page <= 3; page++ {
		result, err := svc.FilteredRows(context.Background(),
			DatasetFilter{Branch: "大阪支店"}, "", "", page, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, result.Total)
		for _, row := range result.Rows {
			got = append(got, row.Values[0])
		}
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, got)

	// A page past the end is empty but keeps the total.
	result, err := svc.FilteredRows(context.Background(),
		DatasetFilter{Branch: "大阪支店"}, "", "", 9, 2)
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Equal(t, 5, result.Total)
}

func TestService_FilteredRows_ColumnFilter(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, new(mockArchiver))

	all := []Row{
		expenseRow("大阪支店", "会議費"),
		expenseRow("大阪支店", "交通費"),
		expenseRow("大阪支店", "会議費"),
	}
	store.On("AllRows", mock.Anything, DatasetFilter{}).Return(all, nil)

	result, err := svc.FilteredRows(context.Background(), DatasetFilter{}, "勘定科目", "会議費", 1, 50)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	for _, row := range result.Rows {
		v, _ := row.Get("勘定科目")
		assert.Equal(t, "会議費", v)
	}
}

func TestService_ExportCSV(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, new(mockArchiver))

	all := []Row{
		{Columns: []string{"金額", "備考"}, Values: []string{"1200", "地下鉄"}},
		// A dataset with a different header contributes by column name.
		{Columns: []string{"備考", "金額", "部署"}, Values: []string{"タクシー", "3000", "営業部"}},
	}
	store.On("AllRows", mock.Anything, DatasetFilter{}).Return(all, nil)

	data, err := svc.ExportCSV(context.Background(), DatasetFilter{}, "", "")
	require.NoError(t, err)

	want := "金額,備考\n1200,地下鉄\n3000,タクシー\n"
	assert.Equal(t, want, string(data))
}

func TestService_ExportCSV_NoMatches(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, new(mockArchiver))

	store.On("AllRows", mock.Anything, mock.Anything).Return([]Row{}, nil)

	_, err := svc.ExportCSV(context.Background(), DatasetFilter{Branch: "無い支店"}, "", "")
	assert.ErrorIs(t, err, ErrNoMatchingRows)
}

// ============================================================================
// ExportDataset Tests
// ============================================================================

func TestService_ExportDataset_RoundTrip(t *testing.T) {
	store := new(mockStore)
	arch := new(mockArchiver)
	svc := newTestService(store, arch)

	original := []byte("金額,備考\n1200,地下鉄\n")
	ds := Dataset{ID: 7, OriginalPath: "uploads/20251001_120000_keihi.csv"}

	store.On("GetDataset", mock.Anything, int64(7)).Return(ds, nil)
	arch.On("Open", ds.OriginalPath).
		Return(io.NopCloser(bytes.NewReader(original)), nil)

	rc, got, err := svc.ExportDataset(context.Background(), 7)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, original, data, "re-download must be byte-identical")
	assert.Equal(t, int64(7), got.ID)
}

func TestService_ExportDataset_NotFound(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, new(mockArchiver))

	store.On("GetDataset", mock.Anything, int64(404)).Return(Dataset{}, ErrDatasetNotFound)

	_, _, err := svc.ExportDataset(context.Background(), 404)
	assert.Equal(t, KindNotFound, KindOf(err))
}
