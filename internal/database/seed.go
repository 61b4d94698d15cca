package database

// seed.go generates demo datasets for local development and demos.
//
// Seed data goes through the full upload pipeline (validator, archive,
// store) instead of raw inserts, so every seeded dataset satisfies the
// same invariants as a real upload, including byte-identical re-download
// of its archived CSV.

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"time"

	"github.com/keihiworks/keihi/internal/core"
)

var (
	seedBranches  = []string{"東京支店", "大阪支店", "名古屋支店", "福岡支店"}
	seedAccounts  = []string{"旅費交通費", "会議費", "交際費", "消耗品費", "通信費"}
	seedEmployees = []string{"山田太郎", "佐藤花子", "田中一郎", "高橋次郎", "鈴木美咲"}
	seedHeader    = []string{"日付", "部署", "社員名", "金額", "勘定科目", "備考"}
)

// SeedOptions controls how much demo data Seed generates.
type SeedOptions struct {
	Datasets    int // number of datasets (default 20)
	RowsPerFile int // rows per dataset (default 10)
	Rand        *rand.Rand
}

// Seed uploads generated demo CSVs through the service. Returns the
// number of datasets created.
func Seed(ctx context.Context, svc *core.Service, opts SeedOptions) (int, error) {
	if opts.Datasets <= 0 {
		opts.Datasets = 20
	}
	if opts.RowsPerFile <= 0 {
		opts.RowsPerFile = 10
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for i := 0; i < opts.Datasets; i++ {
		branch := seedBranches[rng.Intn(len(seedBranches))]
		month := rng.Intn(12) + 1
		period := fmt.Sprintf("2025-%02d", month)

		data, err := seedCSV(rng, branch, month, opts.RowsPerFile)
		if err != nil {
			return i, fmt.Errorf("generate seed csv: %w", err)
		}

		_, err = svc.Upload(ctx, core.UploadInput{
			FileName:   fmt.Sprintf("dummy_%d.csv", i+1),
			Data:       data,
			BranchName: branch,
			Period:     period,
			Uploader:   "seed",
		})
		if err != nil {
			return i, fmt.Errorf("seed dataset %d: %w", i+1, err)
		}
	}

	return opts.Datasets, nil
}

// seedCSV renders one demo expense sheet as CSV bytes.
func seedCSV(rng *rand.Rand, branch string, month, rows int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(seedHeader); err != nil {
		return nil, err
	}
	for j := 0; j < rows; j++ {
		date := time.Date(2025, time.Month(month), rng.Intn(28)+1, 0, 0, 0, 0, time.UTC)
		record := []string{
			date.Format("2006-01-02"),
			branch + " 経理部",
			seedEmployees[rng.Intn(len(seedEmployees))],
			fmt.Sprintf("%d", rng.Intn(49001)+1000),
			seedAccounts[rng.Intn(len(seedAccounts))],
			fmt.Sprintf("テストデータ%d", j+1),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
