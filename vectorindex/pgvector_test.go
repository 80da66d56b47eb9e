package vectorindex

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"claim-dossier/models"
)

func newMockPGVector(t *testing.T, dim int) (*PGVector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return NewPGVector(gdb, dim, zap.NewNop()), mock
}

func TestPGVectorMigrateUsesDimension(t *testing.T) {
	idx, mock := newMockPGVector(t, 3)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE EXTENSION IF NOT EXISTS vector`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`embedding vector(3) NOT NULL`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`USING hnsw (embedding vector_cosine_ops)`)).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := idx.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGVectorInsertRejectsWrongDimension(t *testing.T) {
	idx, mock := newMockPGVector(t, 3)
	err := idx.Insert(context.Background(), []models.Chunk{{PaperID: 1, Embedding: models.Vector{1, 2}}})
	if err == nil {
		t.Fatal("expected dimension error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query expected: %v", err)
	}
}

func TestPGVectorInsertIgnoresConflicts(t *testing.T) {
	idx, mock := newMockPGVector(t, 2)
	mock.ExpectQuery(`INSERT INTO "chunks" .* ON CONFLICT \("paper_id","chunk_index"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	err := idx.Insert(context.Background(), []models.Chunk{{PaperID: 1, ChunkIndex: 0, Content: "c", Embedding: models.Vector{0.1, 0.2}}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGVectorSearchGrouped(t *testing.T) {
	idx, mock := newMockPGVector(t, 2)
	rows := sqlmock.NewRows([]string{"chunk_id", "paper_id", "chunk_index", "content", "similarity"}).
		AddRow(11, 1, 0, "a", 0.91).
		AddRow(21, 2, 0, "b", 0.80).
		AddRow(12, 1, 1, "c", 0.75)
	mock.ExpectQuery(`ROW_NUMBER\(\) OVER \(PARTITION BY paper_id`).WillReturnRows(rows)

	got, err := idx.SearchGrouped(context.Background(), Query{Embedding: []float32{0.1, 0.2}, PaperIDs: []uint{1, 2}}, 2)
	if err != nil {
		t.Fatalf("SearchGrouped: %v", err)
	}
	if len(got) != 2 || got[0].PaperID != 1 || len(got[0].Chunks) != 2 || got[0].Best != 0.91 {
		t.Fatalf("unexpected groups %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGVectorSearchRejectsEmptyVector(t *testing.T) {
	idx, _ := newMockPGVector(t, 2)
	if _, err := idx.Search(context.Background(), Query{}); err == nil {
		t.Fatal("expected error for empty vector")
	}
}

func TestPGVectorIndexedPaperIDs(t *testing.T) {
	idx, mock := newMockPGVector(t, 2)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "paper_id" FROM "chunks"`)).
		WillReturnRows(sqlmock.NewRows([]string{"paper_id"}).AddRow(4))

	got, err := idx.IndexedPaperIDs(context.Background(), []uint{4, 5})
	if err != nil {
		t.Fatalf("IndexedPaperIDs: %v", err)
	}
	if !got[4] || got[5] {
		t.Fatalf("unexpected set %v", got)
	}
}
