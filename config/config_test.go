package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProviders(t *testing.T) {
	c := &Config{EnabledProviders: " PubMed, ,europepmc,semanticscholar ,"}
	want := []string{"pubmed", "europepmc", "semanticscholar"}
	if diff := cmp.Diff(want, c.Providers()); diff != "" {
		t.Fatalf("providers mismatch (-want +got):\n%s", diff)
	}
	if got := (&Config{}).Providers(); len(got) != 0 {
		t.Fatalf("expected no providers, got %v", got)
	}
}

func TestDSN(t *testing.T) {
	c := &Config{DBHost: "db", DBPort: 5433, DBUser: "u", DBPassword: "p", DBName: "claims"}
	want := "host=db user=u password=p dbname=claims port=5433 sslmode=disable"
	if got := c.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestArchiveEnabled(t *testing.T) {
	c := &Config{S3URL: "https://s3.example.org", S3Bucket: "dossiers"}
	if c.ArchiveEnabled() {
		t.Fatal("archive must stay disabled without credentials")
	}
	c.S3Key = "key"
	if !c.ArchiveEnabled() {
		t.Fatal("archive should be enabled")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "dossier")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "dossier")
	t.Setenv("LLM_API_KEY", "sk-test")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ChunkMaxTokens != 500 || c.ChunkOverlapTokens != 100 || c.JobMaxAttempts != 3 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.VectorStore != "postgres" || c.JobTimeout.Minutes() != 20 {
		t.Fatalf("unexpected defaults: store=%q timeout=%s", c.VectorStore, c.JobTimeout)
	}
}
