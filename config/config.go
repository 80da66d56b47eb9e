package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Job-Queue (Redis Streams)
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDB           int           `envconfig:"REDIS_DB" default:"0"`
	JobStream         string        `envconfig:"JOB_STREAM" default:"dossier:jobs"`
	JobGroup          string        `envconfig:"JOB_GROUP" default:"dossier-workers"`
	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	JobMaxAttempts    int           `envconfig:"JOB_MAX_ATTEMPTS" default:"3"`
	JobTimeout        time.Duration `envconfig:"JOB_TIMEOUT" default:"20m"`
	ReclaimSchedule   string        `envconfig:"RECLAIM_SCHEDULE" default:"@every 1m"`

	// Literatur-Provider
	EnabledProviders       string        `envconfig:"ENABLED_PROVIDERS" default:"pubmed,europepmc,semanticscholar"`
	SearchMaxResults       int           `envconfig:"SEARCH_MAX_RESULTS" default:"25"`
	SearchTimeout          time.Duration `envconfig:"SEARCH_TIMEOUT" default:"30s"`
	PubMedBaseURL          string        `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey           string        `envconfig:"PUBMED_API_KEY"`
	PubMedEmail            string        `envconfig:"PUBMED_EMAIL"`
	PubMedTool             string        `envconfig:"PUBMED_TOOL" default:"claim-dossier"`
	EuropePMCBaseURL       string        `envconfig:"EUROPEPMC_BASE_URL" default:"https://www.ebi.ac.uk/europepmc/webservices/rest"`
	SemanticScholarBaseURL string        `envconfig:"SEMANTIC_SCHOLAR_BASE_URL" default:"https://api.semanticscholar.org/graph/v1"`
	SemanticScholarAPIKey  string        `envconfig:"SEMANTIC_SCHOLAR_API_KEY"`

	// Unpaywall-API für freie Volltexte (optional, leer = deaktiviert)
	UnpaywallBaseURL   string `envconfig:"UNPAYWALL_BASE_URL" default:"https://api.unpaywall.org/v2"`
	UnpaywallEmail     string `envconfig:"UNPAYWALL_EMAIL"`
	UnpaywallMaxPerRun int    `envconfig:"UNPAYWALL_MAX_PER_RUN" default:"20"`

	// Sprachmodell & Embeddings (OpenAI-kompatible API)
	LLMBaseURL          string        `envconfig:"LLM_BASE_URL" default:"https://api.openai.com/v1"`
	LLMAPIKey           string        `envconfig:"LLM_API_KEY" required:"true"`
	LLMModel            string        `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMTemperature      float64       `envconfig:"LLM_TEMPERATURE" default:"0.1"`
	LLMTimeout          time.Duration `envconfig:"LLM_TIMEOUT" default:"90s"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingBatchSize  int           `envconfig:"EMBEDDING_BATCH_SIZE" default:"96"`

	// Vektorindex & Retrieval
	VectorStore            string  `envconfig:"VECTOR_STORE" default:"postgres"`
	ChunkMaxTokens         int     `envconfig:"CHUNK_MAX_TOKENS" default:"500"`
	ChunkOverlapTokens     int     `envconfig:"CHUNK_OVERLAP_TOKENS" default:"100"`
	EvidenceMaxPapers      int     `envconfig:"EVIDENCE_MAX_PAPERS" default:"15"`
	EvidenceChunksPerPaper int     `envconfig:"EVIDENCE_CHUNKS_PER_PAPER" default:"3"`
	RetrievalMinSimilarity float64 `envconfig:"RETRIEVAL_MIN_SIMILARITY" default:"0.3"`

	// S3-Archiv für fertige Dossiers (optional)
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"eu-central-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Providers liefert die aktivierten Provider-Namen (getrimmt, ohne Leereinträge).
func (c *Config) Providers() []string {
	var names []string
	for _, name := range strings.Split(c.EnabledProviders, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ArchiveEnabled meldet, ob ein S3-Ziel für Dossier-Archive konfiguriert ist.
func (c *Config) ArchiveEnabled() bool {
	return c.S3URL != "" && c.S3Bucket != "" && c.S3Key != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
