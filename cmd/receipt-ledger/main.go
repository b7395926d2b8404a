package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-ledger/internal/logging"
	"github.com/zombor/receipt-ledger/internal/receipt"
	"github.com/zombor/receipt-ledger/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; flags and the environment still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	fs := ff.NewFlagSet("receipt-ledger")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbBackend   = fs.StringLong("db-backend", "sqlite", "Database backend: 'sqlite' or 'bolt'")
		dbPath      = fs.StringLong("db", "receipt-ledger.db", "Database file path")
		storagePath = fs.StringLong("storage", "./uploads", "Upload storage directory path")
		llmProvider = fs.StringLong("llm", "gemini", "Language model provider: 'gemini', 'ollama' or 'groq'")
		llmModel    = fs.StringLong("llm-model", "", "Model name (provider default if empty)")
		llmKey      = fs.StringLong("llm-key", "", "API key for gemini or groq (or set GEMINI_API_KEY / GROQ_API_KEY)")
		llmURL      = fs.StringLong("llm-url", "", "Base URL for ollama or an OpenAI-compatible groq endpoint")
		llmTimeout  = fs.DurationLong("llm-timeout", 60*time.Second, "Timeout for a single model call")
		llmAttempts = fs.IntLong("llm-attempts", 3, "Model call attempts before giving up")
		ocrLangs    = fs.StringLong("ocr-langs", "eng", "Comma-separated Tesseract languages")
		ocrDPI      = fs.IntLong("ocr-dpi", 300, "DPI used to rasterize scanned PDF pages")
		maxUploadMB = fs.IntLong("max-upload-mb", 10, "Maximum upload size in megabytes")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel    = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		_           = fs.StringLong("config", "", "Config file (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_LEDGER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithConfigAllowMissingFile(),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(level)

	// Initialize database
	slog.Info("Initializing database...", "backend", *dbBackend, "path", *dbPath)
	var db receipt.DB
	switch *dbBackend {
	case "sqlite":
		db, err = receipt.NewSQLiteDB(*dbPath)
	case "bolt":
		db, err = receipt.NewBoltDB(*dbPath)
	default:
		err = fmt.Errorf("invalid database backend %q, valid: sqlite or bolt", *dbBackend)
	}
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	completer, err := newCompleter(*llmProvider, *llmModel, *llmKey, *llmURL)
	if err != nil {
		slog.Error("Failed to initialize language model", "provider", *llmProvider, "error", err)
		os.Exit(1)
	}
	completer = scanning.NewRetryingCompleter(completer, *llmAttempts, *llmTimeout)
	defer completer.Close()

	// Initialize storage
	slog.Info("Initializing storage...", "path", *storagePath)
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	ocr := scanning.NewTesseract(strings.Split(*ocrLangs, ",")...)
	extractor := scanning.NewExtractor(ocr, *ocrDPI)
	parser := scanning.NewParser(completer)

	limits := receipt.DefaultUploadLimits()
	limits.MaxBytes = int64(*maxUploadMB) << 20

	// Initialize service
	receiptService := receipt.NewService(db, store, extractor, parser, limits)

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(receiptService, basicAuth)

	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", *port)
	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

// newCompleter builds the language model client for provider
func newCompleter(provider, model, key, url string) (scanning.Completer, error) {
	switch provider {
	case "gemini":
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			return nil, errors.New("gemini API key is required. Set --llm-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini...", "model", model)
		gemini, err := scanning.NewGemini(key, model)
		if err != nil {
			return nil, err
		}
		return gemini, nil
	case "ollama":
		slog.Info("Initializing Ollama...", "url", url, "model", model)
		ollama, err := scanning.NewOllama(url, model)
		if err != nil {
			return nil, err
		}
		return ollama, nil
	case "groq":
		if key == "" {
			key = os.Getenv("GROQ_API_KEY")
		}
		if key == "" {
			return nil, errors.New("groq API key is required. Set --llm-key or GROQ_API_KEY")
		}
		slog.Info("Initializing Groq...", "model", model)
		groq, err := scanning.NewGroq(key, model, url)
		if err != nil {
			return nil, err
		}
		return groq, nil
	default:
		return nil, fmt.Errorf("invalid provider %q, valid: gemini, ollama or groq", provider)
	}
}
