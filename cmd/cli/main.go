package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/quarterly-extractor/internal/app"
	"github.com/dvloznov/quarterly-extractor/internal/config"
	"github.com/dvloznov/quarterly-extractor/internal/extract"
	"github.com/dvloznov/quarterly-extractor/internal/logger"
	"github.com/dvloznov/quarterly-extractor/internal/pipeline"
	"github.com/dvloznov/quarterly-extractor/internal/preprocess"
	"github.com/dvloznov/quarterly-extractor/internal/report"
	"github.com/dvloznov/quarterly-extractor/internal/storage"
)

const commandTimeout = 10 * time.Minute

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		runExtract(log)
	case "scan":
		runScan(log)
	case "query":
		runQuery(log)
	case "text":
		runText(log)
	case "upload":
		runUpload(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Quarterly Extractor CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  extract   Extract figures for one quarter from a report")
	fmt.Println("  scan      Extract every quarterly and annual figure in a report")
	fmt.Println("  query     Answer a question such as 'PAT for Q3 FY25'")
	fmt.Println("  text      Print the normalized text of a report")
	fmt.Println("  upload    Upload a PDF file to GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nDocuments are local paths or gs://bucket/object URIs.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// commonFlags are shared by every command that reads a document.
type commonFlags struct {
	file       *string
	configPath *string
	format     *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		file:       fs.String("file", "", "Path or gs:// URI of the report PDF"),
		configPath: fs.String("config", os.Getenv("CONFIG_FILE"), "Config file (JSON or YAML)"),
		format:     fs.String("format", string(report.FormatTable), "Output format: table, json or yaml"),
	}
}

// setup loads config, builds services and reads the document. The returned
// logger honours the configured level.
func setup(log zerolog.Logger, flags commonFlags) (context.Context, context.CancelFunc, *app.App, extract.Document, zerolog.Logger) {
	if *flags.file == "" {
		log.Fatal().Msg("Error: -file is required")
	}

	cfg, err := config.Load(*flags.configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	log = logger.NewWithLevel(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	doc, err := a.Loader.Load(ctx, *flags.file)
	if err != nil {
		a.Close()
		cancel()
		log.Fatal().Err(err).Msg("Failed to load document")
	}
	return ctx, cancel, a, doc, log
}

func output(log zerolog.Logger, format string, v interface{}) {
	f, err := report.ParseFormat(format)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid output format")
	}
	if err := report.Write(os.Stdout, f, v); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func runExtract(log zerolog.Logger) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	flags := addCommonFlags(fs)
	quarter := fs.String("quarter", "", "Quarter: Q1, Q2, Q3 or Q4")
	year := fs.String("year", "", "Fiscal year, e.g. FY25, 25 or 2025")
	terms := fs.String("terms", "", "Comma-separated financial terms (default Revenue, PAT, EBITDA)")
	mode := fs.String("mode", string(pipeline.ModeBasic), "Analysis mode: basic, correlation or comprehensive")
	fs.Parse(os.Args[2:])

	if *quarter == "" || *year == "" {
		log.Fatal().Msg("Usage: cli extract -file PATH -quarter Q3 -year FY25 [-terms LIST] [-mode MODE]")
	}

	ctx, cancel, a, doc, log := setup(log, flags)
	defer cancel()
	defer a.Close()

	log.Info().
		Str("document", doc.Name).
		Str("quarter", *quarter).
		Str("year", *year).
		Str("mode", *mode).
		Msg("Starting extraction")

	res, err := a.Service.Extract(ctx, pipeline.Request{
		Document: doc,
		Quarter:  *quarter,
		Year:     *year,
		Terms:    preprocess.ParseTermList(*terms),
		Mode:     *mode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	output(log, *flags.format, res)
}

func runScan(log zerolog.Logger) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	flags := addCommonFlags(fs)
	fs.Parse(os.Args[2:])

	ctx, cancel, a, doc, log := setup(log, flags)
	defer cancel()
	defer a.Close()

	log.Info().Str("document", doc.Name).Msg("Starting scan")

	res, err := a.Service.Scan(ctx, doc)
	if err != nil {
		log.Fatal().Err(err).Msg("Scan failed")
	}

	output(log, *flags.format, res)
}

func runQuery(log zerolog.Logger) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	flags := addCommonFlags(fs)
	q := fs.String("q", "", "Question, e.g. 'Revenue for Q3 FY25'")
	fs.Parse(os.Args[2:])

	if strings.TrimSpace(*q) == "" {
		log.Fatal().Msg("Usage: cli query -file PATH -q QUESTION")
	}

	ctx, cancel, a, doc, log := setup(log, flags)
	defer cancel()
	defer a.Close()

	res, err := a.Service.Query(ctx, doc, *q)
	if err != nil {
		log.Fatal().Err(err).Msg("Query failed")
	}

	output(log, *flags.format, res)
}

func runText(log zerolog.Logger) {
	fs := flag.NewFlagSet("text", flag.ExitOnError)
	flags := addCommonFlags(fs)
	limit := fs.Int("limit", 5000, "Maximum characters to print (0 for all)")
	fs.Parse(os.Args[2:])

	ctx, cancel, a, doc, log := setup(log, flags)
	defer cancel()
	defer a.Close()

	res, err := a.Service.Text(ctx, doc)
	if err != nil {
		log.Fatal().Err(err).Msg("Text extraction failed")
	}
	if runes := []rune(res.Text); *limit > 0 && len(runes) > *limit {
		res.Text = string(runes[:*limit])
	}

	output(log, *flags.format, res)
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name (defaults to GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local PDF file")
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "Config file (JSON or YAML)")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *bucketName == "" {
		*bucketName = cfg.GCSBucket
	}
	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	gcs, err := storage.NewGCS(ctx, cfg.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer gcs.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcs.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}
