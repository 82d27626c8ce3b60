package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/diewo77/docbatch/internal/config"
	"github.com/diewo77/docbatch/internal/db"
	"github.com/diewo77/docbatch/internal/logger"
	"github.com/diewo77/docbatch/internal/services"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// valuesFlag collects repeated -set key=value pairs.
type valuesFlag map[string]string

func (v valuesFlag) String() string {
	parts := make([]string, 0, len(v))
	for k, val := range v {
		parts = append(parts, k+"="+val)
	}
	return strings.Join(parts, ",")
}

func (v valuesFlag) Set(s string) error {
	k, val, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	v[k] = val
	return nil
}

// splitList splits a comma separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	values := valuesFlag{}
	var (
		configFile  = flag.String("config", "", "YAML file overriding environment settings")
		migrateOnly = flag.Bool("migrate-only", false, "Run DB migrations and exit")
		seedOnly    = flag.Bool("seed-only", false, "Seed the operator account and exit")
		batchMode   = flag.Bool("batch", false, "Generate every client x document type pair")
		entities    = flag.String("entities", "", "Comma separated client ids")
		docTypes    = flag.String("types", "", "Comma separated document type ids")
		fy          = flag.String("fy", "", "Financial year added to batch file names")
		generate    = flag.String("generate", "", "Generate one document of this document type id")
		entity      = flag.String("entity", "", "Client id used to prefill -generate")
		list        = flag.String("list", "", "List reports, types or clients")
		setRole     = flag.String("role", "", "Change a user's role, as id=ADMIN or id=USER")
	)
	flag.Var(values, "set", "Manual field value as key=value (repeatable)")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	if *configFile != "" {
		if err := config.LoadFile(*configFile, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	conn, err := db.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if *migrateOnly {
		if err := db.Migrate(conn); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("migrations completed")
		return
	}
	if cfg.App.Migrations {
		if err := db.Migrate(conn); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
	}
	if err := db.Seed(conn, cfg.App.OperatorID, cfg.App.OperatorName); err != nil {
		log.Fatal("seeding failed", zap.Error(err))
	}
	if *seedOnly {
		log.Info("seeding completed")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(conn, cfg, log)

	var result any
	switch {
	case *batchMode:
		result, err = app.RunBatch(ctx, services.BatchRequest{
			EntityIDs:       splitList(*entities),
			DocumentTypeIDs: splitList(*docTypes),
			ManualValues:    values,
			FinancialYear:   *fy,
		})
	case *generate != "":
		result, err = app.Generate(ctx, services.GenerateRequest{
			DocumentTypeID: *generate,
			EntityID:       *entity,
			ManualValues:   values,
		})
	case *setRole != "":
		id, role, ok := strings.Cut(*setRole, "=")
		if !ok {
			log.Fatal("-role expects id=ROLE", zap.String("value", *setRole))
		}
		result, err = app.SetRole(ctx, strings.TrimSpace(id), strings.ToUpper(strings.TrimSpace(role)))
	case *list == "reports":
		result, err = app.ListReports(ctx, services.ReportFilter{DocumentTypeID: *docTypes, EntityID: *entity})
	case *list == "types":
		result, err = app.ListDocumentTypes(ctx)
	case *list == "clients":
		result, err = app.ListClients(ctx, "")
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("command failed", zap.Error(err))
		stop()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatal("failed to write result", zap.Error(err))
	}
}
