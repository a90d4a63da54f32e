package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"corpgate/internal/access"
	"corpgate/internal/accessmodel"
	"corpgate/internal/config"
	"corpgate/internal/department"
	"corpgate/internal/directory"
	"corpgate/internal/directory/memory"
	"corpgate/internal/directory/redis"
	"corpgate/internal/domain"
	"corpgate/internal/logging"
	"corpgate/internal/policy"
	"corpgate/internal/service"
	"corpgate/internal/topic"
	"corpgate/internal/tui"
	"corpgate/internal/zeroshot/hfapi"
	"corpgate/internal/zeroshot/lexical"
)

// Exit codes.
const (
	exitOK = iota
	exitError
	exitUsage
	exitNotFound
	exitBadRequest
)

type options struct {
	cfgPath  string
	employee string
	origin   string
	query    string
	classify string
	assess   string
	imports  string
	model    bool
}

func (o options) interactive() bool {
	return o.query == "" && o.classify == "" && o.assess == "" && o.imports == "" && !o.model
}

func main() {
	_ = godotenv.Load()

	var o options
	flag.StringVar(&o.cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/corpgate/config.yaml if not provided)")
	flag.StringVar(&o.employee, "employee", "", "Employee ID to act as")
	flag.StringVar(&o.origin, "origin", "", "Client address; overrides the address on the employee record")
	flag.StringVar(&o.query, "query", "", "Process one query and print the result as JSON")
	flag.StringVar(&o.classify, "classify", "", "Classify one query and print the classification as JSON")
	flag.StringVar(&o.assess, "assess", "", "Score the access request in this JSON file with the access model")
	flag.StringVar(&o.imports, "import", "", "Load employee records from this JSON file into the configured directory")
	flag.BoolVar(&o.model, "assess-employee", false, "Score the -employee record with the access model; -query picks the action")
	flag.Parse()

	os.Exit(run(context.Background(), o))
}

func run(ctx context.Context, o options) int {
	var cfg *config.AppConfig
	var err error
	if o.cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(o.cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitError
	}

	var logger *slog.Logger
	if o.interactive() && cfg.Log.File == "" {
		logger = logging.Discard()
	} else {
		l, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
			return exitError
		}
		defer closeLog()
		logger = l
	}
	slog.SetDefault(logger)

	store, err := openDirectory(ctx, cfg.Directory, logger)
	if err != nil {
		logger.Error("directory init failed", "error", err)
		return exitError
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	if o.imports != "" {
		return importRecords(ctx, store, o.imports, logger)
	}

	svc, err := buildService(cfg, store, logger)
	if err != nil {
		logger.Error("service init failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	switch {
	case o.model:
		return assessEmployee(ctx, svc, o)
	case o.assess != "":
		return assess(svc, o.assess)
	case o.classify != "":
		cls, err := svc.ClassifyQuery(ctx, o.classify)
		if err != nil {
			fmt.Fprintf(os.Stderr, "classification failed: %v\n", err)
			return exitError
		}
		return printJSON(cls)
	case o.query != "":
		if o.employee == "" {
			fmt.Fprintln(os.Stderr, "Usage: corpgate -employee ID -query \"...\"")
			return exitUsage
		}
		res, err := svc.ProcessUserQuery(ctx, service.QueryRequest{
			UserID: domain.EmployeeID(o.employee),
			Query:  o.query,
			Origin: o.origin,
		}, nil)
		if errors.Is(err, directory.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return exitNotFound
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
			return exitError
		}
		return printJSON(res)
	}

	if o.employee == "" {
		fmt.Println("Usage: corpgate [--config=config.yaml] -employee ID [-origin ADDR] [-query \"...\"]")
		return exitUsage
	}
	m := tui.New(svc, domain.EmployeeID(o.employee), o.origin)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	return exitOK
}

func buildService(cfg *config.AppConfig, store directory.Store, logger *slog.Logger) (*service.GateService, error) {
	var backend domain.ZeroShotClassifier
	switch cfg.Classifier.Type {
	case "lexical", "":
		backend = lexical.New()
	case "hfapi":
		h := cfg.Classifier.HFAPI
		if h == nil {
			return nil, errors.New("hfapi classifier config missing")
		}
		client, err := hfapi.NewClient(hfapi.Config{
			BaseURL:   h.BaseURL,
			APIKeyEnv: h.APIKeyEnv,
			Model:     h.Model,
			Timeout:   h.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("hfapi classifier init failed: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown classifier: %s", cfg.Classifier.Type)
	}

	pol, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{service.WithLogger(logger)}
	if cfg.Model.Path != "" {
		model, err := accessmodel.Load(cfg.Model.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("access model loaded", "name", model.Name(), "path", cfg.Model.Path)
		opts = append(opts, service.WithAssessor(model))
	}

	return service.NewGateService(
		store,
		topic.NewClassifier(backend, cfg.Classifier.ConfidenceThreshold, logger),
		department.NewExtractor(logger),
		access.NewEvaluator(pol, access.WithLogger(logger)),
		opts...,
	), nil
}

func openDirectory(ctx context.Context, cfg config.DirectoryConfig, logger *slog.Logger) (directory.Store, error) {
	switch cfg.Type {
	case "memory", "":
		if _, err := os.Stat(cfg.Path); errors.Is(err, fs.ErrNotExist) {
			logger.Warn("employee file not found; starting with an empty directory", "path", cfg.Path)
		}
		return memory.LoadFile(cfg.Path)
	case "redis":
		if cfg.Redis == nil {
			return nil, errors.New("redis directory config missing")
		}
		s := redis.NewStore(redis.Options{
			Address:   cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err := s.Ping(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown directory: %s", cfg.Type)
	}
}

func importRecords(ctx context.Context, store directory.Store, path string, logger *slog.Logger) int {
	recs, err := memory.ReadRecords(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		return exitError
	}
	n, err := directory.Import(ctx, store, recs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import stopped after %d records: %v\n", n, err)
		return exitError
	}
	if _, inMemory := store.(*memory.Store); inMemory {
		logger.Warn("memory directory is not persisted; imported records are dropped on exit")
	}
	fmt.Printf("imported %d employee records\n", n)
	return exitOK
}

func assess(svc *service.GateService, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		return exitError
	}
	var req accessmodel.AccessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		fmt.Fprintf(os.Stderr, "decode %s: %v\n", path, err)
		return exitBadRequest
	}
	v, err := svc.AssessAccess(req)
	switch {
	case errors.Is(err, accessmodel.ErrMissingField),
		errors.Is(err, accessmodel.ErrUnknownCategory),
		errors.Is(err, accessmodel.ErrInvalidField):
		fmt.Fprintln(os.Stderr, err)
		return exitBadRequest
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	return printJSON(v)
}

func assessEmployee(ctx context.Context, svc *service.GateService, o options) int {
	if o.employee == "" {
		fmt.Fprintln(os.Stderr, "Usage: corpgate -assess-employee -employee ID [-query \"...\"]")
		return exitUsage
	}
	out, err := svc.AssessEmployee(ctx, domain.EmployeeID(o.employee), o.query)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		fmt.Fprintln(os.Stderr, err)
		return exitNotFound
	case errors.Is(err, accessmodel.ErrMissingField),
		errors.Is(err, accessmodel.ErrUnknownCategory),
		errors.Is(err, accessmodel.ErrInvalidField):
		fmt.Fprintln(os.Stderr, err)
		return exitBadRequest
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	return printJSON(out)
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	return exitOK
}
