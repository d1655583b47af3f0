package couponseed

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/armadaproject/couponseed/internal/common/util"
	"github.com/armadaproject/couponseed/internal/couponseed/archive"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
	"github.com/armadaproject/couponseed/internal/couponseed/build"
	"github.com/armadaproject/couponseed/internal/couponseed/bulkissue"
	"github.com/armadaproject/couponseed/internal/couponseed/configuration"
	"github.com/armadaproject/couponseed/internal/couponseed/executionlog"
	"github.com/armadaproject/couponseed/internal/couponseed/generator"
	"github.com/armadaproject/couponseed/internal/couponseed/inventory"
	"github.com/armadaproject/couponseed/internal/couponseed/orchestrator"
	"github.com/armadaproject/couponseed/internal/couponseed/testplan"
)

const (
	defaultHistoryPath = "output/sfn/process.jsonl"
	tempDirName        = "temp"
)

type App struct {
	// Parameters passed to the CLI by the user.
	Params *Params
	// Out is used to write the output. Defaults to standard out,
	// but can be overridden in tests to make assertions on the applications's output.
	Out io.Writer
	// In is read for keypresses by the interactive poll command.
	In io.Reader
	// Source of randomness for generated codes. Tests can use a seeded source in order to provide
	// deterministic testing behavior.
	Random rand.Source
	Clock  clock.Clock
	// Registry the orchestrator metrics are registered with.
	Registry prometheus.Registerer

	// External services. Each is built from Params.Config on first use unless set beforehand.
	Oracle   inventory.Oracle
	Uploader archive.Uploader
	Workflow bulkissue.WorkflowClient
	Store    executionlog.Store

	session *session.Session
}

// Params struct holds all user-customizable parameters.
// Using a single struct for all CLI commands ensures that all flags are distinct
// and that they can be provided either dynamically on a command line, or
// statically in a config file that's reused between command runs.
type Params struct {
	Config configuration.CouponSeedConfiguration
	Plan   *testplan.Plan
}

// New instantiates an App with default parameters, including standard input and output
// and a time-seeded random source.
func New() *App {
	return &App{
		Params:   &Params{Plan: testplan.Default()},
		Out:      os.Stdout,
		In:       os.Stdin,
		Random:   util.NewLockedSource(time.Now().UnixNano()),
		Clock:    clock.RealClock{},
		Registry: prometheus.DefaultRegisterer,
	}
}

// Version prints build information (e.g., current git commit) to the app output.
func (a *App) Version() error {
	w := tabwriter.NewWriter(a.Out, 1, 1, 1, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "Version:\t%s\n", build.ReleaseVersion)
	fmt.Fprintf(w, "Commit:\t%s\n", build.GitCommit)
	fmt.Fprintf(w, "Go version:\t%s\n", build.GoVersion)
	fmt.Fprintf(w, "Built:\t%s\n", build.BuildTime)
	return nil
}

// Run executes every pending test case of the plan. While it runs, metrics are served on
// Config.Metrics.Port unless the port is 0.
func (a *App) Run(ctx context.Context) (*orchestrator.Summary, error) {
	return a.runOrchestrator(ctx, func(ctx context.Context, o *orchestrator.Orchestrator) (*orchestrator.Summary, error) {
		return o.ExecuteTestCases(ctx)
	})
}

// RunCase runs test case no whatever its status, resuming a run interrupted since it last finished.
func (a *App) RunCase(ctx context.Context, no int) (*orchestrator.Summary, error) {
	tc, err := a.Params.Plan.Case(no)
	if err != nil {
		return nil, err
	}
	return a.runOrchestrator(ctx, func(ctx context.Context, o *orchestrator.Orchestrator) (*orchestrator.Summary, error) {
		summary := &orchestrator.Summary{Ran: 1}
		if err := o.ExecuteTestCase(ctx, tc); err != nil {
			summary.Failed++
			return summary, err
		}
		summary.Succeeded++
		return summary, nil
	})
}

func (a *App) runOrchestrator(
	ctx context.Context,
	drive func(ctx context.Context, o *orchestrator.Orchestrator) (*orchestrator.Summary, error),
) (*orchestrator.Summary, error) {
	store, closeStore, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	oracle, err := a.oracle()
	if err != nil {
		return nil, err
	}
	uploader, err := a.uploader()
	if err != nil {
		return nil, err
	}
	workflow, err := a.workflow()
	if err != nil {
		return nil, err
	}

	cfg := a.Params.Config
	o := orchestrator.New(
		a.Params.Plan,
		oracle,
		a.generator(),
		uploader,
		workflow,
		store,
		a.Clock,
		cfg.Orchestration,
		cfg.Mos.AllowedSubCodes,
		orchestrator.NewMetrics(a.Registry),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var summary *orchestrator.Summary
	g.Go(func() error {
		// Stops the metrics server once the driver is done.
		defer cancel()
		var err error
		summary, err = drive(ctx, o)
		return err
	})
	if cfg.Metrics.Port > 0 {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.Metrics.Port)
		})
	}
	err = g.Wait()
	return summary, err
}

func serveMetrics(ctx context.Context, port uint16) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("metrics server did not shut down cleanly")
		}
	}()

	log.Infof("serving metrics on :%d/metrics", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}
	return nil
}

// Generate writes a batch of codes and prints its directory.
func (a *App) Generate(ctx context.Context, req generator.Request) error {
	batch, err := a.generator().Generate(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%s (%d codes in %d files)\n", batch.Dir, batch.Count, len(batch.Files))
	return nil
}

// Upload archives dir and uploads it under key, or under the default key when key is empty, and prints the URL.
func (a *App) Upload(ctx context.Context, dir string, key string) error {
	uploader, err := a.uploader()
	if err != nil {
		return err
	}
	if key == "" {
		key = archive.DefaultKey(dir, a.Clock.Now())
	}
	url, err := uploader.ArchiveAndUpload(ctx, dir, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, url)
	return nil
}

// Overview prints the current inventory.
func (a *App) Overview(ctx context.Context) error {
	oracle, err := a.oracle()
	if err != nil {
		return err
	}
	snapshot, err := oracle.Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(a.Out, snapshot.String())
	return nil
}

// Issue starts one execution outside of any test case and prints its handle.
func (a *App) Issue(ctx context.Context, family barcode.Family, count int, subCode string) error {
	if family.IsMulti() {
		if err := barcode.ValidateSubCode(subCode, a.Params.Config.Mos.AllowedSubCodes); err != nil {
			return err
		}
	}
	workflow, err := a.workflow()
	if err != nil {
		return err
	}
	h, err := workflow.Start(ctx, bulkissue.StartRequest{
		Name:    bulkissue.AdhocExecutionName(a.Clock.Now()),
		Family:  family,
		SubCode: subCode,
		Count:   count,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, h)
	return nil
}

// Poll watches one execution, or every execution in the history when handle is empty, until each
// is terminal or the user presses a stop key.
func (a *App) Poll(ctx context.Context, handle string) error {
	workflow, err := a.workflow()
	if err != nil {
		return err
	}

	var handles []bulkissue.ExecutionHandle
	if handle != "" {
		handles = append(handles, bulkissue.ExecutionHandle(handle))
	} else {
		records, err := bulkissue.NewHistory(a.historyPath()).Load()
		if err != nil {
			return err
		}
		for _, r := range records {
			handles = append(handles, bulkissue.ExecutionHandle(r.Arn))
		}
	}
	if len(handles) == 0 {
		fmt.Fprintln(a.Out, "no executions to poll")
		return nil
	}

	if f, ok := a.In.(*os.File); ok {
		restore, err := bulkissue.RawTerminal(f)
		if err != nil {
			return err
		}
		defer restore()
	}
	fmt.Fprint(a.Out, "press q or b to stop watching\r\n")

	monitor := bulkissue.NewMonitor(workflow, a.Clock, a.Params.Config.Orchestration.MonitorInterval, a.Out)
	_, err = monitor.WatchAll(ctx, handles, bulkissue.StopKeys(a.In))
	return err
}

// Clean deletes generated CSV files below the working directory and the output directory.
func (a *App) Clean() error {
	n, err := generator.Clean(".", a.Params.Config.Upload.OutputDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "deleted %d files\n", n)
	return nil
}

// Log prints every execution log entry followed by the state of each test case.
func (a *App) Log(ctx context.Context) error {
	store, closeStore, err := a.store(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	entries, err := store.Load(ctx)
	if err != nil {
		return err
	}

	w := util.NewTabbedStringBuilder(1, 1, 2, ' ', 0)
	w.Row("TIME", "CASE", "PHASE", "KIND", "DETAIL")
	for _, e := range entries {
		kind, detail := "", ""
		if e.Detail != nil {
			kind = string(e.Detail.Kind)
			detail = describe(e)
		}
		w.Row(e.Timestamp.Format(time.RFC3339), e.TestCaseNo, e.Status, kind, detail)
	}
	fmt.Fprintln(a.Out, w.String())

	progress := executionlog.Reconstruct(entries)
	w = util.NewTabbedStringBuilder(1, 1, 2, ' ', 0)
	w.Row("CASE", "STATE", "RUN", "EXECUTIONS", "LAST ERROR")
	for _, tc := range a.Params.Plan.Cases {
		p, ok := progress[tc.No]
		if !ok {
			w.Row(tc.No, "new", "", "", "")
			continue
		}
		runID, executions := p.RunID, len(p.Issued)
		if p.Finished && !p.InFlight() {
			runID, executions = p.FinishedRunID, len(p.FinishedHandles)
		}
		w.Row(tc.No, p.State(), runID, executions, p.LastError)
	}
	fmt.Fprint(a.Out, w.String())
	return nil
}

func describe(e *executionlog.Entry) string {
	d := e.Detail
	switch {
	case d.Error != "":
		return d.Error
	case d.URL != "":
		return d.URL
	case len(d.Statuses) > 0:
		handles := maps.Keys(d.Statuses)
		slices.Sort(handles)
		s := ""
		for _, h := range handles {
			s += fmt.Sprintf("%s=%s ", h, d.Statuses[h])
		}
		return s
	case len(e.ExecutionHandles) > 0:
		return e.ExecutionHandles[0]
	case d.ExecutionName != "":
		return d.ExecutionName
	case len(d.SubCodes) > 0:
		return fmt.Sprint(d.SubCodes)
	case d.Count > 0:
		return fmt.Sprintf("%d %s %s", d.Count, d.Family, d.SubCode)
	}
	return ""
}

func (a *App) awsSession() (*session.Session, error) {
	if a.session != nil {
		return a.session, nil
	}
	cfg := a.Params.Config.Aws
	awsConfig := aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            awsConfig,
		Profile:           cfg.Profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	a.session = sess
	return sess, nil
}

func (a *App) oracle() (inventory.Oracle, error) {
	if a.Oracle != nil {
		return a.Oracle, nil
	}
	cfg := a.Params.Config
	var oracle inventory.Oracle
	switch cfg.Oracle.Type {
	case configuration.OracleRedis:
		counterKeys := map[barcode.Family]string{}
		for name, key := range cfg.Oracle.CounterKeys {
			family, err := barcode.ParseFamily(name)
			if err != nil {
				return nil, errors.WithMessage(err, "Oracle.CounterKeys")
			}
			counterKeys[family] = key
		}
		command := cfg.Oracle.RedisCountCommand
		if command == "" {
			command = inventory.CountWithGet
		}
		db := redis.NewClient(cfg.Oracle.Redis.AsOptions())
		oracle = inventory.NewRedisOracle(db, counterKeys, cfg.Oracle.MosKeyPrefix, cfg.Mos.AllowedSubCodes, command)
	default:
		sess, err := a.awsSession()
		if err != nil {
			return nil, err
		}
		oracle = inventory.NewLambdaOracle(sess, cfg.Oracle.LambdaFunction, cfg.Oracle.MosKeyPrefix)
	}
	a.Oracle = inventory.WithRetry(oracle, cfg.Orchestration.PollRetryAttempts, cfg.Orchestration.PollRetryDelay)
	return a.Oracle, nil
}

func (a *App) uploader() (archive.Uploader, error) {
	if a.Uploader != nil {
		return a.Uploader, nil
	}
	sess, err := a.awsSession()
	if err != nil {
		return nil, err
	}
	cfg := a.Params.Config
	tempDir := cfg.Upload.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(cfg.Upload.OutputDir, tempDirName)
	}
	a.Uploader = archive.NewS3Uploader(sess, cfg.Upload.Bucket, cfg.UploadRegion(), tempDir)
	return a.Uploader, nil
}

func (a *App) workflow() (bulkissue.WorkflowClient, error) {
	if a.Workflow != nil {
		return a.Workflow, nil
	}
	sess, err := a.awsSession()
	if err != nil {
		return nil, err
	}
	cfg := a.Params.Config
	a.Workflow = bulkissue.NewStepFunctionsClient(
		sess,
		cfg.Workflow,
		bulkissue.NewHistory(a.historyPath()),
		cfg.Orchestration.PollRetryAttempts,
		cfg.Orchestration.PollRetryDelay,
	)
	return a.Workflow, nil
}

func (a *App) store(ctx context.Context) (executionlog.Store, func(), error) {
	if a.Store != nil {
		return a.Store, func() {}, nil
	}
	return executionlog.Open(ctx, a.Params.Config.ExecutionLog)
}

func (a *App) generator() generator.Generator {
	return generator.NewFileGenerator(a.Params.Config.Upload.OutputDir, a.Random)
}

func (a *App) historyPath() string {
	if path := a.Params.Config.Workflow.HistoryPath; path != "" {
		return path
	}
	return defaultHistoryPath
}
