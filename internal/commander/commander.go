package commander

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"tabforest/internal/config"
	"tabforest/internal/data"
	"tabforest/internal/errors"
	"tabforest/internal/jobs"
	"tabforest/internal/logging"
	"tabforest/internal/session"
)

type Commander struct {
	cfg        *config.Config
	session    *session.Session
	jobManager *jobs.Manager
	validator  *data.DataValidator
	logger     *zap.SugaredLogger
	out        io.Writer
	lastErr    error

	green  func(a ...any) string
	red    func(a ...any) string
	yellow func(a ...any) string
	cyan   func(a ...any) string
	blue   func(a ...any) string
}

func NewCommander(cfg *config.Config, logger *zap.SugaredLogger, out io.Writer) *Commander {
	if cfg == nil {
		cfg = config.Default()
	}
	logger = logging.OrNop(logger)

	validator := data.NewDataValidator()
	validator.MinTrainingRows = cfg.Training.MinRows
	validator.MinAnalysisRows = cfg.Analysis.MinRows

	return &Commander{
		cfg:        cfg,
		session:    session.New(cfg.Session.PredictionHistory, logger),
		jobManager: jobs.NewManager(logger),
		validator:  validator,
		logger:     logger,
		out:        out,
		green:      color.New(color.FgGreen).SprintFunc(),
		red:        color.New(color.FgRed).SprintFunc(),
		yellow:     color.New(color.FgYellow).SprintFunc(),
		cyan:       color.New(color.FgCyan).SprintFunc(),
		blue:       color.New(color.FgBlue).SprintFunc(),
	}
}

// Session exposes the commander's working state.
func (c *Commander) Session() *session.Session {
	return c.session
}

// Start reads commands from in until EOF or quit.
func (c *Commander) Start(in io.Reader) {
	c.printWelcome()
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(c.out, c.yellow("\ntabforest> "))
		if !scanner.Scan() {
			if scanner.Err() != nil {
				c.fail(scanner.Err())
			}
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		if !c.ExecuteCommand(strings.ToLower(parts[0]), parts[1:]) {
			break
		}
	}
}

// Exec runs a single command outside the loop and returns the error it
// reported, if any.
func (c *Commander) Exec(command string, args ...string) error {
	c.lastErr = nil
	c.ExecuteCommand(command, args)
	return c.lastErr
}

// ExecuteCommand runs one command and reports whether the loop should go on.
func (c *Commander) ExecuteCommand(command string, args []string) bool {
	switch command {
	case "help", "h":
		c.showHelp()
	case "load":
		if len(args) > 0 {
			c.loadData(args[0])
		} else {
			c.usage("load <file.csv>")
		}
	case "info":
		c.showDataInfo()
	case "features":
		if len(args) > 0 {
			c.setFeatures(strings.Join(args, ","))
		} else {
			c.usage("features <col1,col2,...>")
		}
	case "target":
		if len(args) > 0 {
			c.setTarget(args[0])
		} else {
			c.usage("target <column>")
		}
	case "type":
		if len(args) > 1 {
			c.setType(args[0], args[1])
		} else {
			c.usage("type <column> numeric|categorical")
		}
	case "train":
		c.trainModel()
	case "train-bg":
		c.trainModelBackground()
	case "cv":
		c.crossValidate(args)
	case "jobs":
		c.listAllJobs()
	case "job":
		if len(args) > 0 {
			c.showJobStatus(args[0])
		} else {
			c.usage("job <job-id>")
		}
	case "job-cancel":
		if len(args) > 0 {
			c.cancelJob(args[0])
		} else {
			c.usage("job-cancel <job-id>")
		}
	case "metrics":
		c.showMetrics()
	case "importance":
		c.showImportance()
	case "predict":
		c.predict(args)
	case "batch":
		if len(args) > 0 {
			c.batchPredict(args[0])
		} else {
			c.usage("batch <file.csv>")
		}
	case "history":
		c.showHistory()
	case "clear-history":
		c.session.ClearHistory()
		fmt.Fprintf(c.out, "%s Prediction history cleared\n", c.green("✓"))
	case "export-predictions":
		if len(args) > 0 {
			c.exportPredictions(args[0])
		} else {
			c.usage("export-predictions <file.csv>")
		}
	case "save":
		if len(args) > 0 {
			c.saveModel(args[0])
		} else {
			c.usage("save <file.json>")
		}
	case "loadmodel":
		if len(args) > 0 {
			c.loadModel(args[0])
		} else {
			c.usage("loadmodel <file.json>")
		}
	case "versions":
		c.listModelVersions()
	case "use":
		if len(args) > 0 {
			c.useVersion(strings.Join(args, " "))
		} else {
			c.usage("use <version-id|name>")
		}
	case "ttest":
		c.tTest(args)
	case "anova":
		if len(args) > 1 {
			c.anova(args[0], args[1])
		} else {
			c.usage("anova <value-column> <group-column>")
		}
	case "correlate":
		c.correlate(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Goodbye!")
		return false
	default:
		c.lastErr = errors.Validation("unknown command %q", command)
		fmt.Fprintf(c.out, "%s Unknown command: %s\n", c.red("✗"), command)
		fmt.Fprintln(c.out, "Type 'help' for available commands")
	}
	return true
}

func (c *Commander) printWelcome() {
	fmt.Fprintln(c.out, c.cyan("╔══════════════════════════════════════════╗"))
	fmt.Fprintln(c.out, c.cyan("║          TabForest Workbench              ║"))
	fmt.Fprintln(c.out, c.cyan("║   CSV classification and statistics      ║"))
	fmt.Fprintln(c.out, c.cyan("╚══════════════════════════════════════════╝"))
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Type 'help' for available commands")
}

func (c *Commander) showHelp() {
	p := func(s string) { fmt.Fprintln(c.out, s) }

	p(c.blue("\nAvailable Commands:"))

	p("\n" + c.cyan("Data:"))
	p("  load <file>                - Load a CSV (last column becomes the target)")
	p("  info                       - Show columns, types and the current selection")
	p("  features <a,b,...>         - Choose the feature columns")
	p("  target <col>               - Choose the target column")
	p("  type <col> numeric|categorical - Override a detected column type")

	p("\n" + c.cyan("Training:"))
	p("  train                      - Train a forest on the current selection")
	p("  train-bg                   - Train in the background")
	p("  cv [k]                     - k-fold cross-validation (default 5)")
	p("  metrics                    - Show evaluation metrics of the active model")
	p("  importance                 - Show permutation feature importance")

	p("\n" + c.cyan("Predictions:"))
	p("  predict col=value ...      - Predict one row with the active model")
	p("  batch <file>               - Predict every row of a CSV")
	p("  history                    - Show recent predictions")
	p("  clear-history              - Forget the prediction history")
	p("  export-predictions <file>  - Write the prediction history to CSV")

	p("\n" + c.cyan("Models:"))
	p("  save <file>                - Export the active model as JSON")
	p("  loadmodel <file>           - Import a model from JSON")
	p("  versions                   - List model versions")
	p("  use <version>              - Activate an earlier version")

	p("\n" + c.cyan("Statistics:"))
	p("  ttest <col> [mu]           - One-sample t-test")
	p("  anova <value> <group>      - One-way ANOVA with post-hoc comparison")
	p("  correlate <x> <y> [spearman] - Pearson (or Spearman) correlation")

	p("\n" + c.cyan("Jobs:"))
	p("  jobs                       - List background jobs")
	p("  job <id>                   - Show job details and logs")
	p("  job-cancel <id>            - Cancel a running job")

	p("\n" + c.cyan("System:"))
	p("  help                       - Show this help message")
	p("  quit                       - Exit")
}

func (c *Commander) loadData(filename string) {
	startTime := time.Now()
	fmt.Fprintf(c.out, "Loading data from %s...\n", filename)

	ds, err := data.NewCSVReader(filename).Load()
	if err != nil {
		c.fail(err)
		return
	}
	if err := c.validator.ValidateForAnalysis(ds); err != nil {
		c.fail(err)
		return
	}

	target := ds.Columns[len(ds.Columns)-1]
	c.session.SetDataset(ds, target)

	fmt.Fprintf(c.out, "%s Data loaded successfully!\n", c.green("✓"))
	fmt.Fprintln(c.out, strings.Repeat("─", 50))
	fmt.Fprintf(c.out, "Load time:     %.3fs\n", time.Since(startTime).Seconds())
	fmt.Fprintf(c.out, "Rows:          %d\n", ds.Len())
	fmt.Fprintf(c.out, "Columns:       %d\n", len(ds.Columns))
	fmt.Fprintf(c.out, "Target:        %s\n", target)
	fmt.Fprintln(c.out, strings.Repeat("─", 50))
	if ds.Len() < c.validator.MinTrainingRows {
		fmt.Fprintf(c.out, "%s Only %d rows: statistics are available, training needs %d\n",
			c.yellow("⚠"), ds.Len(), c.validator.MinTrainingRows)
	}
}

func (c *Commander) showDataInfo() {
	ds, cfg, ok := c.requireDataset()
	if !ok {
		return
	}

	summary := c.validator.GetDatasetStats(ds)
	fmt.Fprintf(c.out, "\n%s %s (%d rows)\n", c.cyan("Dataset:"), ds.Source, summary.Rows)
	fmt.Fprintf(c.out, "%-20s %-12s %-8s %-8s %s\n", "Column", "Type", "Missing", "Distinct", "Role")
	fmt.Fprintln(c.out, strings.Repeat("-", 64))

	features := make(map[string]bool, len(cfg.Features))
	for _, f := range cfg.Features {
		features[f] = true
	}
	for _, col := range summary.Columns {
		role := ""
		switch {
		case col.Name == cfg.Target:
			role = c.green("target")
		case features[col.Name]:
			role = "feature"
		}
		fmt.Fprintf(c.out, "%-20s %-12s %-8d %-8d %s\n", col.Name, cfg.TypeOf(col.Name), col.Missing, col.Distinct, role)
	}
}

func (c *Commander) setFeatures(list string) {
	ds, cfg, ok := c.requireDataset()
	if !ok {
		return
	}

	var features []string
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	cfg.Features = features
	if err := c.validator.ValidateFeatureConfig(ds, cfg); err != nil {
		c.fail(err)
		return
	}
	c.session.SetFeatureConfig(cfg)
	fmt.Fprintf(c.out, "%s Features: %s\n", c.green("✓"), strings.Join(features, ", "))
}

func (c *Commander) setTarget(target string) {
	ds, cfg, ok := c.requireDataset()
	if !ok {
		return
	}
	if !ds.HasColumn(target) {
		c.fail(errors.Validation("unknown column %q", target))
		return
	}

	var features []string
	for _, f := range cfg.Features {
		if f != target {
			features = append(features, f)
		}
	}
	if cfg.Target != "" && cfg.Target != target {
		features = append(features, cfg.Target)
	}
	cfg.Target = target
	cfg.Features = features
	c.session.SetFeatureConfig(cfg)
	fmt.Fprintf(c.out, "%s Target: %s (features: %s)\n", c.green("✓"), target, strings.Join(features, ", "))
}

func (c *Commander) setType(column, kind string) {
	ds, cfg, ok := c.requireDataset()
	if !ok {
		return
	}
	t := data.ColumnType(strings.ToLower(kind))
	if t != data.Numeric && t != data.Categorical {
		c.usage("type <column> numeric|categorical")
		return
	}
	if !ds.HasColumn(column) {
		c.fail(errors.Validation("unknown column %q", column))
		return
	}

	types := make(map[string]data.ColumnType, len(cfg.Types)+1)
	for k, v := range cfg.Types {
		types[k] = v
	}
	types[column] = t
	cfg.Types = types
	c.session.SetFeatureConfig(cfg)
	fmt.Fprintf(c.out, "%s %s is now %s\n", c.green("✓"), column, t)
}

func (c *Commander) requireDataset() (*data.Dataset, data.FeatureConfig, bool) {
	ds, cfg := c.session.Dataset()
	if ds == nil {
		c.lastErr = errors.NotFound("dataset")
		fmt.Fprintln(c.out, c.red("No data loaded. Use 'load <file>' first"))
		return nil, cfg, false
	}
	return ds, cfg, true
}

func (c *Commander) requireModel() (*session.ModelVersion, bool) {
	v, ok := c.session.Active()
	if !ok {
		c.lastErr = errors.NotFound("active model")
		fmt.Fprintln(c.out, c.red("No model loaded. Train or load a model first"))
	}
	return v, ok
}

func (c *Commander) usage(text string) {
	c.lastErr = errors.Validation("usage: %s", text)
	fmt.Fprintln(c.out, c.red("Usage: "+text))
}

func (c *Commander) fail(err error) {
	c.lastErr = err
	fmt.Fprintf(c.out, "%s %v\n", c.red("✗"), err)
}

// ParseAssignments turns "k=v" arguments into a map.
func ParseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errors.Validation("expected column=value, got %q", arg)
		}
		values[key] = value
	}
	return values, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
