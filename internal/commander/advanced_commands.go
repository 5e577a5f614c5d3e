package commander

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tabforest/internal/data"
	"tabforest/internal/errors"
	"tabforest/internal/jobs"
	"tabforest/internal/persistence"
	"tabforest/internal/prediction"
	"tabforest/internal/session"
	"tabforest/internal/training"
)

const batchSize = 500

func (c *Commander) newPipeline() *training.Pipeline {
	return training.NewPipeline(training.OptionsFromConfig(c.cfg.Training), c.logger)
}

func (c *Commander) trainModel() {
	ds, cfg, ok := c.requireDataset()
	if !ok {
		return
	}

	fmt.Fprintf(c.out, "Training random forest on %d rows (target %s)...\n", ds.Len(), cfg.Target)
	startTime := time.Now()

	model, err := c.newPipeline().Train(context.Background(), ds, cfg, nil)
	if err != nil {
		c.fail(err)
		return
	}
	version := c.session.Commit(model, "")

	fmt.Fprintf(c.out, "%s %s trained in %.2fs\n", c.green("✓"), version.Name, time.Since(startTime).Seconds())
	c.printHyperparameters(model)
	fmt.Fprint(c.out, model.Metrics.FormatMetrics())
}

func (c *Commander) trainModelBackground() {
	ds, cfg, ok := c.requireDataset()
	if !ok {
		return
	}

	pipeline := c.newPipeline()
	desc := fmt.Sprintf("Random forest on %s (%d rows, target %s)", ds.Source, ds.Len(), cfg.Target)
	job := c.jobManager.Submit(context.Background(), "train", desc, func(ctx context.Context, job *jobs.Job) (any, error) {
		model, err := pipeline.Train(ctx, ds, cfg, job)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var version *session.ModelVersion
		if !job.Publish(func() { version = c.session.Commit(model, "") }) {
			return nil, context.Canceled
		}
		job.AddLog(fmt.Sprintf("Committed %s", version.Name))
		return version, nil
	})

	fmt.Fprintf(c.out, "%s Training started in background\n", c.green("✓"))
	fmt.Fprintf(c.out, "Job ID: %s\n", c.cyan(job.ID))
	fmt.Fprintf(c.out, "Use 'job %s' to check progress\n", job.ID)
}

func (c *Commander) crossValidate(args []string) {
	ds, cfg, ok := c.requireDataset()
	if !ok {
		return
	}
	folds := 5
	if len(args) > 0 {
		k, err := strconv.Atoi(args[0])
		if err != nil {
			c.usage("cv [k]")
			return
		}
		folds = k
	}

	res, err := c.newPipeline().CrossValidate(context.Background(), ds, cfg, folds)
	if err != nil {
		c.fail(err)
		return
	}

	fmt.Fprintf(c.out, "\n%s %s\n", c.cyan("Cross-validation:"), res)
	for i, score := range res.Scores {
		fmt.Fprintf(c.out, "  Fold %d: %.2f%%\n", i+1, score)
	}
}

func (c *Commander) printHyperparameters(model *training.TrainedModel) {
	hp := model.Hyperparameters
	fmt.Fprintf(c.out, "Trees: %d, max depth: %d, min samples: %d, seed: %d\n",
		hp.NEstimators, hp.MaxDepth, hp.MinNumSamples, model.Seed)
}

func (c *Commander) listAllJobs() {
	all := c.jobManager.ListJobs()
	if len(all) == 0 {
		fmt.Fprintln(c.out, "No jobs found")
		return
	}

	fmt.Fprintln(c.out, c.blue("\nBackground Jobs:"))
	fmt.Fprintln(c.out, strings.Repeat("-", 90))
	fmt.Fprintf(c.out, "%-36s %-8s %-10s %-10s %s\n", "ID", "Type", "Status", "Progress", "Description")
	fmt.Fprintln(c.out, strings.Repeat("-", 90))

	for _, job := range all {
		fmt.Fprintf(c.out, "%-36s %-8s %-10s %-10s %s\n",
			job.ID, job.Type, c.colorStatus(job.GetStatus()),
			fmt.Sprintf("%.0f%%", job.GetProgress()*100), job.Description)
	}
}

func (c *Commander) showJobStatus(jobID string) {
	job, ok := c.jobManager.GetJob(jobID)
	if !ok {
		c.fail(errors.NotFound(fmt.Sprintf("job %s", jobID)))
		return
	}

	fmt.Fprintf(c.out, "\n%s %s\n", c.cyan("Job:"), job.ID)
	fmt.Fprintf(c.out, "Type:        %s\n", job.Type)
	fmt.Fprintf(c.out, "Description: %s\n", job.Description)
	fmt.Fprintf(c.out, "Status:      %s\n", c.colorStatus(job.GetStatus()))
	fmt.Fprintf(c.out, "Progress:    %.0f%%\n", job.GetProgress()*100)
	fmt.Fprintf(c.out, "Started:     %s\n", job.StartTime.Format("15:04:05"))

	result, err := job.GetResult()
	if err != nil {
		fmt.Fprintf(c.out, "Error:       %s\n", c.red(err.Error()))
	}
	if v, ok := result.(*session.ModelVersion); ok {
		fmt.Fprintf(c.out, "Model:       %s (%s)\n", v.Name, v.ID)
	}

	logs := job.GetLogs()
	if len(logs) > 0 {
		fmt.Fprintln(c.out, c.blue("Logs:"))
		for _, line := range logs {
			fmt.Fprintf(c.out, "  %s\n", line)
		}
	}
}

func (c *Commander) cancelJob(jobID string) {
	if err := c.jobManager.CancelJob(jobID); err != nil {
		c.fail(err)
		return
	}
	fmt.Fprintf(c.out, "%s Job %s cancelled\n", c.green("✓"), jobID)
}

func (c *Commander) colorStatus(status jobs.JobStatus) string {
	switch status {
	case jobs.JobCompleted:
		return c.green(string(status))
	case jobs.JobFailed, jobs.JobCancelled:
		return c.red(string(status))
	case jobs.JobRunning:
		return c.yellow(string(status))
	default:
		return string(status)
	}
}

func (c *Commander) showMetrics() {
	v, ok := c.requireModel()
	if !ok {
		return
	}
	m := v.Model.Metrics
	if m == nil {
		fmt.Fprintln(c.out, c.yellow("The active model has no evaluation metrics"))
		return
	}

	fmt.Fprintf(c.out, "\n%s %s (%d test rows)\n", c.cyan("Metrics for"), v.Name, m.NumSamples)
	fmt.Fprint(c.out, m.FormatMetrics())

	if !m.Binary && len(m.Matrix) > 0 {
		classes := v.Model.Preprocessor.Target
		fmt.Fprintln(c.out, c.blue("Confusion matrix (rows = actual):"))
		fmt.Fprintf(c.out, "%-14s", "")
		for j := range m.Matrix {
			fmt.Fprintf(c.out, " %10s", classes.Decode(m.ClassAt(j)))
		}
		fmt.Fprintln(c.out)
		for i, row := range m.Matrix {
			fmt.Fprintf(c.out, "%-14s", classes.Decode(m.ClassAt(i)))
			for _, count := range row {
				fmt.Fprintf(c.out, " %10d", count)
			}
			fmt.Fprintln(c.out)
		}
	}

	if len(m.ROC) > 0 {
		fmt.Fprintln(c.out, c.blue("ROC (threshold fpr tpr):"))
		for i, p := range m.ROC {
			if i%5 == 0 {
				fmt.Fprintf(c.out, "  %.2f  %.3f  %.3f\n", p.Threshold, p.FPR, p.TPR)
			}
		}
	}
}

func (c *Commander) showImportance() {
	v, ok := c.requireModel()
	if !ok {
		return
	}
	if len(v.Model.Importance) == 0 {
		fmt.Fprintln(c.out, c.yellow("The active model has no feature importance"))
		return
	}

	fmt.Fprintln(c.out, c.blue("\nFeature Importance:"))
	for _, fi := range v.Model.Importance {
		bar := strings.Repeat("█", int(fi.Importance/5))
		fmt.Fprintf(c.out, "  %-20s %6.2f%% %s\n", fi.Feature, fi.Importance, c.green(bar))
	}
}

func (c *Commander) predict(args []string) {
	v, ok := c.requireModel()
	if !ok {
		return
	}
	if len(args) == 0 {
		c.usage("predict " + strings.Join(v.Model.Features(), "=... ") + "=...")
		return
	}

	inputs, err := ParseAssignments(args)
	if err != nil {
		c.fail(err)
		return
	}
	rec, err := c.session.Predict(inputs)
	if err != nil {
		c.fail(err)
		return
	}

	fmt.Fprintf(c.out, "%s Prediction: %s (confidence %.1f%%)\n",
		c.green("✓"), c.cyan(rec.Label), rec.Confidence*100)
}

// batchPredict streams filename through the active model and writes
// <name>_predictions.csv next to it. Rows that cannot be encoded are
// skipped and counted.
func (c *Commander) batchPredict(filename string) {
	v, ok := c.requireModel()
	if !ok {
		return
	}

	reader, err := data.NewStreamingCSVReader(filename)
	if err != nil {
		c.fail(err)
		return
	}
	defer reader.Close()

	predictor := prediction.New(v.Model, c.logger)
	features := v.Model.Features()
	now := time.Now()

	var records []prediction.Record
	skipped := 0
	for {
		rows, err := reader.ReadBatch(batchSize)
		if err != nil {
			c.fail(err)
			return
		}
		if len(rows) == 0 {
			break
		}
		batch, n := predictRows(predictor, rows, features, now)
		records = append(records, batch...)
		skipped += n
	}

	ext := filepath.Ext(filename)
	output := strings.TrimSuffix(filename, ext) + "_predictions.csv"
	if err := persistence.WritePredictionsFile(output, features, records); err != nil {
		c.fail(err)
		return
	}

	fmt.Fprintf(c.out, "%s Predicted %d rows -> %s\n", c.green("✓"), len(records), output)
	if skipped > 0 {
		fmt.Fprintf(c.out, "%s Skipped %d rows that could not be encoded\n", c.yellow("⚠"), skipped)
	}
}

// predictRows records a prediction for every row the model can encode and
// returns how many rows it skipped.
func predictRows(predictor *prediction.Predictor, rows []data.Row, features []string, now time.Time) ([]prediction.Record, int) {
	records := make([]prediction.Record, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		rec, err := predictor.Record(rawInputs(row, features), now)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, *rec)
	}
	return records, skipped
}

func rawInputs(row data.Row, features []string) map[string]string {
	inputs := make(map[string]string, len(features))
	for _, f := range features {
		if v := row[f]; !v.IsMissing() {
			inputs[f] = v.Text()
		} else {
			inputs[f] = ""
		}
	}
	return inputs
}

func (c *Commander) showHistory() {
	history := c.session.History()
	if len(history) == 0 {
		fmt.Fprintln(c.out, "No predictions yet")
		return
	}

	fmt.Fprintln(c.out, c.blue("\nPrediction History (most recent first):"))
	for _, rec := range history {
		var parts []string
		for _, k := range sortedKeys(rec.Inputs) {
			parts = append(parts, k+"="+rec.Inputs[k])
		}
		fmt.Fprintf(c.out, "  %s  %-12s %5.1f%%  %s\n",
			rec.Timestamp.Format("15:04:05"), rec.Label, rec.Confidence*100, strings.Join(parts, " "))
	}
}

func (c *Commander) exportPredictions(filename string) {
	v, ok := c.requireModel()
	if !ok {
		return
	}
	history := c.session.History()
	if len(history) == 0 {
		fmt.Fprintln(c.out, c.yellow("No predictions to export"))
		return
	}
	if err := persistence.WritePredictionsFile(filename, v.Model.Features(), history); err != nil {
		c.fail(err)
		return
	}
	fmt.Fprintf(c.out, "%s Exported %d predictions to %s\n", c.green("✓"), len(history), filename)
}

func (c *Commander) saveModel(filename string) {
	v, ok := c.requireModel()
	if !ok {
		return
	}
	if err := persistence.SaveFile(filename, v.Model); err != nil {
		c.fail(err)
		return
	}
	fmt.Fprintf(c.out, "%s %s saved to %s\n", c.green("✓"), v.Name, filename)
}

func (c *Commander) loadModel(filename string) {
	model, err := persistence.LoadFile(filename)
	if err != nil {
		c.fail(err)
		return
	}
	version := c.session.Import(model, filepath.Base(filename))

	fmt.Fprintf(c.out, "%s Loaded %s\n", c.green("✓"), version.Name)
	if err := persistence.WriteSummary(c.out, model); err != nil {
		c.fail(err)
	}
}

func (c *Commander) listModelVersions() {
	versions := c.session.Versions()
	if len(versions) == 0 {
		fmt.Fprintln(c.out, "No model versions yet")
		return
	}

	active, _ := c.session.Active()
	fmt.Fprintln(c.out, c.blue("\nModel Versions:"))
	for _, v := range versions {
		marker := " "
		if active != nil && active.ID == v.ID {
			marker = c.green("*")
		}
		accuracy := "-"
		if v.Model.Metrics != nil {
			accuracy = fmt.Sprintf("%.2f%%", v.Model.Metrics.Accuracy)
		}
		fmt.Fprintf(c.out, "%s %-40s %s  %s  accuracy %s\n",
			marker, v.Name, v.ID, v.CreatedAt.Format("2006-01-02 15:04:05"), accuracy)
	}
}

func (c *Commander) useVersion(id string) {
	v, err := c.session.LoadVersion(id)
	if err != nil {
		c.fail(err)
		return
	}
	fmt.Fprintf(c.out, "%s Active model: %s\n", c.green("✓"), v.Name)
}
