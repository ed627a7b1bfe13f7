package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/open-edge-platform/devenv-composer/internal/plan"
)

// RunOptions control Run.
type RunOptions struct {
	// ContinueOnError keeps going after a failed step; the failures are
	// still reported.
	ContinueOnError bool
	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
	Log      *zap.SugaredLogger
}

// StepFailure records one failed step.
type StepFailure struct {
	Index int
	Step  plan.Step
	Err   error
}

// RunResult summarises a run.
type RunResult struct {
	Succeeded int
	Failed    []StepFailure
	Skipped   int
}

// OK reports whether every step ran and succeeded.
func (r *RunResult) OK() bool {
	return len(r.Failed) == 0 && r.Skipped == 0
}

// Run executes the plan's steps in order. It stops at the first failure
// unless ContinueOnError is set, and stops between steps when ctx is done.
func Run(ctx context.Context, p *plan.Plan, exec Executor, opts RunOptions) (*RunResult, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	total := len(p.Steps)
	result := &RunResult{}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil && total > 0 {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	var errs []error
	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			result.Skipped = total - i
			log.Warnf("Run interrupted before step %d/%d: %v", i+1, total, err)
			return result, err
		}

		if bar != nil {
			bar.Describe(step.String())
		}
		err := exec.Execute(ctx, step)
		if bar != nil {
			if berr := bar.Add(1); berr != nil {
				log.Errorf("failed to add to progress bar: %v", berr)
			}
		}

		if err == nil {
			result.Succeeded++
			continue
		}

		log.Errorf("Step %d/%d failed: %v", i+1, total, err)
		result.Failed = append(result.Failed, StepFailure{Index: i, Step: step, Err: err})
		errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, step, err))
		if !opts.ContinueOnError {
			result.Skipped = total - i - 1
			return result, errs[0]
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}
	if len(errs) > 0 {
		return result, fmt.Errorf("%d of %d steps failed: %w", len(errs), total, errors.Join(errs...))
	}
	log.Infof("Plan %s finished: %d steps succeeded", p.ID, result.Succeeded)
	return result, nil
}
