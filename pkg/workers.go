package calib

import (
	"context"
	"fmt"

	"go-hep.org/x/hep/hbook"
)

// FitJob is one histogram to fit.
type FitJob struct {
	Index int
	Hist  *hbook.H1D
	Model Model
	Range Range
	Init  []float64
}

type FitOutcome struct {
	Index int
	Fit   *BinnedFit
	Err   error
}

func fitWorker(id int, verbosity int, jobs <-chan FitJob, results chan<- FitOutcome) {
	for job := range jobs {
		results <- runFitJob(id, verbosity, job)
	}
}

func runFitJob(id int, verbosity int, job FitJob) (outcome FitOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = FitOutcome{Index: job.Index, Err: fmt.Errorf("worker %d recovered from panic fitting %s: %v", id, job.Hist.Name(), r)}
		}
	}()
	debugf(verbosity, "workers", "Worker %d fitting %s with %s", id, job.Hist.Name(), job.Model.Name)
	fit, err := FitH1D(job.Hist, job.Model, job.Range, job.Init)
	return FitOutcome{Index: job.Index, Fit: fit, Err: err}
}

func sendJobsToWorkers(ctx context.Context, fitJobs []FitJob, jobs chan<- FitJob) {
	defer close(jobs)
	for _, job := range fitJobs {
		select {
		case jobs <- job:
		case <-ctx.Done():
			return
		}
	}
}

// RunFits fits every job on numWorkers goroutines and returns the outcomes
// in job order. The first failed fit is returned as error.
func RunFits(ctx context.Context, fitJobs []FitJob, numWorkers int, verbosity int) ([]FitOutcome, error) {
	numWorkers = max(1, min(numWorkers, len(fitJobs)))
	jobs := make(chan FitJob, numWorkers)
	results := make(chan FitOutcome, len(fitJobs))

	for id := 0; id < numWorkers; id++ {
		go fitWorker(id, verbosity, jobs, results)
	}
	go sendJobsToWorkers(ctx, fitJobs, jobs)

	outcomes := make([]FitOutcome, len(fitJobs))
	for received := 0; received < len(fitJobs); received++ {
		select {
		case outcome := <-results:
			if outcome.Err != nil {
				return nil, outcome.Err
			}
			outcomes[outcome.Index] = outcome
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return outcomes, nil
}
