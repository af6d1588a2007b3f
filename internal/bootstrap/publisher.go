package bootstrap

import (
	"fmt"

	"photogrammetry-studio/internal/domain"
	"photogrammetry-studio/internal/engine"
	"photogrammetry-studio/internal/jobs"
)

// eventPublisher turns controller callbacks into UI events.
type eventPublisher struct {
	app *App
}

func (p *eventPublisher) jobID() string {
	return p.app.Controller.Current().ID
}

func (p *eventPublisher) HandleInputComplete() {
	p.app.publishStatus(p.jobID(), domain.JobPhaseRunning, "Input ingested")
}

func (p *eventPublisher) HandleRequestError(req engine.Request, err error) {
	message := "Request failed"
	if err != nil {
		message = err.Error()
	}
	p.app.publishEvent(jobs.Event{
		JobID:      p.jobID(),
		Type:       jobs.EventTypeError,
		Message:    message,
		OutputPath: req.OutputPath,
	})
}

func (p *eventPublisher) HandleRequestComplete(req engine.Request, result engine.Result) {
	event := jobs.Event{
		JobID:   p.jobID(),
		Type:    jobs.EventTypeResult,
		Message: "Model exported",
	}
	switch r := result.(type) {
	case engine.ModelFile:
		event.OutputPath = r.Path
	case nil:
		event.Message = "Unexpected empty result"
	default:
		event.Message = fmt.Sprintf("Unexpected %s result", r.ResultKind())
	}
	p.app.publishEvent(event)
}

func (p *eventPublisher) HandleRequestProgress(_ engine.Request, fraction float64) {
	p.app.publishEvent(jobs.Event{
		JobID:    p.jobID(),
		Type:     jobs.EventTypeProgress,
		Progress: fraction,
	})
}

func (p *eventPublisher) HandleProcessingComplete() {
	p.app.publishStatus(p.jobID(), domain.JobPhaseCompleted, "Processing completed")
}

func (p *eventPublisher) HandleProcessingCancelled() {
	p.app.publishStatus(p.jobID(), domain.JobPhaseCancelled, "Processing cancelled")
}

func (p *eventPublisher) HandleInvalidSample(id int, reason string) {
	p.app.publishEvent(jobs.Event{
		JobID:    p.jobID(),
		Type:     jobs.EventTypeSample,
		Severity: "invalid",
		SampleID: id,
		Message:  reason,
	})
}

func (p *eventPublisher) HandleSkippedSample(id int) {
	p.app.publishEvent(jobs.Event{
		JobID:    p.jobID(),
		Type:     jobs.EventTypeSample,
		Severity: "skipped",
		SampleID: id,
	})
}

func (p *eventPublisher) HandleAutomaticDownsampling() {
	p.app.publishStatus(p.jobID(), domain.JobPhaseRunning, "Automatic downsampling applied")
}
