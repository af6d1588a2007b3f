package jobs

import "photogrammetry-studio/internal/engine"

// OutputHandler receives one callback per engine event, in engine order.
// Callbacks run on the job's consumer goroutine and must not block for long.
type OutputHandler interface {
	HandleInputComplete()
	HandleRequestError(req engine.Request, err error)
	HandleRequestComplete(req engine.Request, result engine.Result)
	HandleRequestProgress(req engine.Request, fraction float64)
	HandleProcessingComplete()
	HandleProcessingCancelled()
	HandleInvalidSample(id int, reason string)
	HandleSkippedSample(id int)
	HandleAutomaticDownsampling()
}

// NopHandler ignores every callback.
type NopHandler struct{}

func (NopHandler) HandleInputComplete()                                  {}
func (NopHandler) HandleRequestError(engine.Request, error)              {}
func (NopHandler) HandleRequestComplete(engine.Request, engine.Result)   {}
func (NopHandler) HandleRequestProgress(engine.Request, float64)         {}
func (NopHandler) HandleProcessingComplete()                             {}
func (NopHandler) HandleProcessingCancelled()                            {}
func (NopHandler) HandleInvalidSample(int, string)                       {}
func (NopHandler) HandleSkippedSample(int)                               {}
func (NopHandler) HandleAutomaticDownsampling()                          {}
