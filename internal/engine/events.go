package engine

// Event kinds as reported by Kind.
const (
	KindInputComplete         = "inputComplete"
	KindRequestError          = "requestError"
	KindRequestComplete       = "requestComplete"
	KindRequestProgress       = "requestProgress"
	KindProcessingComplete    = "processingComplete"
	KindProcessingCancelled   = "processingCancelled"
	KindInvalidSample         = "invalidSample"
	KindSkippedSample         = "skippedSample"
	KindAutomaticDownsampling = "automaticDownsampling"
)

// Event is one message from a session. The set of kinds is open: consumers
// must tolerate kinds they do not know.
type Event interface {
	Kind() string
}

// InputComplete reports that all samples were ingested.
type InputComplete struct{}

// RequestError reports a failed request. The session keeps running.
type RequestError struct {
	Request Request
	Err     error
}

// RequestComplete carries the artifact produced for a request.
type RequestComplete struct {
	Request Request
	Result  Result
}

// RequestProgress carries a completion fraction in [0,1].
type RequestProgress struct {
	Request  Request
	Fraction float64
}

// ProcessingComplete is the final event of a successful session.
type ProcessingComplete struct{}

// ProcessingCancelled is the final event of a cancelled session.
type ProcessingCancelled struct{}

// InvalidSample reports a photo the engine could not use.
type InvalidSample struct {
	ID     int
	Reason string
}

// SkippedSample reports a file the engine ignored.
type SkippedSample struct {
	ID int
}

// AutomaticDownsampling reports that the engine reduced the input resolution.
type AutomaticDownsampling struct{}

// Unrecognized wraps an event type a gateway received but cannot model.
type Unrecognized struct {
	Type string
	Raw  []byte
}

func (InputComplete) Kind() string         { return KindInputComplete }
func (RequestError) Kind() string          { return KindRequestError }
func (RequestComplete) Kind() string       { return KindRequestComplete }
func (RequestProgress) Kind() string       { return KindRequestProgress }
func (ProcessingComplete) Kind() string    { return KindProcessingComplete }
func (ProcessingCancelled) Kind() string   { return KindProcessingCancelled }
func (InvalidSample) Kind() string         { return KindInvalidSample }
func (SkippedSample) Kind() string         { return KindSkippedSample }
func (AutomaticDownsampling) Kind() string { return KindAutomaticDownsampling }
func (u Unrecognized) Kind() string        { return u.Type }

// Result is the payload of a completed request.
type Result interface {
	ResultKind() string
}

// ModelFile is a reconstructed model written to Path.
type ModelFile struct {
	Path string
}

// ResultKind implements Result.
func (ModelFile) ResultKind() string { return "modelFile" }

// OpaqueResult is a result shape the gateway passes through untyped.
type OpaqueResult struct {
	Kind    string
	Payload []byte
}

// ResultKind implements Result.
func (r OpaqueResult) ResultKind() string { return r.Kind }
