package workers

// Worker Background reconciliation process with an explicit lifecycle. All of
// its decisions are derived from durable row state, so a crashed worker
// resumes cleanly on the next tick.
type Worker interface {
	Name() string
	Start() error
	Stop() error
}
