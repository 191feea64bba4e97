package feed

// Metrics receives engine counters. The prometheus implementation lives in
// internal/metrics; the engine defaults to a no-op sink.
type Metrics interface {
	EventDropped(reason string)
	MessageInserted(source string)
	MessageRemoved(source string)
	HistoryLoaded(direction string, count int)
	ScrollRestored(method string, attempts int)
	SendCompleted(outcome string)
	ThreadUpdate(result string)
	ReadTransition(to string)
	SweepHealed(kind string, count int)
}

type noopMetrics struct{}

func (noopMetrics) EventDropped(string)        {}
func (noopMetrics) MessageInserted(string)     {}
func (noopMetrics) MessageRemoved(string)      {}
func (noopMetrics) HistoryLoaded(string, int)  {}
func (noopMetrics) ScrollRestored(string, int) {}
func (noopMetrics) SendCompleted(string)       {}
func (noopMetrics) ThreadUpdate(string)        {}
func (noopMetrics) ReadTransition(string)      {}
func (noopMetrics) SweepHealed(string, int)    {}
