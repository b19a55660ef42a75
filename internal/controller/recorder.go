package controller

import "time"

// Recorder receives controller activity, typically for metrics.
type Recorder interface {
	AnalysisFinished(outcome string, latency time.Duration)
	AnalysisSkipped(reason string)
	Accepted(n int)
	Rejected(n int)
	QuotaDenied()
	Suggested(source string)
	SyncPushed()
	ChangeSuppressed()
}

type nopRecorder struct{}

func (nopRecorder) AnalysisFinished(string, time.Duration) {}
func (nopRecorder) AnalysisSkipped(string)                 {}
func (nopRecorder) Accepted(int)                           {}
func (nopRecorder) Rejected(int)                           {}
func (nopRecorder) QuotaDenied()                           {}
func (nopRecorder) Suggested(string)                       {}
func (nopRecorder) SyncPushed()                            {}
func (nopRecorder) ChangeSuppressed()                      {}
