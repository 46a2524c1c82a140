package core

import "time"

// Report is the immutable summary of one finished run. RTT fields are only
// meaningful when HasRTT is true; a run with no resolved probe reports "no
// data" rather than a spurious zero.
type Report struct {
	Sent        int
	Received    int
	Lost        int
	LossPercent float64

	RTTMin time.Duration
	RTTAvg time.Duration
	RTTMax time.Duration
	HasRTT bool

	TotalTime time.Duration
}

// buildReport reduces a final table snapshot to a Report. It runs once,
// after both the sending and receiving sides have finished.
func buildReport(entries []Entry, totalTime time.Duration) *Report {
	report := &Report{
		Sent:      len(entries),
		TotalTime: totalTime,
	}

	var sum time.Duration
	for _, e := range entries {
		if e.State != StateResolved {
			continue
		}
		if !report.HasRTT {
			report.RTTMin = e.RTT
			report.RTTMax = e.RTT
			report.HasRTT = true
		} else {
			report.RTTMin = min(report.RTTMin, e.RTT)
			report.RTTMax = max(report.RTTMax, e.RTT)
		}
		sum += e.RTT
		report.Received++
	}

	report.Lost = report.Sent - report.Received
	if report.Sent > 0 {
		report.LossPercent = float64(report.Lost) / float64(report.Sent) * 100
	}
	if report.Received > 0 {
		report.RTTAvg = sum / time.Duration(report.Received)
	}

	return report
}
