package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// resolvedEntry returns a resolved entry with the given rtt
func resolvedEntry(seq uint16, rtt time.Duration) Entry {
	sentAt := time.Now()
	return Entry{
		Seq:        seq,
		SentAt:     sentAt,
		ReceivedAt: sentAt.Add(rtt),
		RTT:        rtt,
		State:      StateResolved,
	}
}

// TestBuildReportEmpty verifies the zero-probe report: no data, not zeros
// masquerading as data
func TestBuildReportEmpty(t *testing.T) {
	report := buildReport(nil, time.Millisecond)

	assert.Zero(t, report.Sent)
	assert.Zero(t, report.Received)
	assert.Zero(t, report.Lost)
	assert.Zero(t, report.LossPercent)
	assert.False(t, report.HasRTT)
}

// TestBuildReportAllResolved verifies a loss-free run
func TestBuildReportAllResolved(t *testing.T) {
	entries := []Entry{
		resolvedEntry(0, 10*time.Millisecond),
		resolvedEntry(1, 30*time.Millisecond),
		resolvedEntry(2, 20*time.Millisecond),
	}

	report := buildReport(entries, 100*time.Millisecond)

	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 3, report.Received)
	assert.Zero(t, report.Lost)
	assert.Zero(t, report.LossPercent)
	assert.True(t, report.HasRTT)
	assert.Equal(t, 10*time.Millisecond, report.RTTMin)
	assert.Equal(t, 20*time.Millisecond, report.RTTAvg)
	assert.Equal(t, 30*time.Millisecond, report.RTTMax)
	assert.Equal(t, 100*time.Millisecond, report.TotalTime)
}

// TestBuildReportPartialLoss verifies that lost probes are excluded from the
// rtt statistics and counted in the loss percentage
func TestBuildReportPartialLoss(t *testing.T) {
	entries := []Entry{
		resolvedEntry(0, 10*time.Millisecond),
		{Seq: 1, SentAt: time.Now(), State: StateLost},
		resolvedEntry(2, 20*time.Millisecond),
		{Seq: 3, SentAt: time.Now(), State: StateLost},
		resolvedEntry(4, 30*time.Millisecond),
	}

	report := buildReport(entries, time.Second)

	assert.Equal(t, 5, report.Sent)
	assert.Equal(t, 3, report.Received)
	assert.Equal(t, 2, report.Lost)
	assert.InDelta(t, 40.0, report.LossPercent, 1e-9)
	assert.True(t, report.HasRTT)
	assert.Equal(t, 10*time.Millisecond, report.RTTMin)
	assert.Equal(t, 20*time.Millisecond, report.RTTAvg)
	assert.Equal(t, 30*time.Millisecond, report.RTTMax)
}

// TestBuildReportSendFailedCountsAsLost verifies that a transmission failure
// counts as a lost probe
func TestBuildReportSendFailedCountsAsLost(t *testing.T) {
	entries := []Entry{
		resolvedEntry(0, 10*time.Millisecond),
		{Seq: 1, SentAt: time.Now(), State: StateSendFailed},
	}

	report := buildReport(entries, time.Second)

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Received)
	assert.Equal(t, 1, report.Lost)
	assert.InDelta(t, 50.0, report.LossPercent, 1e-9)
}

// TestBuildReportAllLost verifies that a fully lost run reports no rtt data
func TestBuildReportAllLost(t *testing.T) {
	entries := []Entry{
		{Seq: 0, SentAt: time.Now(), State: StateLost},
		{Seq: 1, SentAt: time.Now(), State: StateLost},
	}

	report := buildReport(entries, time.Second)

	assert.Equal(t, 2, report.Sent)
	assert.Zero(t, report.Received)
	assert.Equal(t, 2, report.Lost)
	assert.InDelta(t, 100.0, report.LossPercent, 1e-9)
	assert.False(t, report.HasRTT)
}

// TestBuildReportInvariants verifies received <= sent and
// lost = sent - received over a mixed snapshot
func TestBuildReportInvariants(t *testing.T) {
	entries := []Entry{
		resolvedEntry(0, 15*time.Millisecond),
		{Seq: 1, SentAt: time.Now(), State: StateLost},
		resolvedEntry(2, 5*time.Millisecond),
		{Seq: 3, SentAt: time.Now(), State: StateAwaiting},
	}

	report := buildReport(entries, time.Second)

	assert.LessOrEqual(t, report.Received, report.Sent)
	assert.Equal(t, report.Sent-report.Received, report.Lost)
	assert.LessOrEqual(t, report.RTTMin, report.RTTAvg)
	assert.LessOrEqual(t, report.RTTAvg, report.RTTMax)
}
