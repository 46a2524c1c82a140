package cmd

import (
	"fmt"
	"time"

	"github.com/colebryant/upd-ping-client/core"
)

func printOnStart(s *core.Session) {
	fmt.Printf("PING %s\n", s.Address())
}

func printOnRoundTrip(s *core.Session, rt *core.RoundTrip) {
	switch rt.Res {
	case core.Replied:
		fmt.Printf("PONG %s: seq=%d time=%d ms\n", s.Address(), rt.Seq, rt.Time.Milliseconds())
	case core.TimedOut:
		fmt.Printf("no reply from %s: seq=%d timeout expired\n", s.Address(), rt.Seq)
	case core.SendFailed:
		fmt.Printf("send failure to %s: seq=%d\n", s.Address(), rt.Seq)
	}
}

func printOnEnd(s *core.Session, report *core.Report) {
	fmt.Printf("\n--- %s ping statistics ---\n", s.Address())
	fmt.Printf("%d transmitted, %d received, %.0f%% loss, time %d ms\n",
		report.Sent, report.Received, report.LossPercent, report.TotalTime.Milliseconds())

	if report.HasRTT {
		fmt.Printf("rtt min/avg/max = %s/%s/%s\n",
			report.RTTMin.Truncate(time.Microsecond),
			report.RTTAvg.Truncate(time.Microsecond),
			report.RTTMax.Truncate(time.Microsecond))
	} else {
		fmt.Println("rtt min/avg/max = no data")
	}
}
