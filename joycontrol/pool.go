package joycontrol

import (
	"sync"

	R "dio.wtf/nxcontrol/joycontrol/report"
)

var (
	standardPool = sync.Pool{
		New: func() any {
			report := R.InputReport(make([]byte, R.StandardLength))
			return &report
		},
	}
	nfcPool = sync.Pool{
		New: func() any {
			report := R.InputReport(make([]byte, R.NfcLength))
			return &report
		},
	}
	emptyInputReport = [R.NfcLength]byte{R.InputReportHeader}
)

func AllocStandardReport() *R.InputReport {
	report := standardPool.Get().(*R.InputReport)
	copy((*report)[:], emptyInputReport[:])
	return report
}

func AllocNfcReport() *R.InputReport {
	report := nfcPool.Get().(*R.InputReport)
	copy((*report)[:], emptyInputReport[:])
	return report
}

func FreeReport(report *R.InputReport) {
	switch cap(*report) {
	case R.StandardLength:
		standardPool.Put(report)
	case R.NfcLength:
		nfcPool.Put(report)
	}
}
