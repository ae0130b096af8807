package simulate

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	ReportInterval          = time.Second
)

// Script shape constants.
const (
	slotsPerSide   = 3
	rosterPerSide  = 6
	maxClockStep   = 40
	minClockStep   = 5
	percentageBase = 100
)

// Action mix, in percent of script steps.
const (
	shareShift  = 20
	shareClock  = 20
	shareUndo   = 6
	shareRedo   = 3
	sharePeriod = 1
)
