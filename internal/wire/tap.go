package wire

// TAPState is one of the 16 states of the IEEE 1149.1 TAP
// state machine.
type TAPState uint8

const (
	TAPTestLogicReset TAPState = iota
	TAPRunTestIdle
	TAPSelectDRScan
	TAPCaptureDR
	TAPShiftDR
	TAPExit1DR
	TAPPauseDR
	TAPExit2DR
	TAPUpdateDR
	TAPSelectIRScan
	TAPCaptureIR
	TAPShiftIR
	TAPExit1IR
	TAPPauseIR
	TAPExit2IR
	TAPUpdateIR
)

func (s TAPState) String() string {
	switch s {
	case TAPTestLogicReset:
		return "Test-Logic-Reset"
	case TAPRunTestIdle:
		return "Run-Test/Idle"
	case TAPSelectDRScan:
		return "Select-DR-Scan"
	case TAPCaptureDR:
		return "Capture-DR"
	case TAPShiftDR:
		return "Shift-DR"
	case TAPExit1DR:
		return "Exit1-DR"
	case TAPPauseDR:
		return "Pause-DR"
	case TAPExit2DR:
		return "Exit2-DR"
	case TAPUpdateDR:
		return "Update-DR"
	case TAPSelectIRScan:
		return "Select-IR-Scan"
	case TAPCaptureIR:
		return "Capture-IR"
	case TAPShiftIR:
		return "Shift-IR"
	case TAPExit1IR:
		return "Exit1-IR"
	case TAPPauseIR:
		return "Pause-IR"
	case TAPExit2IR:
		return "Exit2-IR"
	case TAPUpdateIR:
		return "Update-IR"
	default:
		return "unknown"
	}
}

// tapNext maps (state, tms-bit) to the next state, per the IEEE
// 1149.1 state diagram.
var tapNext = [16][2]TAPState{
	TAPTestLogicReset: {TAPRunTestIdle, TAPTestLogicReset},
	TAPRunTestIdle:    {TAPRunTestIdle, TAPSelectDRScan},
	TAPSelectDRScan:   {TAPCaptureDR, TAPSelectIRScan},
	TAPCaptureDR:      {TAPShiftDR, TAPExit1DR},
	TAPShiftDR:        {TAPShiftDR, TAPExit1DR},
	TAPExit1DR:        {TAPPauseDR, TAPUpdateDR},
	TAPPauseDR:        {TAPPauseDR, TAPExit2DR},
	TAPExit2DR:        {TAPShiftDR, TAPUpdateDR},
	TAPUpdateDR:       {TAPRunTestIdle, TAPSelectDRScan},
	TAPSelectIRScan:   {TAPCaptureIR, TAPTestLogicReset},
	TAPCaptureIR:      {TAPShiftIR, TAPExit1IR},
	TAPShiftIR:        {TAPShiftIR, TAPExit1IR},
	TAPExit1IR:        {TAPPauseIR, TAPUpdateIR},
	TAPPauseIR:        {TAPPauseIR, TAPExit2IR},
	TAPExit2IR:        {TAPShiftIR, TAPUpdateIR},
	TAPUpdateIR:       {TAPRunTestIdle, TAPSelectDRScan},
}

// tapPath is a breadth-first precomputed shortest TMS path between
// every pair of states, stored as the sequence of TMS bits
// (LSB-first) and their count. 16*16 is small enough to keep as a
// flat table computed once at package init.
var tapPath [16][16]struct {
	bits  uint8
	count int
}

func init() {
	for from := TAPState(0); from < 16; from++ {
		tapPath[from][from] = struct {
			bits  uint8
			count int
		}{0, 0}
		// BFS over the 16-node graph.
		type node struct {
			state TAPState
			bits  uint8
			count int
		}
		visited := [16]bool{from: true}
		queue := []node{{from, 0, 0}}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			for tms := 0; tms < 2; tms++ {
				next := tapNext[n.state][tms]
				if visited[next] {
					continue
				}
				visited[next] = true
				bits := n.bits | (uint8(tms) << uint(n.count))
				count := n.count + 1
				tapPath[from][next] = struct {
					bits  uint8
					count int
				}{bits, count}
				queue = append(queue, node{next, bits, count})
			}
		}
	}
}

// PathTo returns the minimal LSB-first TMS bit sequence (and its
// length) that moves the TAP state machine from from to to.
func PathTo(from, to TAPState) (bits uint8, count int) {
	p := tapPath[from][to]
	return p.bits, p.count
}
