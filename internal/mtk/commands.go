package mtk

// Well-known command bodies and the acknowledgement tag. The chip answers
// most commands with "$PMTK001,<cmd>,<flag>"; flag 3 means the command was
// received and applied.
const (
	CmdTest         = "PMTK000"
	CmdHotStart     = "PMTK101"
	CmdWarmStart    = "PMTK102"
	CmdColdStart    = "PMTK103"
	CmdFactoryReset = "PMTK104"
	CmdSetBaud      = "PMTK251"

	TagAck = "PMTK001"

	// AckSuccess is the flag value reported for an applied command. Lower
	// values mean invalid, unsupported or failed.
	AckSuccess = "3"
)
