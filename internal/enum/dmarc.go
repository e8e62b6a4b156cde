package enum

// Disposition is the policy action a receiver applied to messages in a
// record row. Empty means the reporter did not evaluate it.
type Disposition string

const (
	DispositionNone       Disposition = "none"
	DispositionQuarantine Disposition = "quarantine"
	DispositionReject     Disposition = "reject"
)

func (t Disposition) String() string {
	return string(t)
}

// AlignmentMode is the published DKIM/SPF identifier alignment mode.
type AlignmentMode string

const (
	AlignmentRelaxed AlignmentMode = "r"
	AlignmentStrict  AlignmentMode = "s"
)

func (t AlignmentMode) String() string {
	return string(t)
}

// DMARCResult is the coarse pass/fail outcome the receiver evaluated
// for a mechanism under the published policy.
type DMARCResult string

const (
	DMARCResultPass DMARCResult = "pass"
	DMARCResultFail DMARCResult = "fail"
)

func (t DMARCResult) String() string {
	return string(t)
}
