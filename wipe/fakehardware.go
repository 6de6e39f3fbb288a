package wipe

import "fmt"

// FakeHardwareBackend is an in-memory HardwareBackend for dispatcher tests,
// modeled after volume.FakeBackend and device.FakeBackend: no real ioctls,
// just enough state to drive the Issuing/Polling state machine.
type FakeHardwareBackend struct {
	IssueError error

	// PollCountToDone is how many polls after issue report "not yet done";
	// the poll after that reports done. Zero means "done on first poll".
	PollCountToDone int
	FailAfterPolls  int // if >0, from this poll count on NvmeSanitizeProgress reports failed and the ATA/Format Done methods report not done
	PollError       error

	polls int
}

func NewFakeHardwareBackend() *FakeHardwareBackend {
	return &FakeHardwareBackend{}
}

func (f *FakeHardwareBackend) IssueAtaSecureErase(path string, enhanced bool) error {
	return f.IssueError
}

func (f *FakeHardwareBackend) AtaSecureEraseDone(path string) (bool, error) {
	return f.advance()
}

func (f *FakeHardwareBackend) IssueNvmeFormat(path string, lbaFormat uint8) error {
	return f.IssueError
}

func (f *FakeHardwareBackend) NvmeFormatDone(path string) (bool, error) {
	return f.advance()
}

func (f *FakeHardwareBackend) IssueNvmeSanitize(path string, action NvmeSanitizeAction) error {
	return f.IssueError
}

func (f *FakeHardwareBackend) NvmeSanitizeProgress(path string) (percent int, done, failed bool, err error) {
	done, err = f.advance()
	if f.PollError != nil {
		return 0, false, false, f.PollError
	}
	if f.FailAfterPolls > 0 && f.polls >= f.FailAfterPolls {
		return 0, false, true, nil
	}
	if done {
		return 100, true, false, nil
	}
	if f.PollCountToDone == 0 {
		return 0, false, false, fmt.Errorf("unreachable")
	}
	pct := f.polls * 100 / f.PollCountToDone
	if pct > 99 {
		pct = 99
	}
	return pct, false, false, nil
}

func (f *FakeHardwareBackend) advance() (bool, error) {
	if f.PollError != nil {
		return false, f.PollError
	}
	f.polls++
	if f.FailAfterPolls > 0 && f.polls >= f.FailAfterPolls {
		return false, nil
	}
	return f.polls > f.PollCountToDone, nil
}
