package signals

import "golang.org/x/sys/unix"

// Replaceable for tests.
var (
	pipeFunc  = openPipe
	closeFunc = unix.Close
	pollFunc  = unix.Poll
	readFunc  = unix.Read
	writeFunc = unix.Write
)

// notifyPipe is the self-pipe of one slot for the duration of a wait.
type notifyPipe struct {
	slot *slot
	gen  uint32
	r, w int
}

// openFor creates a pipe and publishes its write end on s so the
// dispatcher starts writing to it. Caller holds the table mutex.
func openFor(s *slot) (*notifyPipe, error) {
	r, w, err := pipeFunc()
	if err != nil {
		return nil, err
	}
	s.pipeMu.Lock()
	s.readFD, s.writeFD = r, w
	s.pipeMu.Unlock()
	return &notifyPipe{slot: s, gen: s.gen, r: r, w: w}, nil
}

// closeFor withdraws the pipe from its slot and closes both ends. The slot
// is only touched if it still belongs to the registration the pipe was
// opened for. Caller holds the table mutex.
func (p *notifyPipe) closeFor() {
	if p.slot.gen == p.gen {
		p.slot.pipeMu.Lock()
		p.slot.readFD, p.slot.writeFD = -1, -1
		p.slot.pipeMu.Unlock()
	}
	closeFunc(p.r)
	closeFunc(p.w)
}

// drain consumes one notification byte. Errors are ignored; an empty pipe
// just means the byte was already consumed.
func (p *notifyPipe) drain() {
	var buf [1]byte
	readFunc(p.r, buf[:])
}
