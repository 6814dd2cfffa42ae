package comm

// ResendMaxAttempts is the maximum number of times Comm will retry sending
// to the same recipient before giving up on it.
const ResendMaxAttempts = 3

// SendStatus reports the outcome of a delivery-group send: how many of the
// requested group were never reached, and which recipients exhausted every
// retry.
type SendStatus struct {
	Remaining        int
	FailedRecipients []string
}

// recipient tracks one target's in-flight send state.
type recipient struct {
	addr    string
	sending bool
	attempt int
}

// sendState drives a delivery-group send: keep at most deliveryGroupSize
// sends in flight, retrying failures against the next least-tried
// recipient, until deliveryGroupSize successes are reached or every
// recipient is exhausted. The same state machine as comm.rs's SendState,
// translated from its single-threaded poll loop into a structure driven by
// Go goroutines reporting back over a channel.
type sendState struct {
	recipients []recipient
	remaining  int
}

func newSendState(addrs []string, deliveryGroupSize int) *sendState {
	recipients := make([]recipient, len(addrs))
	for i, addr := range addrs {
		recipients[i] = recipient{addr: addr}
	}
	return &sendState{recipients: recipients, remaining: deliveryGroupSize}
}

// next returns the next recipient to (re)send to, or ok=false if no more
// sends should be started right now (either enough are already in flight,
// or everyone eligible has been exhausted).
func (s *sendState) next() (string, bool) {
	active := 0
	for _, r := range s.recipients {
		if r.sending {
			active++
		}
	}
	if active >= s.remaining {
		return "", false
	}

	best := -1
	for i, r := range s.recipients {
		if r.sending || r.attempt >= ResendMaxAttempts {
			continue
		}
		if best == -1 || r.attempt < s.recipients[best].attempt {
			best = i
		}
	}
	if best == -1 {
		return "", false
	}
	s.recipients[best].attempt++
	s.recipients[best].sending = true
	return s.recipients[best].addr, true
}

// pending reports whether any recipient is currently being sent to or is
// still eligible for another attempt.
func (s *sendState) pending() bool {
	for _, r := range s.recipients {
		if r.sending || r.attempt < ResendMaxAttempts {
			return true
		}
	}
	return false
}

func (s *sendState) failure(addr string) {
	for i := range s.recipients {
		if s.recipients[i].addr == addr {
			s.recipients[i].sending = false
			return
		}
	}
}

func (s *sendState) success(addr string) {
	for i := range s.recipients {
		if s.recipients[i].addr == addr {
			s.recipients = append(s.recipients[:i], s.recipients[i+1:]...)
			s.remaining--
			return
		}
	}
}

// finish reports the recipients still in s.recipients in insertion order
// over the original addrs passed to newSendState: success() removes
// reached recipients in place (not comm.rs's swap_remove, which would
// scramble this), so whatever's left here is already in that order.
func (s *sendState) finish() SendStatus {
	failed := make([]string, 0)
	for _, r := range s.recipients {
		if !r.sending && r.attempt >= ResendMaxAttempts {
			failed = append(failed, r.addr)
		}
	}
	return SendStatus{Remaining: s.remaining, FailedRecipients: failed}
}

type sendResult struct {
	addr string
	err  error
}

// SendMessageToTargets sends msg to at least deliveryGroupSize of
// recipients, retrying individual failures up to ResendMaxAttempts times
// each, and reports how many of the group were ultimately unreachable.
func (c *Comm) SendMessageToTargets(recipients []string, deliveryGroupSize int, msg []byte) SendStatus {
	state := newSendState(recipients, deliveryGroupSize)
	// Buffered generously enough that a goroutine can always deliver its
	// result even if the loop below has already stopped reading, so no
	// send goroutine is ever left blocked forever.
	results := make(chan sendResult, len(recipients)*ResendMaxAttempts+1)
	inFlight := 0

	for {
		for {
			addr, ok := state.next()
			if !ok {
				break
			}
			inFlight++
			go func(addr string) {
				results <- sendResult{addr: addr, err: c.send(addr, msg)}
			}(addr)
		}

		if state.remaining == 0 || (inFlight == 0 && !state.pending()) {
			break
		}

		res := <-results
		inFlight--
		if res.err == nil {
			state.success(res.addr)
		} else {
			state.failure(res.addr)
		}
	}

	return state.finish()
}

// SendMessageToTarget sends msg to a single recipient, retrying up to
// ResendMaxAttempts times.
func (c *Comm) SendMessageToTarget(recipient string, msg []byte) SendStatus {
	return c.SendMessageToTargets([]string{recipient}, 1, msg)
}
