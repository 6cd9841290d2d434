package bus

import (
	"fmt"
	"sync"
)

// Command is one recorded SetCommand call.
type Command struct {
	Board, Channel, On, Off int
}

// Mock is an in-memory Writer for tests and dry runs. It records every call
// and can simulate per-board communication failures.
type Mock struct {
	mu        sync.Mutex
	commands  []Command
	failBoard map[int]error
	RefreshHz int
	Closed    bool
}

// NewMock creates a mock bus writer.
func NewMock() *Mock {
	return &Mock{failBoard: make(map[int]error)}
}

// FailBoard makes subsequent writes to board fail with err. Pass nil to heal.
func (m *Mock) FailBoard(board int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failBoard, board)
		return
	}
	m.failBoard[board] = err
}

func (m *Mock) SetCommand(board, channel, on, off int) error {
	if err := checkRange(channel, on, off); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failBoard[board]; ok {
		return fmt.Errorf("%w: board %d: %v", ErrBusCommunication, board, err)
	}
	m.commands = append(m.commands, Command{Board: board, Channel: channel, On: on, Off: off})
	return nil
}

func (m *Mock) SetRefreshRate(hz int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefreshHz = hz
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Commands returns a copy of every recorded call in dispatch order.
func (m *Mock) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// Reset clears the recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}

// Last returns the most recent command written to (board, channel).
func (m *Mock) Last(board, channel int) (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.commands) - 1; i >= 0; i-- {
		c := m.commands[i]
		if c.Board == board && c.Channel == channel {
			return c, true
		}
	}
	return Command{}, false
}
