/*Package command wraps driver operations so callers can invoke them uniformly,
by name, and keep a record of what happened.

A Command is anything with a name that produces a device.Result.  Drivers
export constructors returning Commands for each of their operations, and an
Invoker runs them:

	inv := command.NewInvoker(64, nil)
	res := inv.Run(newport.MoveAbsoluteCmd(esp, 1, 5))
	if !res.OK {
		...
	}
*/
package command

import (
	"log"
	"sync"
	"time"

	"github.com/sdlab/labdev/device"
)

// Command is one invocable driver operation
type Command interface {
	Name() string
	Execute() device.Result
}

type funcCommand struct {
	name string
	fn   func() device.Result
}

func (c funcCommand) Name() string           { return c.name }
func (c funcCommand) Execute() device.Result { return c.fn() }

// New returns a Command named name that calls fn
func New(name string, fn func() device.Result) Command {
	return funcCommand{name: name, fn: fn}
}

// Composite runs its children in order and stops at the first failure, which
// it returns with the child's name prefixed to the message.  On success the
// result of the last child is returned
type Composite struct {
	Label    string
	Children []Command
}

// Sequence builds a Composite
func Sequence(label string, cmds ...Command) Composite {
	return Composite{Label: label, Children: cmds}
}

// Name returns the label
func (c Composite) Name() string {
	return c.Label
}

// Execute runs the children
func (c Composite) Execute() device.Result {
	res := device.Success("nothing to do")
	for _, child := range c.Children {
		res = child.Execute()
		if !res.OK {
			res.Message = child.Name() + ": " + res.Message
			return res
		}
	}
	return res
}

// Record is one entry in an Invoker's history
type Record struct {
	Name   string        `json:"name"`
	Result device.Result `json:"result"`
	At     time.Time     `json:"at"`
}

// Invoker executes commands and remembers the most recent ones
type Invoker struct {
	mu      sync.Mutex
	limit   int
	history []Record
	logger  *log.Logger
	now     func() time.Time
}

// NewInvoker returns an Invoker keeping at most limit records.  A nil logger
// uses the standard logger
func NewInvoker(limit int, logger *log.Logger) *Invoker {
	if logger == nil {
		logger = log.Default()
	}
	return &Invoker{limit: limit, logger: logger, now: time.Now}
}

// Run executes cmd, records the outcome, and returns it.  Failures are logged
func (i *Invoker) Run(cmd Command) device.Result {
	res := cmd.Execute()
	if !res.OK {
		i.logger.Printf("command %s failed: %s", cmd.Name(), res)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.history = append(i.history, Record{Name: cmd.Name(), Result: res, At: i.now()})
	if i.limit > 0 && len(i.history) > i.limit {
		i.history = i.history[len(i.history)-i.limit:]
	}
	return res
}

// History returns a copy of the records, oldest first
func (i *Invoker) History() []Record {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Record, len(i.history))
	copy(out, i.history)
	return out
}

// Last returns the most recent record and false if nothing has run
func (i *Invoker) Last() (Record, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.history) == 0 {
		return Record{}, false
	}
	return i.history[len(i.history)-1], true
}
