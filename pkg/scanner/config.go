package scanner

// Default dispatcher limits.
const (
	DefaultMaxDepth = 7
	DefaultMaxNgram = 10
)

// Action is a scanner command verb.
type Action int

const (
	// Enable turns a scanner on.
	Enable Action = iota
	// Disable turns a scanner off.
	Disable
)

// CommandAll is the wildcard scanner name understood by ApplyCommands.
const CommandAll = "all"

// Command enables or disables one scanner, or all of them. Commands
// apply in order, so "disable all" followed by "enable zip" runs
// exactly one scanner.
type Command struct {
	Action Action
	Name   string
}

// EnableAll returns the command enabling every scanner without NoAll.
func EnableAll() Command { return Command{Action: Enable, Name: CommandAll} }

// DisableAll returns the command disabling every scanner without
// NoAll.
func DisableAll() Command { return Command{Action: Disable, Name: CommandAll} }

// DebugFlags are explicit development toggles, set from the command
// line rather than sniffed from the environment.
type DebugFlags struct {
	// PrintSteps logs every scanner invocation.
	PrintSteps bool
	// NoDedup disables the duplicate-content suppression.
	NoDedup bool
	// NoScanners dispatches nothing, exercising only the I/O paths.
	NoScanners bool
	// AlertOnDup records an alert for every suppressed duplicate
	// buffer.
	AlertOnDup bool
}

// Config controls a scanner set.
type Config struct {
	// MaxDepth bounds the recursion depth of decoded children
	// (default DefaultMaxDepth).
	MaxDepth int
	// MaxNgram bounds the repeating-pattern probe used to skip
	// degenerate buffers (default DefaultMaxNgram).
	MaxNgram int
	// Options holds scanner options as "scanner.option" keys.
	Options map[string]string
	Debug   DebugFlags
}

func (c Config) normalized() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxNgram <= 0 {
		c.MaxNgram = DefaultMaxNgram
	}
	return c
}
