package protocol

import (
	"fmt"
	"sync"
)

// UnknownName is the command name given to frames whose id is not in the
// command table.
const UnknownName = "unknown"

// CommandSpec describes one command the device understands.
type CommandSpec struct {
	Name string
	ID   int

	// Formats are the argument formats registered for the command. They are
	// only meaningful when HasFormats is true, otherwise callers fall back
	// to guessing.
	Formats    Formats
	HasFormats bool
}

// Unknown is returned by CommandTable.ByID for ids that are not registered.
var Unknown = CommandSpec{Name: UnknownName, ID: -1}

// CommandDef is the configuration form of a command, a name and an optional
// format string.
type CommandDef struct {
	Name   string  `toml:"name"`
	Format *string `toml:"format"`
}

// CommandTable maps command names to ids and back. Ids are assigned in
// registration order starting at 0 and must match the order of the command
// enum compiled into the device firmware.
type CommandTable struct {
	mu     sync.RWMutex
	byName map[string]int
	specs  []CommandSpec
}

func NewCommandTable() *CommandTable {
	return &CommandTable{
		byName: make(map[string]int),
		specs:  make([]CommandSpec, 0),
	}
}

// NewCommandTableFrom registers every def in order.
func NewCommandTableFrom(defs []CommandDef) (*CommandTable, error) {
	table := NewCommandTable()

	for _, def := range defs {
		var err error
		if def.Format == nil {
			_, err = table.RegisterUnformatted(def.Name)
		} else {
			_, err = table.Register(def.Name, *def.Format)
		}

		if err != nil {
			return nil, err
		}
	}

	return table, nil
}

// Register adds a command with an argument format string and returns its id.
func (t *CommandTable) Register(name string, format string) (int, error) {
	formats, err := ParseFormats(format)
	if err != nil {
		return 0, fmt.Errorf("Failed to register '%s': %w", name, err)
	}

	return t.add(CommandSpec{Name: name, Formats: formats, HasFormats: true})
}

// RegisterUnformatted adds a command whose arguments are always guessed
// unless the caller supplies formats.
func (t *CommandTable) RegisterUnformatted(name string) (int, error) {
	return t.add(CommandSpec{Name: name})
}

func (t *CommandTable) add(spec CommandSpec) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byName[spec.Name]; ok {
		return 0, fmt.Errorf("Failed to register '%s': %w", spec.Name, ErrDuplicateCommand)
	}

	spec.ID = len(t.specs)
	t.specs = append(t.specs, spec)
	t.byName[spec.Name] = spec.ID

	return spec.ID, nil
}

// ByName returns the spec registered under name.
func (t *CommandTable) ByName(name string) (CommandSpec, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	id, ok := t.byName[name]
	if !ok {
		return CommandSpec{}, fmt.Errorf("Command '%s' not recognized: %w", name, ErrUnknownCommand)
	}

	return t.specs[id], nil
}

// ByID returns the spec registered with id. Unknown ids yield the Unknown
// spec and false, as more frames may follow an unrecognised one.
func (t *CommandTable) ByID(id int) (CommandSpec, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id < 0 || id >= len(t.specs) {
		return Unknown, false
	}

	return t.specs[id], true
}

// Len returns the number of registered commands.
func (t *CommandTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.specs)
}

// Specs returns a copy of the registered commands in id order.
func (t *CommandTable) Specs() []CommandSpec {
	t.mu.RLock()
	defer t.mu.RUnlock()

	specs := make([]CommandSpec, len(t.specs))
	copy(specs, t.specs)
	return specs
}
