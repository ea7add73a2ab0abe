// Package storymodel defines the data model a story is built from: lines,
// the story they belong to, and the application that owns the story.
package storymodel

import "encoding/json"

// Method identifies how a line invokes its service/command.
type Method string

const (
	// MethodExecute is a direct, one-shot invocation.
	MethodExecute Method = "execute"
	// MethodWhen subscribes to an event emitted by a streaming service.
	MethodWhen Method = "when"
	// MethodIf branches to Enter if its lone argument is truthy, else Exit.
	MethodIf Method = "if"
	// MethodUnless branches to Exit if its lone argument is truthy, else Enter.
	MethodUnless Method = "unless"
)

// ArgumentDescriptor names one argument a line supplies to its command.
// Argument holds the opaque expression tree the story evaluates; the
// dispatch core never inspects it directly — it asks the Story to resolve
// the value by name.
type ArgumentDescriptor struct {
	Name     string
	Argument json.RawMessage
}

// Line is one execution unit in a story tree.
type Line struct {
	ID      string
	Service string
	Command string
	Method  Method
	Parent  string // empty means no parent
	Output  []string
	Enter   string
	Exit    string
	Next    string // sequential successor; unused by if/unless lines
	Args    []ArgumentDescriptor
}

// HasParent reports whether the line has a parent line id.
func (l Line) HasParent() bool {
	return l.Parent != ""
}

// SingleOutput returns the line's lone output name and true, or ("", false)
// if the line declares zero or more than one output name. Chain resolution
// uses this to find the ancestor that "owns" an event-bound handle name.
func (l Line) SingleOutput() (string, bool) {
	if len(l.Output) != 1 {
		return "", false
	}
	return l.Output[0], true
}
