// Package wire speaks the wire protocol: it serializes the command
// vocabulary onto a line-oriented channel and decodes each response
// into a typed [Response] once, at this boundary.
package wire

import (
	"encoding/json"
	"strings"

	wberr "wirebridge/internal/errors"
	"wirebridge/internal/table"
)

// Command words.
const (
	CmdListStepDefinitions = "list_step_definitions"
	CmdInvoke              = "invoke"
	CmdArgumentsFrom       = "ARGUMENTS_FROM"
	CmdDiffOK              = "DIFFOK"
	CmdDiffKO              = "DIFFKO"
)

// Response tags.
const (
	tagOK        = "OK"
	tagDiff      = "DIFF:"
	tagFail      = "FAIL:"
	tagArguments = "ARGUMENTS:"
)

// StepDefinition is one entry of the list_step_definitions reply.
type StepDefinition struct {
	ID     string `json:"id"`
	Regexp string `json:"regexp"`
}

// Argument is one entry of an ARGUMENTS reply: a matched value and its
// offset in the step text.
type Argument struct {
	Val string `json:"val"`
	Pos int    `json:"pos"`
}

// ── Responses ────────────────────────────────────────────────────────

// Response is a decoded reply.  The concrete type is one of [OK],
// [Diff], [Fail], [Arguments] or [Ack].
type Response interface {
	isResponse()
}

// OK: the step passed.
type OK struct{}

// Diff carries the remote's version of a table it considers different
// from the one it was given.
type Diff struct {
	Table *table.Table
}

// Fail is an explicit failure report.
type Fail struct {
	Message   string   `json:"message"`
	Backtrace []string `json:"backtrace,omitempty"`
}

// Err converts the report into a *errors.RemoteFailure.
func (f Fail) Err() error {
	return &wberr.RemoteFailure{Message: f.Message, Backtrace: f.Backtrace}
}

// Arguments lists the values a step definition extracted.
type Arguments struct {
	Args []Argument
}

// Ack is any non-failure reply to DIFFOK or DIFFKO.
type Ack struct {
	Raw string
}

func (OK) isResponse()        {}
func (Diff) isResponse()      {}
func (Fail) isResponse()      {}
func (Arguments) isResponse() {}
func (Ack) isResponse()       {}

// ── Decoding ─────────────────────────────────────────────────────────

func malformed(command, raw, reason string) error {
	return &wberr.MalformedResponseError{Command: command, Response: raw, Reason: reason}
}

// decodeFail parses a FAIL payload.  A payload that is not a JSON
// object is kept verbatim as the message rather than lost.
func decodeFail(payload string) Fail {
	var f Fail
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return Fail{Message: payload}
	}
	return f
}

// DecodeInvoke decodes a reply to invoke: OK, DIFF or FAIL.
func DecodeInvoke(raw string) (Response, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, tagOK):
		return OK{}, nil
	case strings.HasPrefix(s, tagDiff):
		payload := strings.TrimPrefix(s, tagDiff)
		if err := validate(tableSchema, payload); err != nil {
			return nil, malformed(CmdInvoke, raw, err.Error())
		}
		var t table.Table
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, malformed(CmdInvoke, raw, err.Error())
		}
		return Diff{Table: &t}, nil
	case strings.HasPrefix(s, tagFail):
		return decodeFail(strings.TrimPrefix(s, tagFail)), nil
	default:
		return nil, malformed(CmdInvoke, raw, "expected OK, DIFF: or FAIL:")
	}
}

// DecodeArguments decodes a reply to ARGUMENTS_FROM: ARGUMENTS or FAIL.
func DecodeArguments(raw string) (Response, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, tagArguments):
		payload := strings.TrimPrefix(s, tagArguments)
		if err := validate(argumentsSchema, payload); err != nil {
			return nil, malformed(CmdArgumentsFrom, raw, err.Error())
		}
		var args []Argument
		if err := json.Unmarshal([]byte(payload), &args); err != nil {
			return nil, malformed(CmdArgumentsFrom, raw, err.Error())
		}
		return Arguments{Args: args}, nil
	case strings.HasPrefix(s, tagFail):
		return decodeFail(strings.TrimPrefix(s, tagFail)), nil
	default:
		return nil, malformed(CmdArgumentsFrom, raw, "expected ARGUMENTS: or FAIL:")
	}
}

// DecodeStepDefinitions decodes the list_step_definitions reply.  A
// FAIL reply is returned as a *errors.RemoteFailure.
func DecodeStepDefinitions(raw string) ([]StepDefinition, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, tagFail) {
		return nil, decodeFail(strings.TrimPrefix(s, tagFail)).Err()
	}
	if err := validate(stepDefinitionsSchema, s); err != nil {
		return nil, malformed(CmdListStepDefinitions, raw, err.Error())
	}
	var defs []StepDefinition
	if err := json.Unmarshal([]byte(s), &defs); err != nil {
		return nil, malformed(CmdListStepDefinitions, raw, err.Error())
	}
	return defs, nil
}

// DecodeAck decodes a reply to DIFFOK or DIFFKO: FAIL or anything else.
func DecodeAck(raw string) Response {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, tagFail) {
		return decodeFail(strings.TrimPrefix(s, tagFail))
	}
	return Ack{Raw: s}
}
