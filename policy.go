package toolbridge

import (
	"errors"
	"fmt"
	"strings"
)

// ToolCallErrorTemplate is the default message for a handled call failure.
const ToolCallErrorTemplate = "Error: %v\n Please fix your mistakes."

// invalidToolTemplate is used when no source accepts a tool name.
const invalidToolTemplate = "Error: %s is not a valid tool, try one of [%s]."

// InvalidToolMessage renders the invalid tool name error listing available.
func InvalidToolMessage(requested string, available []string) string {
	return fmt.Sprintf(invalidToolTemplate, requested, strings.Join(available, ", "))
}

type policyKind int

const (
	policyCatchAll policyKind = iota
	policyCatchAllMessage
	policyCatchTypes
	policyCatchFunc
	policyCatchNone
)

// ErrorMatcher selects the errors a CatchTypes policy handles.
type ErrorMatcher func(error) bool

// ErrorOfType matches errors whose chain contains an E (errors.As).
func ErrorOfType[E error]() ErrorMatcher {
	return func(err error) bool {
		var target E
		return errors.As(err, &target)
	}
}

// ErrorIs matches errors whose chain contains target (errors.Is).
func ErrorIs(target error) ErrorMatcher {
	return func(err error) bool { return errors.Is(err, target) }
}

// ErrorPolicy decides which call failures become error ToolMessages and with
// what content. It is chosen once per Executor. The zero value is CatchAll.
//
// Interrupts are outside every policy: resolve returns them before looking at
// the kind.
type ErrorPolicy struct {
	kind     policyKind
	message  string
	matchers []ErrorMatcher
	classify func(error) (string, bool)
}

// CatchAll handles every error with ToolCallErrorTemplate.
func CatchAll() ErrorPolicy { return ErrorPolicy{kind: policyCatchAll} }

// CatchAllWithMessage handles every error with a fixed message.
func CatchAllWithMessage(msg string) ErrorPolicy {
	return ErrorPolicy{kind: policyCatchAllMessage, message: msg}
}

// CatchTypes handles errors accepted by any matcher with ToolCallErrorTemplate;
// the rest are returned to the caller. With no matchers nothing is handled.
func CatchTypes(matchers ...ErrorMatcher) ErrorPolicy {
	return ErrorPolicy{kind: policyCatchTypes, matchers: append([]ErrorMatcher(nil), matchers...)}
}

// CatchFunc hands each error to classify. ok=true means handled with the returned
// message; ok=false returns the error to the caller. A nil classify is CatchNone.
func CatchFunc(classify func(err error) (msg string, ok bool)) ErrorPolicy {
	if classify == nil {
		return CatchNone()
	}
	return ErrorPolicy{kind: policyCatchFunc, classify: classify}
}

// CatchNone returns every error to the caller.
func CatchNone() ErrorPolicy { return ErrorPolicy{kind: policyCatchNone} }

// String names the policy kind (for logs).
func (p ErrorPolicy) String() string {
	switch p.kind {
	case policyCatchAll:
		return "catch_all"
	case policyCatchAllMessage:
		return "catch_all_message"
	case policyCatchTypes:
		return "catch_types"
	case policyCatchFunc:
		return "catch_func"
	default:
		return "catch_none"
	}
}

// resolve returns the ToolMessage content for a handled err, or handled=false
// when err must propagate.
func (p ErrorPolicy) resolve(err error) (content string, handled bool) {
	if err == nil || IsInterrupt(err) {
		return "", false
	}
	switch p.kind {
	case policyCatchAll:
		return fmt.Sprintf(ToolCallErrorTemplate, err), true
	case policyCatchAllMessage:
		return p.message, true
	case policyCatchTypes:
		for _, match := range p.matchers {
			if match(err) {
				return fmt.Sprintf(ToolCallErrorTemplate, err), true
			}
		}
		return "", false
	case policyCatchFunc:
		return p.classify(err)
	default:
		return "", false
	}
}
