package routing

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	"github.com/samber/lo"
)

// ScriptEvaluator runs the current route script once per message. The
// completion value of the script is the route. Bindings:
//
//	message  {payload, headers}
//	payload  the raw payload; binary payloads arrive as an ArrayBuffer
//	headers  message headers
//
// plus every configured variable and the helpers text(buf) and jsonParse(str).
type ScriptEvaluator struct {
	source    *ScriptSource
	variables map[string]string
}

func NewScriptEvaluator(source *ScriptSource, variables map[string]string) *ScriptEvaluator {
	copied := make(map[string]string, len(variables))
	for k, v := range variables {
		copied[k] = v
	}
	return &ScriptEvaluator{source: source, variables: copied}
}

func (e *ScriptEvaluator) Kind() string {
	return "script"
}

func (e *ScriptEvaluator) Source() *ScriptSource {
	return e.source
}

// Evaluate uses a fresh runtime each call; a goja.Runtime must not be shared
// between goroutines.
func (e *ScriptEvaluator) Evaluate(msg *Message) ([]string, error) {
	script := e.source.Current()

	vm := goja.New()
	if err := e.bind(vm, msg); err != nil {
		return nil, &EvaluationError{Evaluator: e.Kind(), Cause: err}
	}

	result, err := vm.RunProgram(script.Program)
	if err != nil {
		return nil, &EvaluationError{Evaluator: e.Kind(), Cause: err}
	}

	var exported interface{}
	if result != nil && !goja.IsUndefined(result) && !goja.IsNull(result) {
		exported = result.Export()
	}

	keys, err := toRouteKeys(exported)
	if err != nil {
		return nil, &EvaluationError{Evaluator: e.Kind(), Cause: err}
	}
	return keys, nil
}

func (e *ScriptEvaluator) bind(vm *goja.Runtime, msg *Message) error {
	for name, value := range e.variables {
		if err := vm.Set(name, value); err != nil {
			return fmt.Errorf("binding variable %s: %w", name, err)
		}
	}

	var payload interface{} = msg.Payload
	if b, ok := msg.Payload.([]byte); ok {
		buf := make([]byte, len(b))
		copy(buf, b)
		payload = vm.NewArrayBuffer(buf)
	}
	// goja wraps Go maps live; scripts get a copy so the message stays untouched
	headers := lo.Assign(msg.Headers)

	bindings := map[string]interface{}{
		"message": map[string]interface{}{
			"payload": payload,
			"headers": headers,
		},
		"payload": payload,
		"headers": headers,
		"text": func(v goja.Value) string {
			if buf, ok := v.Export().(goja.ArrayBuffer); ok {
				return string(buf.Bytes())
			}
			return v.String()
		},
		"jsonParse": func(s string) interface{} {
			var out interface{}
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				panic(vm.NewGoError(err))
			}
			return out
		},
	}
	for name, value := range bindings {
		if err := vm.Set(name, value); err != nil {
			return fmt.Errorf("binding %s: %w", name, err)
		}
	}
	return nil
}
