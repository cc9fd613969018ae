package routing

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"message-router/internal/common/errors"
)

// DefaultExpression routes on the routeTo header
const DefaultExpression = "headers['routeTo']"

// ExpressionEvaluator evaluates one expr-lang expression compiled at construction.
// The environment exposes headers and payload.
type ExpressionEvaluator struct {
	expression string
	program    *vm.Program
}

func NewExpressionEvaluator(expression string) (*ExpressionEvaluator, error) {
	if expression == "" {
		expression = DefaultExpression
	}

	program, err := expr.Compile(expression, expr.Env(exprEnv{}))
	if err != nil {
		return nil, errors.ConfigError("invalid route expression " + expression + ": " + err.Error())
	}

	return &ExpressionEvaluator{expression: expression, program: program}, nil
}

func (e *ExpressionEvaluator) Kind() string {
	return "expression"
}

func (e *ExpressionEvaluator) Expression() string {
	return e.expression
}

func (e *ExpressionEvaluator) Evaluate(msg *Message) ([]string, error) {
	result, err := expr.Run(e.program, newExprEnv(msg))
	if err != nil {
		return nil, &EvaluationError{Evaluator: e.Kind(), Cause: err}
	}

	keys, err := toRouteKeys(result)
	if err != nil {
		return nil, &EvaluationError{Evaluator: e.Kind(), Cause: err}
	}
	return keys, nil
}

// exprEnv is the evaluation environment. Payload is left untyped so byte and
// string payloads compile against the same program.
type exprEnv struct {
	Headers map[string]interface{} `expr:"headers"`
	Payload interface{}            `expr:"payload"`
}

func newExprEnv(msg *Message) exprEnv {
	headers := msg.Headers
	if headers == nil {
		headers = map[string]interface{}{}
	}
	return exprEnv{Headers: headers, Payload: msg.Payload}
}
