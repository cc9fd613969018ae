package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "message-router/internal/common/errors"
)

func TestToRouteKeys(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    []string
		wantErr bool
	}{
		{name: "nil", value: nil, want: nil},
		{name: "string", value: "foo", want: []string{"foo"}},
		{name: "blank string", value: "  ", want: nil},
		{name: "trimmed", value: " foo ", want: []string{"foo"}},
		{name: "bytes", value: []byte("foo"), want: []string{"foo"}},
		{name: "int", value: 42, want: []string{"42"}},
		{name: "float", value: 1.5, want: []string{"1.5"}},
		{name: "whole float", value: float64(3), want: []string{"3"}},
		{name: "bool", value: true, want: []string{"true"}},
		{name: "string slice", value: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "mixed slice", value: []interface{}{"a", nil, 2, ""}, want: []string{"a", "2"}},
		{name: "array", value: [2]string{"x", "y"}, want: []string{"x", "y"}},
		{name: "empty slice", value: []string{}, want: []string{}},
		{name: "map", value: map[string]interface{}{"a": 1}, wantErr: true},
		{name: "struct", value: struct{ A int }{1}, wantErr: true},
		{name: "nested slice", value: []interface{}{[]string{"a"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toRouteKeys(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpressionEvaluator(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		msg        *Message
		want       []string
	}{
		{
			name: "default expression reads routeTo",
			msg:  NewMessage("x", map[string]interface{}{"routeTo": "orders"}),
			want: []string{"orders"},
		},
		{
			name: "missing header is no route",
			msg:  NewMessage("x", nil),
			want: nil,
		},
		{
			name:       "payload is addressable",
			expression: "payload == 'ping' ? 'pong' : 'other'",
			msg:        NewMessage("ping", nil),
			want:       []string{"pong"},
		},
		{
			name:       "list fans out",
			expression: "['a', 'b', headers['extra']]",
			msg:        NewMessage("x", map[string]interface{}{"extra": "c"}),
			want:       []string{"a", "b", "c"},
		},
		{
			name:       "split header fans out",
			expression: "split(headers['routes'], ',')",
			msg:        NewMessage("x", map[string]interface{}{"routes": "a,b"}),
			want:       []string{"a", "b"},
		},
		{
			name:       "number result",
			expression: "headers['priority'] + 1",
			msg:        NewMessage("x", map[string]interface{}{"priority": 1}),
			want:       []string{"2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, err := NewExpressionEvaluator(tt.expression)
			require.NoError(t, err)
			assert.Equal(t, "expression", evaluator.Kind())

			got, err := evaluator.Evaluate(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpressionEvaluator_DefaultExpression(t *testing.T) {
	evaluator, err := NewExpressionEvaluator("")
	require.NoError(t, err)
	assert.Equal(t, DefaultExpression, evaluator.Expression())
}

func TestExpressionEvaluator_CompileError(t *testing.T) {
	_, err := NewExpressionEvaluator("headers[")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestExpressionEvaluator_EvaluationErrors(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		headers    map[string]interface{}
	}{
		{name: "runtime failure", expression: "int(headers['n'])", headers: map[string]interface{}{"n": "abc"}},
		{name: "uncoercible result", expression: "{'a': 1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, err := NewExpressionEvaluator(tt.expression)
			require.NoError(t, err)

			_, err = evaluator.Evaluate(NewMessage("x", tt.headers))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEvaluation)

			var evalErr *EvaluationError
			require.True(t, errors.As(err, &evalErr))
			assert.Equal(t, "expression", evalErr.Evaluator)
		})
	}
}
