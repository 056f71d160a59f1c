package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStagePrefix(t *testing.T) {
	err := New(StageLexer, 7, "unexpected character '`'")
	assert.Equal(t, uint32(7), err.Line)
	assert.Equal(t, "Lexer: unexpected character '`'", err.Message)
	assert.Equal(t, "Lexer: unexpected character '`' (line 7)", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(StageEvaluator, 12, "division by %s", "zero")
	assert.Equal(t, "Evaluator: division by zero", err.Message)
}

func TestLineZeroOmitted(t *testing.T) {
	err := New(StageEvaluator, 0, "non-success value returned from main: 1")
	assert.Equal(t, "Evaluator: non-success value returned from main: 1", err.Error())
}
