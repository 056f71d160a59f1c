package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plerr "github.com/hexpat-lang/hexpat/core/errors"
)

func TestLogLevels(t *testing.T) {
	c := New()
	c.Log(Debug, "d")
	c.Logf(Info, "i %d", 1)
	c.Log(Warning, "w")
	c.Log(Error, "e")

	msgs := c.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, Message{Level: Info, Text: "i 1"}, msgs[1])
	assert.Equal(t, "warning", msgs[2].Level.String())
}

func TestHardError(t *testing.T) {
	c := New()
	assert.Nil(t, c.LastHardError())

	c.SetHardError(plerr.New(plerr.StageEvaluator, 3, "division by zero"))

	err := c.LastHardError()
	require.NotNil(t, err)
	assert.Equal(t, uint32(3), err.Line)
	assert.Contains(t, err.Message, "Evaluator: division by zero")

	// The hard error is mirrored into the log.
	msgs := c.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, Error, msgs[len(msgs)-1].Level)
}

func TestClear(t *testing.T) {
	c := New()
	c.Log(Info, "x")
	c.SetHardError(plerr.New(plerr.StageLexer, 1, "bad"))

	c.Clear()
	assert.Empty(t, c.Messages())
	assert.Nil(t, c.LastHardError())
}
