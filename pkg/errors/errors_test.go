package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/crosscheckhq/crosscheck/pkg/errors"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestConfigError(t *testing.T) {
	t.Run("with component", func(t *testing.T) {
		err := &pkgerrors.ConfigError{
			Component: "rule R001",
			Message:   "between bounds are inverted",
		}
		assert.Equal(t, "configuration error in rule R001: between bounds are inverted", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without component", func(t *testing.T) {
		err := &pkgerrors.ConfigError{Message: "no rules configured"}
		assert.Equal(t, "configuration error: no rules configured", err.Error())
		assert.True(t, pkgerrors.IsConfig(err))
	})

	t.Run("constructor preserves cause", func(t *testing.T) {
		cause := errors.New("bad tolerance")
		err := pkgerrors.NewConfigError("rule R002", "malformed tolerance", cause)
		assert.True(t, errors.Is(err, cause))
	})
}

func TestColumnError(t *testing.T) {
	t.Run("lists available columns", func(t *testing.T) {
		err := pkgerrors.NewColumnError("amount", "source1", []string{"id", "total"})
		assert.Equal(t, `column "amount" not found in dataset "source1" (available: id, total)`, err.Error())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("no available columns", func(t *testing.T) {
		err := pkgerrors.NewColumnError("amount", "source1", nil)
		assert.Equal(t, `column "amount" not found in dataset "source1"`, err.Error())
	})
}

func TestCoercionError(t *testing.T) {
	err := pkgerrors.NewCoercionError("abc", "number", nil)
	assert.Equal(t, `cannot coerce "abc" to number`, err.Error())
	assert.True(t, pkgerrors.IsCoercion(err))
	assert.True(t, errors.Is(err, pkgerrors.ErrCoercion))
}

func TestRuleError(t *testing.T) {
	t.Run("with stage", func(t *testing.T) {
		cause := errors.New("boom")
		err := pkgerrors.NewRuleError("V001", "validation", cause)
		assert.Equal(t, "validation rule V001 failed: boom", err.Error())
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("wrap nil returns nil", func(t *testing.T) {
		assert.NoError(t, pkgerrors.WrapRule("V001", "validation", nil))
	})

	t.Run("unwraps to sentinel", func(t *testing.T) {
		err := pkgerrors.WrapRule("R001", "reconciliation", pkgerrors.ErrUnknownCheck)
		assert.True(t, pkgerrors.IsUnknownCheck(err))
	})
}

func TestParseError(t *testing.T) {
	t.Run("with file and line", func(t *testing.T) {
		err := &pkgerrors.ParseError{
			Format:  "csv",
			File:    "source1.csv",
			Line:    12,
			Message: "wrong field count",
		}
		assert.Equal(t, "parse error in csv at source1.csv:12: wrong field count", err.Error())
	})

	t.Run("format only", func(t *testing.T) {
		err := pkgerrors.NewParseError("regex", "", "missing closing bracket", nil)
		assert.Equal(t, "regex parse error: missing closing bracket", err.Error())
	})
}

func TestIOError(t *testing.T) {
	cause := errors.New("permission denied")
	err := pkgerrors.NewIOError("write", "/tmp/report.yaml", cause)
	assert.Equal(t, "IO error during write of /tmp/report.yaml: permission denied", err.Error())
	assert.True(t, errors.Is(err, cause))

	assert.NoError(t, pkgerrors.WrapIO("read", "x", nil))
	assert.Error(t, pkgerrors.WrapIO("read", "x", cause))
}
