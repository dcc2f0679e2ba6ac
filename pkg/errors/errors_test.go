package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/keysync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "run",
			ID:       "0191",
		}
		assert.Equal(t, "run with ID 0191 not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("master key", "K9")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Field:   "checkpoint_interval",
			Message: "must be positive",
		}
		assert.Equal(t, "validation failed for field checkpoint_interval: must be positive", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "invalid configuration"}
		assert.Equal(t, "validation failed: invalid configuration", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})
}

func TestInvalidKeyError(t *testing.T) {
	missing := pkgerrors.NewInvalidKeyError("", pkgerrors.KeyMissing)
	empty := pkgerrors.NewInvalidKeyError("", pkgerrors.KeyEmpty)
	blank := pkgerrors.NewInvalidKeyError("@@", pkgerrors.KeyBlank)

	assert.Equal(t, "invalid key: missing", missing.Error())
	assert.Equal(t, "invalid key: empty", empty.Error())
	assert.Equal(t, `invalid key "@@": normalizes to empty`, blank.Error())
	assert.NotEqual(t, missing.Reason, empty.Reason)

	for _, err := range []error{missing, empty, blank} {
		assert.True(t, pkgerrors.IsInvalidKey(err))
		assert.False(t, pkgerrors.IsValidationError(err))
	}
}

func TestSystemUnavailableError(t *testing.T) {
	cause := pkgerrors.NewIOError("open", "input/B.csv", errors.New("no such file"))
	err := pkgerrors.NewSystemUnavailableError("B", cause)

	assert.Equal(t, "system B unavailable: IO error during open of input/B.csv: no such file", err.Error())
	assert.True(t, pkgerrors.IsSystemUnavailable(err))

	var ioErr *pkgerrors.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "input/B.csv", ioErr.Path)

	bare := &pkgerrors.SystemUnavailableError{System: "C"}
	assert.Equal(t, "system C unavailable", bare.Error())
}

func TestRowCorruptionError(t *testing.T) {
	err := pkgerrors.NewRowCorruptionError("D", 12, errors.New("wrong number of fields"))
	assert.Equal(t, "corrupt row in system D at line 12: wrong number of fields", err.Error())
	assert.True(t, pkgerrors.IsRowCorrupted(err))

	noLine := pkgerrors.NewRowCorruptionError("D", 0, pkgerrors.NewInvalidKeyError("", pkgerrors.KeyEmpty))
	assert.Equal(t, "corrupt row in system D: invalid key: empty", noLine.Error())
	assert.True(t, pkgerrors.IsInvalidKey(noLine), "row error should unwrap to its cause")
}

func TestInvalidStateTransitionError(t *testing.T) {
	err := &pkgerrors.InvalidStateTransitionError{MasterKey: "K9", From: "active", To: "active"}
	assert.Equal(t, "master key K9 cannot move from active to active", err.Error())
	assert.True(t, pkgerrors.IsInvalidTransition(err))
}

func TestCheckpointResumeError(t *testing.T) {
	err := pkgerrors.NewCheckpointResumeError("run-1", "plan fingerprint changed", nil)
	assert.Equal(t, "cannot resume run run-1: plan fingerprint changed", err.Error())
	assert.True(t, pkgerrors.IsCheckpointError(err))
}

func TestPersistenceWriteError(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := pkgerrors.WrapPersistence("commit checkpoint", "run-1", 200, cause)
	assert.Equal(t, "persistence write failed during commit checkpoint (run run-1, offset 200): disk I/O error", err.Error())
	assert.True(t, pkgerrors.IsPersistenceError(err))
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, pkgerrors.WrapPersistence("commit", "", 0, nil))
}

func TestLockedError(t *testing.T) {
	err := &pkgerrors.LockedError{Store: "/tmp/keysync.db", Owner: "run-7"}
	assert.Equal(t, "store /tmp/keysync.db is locked by run run-7", err.Error())
	assert.True(t, pkgerrors.IsLocked(err))
}

func TestConfigError(t *testing.T) {
	cause := errors.New("unknown strategy")
	err := pkgerrors.NewConfigError("provisioning", "bad strategy", cause)
	assert.Equal(t, "configuration error in provisioning: bad strategy", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, pkgerrors.IsConfigError(err))
	assert.False(t, pkgerrors.IsConfigError(cause))

	field := pkgerrors.NewValidationError("mode", "partial", "must be full or incremental")
	wrapped := pkgerrors.NewConfigError("reconciler", field.Error(), field)
	assert.True(t, pkgerrors.IsValidationError(wrapped))

	noComponent := &pkgerrors.ConfigError{Message: "empty"}
	assert.Equal(t, "configuration error: empty", noComponent.Error())
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name string
		err  *pkgerrors.ParseError
		want string
	}{
		{
			name: "file and line",
			err:  &pkgerrors.ParseError{Format: "csv", File: "A.csv", Line: 3, Message: "bare quote"},
			want: "parse error in csv at A.csv:3: bare quote",
		},
		{
			name: "file only",
			err:  &pkgerrors.ParseError{Format: "yaml", File: "B.yaml", Message: "bad indent"},
			want: "parse error in yaml file B.yaml: bad indent",
		},
		{
			name: "no file",
			err:  &pkgerrors.ParseError{Format: "json", Message: "unexpected EOF"},
			want: "json parse error: unexpected EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestResourceError(t *testing.T) {
	err := pkgerrors.NewResourceError("load", "snapshot", "run-1", errors.New("checksum mismatch"))
	assert.Equal(t, "failed to load snapshot run-1: checksum mismatch", err.Error())

	noID := pkgerrors.NewResourceError("open", "store", "", errors.New("readonly"))
	assert.Equal(t, "failed to open store: readonly", noID.Error())
}

func TestTimeoutError(t *testing.T) {
	err := pkgerrors.NewTimeoutError("extract B", "2m0s", "deadline exceeded")
	assert.Equal(t, "operation extract B timed out after 2m0s: deadline exceeded", err.Error())
	assert.True(t, pkgerrors.IsTimeout(err))
}

func TestWrapHelpers(t *testing.T) {
	base := errors.New("boom")

	assert.Nil(t, pkgerrors.WrapIO("read", "x", nil))
	assert.Nil(t, pkgerrors.WrapResource("load", "run", "1", nil))
	assert.Nil(t, pkgerrors.WrapParse("csv", "A.csv", nil))
	assert.Nil(t, pkgerrors.WrapValidation("mode", nil))

	assert.ErrorIs(t, pkgerrors.WrapIO("read", "x", base), base)
	assert.ErrorIs(t, pkgerrors.WrapResource("load", "run", "1", base), base)
	assert.ErrorIs(t, pkgerrors.WrapParse("csv", "A.csv", base), base)
	assert.True(t, pkgerrors.IsValidationError(pkgerrors.WrapValidation("mode", base)))

	wrapped := fmt.Errorf("run: %w", pkgerrors.NewSystemUnavailableError("A", base))
	assert.True(t, pkgerrors.IsSystemUnavailable(wrapped))
}

func TestIsCorrupted(t *testing.T) {
	err := pkgerrors.NewResourceError("decode", "snapshot", "run-1", pkgerrors.ErrCorrupted)
	assert.True(t, pkgerrors.IsCorrupted(err))
	assert.False(t, pkgerrors.IsCorrupted(errors.New("other")))
}
