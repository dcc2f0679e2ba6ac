package unlock_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/keysync/cmd/keysync/cmd/unlock"
	"github.com/agentstation/keysync/internal/appcontext"
	"github.com/agentstation/keysync/pkg/errors"
)

func execute(app appcontext.Interface) (string, error) {
	cmd := unlock.NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	cmd.SetArgs(nil)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUnlock(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		err   error
		want  string
	}{
		{name: "not locked", want: "Store was not locked.\n"},
		{name: "stale lock", owner: "0198c0de", want: "Released lock held by 0198c0de\n"},
		{name: "store error", err: errors.NewIOError("unlock", "keysync.db", io.ErrUnexpectedEOF)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &appcontext.Mock{
				ForceUnlockFunc: func(context.Context) (string, error) { return tt.owner, tt.err },
			}
			out, err := execute(app)
			if tt.err != nil {
				assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}
