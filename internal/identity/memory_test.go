package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "roster/pkg/domain-errors"
)

func TestInMemoryProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent creates for one email yield one account", func(t *testing.T) {
		p := NewInMemory()
		const workers = 16
		var wg sync.WaitGroup
		var ok, conflict atomic.Int32
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := p.CreateAccount(ctx, "race@example.com", "Race", "member")
				switch {
				case err == nil:
					ok.Add(1)
				case dErrors.HasCode(err, dErrors.CodeConflict):
					conflict.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), ok.Load())
		assert.Equal(t, int32(workers-1), conflict.Load())
		assert.Equal(t, 1, p.Len())
	})

	t.Run("disable and enable toggle the flag", func(t *testing.T) {
		p := NewInMemory()
		created, err := p.CreateAccount(ctx, "ada@example.com", "Ada", "member")
		require.NoError(t, err)

		require.NoError(t, p.SetDisabled(ctx, created.AccountID, true, ReasonMemberRemoved))
		account, err := p.GetAccount(ctx, created.AccountID)
		require.NoError(t, err)
		assert.True(t, account.Disabled)
		assert.NotNil(t, account.DisabledAt)

		require.NoError(t, p.SetDisabled(ctx, created.AccountID, false, ReasonMemberRestored))
		account, err = p.GetAccount(ctx, created.AccountID)
		require.NoError(t, err)
		assert.False(t, account.Disabled)
		assert.Nil(t, account.DisabledAt)
	})

	t.Run("injected failures surface and can be cleared", func(t *testing.T) {
		p := NewInMemory()
		boom := errors.New("boom")
		p.Fail(OpCreate, boom)
		_, err := p.CreateAccount(ctx, "ada@example.com", "Ada", "member")
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, p.Calls(OpCreate))

		p.Fail(OpCreate, nil)
		_, err = p.CreateAccount(ctx, "ada@example.com", "Ada", "member")
		require.NoError(t, err)
	})

	t.Run("delete of a missing account succeeds", func(t *testing.T) {
		p := NewInMemory()
		require.NoError(t, p.DeleteAccount(ctx, "missing"))
	})

	t.Run("pages in insertion order", func(t *testing.T) {
		p := NewInMemory(WithPageSize(2))
		for _, email := range []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io", "e@x.io"} {
			_, err := p.CreateAccount(ctx, email, "", "member")
			require.NoError(t, err)
		}
		all, err := DrainAccounts(ctx, p)
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.Equal(t, "a@x.io", all[0].Email)
		assert.Equal(t, "e@x.io", all[4].Email)
	})
}
