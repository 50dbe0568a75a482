package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emis/internal/identity"
)

// runContract exercises the identity store contract against b.
func runContract(t *testing.T, b identity.Backend) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("admin", func(t *testing.T) {
		first := identity.Admin{ID: uuid.NewString(), Username: "root", Email: "ops@emis.test", PasswordHash: "h1", CreatedAt: base}
		_, err := b.CreateAdmin(ctx, first)
		require.NoError(t, err)

		_, err = b.CreateAdmin(ctx, identity.Admin{ID: uuid.NewString(), Username: "root", Email: "x@emis.test", PasswordHash: "h", CreatedAt: base})
		assert.ErrorIs(t, err, identity.ErrDuplicate)

		second := identity.Admin{ID: uuid.NewString(), Username: "root2", Email: "ops@emis.test", PasswordHash: "h2", CreatedAt: base.Add(time.Hour)}
		_, err = b.CreateAdmin(ctx, second)
		require.NoError(t, err)

		got, err := b.AdminByUsername(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, "h1", got.PasswordHash)

		got, err = b.AdminByEmail(ctx, "ops@emis.test")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID, "earliest admin wins")

		got, err = b.AdminByID(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, "root2", got.Username)

		_, err = b.AdminByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, identity.ErrNotFound)
		_, err = b.AdminByEmail(ctx, "nobody@emis.test")
		assert.ErrorIs(t, err, identity.ErrNotFound)
		_, err = b.AdminByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, identity.ErrNotFound)
	})

	t.Run("recovery code", func(t *testing.T) {
		a := identity.Admin{ID: uuid.NewString(), Username: "rc", Email: "rc@emis.test", PasswordHash: "old", CreatedAt: base}
		_, err := b.CreateAdmin(ctx, a)
		require.NoError(t, err)

		exp := base.Add(15 * time.Minute)
		require.NoError(t, b.SetRecoveryCode(ctx, a.ID, "123456", exp))
		require.NoError(t, b.SetRecoveryCode(ctx, a.ID, "654321", exp))

		got, err := b.AdminByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "654321", got.RecoveryCode)
		assert.True(t, got.RecoveryCodeExpiry.Equal(exp))

		assert.ErrorIs(t, b.RedeemRecoveryCode(ctx, a.ID, "123456", "new"), identity.ErrCodeMismatch)
		require.NoError(t, b.RedeemRecoveryCode(ctx, a.ID, "654321", "new"))
		assert.ErrorIs(t, b.RedeemRecoveryCode(ctx, a.ID, "654321", "newer"), identity.ErrCodeMismatch)
		assert.ErrorIs(t, b.RedeemRecoveryCode(ctx, a.ID, "", "newer"), identity.ErrCodeMismatch)

		got, err = b.AdminByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.PasswordHash)
		assert.Empty(t, got.RecoveryCode)
		assert.True(t, got.RecoveryCodeExpiry.IsZero())

		assert.ErrorIs(t, b.SetRecoveryCode(ctx, uuid.NewString(), "1", exp), identity.ErrNotFound)
	})

	t.Run("concurrent redeem", func(t *testing.T) {
		a := identity.Admin{ID: uuid.NewString(), Username: "race", Email: "race@emis.test", PasswordHash: "old", CreatedAt: base}
		_, err := b.CreateAdmin(ctx, a)
		require.NoError(t, err)
		require.NoError(t, b.SetRecoveryCode(ctx, a.ID, "111111", base.Add(time.Minute)))

		const n = 8
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			won int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := b.RedeemRecoveryCode(ctx, a.ID, "111111", "h")
				if err == nil {
					mu.Lock()
					won++
					mu.Unlock()
					return
				}
				assert.True(t, errors.Is(err, identity.ErrCodeMismatch), "unexpected error %v", err)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, won)
	})

	t.Run("district head", func(t *testing.T) {
		d := identity.DistrictHead{ID: uuid.NewString(), DistrictID: "D-1", Email: "h@d1.test", PasswordHash: "h", CreatedAt: base}
		_, err := b.CreateDistrictHead(ctx, d)
		require.NoError(t, err)
		_, err = b.CreateDistrictHead(ctx, identity.DistrictHead{ID: uuid.NewString(), DistrictID: "D-1", Email: "h@d1.test", PasswordHash: "x", CreatedAt: base})
		assert.ErrorIs(t, err, identity.ErrDuplicate)

		got, err := b.DistrictHeadByLogin(ctx, "D-1", "h@d1.test")
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)
		_, err = b.DistrictHeadByLogin(ctx, "D-2", "h@d1.test")
		assert.ErrorIs(t, err, identity.ErrNotFound)

		got, err = b.DistrictHeadByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "D-1", got.DistrictID)
	})

	t.Run("principal and teacher", func(t *testing.T) {
		p := identity.Principal{ID: uuid.NewString(), SchoolID: "S-1", Email: "office@s1.test", PasswordHash: "h", CreatedAt: base}
		_, err := b.CreatePrincipal(ctx, p)
		require.NoError(t, err)
		tc := identity.Teacher{ID: uuid.NewString(), SchoolID: "S-1", Email: "office@s1.test", PasswordHash: "h", CreatedAt: base}
		_, err = b.CreateTeacher(ctx, tc)
		require.NoError(t, err, "teacher and principal keys are independent")

		gotP, err := b.PrincipalByLogin(ctx, "S-1", "office@s1.test")
		require.NoError(t, err)
		assert.Equal(t, p.ID, gotP.ID)
		gotT, err := b.TeacherByLogin(ctx, "S-1", "office@s1.test")
		require.NoError(t, err)
		assert.Equal(t, tc.ID, gotT.ID)

		_, err = b.PrincipalByID(ctx, tc.ID)
		assert.ErrorIs(t, err, identity.ErrNotFound)
		_, err = b.TeacherByID(ctx, tc.ID)
		assert.NoError(t, err)
		_, err = b.CreateTeacher(ctx, identity.Teacher{ID: uuid.NewString(), SchoolID: "S-1", Email: "office@s1.test", PasswordHash: "h", CreatedAt: base})
		assert.ErrorIs(t, err, identity.ErrDuplicate)
	})

	t.Run("parent", func(t *testing.T) {
		par := identity.Parent{ID: uuid.NewString(), Email: "a@b.com", DateOfBirth: "2001-01-01", CreatedAt: base}
		_, err := b.CreateParent(ctx, par)
		require.NoError(t, err)

		got, err := b.ParentByLogin(ctx, "a@b.com", "2001-01-01")
		require.NoError(t, err)
		assert.Equal(t, par.ID, got.ID)
		assert.Equal(t, "2001-01-01", got.DateOfBirth)

		_, err = b.ParentByLogin(ctx, "a@b.com", "2001-01-02")
		assert.ErrorIs(t, err, identity.ErrNotFound)

		got, err = b.ParentByID(ctx, par.ID)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", got.Email)
	})
}

func TestMemoryContract(t *testing.T) {
	runContract(t, NewMemory())
}
