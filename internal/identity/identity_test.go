package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestUnavailable_AllOperationsReportUnavailable(t *testing.T) {
	u := Unavailable{Reason: errors.New("service-account.json missing")}
	ctx := context.Background()

	assert.False(t, u.Available())

	_, err := u.GetUserByEmail(ctx, "a@b.com")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorContains(t, err, "service-account.json missing")
	assert.ErrorIs(t, u.UpdatePassword(ctx, "uid", "pw"), ErrUnavailable)
	assert.ErrorIs(t, u.DeleteUser(ctx, "uid"), ErrUnavailable)
}

func TestUnavailable_ZeroValue(t *testing.T) {
	err := Unavailable{}.DeleteUser(context.Background(), "uid")
	assert.Equal(t, ErrUnavailable, err)
}

func TestOpen_MissingCredentialsDegrades(t *testing.T) {
	p := Open(context.Background(), t.TempDir()+"/absent.json", zaptest.NewLogger(t))
	require.NotNil(t, p)
	assert.False(t, p.Available())
	assert.ErrorIs(t, p.DeleteUser(context.Background(), "x"), ErrUnavailable)
}
