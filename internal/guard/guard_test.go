package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mergeguard.dev/mergeguard/internal/config"
	mgerrors "mergeguard.dev/mergeguard/internal/errors"
)

func TestAuthorize_DefaultSet(t *testing.T) {
	g := New(config.DefaultProtectedBranches)

	for _, name := range []string{"pre", "prod", "production", "master-prod", "pre-prod"} {
		err := g.Authorize(name)
		assert.ErrorIs(t, err, mgerrors.ErrProtectedBranch, name)
	}

	for _, name := range []string{"main", "dev", "test", "PROD", "Prod", "prod2", "pre-production"} {
		assert.NoError(t, g.Authorize(name), name)
	}
}

func TestAuthorize_ErrorNamesBranch(t *testing.T) {
	err := New([]string{"release"}).Authorize("release")

	var pbErr *mgerrors.ProtectedBranchError
	assert.ErrorAs(t, err, &pbErr)
	assert.Equal(t, "release", pbErr.BranchName)
}

func TestNames(t *testing.T) {
	g := New([]string{"prod", "pre", "prod"})
	assert.Equal(t, []string{"pre", "prod"}, g.Names())
	assert.Empty(t, New(nil).Names())
}
