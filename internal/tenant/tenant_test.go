package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_Missing(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrMissingTenant)
}

func TestFromContext_RoundTrip(t *testing.T) {
	ctx := NewContext(context.Background(), &Info{TenantID: "org-123"})

	info, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "org-123", info.TenantID)
}

func TestFromContext_InvalidTenant(t *testing.T) {
	ctx := NewContext(context.Background(), &Info{})

	_, err := FromContext(ctx)
	assert.ErrorIs(t, err, ErrInvalidTenant)
}

func TestInfo_Metadata(t *testing.T) {
	info := &Info{TenantID: "org-9"}
	assert.Equal(t, map[string]interface{}{"tenant_id": "org-9"}, info.Metadata())
}
