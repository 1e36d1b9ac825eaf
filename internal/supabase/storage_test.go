package supabase

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageClient_RequiresCredentials(t *testing.T) {
	_, err := NewStorageClient("https://project.supabase.co", "", "proofs")
	assert.Error(t, err)
}

func TestStorageClient_GetPublicURL(t *testing.T) {
	client, err := NewStorageClient("https://project.supabase.co/", "service-key", "proofs")
	require.NoError(t, err)

	url := client.GetPublicURL("proofs/u/r.ots")

	assert.Equal(t, "https://project.supabase.co/storage/v1/object/public/proofs/proofs/u/r.ots", url)
}

func TestProofPathFormat(t *testing.T) {
	userID := uuid.New()
	registroID := uuid.New()

	path := ProofPath(userID, registroID)

	assert.Equal(t, "proofs/"+userID.String()+"/"+registroID.String()+".ots", path)
}
