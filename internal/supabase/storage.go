package supabase

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
	"webmarcas-backend/internal/opentimestamps"
)

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	if supabaseURL == "" || serviceRoleKey == "" {
		return nil, fmt.Errorf("supabase url and service role key are required for storage")
	}
	baseURL := strings.TrimRight(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// ProofPath is the object path of a registro's .ots proof.
func ProofPath(userID, registroID uuid.UUID) string {
	return fmt.Sprintf("proofs/%s/%s.ots", userID.String(), registroID.String())
}

// UploadProof stores the proof, overwriting a previous attempt's file, and
// returns its public URL.
func (s *StorageClient) UploadProof(ctx context.Context, userID, registroID uuid.UUID, proof []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	storagePath := ProofPath(userID, registroID)
	contentType := opentimestamps.ProofContentType
	upsert := true
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(proof), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload proof: %w", err)
	}

	return s.GetPublicURL(storagePath), nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) DownloadProof(ctx context.Context, userID, registroID uuid.UUID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.client.DownloadFile(s.bucket, ProofPath(userID, registroID))
	if err != nil {
		return nil, fmt.Errorf("failed to download proof: %w", err)
	}
	return data, nil
}
