package opentimestamps_test

import (
	"context"
	"crypto/sha256"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"webmarcas-backend/internal/opentimestamps"
)

func noWait() opentimestamps.Option {
	return opentimestamps.WithBackoffs(0, 0, 0)
}

func TestClient_RetryWithBackoff(t *testing.T) {
	client := opentimestamps.NewClient([]string{"https://cal.test"}, time.Second, noWait())

	callCount := 0
	err := client.RetryWithBackoff(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return assert.AnError
		}
		return nil
	}, 3)

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestClient_RetryWithBackoff_Exhausted(t *testing.T) {
	client := opentimestamps.NewClient([]string{"https://cal.test"}, time.Second, noWait())

	err := client.RetryWithBackoff(context.Background(), func() error {
		return assert.AnError
	}, 3)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestClient_RetryWithBackoff_StopsOnCancel(t *testing.T) {
	client := opentimestamps.NewClient([]string{"https://cal.test"}, time.Second,
		opentimestamps.WithBackoffs(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.RetryWithBackoff(ctx, func() error { return assert.AnError }, 3)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Stamp(t *testing.T) {
	digest := sha256.Sum256([]byte("webmarcas"))
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/digest", r.URL.Path)
		assert.Equal(t, "application/vnd.opentimestamps.v1", r.Header.Get("Accept"))
		received, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte{0xf0, 0x10, 0xaa})
	}))
	defer srv.Close()

	client := opentimestamps.NewClient([]string{srv.URL + "/"}, time.Second, noWait())

	stamp, err := client.Stamp(context.Background(), digest[:])
	require.NoError(t, err)

	assert.Equal(t, digest[:], received)
	assert.Equal(t, srv.URL+"/", stamp.Calendar)
	assert.Equal(t, []byte{0xf0, 0x10, 0xaa}, stamp.Response)
}

func TestClient_Stamp_FallsBackToNextCalendar(t *testing.T) {
	digest := sha256.Sum256([]byte("fallback"))
	var downCalls int32
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&downCalls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0x00})
	}))
	defer up.Close()

	client := opentimestamps.NewClient([]string{down.URL, up.URL}, time.Second, noWait())

	stamp, err := client.Stamp(context.Background(), digest[:])
	require.NoError(t, err)

	assert.Equal(t, up.URL, stamp.Calendar)
	assert.Equal(t, int32(3), atomic.LoadInt32(&downCalls))
}

func TestClient_Stamp_ClientErrorIsNotRetried(t *testing.T) {
	digest := sha256.Sum256([]byte("bad"))
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad digest", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := opentimestamps.NewClient([]string{srv.URL}, time.Second, noWait())

	_, err := client.Stamp(context.Background(), digest[:])
	require.Error(t, err)

	assert.Contains(t, err.Error(), "all calendars failed")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Stamp_RejectsShortDigest(t *testing.T) {
	client := opentimestamps.NewClient([]string{"https://cal.test"}, time.Second)

	_, err := client.Stamp(context.Background(), []byte{1, 2, 3})

	assert.Error(t, err)
}

func TestStamp_Proof(t *testing.T) {
	digest := sha256.Sum256([]byte("proof"))
	stamp := &opentimestamps.Stamp{Digest: digest[:], Response: []byte{0xf0, 0x01}}

	proof := stamp.Proof()

	require.True(t, opentimestamps.IsProof(proof))
	tail := proof[len(proof)-(2+32+2):]
	assert.Equal(t, byte(0x01), tail[0])
	assert.Equal(t, byte(0x08), tail[1])
	assert.Equal(t, digest[:], tail[2:34])
	assert.Equal(t, []byte{0xf0, 0x01}, tail[34:])
}
