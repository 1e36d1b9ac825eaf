package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"webmarcas-backend/internal/opentimestamps"
)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Event is one call to RecordingPublisher.Publish.
type Event struct {
	RegistroID uuid.UUID
	UserID     uuid.UUID
	Name       string
	Payload    map[string]any
}

type RecordingPublisher struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, registroID, userID uuid.UUID, event string, payload map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{RegistroID: registroID, UserID: userID, Name: event, Payload: payload})
	return p.Err
}

func (p *RecordingPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.events))
	for i, e := range p.events {
		names[i] = e.Name
	}
	return names
}

// FakeStamper answers every digest with Response, or fails with Err.
type FakeStamper struct {
	mu       sync.Mutex
	Response []byte
	Err      error
	Digests  [][]byte
}

func (f *FakeStamper) Stamp(_ context.Context, digest []byte) (*opentimestamps.Stamp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Digests = append(f.Digests, digest)
	if f.Err != nil {
		return nil, f.Err
	}
	return &opentimestamps.Stamp{Calendar: "https://calendar.test", Digest: digest, Response: f.Response}, nil
}

// FakeUploader keeps uploaded proofs in memory and serves them back.
type FakeUploader struct {
	mu     sync.Mutex
	Proofs map[uuid.UUID][]byte
	Err    error
}

func (f *FakeUploader) UploadProof(_ context.Context, userID, registroID uuid.UUID, proof []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	if f.Proofs == nil {
		f.Proofs = map[uuid.UUID][]byte{}
	}
	f.Proofs[registroID] = proof
	return "https://storage.test/proofs/" + userID.String() + "/" + registroID.String() + ".ots", nil
}

func (f *FakeUploader) DownloadProof(_ context.Context, _, registroID uuid.UUID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	proof, ok := f.Proofs[registroID]
	if !ok {
		return nil, fmt.Errorf("proof %s not stored", registroID)
	}
	return proof, nil
}
