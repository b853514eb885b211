package chat

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/set-night/visionchat/internal/backend"
	"github.com/set-night/visionchat/internal/domain"
	"github.com/set-night/visionchat/internal/events"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngFile(name string) domain.ImageFile {
	return domain.ImageFile{Name: name, MIMEType: "image/png", Data: pngData}
}

type fakeBackend struct {
	mu         sync.Mutex
	history    map[string][]domain.MessageRecord
	historyErr error
	roomReply  *backend.RoomReply
	reasons    []backend.ReasonReply
	sendErr    error
	endErr     error
	block      chan struct{}

	calls []string
	turns []backend.TurnRequest
	ended []string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) wait(ctx context.Context) error {
	if f.block == nil {
		return nil
	}
	select {
	case <-f.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) History(ctx context.Context, roomID string) ([]domain.MessageRecord, error) {
	f.record("history:" + roomID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[roomID], nil
}

func (f *fakeBackend) SendRoomMessage(ctx context.Context, roomID string, turn backend.TurnRequest) (backend.RoomReply, error) {
	f.record("send:" + roomID)
	if err := f.wait(ctx); err != nil {
		return backend.RoomReply{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
	if f.sendErr != nil {
		return backend.RoomReply{}, f.sendErr
	}
	if f.roomReply != nil {
		return *f.roomReply, nil
	}
	return backend.RoomReply{
		UserMessage:      &domain.MessageRecord{ID: "u-srv", Role: "user", Content: turn.Prompt},
		AssistantMessage: &domain.MessageRecord{ID: domain.FlexID(fmt.Sprintf("a-%d", len(f.turns))), Role: "assistant", Content: "reply to " + turn.Prompt},
	}, nil
}

func (f *fakeBackend) Reason(ctx context.Context, turn backend.TurnRequest) (backend.ReasonReply, error) {
	f.record("reason")
	if err := f.wait(ctx); err != nil {
		return backend.ReasonReply{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
	if f.sendErr != nil {
		return backend.ReasonReply{}, f.sendErr
	}
	if len(f.reasons) == 0 {
		return backend.ReasonReply{LLMResponse: "ok", Model: turn.Model}, nil
	}
	r := f.reasons[0]
	f.reasons = f.reasons[1:]
	return r, nil
}

func (f *fakeBackend) EndReasoning(ctx context.Context, sessionID string) error {
	f.record("end:" + sessionID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID)
	return f.endErr
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Turns() []backend.TurnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.TurnRequest(nil), f.turns...)
}

func (f *fakeBackend) Ended() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ended...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, msg events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, e := range p.events {
		types = append(types, e.Meta.Type)
	}
	return types
}

func newTestOrchestrator(t *testing.T, fb *fakeBackend, mode domain.Mode) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	o := New(fb, Options{
		Mode:         mode,
		Model:        "normal",
		ResolveModel: resolveTestModel,
		PreviewDir:   dir,
	})
	t.Cleanup(func() { o.Close(context.Background()) })
	return o, dir
}

func resolveTestModel(name string) string {
	if name == "normal" {
		return "qwen3-vl:8b"
	}
	return name
}

func previewCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}
