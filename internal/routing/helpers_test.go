package routing

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingEndpoint struct {
	mu       sync.Mutex
	messages []*Message
	err      error
}

func (e *recordingEndpoint) Send(_ context.Context, msg *Message) error {
	if e.err != nil {
		return e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
	return nil
}

func (e *recordingEndpoint) received() []*Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// recordingFactory creates recordingEndpoints and counts creations per name
type recordingFactory struct {
	mu           sync.Mutex
	endpoints    map[string]*recordingEndpoint
	creations    map[string]int
	sendErrors   map[string]error
	createErrors map[string]error
	delay        time.Duration
}

func newRecordingFactory() *recordingFactory {
	return &recordingFactory{
		endpoints:    make(map[string]*recordingEndpoint),
		creations:    make(map[string]int),
		sendErrors:   make(map[string]error),
		createErrors: make(map[string]error),
	}
}

func (f *recordingFactory) CreateEndpoint(_ context.Context, name string) (Endpoint, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.creations[name]++
	if err := f.createErrors[name]; err != nil {
		return nil, err
	}
	endpoint := &recordingEndpoint{err: f.sendErrors[name]}
	f.endpoints[name] = endpoint
	return endpoint, nil
}

func (f *recordingFactory) messages(name string) []*Message {
	f.mu.Lock()
	endpoint := f.endpoints[name]
	f.mu.Unlock()
	if endpoint == nil {
		return nil
	}
	return endpoint.received()
}

func (f *recordingFactory) created(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creations[name]
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// replaceFile swaps content in with a rename so a concurrent reader never sees a partial file
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}
