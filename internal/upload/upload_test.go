package upload

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		want    string
		wantErr error
	}{
		{"plain text", File{Name: "notes.txt", Data: []byte("Paris is the capital of France.")}, "Paris is the capital of France.", nil},
		{"upper case extension", File{Name: "NOTES.TXT", Data: []byte("hi")}, "hi", nil},
		{"byte order mark stripped", File{Name: "bom.txt", Data: append([]byte{0xEF, 0xBB, 0xBF}, "héllo"...)}, "héllo", nil},
		{"pdf rejected", File{Name: "image.pdf", Data: []byte("%PDF-1.4")}, "", ErrUnsupportedType},
		{"no extension", File{Name: "README", Data: []byte("x")}, "", ErrUnsupportedType},
		{"invalid utf8", File{Name: "latin1.txt", Data: []byte{0x66, 0xff, 0xfe, 0x6f}}, "", ErrInvalidEncoding},
		{"blank", File{Name: "empty.txt", Data: []byte(" \n")}, "", ErrEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(tt.file)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.ErrorIs(t, err, ErrRejected)
				require.Contains(t, err.Error(), tt.file.Name)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, doc.Text)
			require.Equal(t, tt.file.Name, doc.SourceName)
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	f, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "notes.txt", f.Name)
	require.Equal(t, []byte("hello"), f.Data)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestInbox_DeliversDebouncedBatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IgnoreFile), []byte("*.log\n"), 0o644))

	var mu sync.Mutex
	var got []File
	delivered := make(chan struct{}, 4)
	in, err := NewInbox(dir, func(files []File) {
		mu.Lock()
		got = append(got, files...)
		mu.Unlock()
		delivered <- struct{}{}
	})
	require.NoError(t, err)
	in.SetDebounce(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "debug.log"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("ignored"), 0o644))

	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	require.Equal(t, "a.txt", got[0].Name)
	require.Equal(t, "first", string(got[0].Data))
	require.Equal(t, "b.txt", got[1].Name)
}
