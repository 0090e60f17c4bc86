package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewEncrypted(NewMemoryKV())

	want := sampleFlags()
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestEncryptedPayloadIsOpaque(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := NewEncrypted(kv)
	require.NoError(t, s.Save(ctx, sampleFlags()))

	stored, err := kv.Get(ctx, flagsKey)
	require.NoError(t, err)
	for _, fragment := range []string{"full_access_granted", "gambling", "v1|ads=13", "1.2.0"} {
		assert.NotContains(t, stored, fragment)
	}
}

func TestEncryptedLoadMissing(t *testing.T) {
	got, err := NewEncrypted(NewMemoryKV()).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEncryptedTamperedPayloadIsAMiss(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := NewEncrypted(kv)
	require.NoError(t, s.Save(ctx, sampleFlags()))

	for name, mutate := range map[string]func(string) string{
		"not base64":    func(string) string { return "%%%" },
		"truncated":     func(v string) string { return v[:8] },
		"byte flipped":  func(v string) string { return strings.Repeat("A", len(v)) },
		"empty payload": func(string) string { return "" },
	} {
		t.Run(name, func(t *testing.T) {
			stored, err := kv.Get(ctx, flagsKey)
			require.NoError(t, err)
			require.NoError(t, kv.Set(ctx, flagsKey, mutate(stored)))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)

			// Restore for the next subtest.
			require.NoError(t, kv.Set(ctx, flagsKey, stored))
		})
	}
}

func TestEncryptedClearRetainsKeyIdentifier(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := NewEncrypted(kv)
	require.NoError(t, s.Save(ctx, sampleFlags()))

	idBefore, err := kv.Get(ctx, keyIDKey)
	require.NoError(t, err)
	require.NotEmpty(t, idBefore)

	require.NoError(t, s.Clear(ctx))

	_, err = kv.Get(ctx, flagsKey)
	assert.ErrorIs(t, err, ErrNotFound)

	idAfter, err := kv.Get(ctx, keyIDKey)
	require.NoError(t, err)
	assert.Equal(t, idBefore, idAfter)
}

func TestEncryptedNewAdapterReusesIdentifier(t *testing.T) {
	// A fresh adapter over the same storage must derive the same key and read
	// what a previous one wrote.
	ctx := context.Background()
	kv := NewMemoryKV()
	want := sampleFlags()
	require.NoError(t, NewEncrypted(kv).Save(ctx, want))

	got, err := NewEncrypted(kv).Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestEncryptFreshIVPerWrite(t *testing.T) {
	key := make([]byte, keyLen)
	a, err := encrypt(key, []byte("payload"))
	require.NoError(t, err)
	b, err := encrypt(key, []byte("payload"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPKCS7Unpad(t *testing.T) {
	for name, data := range map[string][]byte{
		"zero pad byte":    append([]byte("0123456789abcde"), 0),
		"pad over block":   append(make([]byte, 15), 17),
		"inconsistent pad": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 3, 2},
		"unaligned length": {1, 2, 3},
		"empty input":      {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := pkcs7Unpad(data, 16)
			assert.Error(t, err)
		})
	}

	padded := pkcs7Pad([]byte("hello"), 16)
	require.Len(t, padded, 16)
	got, err := pkcs7Unpad(padded, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}
