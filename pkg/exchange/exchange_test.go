package exchange

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []Record{
		{Service: "github.com", Username: "octocat", Password: "hunter2", CreatedAt: now, UpdatedAt: now},
		{Service: "example.org", Username: "alice", Password: "correct horse", CreatedAt: now.Add(-time.Hour), UpdatedAt: now},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	records := sampleRecords()
	passphrase := []byte("export-passphrase")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, passphrase, records))

	got, err := Read(bytes.NewReader(buf.Bytes()), passphrase)
	require.NoError(t, err)
	require.Len(t, got, len(records))
	assert.Equal(t, records, got)
}

func TestReadWrongPassphrase(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []byte("right"), sampleRecords()))

	_, err := Read(bytes.NewReader(buf.Bytes()), []byte("wrong"))
	require.Error(t, err)
}

func TestReadTamperedCiphertext(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []byte("passphrase"), sampleRecords()))

	data := buf.Bytes()
	// Flip a bit in the middle of the file, inside the ciphertext.
	data[len(data)/2] ^= 0x01

	_, err := Read(bytes.NewReader(data), []byte("passphrase"))
	assert.ErrorIs(t, err, ErrIntegrityFailed)
}

func TestReadTamperedHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []byte("passphrase"), sampleRecords()))

	data := buf.Bytes()
	// The record count lives in the JSON header right after the magic.
	idx := bytes.Index(data, []byte(`"record_count":2`))
	require.GreaterOrEqual(t, idx, 0)
	copy(data[idx:], []byte(`"record_count":9`))

	_, err := Read(bytes.NewReader(data), []byte("passphrase"))
	assert.ErrorIs(t, err, ErrIntegrityFailed)
}

func TestReadInvalidMagic(t *testing.T) {
	data := append([]byte("NOT_MAGIC"), make([]byte, 64)...)
	_, err := Read(bytes.NewReader(data), []byte("passphrase"))
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestReadTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []byte("passphrase"), sampleRecords()))

	_, err := Read(bytes.NewReader(buf.Bytes()[:16]), []byte("passphrase"))
	require.Error(t, err)
}

func TestWriteEmptyPassphrase(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, nil, sampleRecords())
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestWriteEmptyRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []byte("passphrase"), []Record{}))

	got, err := Read(bytes.NewReader(buf.Bytes()), []byte("passphrase"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHeaderVersionRejected(t *testing.T) {
	var buf bytes.Buffer
	header := &Header{Version: FormatVersion + 1, CreatedAt: time.Now().UTC()}
	require.NoError(t, WriteHeader(&buf, header))

	_, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}
