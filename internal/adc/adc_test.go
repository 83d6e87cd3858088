package adc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIIOReaderReadRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in_voltage0_raw")
	require.NoError(t, os.WriteFile(path, []byte("2457\n"), 0o600))

	v, err := NewIIOReader(path).ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, 2457, v)
}

func TestIIOReaderMissingFile(t *testing.T) {
	_, err := NewIIOReader(filepath.Join(t.TempDir(), "missing")).ReadRaw()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read adc")
}

func TestIIOReaderGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in_voltage0_raw")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number"), 0o600))

	_, err := NewIIOReader(path).ReadRaw()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse adc value")
}

func TestFakeReader(t *testing.T) {
	f := NewFakeReader(100, 200)

	for _, want := range []int{100, 200, 200} {
		v, err := f.ReadRaw()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.Equal(t, 3, f.Reads)
}

func TestFakeReaderErrors(t *testing.T) {
	_, err := NewFakeReader().ReadRaw()
	assert.Error(t, err)

	f := NewFakeReader(1)
	f.ReadError = errors.New("simulated error")
	_, err = f.ReadRaw()
	assert.EqualError(t, err, "simulated error")
}
