package sidecar_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TinySum/sidecar"
)

const abc = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func TestFormat(t *testing.T) {
	t.Parallel()

	got := sidecar.Format(sidecar.Record{Digest: abc, Name: "abc.txt"})

	assert.Equal(t, abc+"  abc.txt\n", got)
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    sidecar.Record
		wantErr error
	}{
		{name: "two spaces", line: abc + "  abc.txt", want: sidecar.Record{Digest: abc, Name: "abc.txt"}},
		{name: "tab", line: abc + "\tdir/abc.txt", want: sidecar.Record{Digest: abc, Name: "dir/abc.txt"}},
		{name: "crlf", line: abc + "  abc.txt\r\n", want: sidecar.Record{Digest: abc, Name: "abc.txt"}},
		{name: "binary marker", line: abc + " *abc.txt", want: sidecar.Record{Digest: abc, Name: "abc.txt"}},
		{name: "upper case", line: strings.ToUpper(abc) + "  x", want: sidecar.Record{Digest: abc, Name: "x"}},
		{name: "name with spaces", line: abc + "  my file", want: sidecar.Record{Digest: abc, Name: "my file"}},
		{name: "no separator", line: abc, wantErr: sidecar.ErrMalformed},
		{name: "short digest", line: abc[:63] + "  x", wantErr: sidecar.ErrInvalidDigest},
		{name: "non hex", line: "g" + abc[1:] + "  x", wantErr: sidecar.ErrInvalidDigest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := sidecar.Parse(tt.line)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite_and_Read_roundtrip(t *testing.T) {
	t.Parallel()

	pa := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, sidecar.Write(pa, abc))

	raw, err := os.ReadFile(sidecar.Path(pa))
	require.NoError(t, err)
	assert.Equal(t, abc+"  data.bin\n", string(raw))

	rec, err := sidecar.Read(pa)
	require.NoError(t, err)
	assert.Equal(t, sidecar.Record{Digest: abc, Name: "data.bin"}, rec)
}

func TestRead_missing(t *testing.T) {
	t.Parallel()

	_, err := sidecar.Read(filepath.Join(t.TempDir(), "nope"))

	assert.ErrorIs(t, err, sidecar.ErrMissing)
}

func TestRead_empty(t *testing.T) {
	t.Parallel()

	pa := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(sidecar.Path(pa), nil, 0o600))

	_, err := sidecar.Read(pa)

	assert.ErrorIs(t, err, sidecar.ErrEmpty)
}

func TestReadList(t *testing.T) {
	t.Parallel()

	pa := filepath.Join(t.TempDir(), "hashes.sha256")
	content := abc + "  a\n\n" + abc + "\tb/c\n"
	require.NoError(t, os.WriteFile(pa, []byte(content), 0o600))

	recs, err := sidecar.ReadList(pa)

	require.NoError(t, err)
	assert.Equal(t, []sidecar.Record{{Digest: abc, Name: "a"}, {Digest: abc, Name: "b/c"}}, recs)
}

func TestReadList_bad_line(t *testing.T) {
	t.Parallel()

	pa := filepath.Join(t.TempDir(), "hashes.sha256")
	require.NoError(t, os.WriteFile(pa, []byte(abc+"  a\nbogus\n"), 0o600))

	_, err := sidecar.ReadList(pa)

	require.ErrorIs(t, err, sidecar.ErrMalformed)
	assert.Contains(t, err.Error(), "line 2")
}

func FuzzParse(f *testing.F) {
	f.Add(abc + "  name")
	f.Add("")
	f.Add("\t\r")

	f.Fuzz(func(t *testing.T, line string) {
		rec, err := sidecar.Parse(line)
		if err != nil {
			return
		}
		assert.Len(t, rec.Digest, sidecar.DigestLen)
	})
}
