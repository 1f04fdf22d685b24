package volume

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/banshee-data/clutter/internal/fsutil"
	"github.com/banshee-data/clutter/internal/monitoring"
)

const (
	fileMagic   = "CLUTTERVOL"
	fileVersion = 1
)

// fileHeader precedes the volume in every container.
type fileHeader struct {
	Magic   string
	Version int
}

// Codec reads and writes volume containers.
type Codec struct {
	FS fsutil.FileSystem
}

// NewCodec returns a codec on the host filesystem.
func NewCodec() *Codec {
	return &Codec{FS: fsutil.OSFileSystem{}}
}

func (c *Codec) fs() fsutil.FileSystem {
	if c.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return c.FS
}

// Read implements Reader. Every failure, including a missing file, comes
// back as a *CorruptFileError.
func (c *Codec) Read(path string) (*Volume, error) {
	f, err := c.fs().Open(path)
	if err != nil {
		return nil, &CorruptFileError{Path: path, Reason: err}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, &CorruptFileError{Path: path, Reason: fmt.Errorf("gzip: %w", err)}
	}
	defer gz.Close()

	dec := gob.NewDecoder(gz)
	var hdr fileHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, &CorruptFileError{Path: path, Reason: fmt.Errorf("decode header: %w", err)}
	}
	if hdr.Magic != fileMagic {
		return nil, &CorruptFileError{Path: path, Reason: fmt.Errorf("bad magic %q", hdr.Magic)}
	}
	if hdr.Version != fileVersion {
		return nil, &CorruptFileError{Path: path, Reason: fmt.Errorf("unsupported version %d", hdr.Version)}
	}

	var v Volume
	if err := dec.Decode(&v); err != nil {
		return nil, &CorruptFileError{Path: path, Reason: fmt.Errorf("decode volume: %w", err)}
	}
	if v.Fields == nil {
		v.Fields = make(map[string]*Field)
	}
	if _, err := v.Shape(); err != nil {
		return nil, &CorruptFileError{Path: path, Reason: err}
	}
	return &v, nil
}

// Write implements Writer.
func (c *Codec) Write(path string, v *Volume) (err error) {
	if v == nil {
		return errors.New("write volume: nil volume")
	}
	if _, err := v.Shape(); err != nil {
		return fmt.Errorf("write volume %s: %w", path, err)
	}

	w, err := c.fs().Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	gz := gzip.NewWriter(w)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(fileHeader{Magic: fileMagic, Version: fileVersion}); err != nil {
		gz.Close()
		return fmt.Errorf("encode header: %w", err)
	}
	if err := enc.Encode(v); err != nil {
		gz.Close()
		return fmt.Errorf("encode volume: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	monitoring.Logf("wrote volume %s (%d fields)", path, len(v.Fields))
	return nil
}

// ReflectivityOf extracts the named field's data from v, or fails with a
// *CorruptFileError when the field is absent.
func ReflectivityOf(path string, v *Volume, name string) (*Field, error) {
	f, ok := v.Field(name)
	if !ok || f.Data == nil {
		return nil, &CorruptFileError{Path: path, Reason: fmt.Errorf("no %q field", name)}
	}
	return f, nil
}
