// Package chunk splits files into fixed-size, content-hashed blocks and
// reassembles them, byte-for-byte, on the receiving side.
package chunk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/dannyzb/swarmshare/hashsum"
)

// Size is the fixed block size. Changing it breaks interoperation between
// peers that don't agree on the same value.
const Size = 1 << 20 // 1 MiB

// Descriptor describes one block of a split file.
type Descriptor struct {
	ChunkID   int
	ChunkName string
	Checksum  string
}

// Name is the pure function of (file, chunkID) used to name a block both
// on the wire and on disk. Any peer can derive any chunk's name the same
// way, without asking anyone.
func Name(file string, chunkID int) string {
	return fmt.Sprintf("%s.chunk%d", file, chunkID)
}

// Split reads file (resolved under dir) sequentially and writes each
// Size-byte block (the last one may be shorter) to dir/<file>.chunk<i>.
// It is idempotent: re-running over the same bytes overwrites each chunk
// file with identical content. A zero-byte file yields zero chunks.
func Split(dir, file string) ([]Descriptor, error) {
	src, err := os.Open(filepath.Join(dir, file))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", file)
	}
	defer src.Close()

	var descs []Descriptor
	buf := make([]byte, Size)
	for id := 0; ; id++ {
		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			block := buf[:n]
			name := Name(file, id)
			if err := os.WriteFile(filepath.Join(dir, name), block, 0o644); err != nil {
				return nil, errors.Wrapf(err, "writing %q", name)
			}
			descs = append(descs, Descriptor{
				ChunkID:   id,
				ChunkName: name,
				Checksum:  hashsum.Hash(block),
			})
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return nil, errors.Wrapf(readErr, "reading %q", file)
		}
	}
	return descs, nil
}

// Assemble concatenates dir/<file>.chunk0, .chunk1, ... in order into
// dir/<file>.assembled, stopping at the first missing index. It memory-maps
// each chunk file for the copy rather than reading it into a Go-managed
// buffer first.
func Assemble(dir, file string) (string, error) {
	outPath := filepath.Join(dir, file+".assembled")
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "creating %q", outPath)
	}
	defer out.Close()

	for id := 0; ; id++ {
		name := Name(file, id)
		path := filepath.Join(dir, name)
		if _, statErr := os.Stat(path); statErr != nil {
			break
		}
		if err := appendMapped(out, path); err != nil {
			return "", errors.Wrapf(err, "appending %q", name)
		}
	}
	return outPath, nil
}

func appendMapped(out *os.File, chunkPath string) error {
	f, err := os.Open(chunkPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return err
	}
	defer m.Unmap()

	_, err = out.Write(m)
	return err
}
