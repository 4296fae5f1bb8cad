package inspector

import (
	"encoding/binary"
	"fmt"

	"github.com/minio/highwayhash"

	"github.com/embervm/stackwalk-go/stackwalk"
)

var fingerprintKey = [32]byte{}

// Fingerprint returns a stable 64-bit identity for a walked stack, hashing
// the instruction pointer of every frame, top frame first. Two stacks with
// the same PC sequence fingerprint identically across sessions and
// processes with the same code layout.
func Fingerprint(frames []*stackwalk.Frame) (uint64, error) {
	hasher, err := highwayhash.New64(fingerprintKey[:])
	if err != nil {
		return 0, fmt.Errorf("failed to create hasher: %w", err)
	}
	var buf [8]byte
	for _, frame := range frames {
		binary.LittleEndian.PutUint64(buf[:], uint64(frame.InstructionPointer))
		if _, err := hasher.Write(buf[:]); err != nil {
			return 0, fmt.Errorf("failed to hash frame: %w", err)
		}
	}
	return hasher.Sum64(), nil
}
