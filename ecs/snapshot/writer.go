package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zecs-dev/zecs/ecs"
)

// Save captures w's entire state — entity table, singleton ownership
// implicit in which entity holds which pool entry, and every registered,
// non-empty component type's pool — into out. Types with no registered
// formatter are skipped with no chunk written at all (nothing to round-trip
// them with); Save never fails for that reason alone.
func Save(w *ecs.World, out io.Writer) error {
	header := make([]byte, 8)
	copy(header[0:4], magic)
	binary.LittleEndian.PutUint16(header[4:6], formatVersion)
	var flags uint8
	if w.Config().IgnoreUnknownComponents {
		flags |= FlagIgnoreUnknown
	}
	header[6] = flags
	header[7] = 0

	worldHeader, err := encodeWorldHeader(w)
	if err != nil {
		return fmt.Errorf("snapshot: encode world header: %w", err)
	}
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(worldHeader)))

	if _, err := out.Write(header); err != nil {
		return err
	}
	if _, err := out.Write(lenBuf); err != nil {
		return err
	}
	if _, err := out.Write(worldHeader); err != nil {
		return err
	}

	for _, t := range ecs.ComponentTypeOrder(w) {
		if err := writeChunk(w, t, out); err != nil {
			return fmt.Errorf("snapshot: write chunk %q: %w", t, err)
		}
	}

	// End marker: stable_id_len = 0.
	return binary.Write(out, binary.LittleEndian, endMarker)
}

func encodeWorldHeader(w *ecs.World) ([]byte, error) {
	st := w.ExportEntityTable()
	var buf bytes.Buffer
	slotCount := uint32(len(st.Generations))
	nextID := slotCount

	if err := binary.Write(&buf, binary.LittleEndian, nextID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(w.AliveCount())); err != nil {
		return nil, err
	}
	for _, g := range st.Generations {
		if err := binary.Write(&buf, binary.LittleEndian, g); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(st.FreeList))); err != nil {
		return nil, err
	}
	for _, id := range st.FreeList {
		if err := binary.Write(&buf, binary.LittleEndian, id); err != nil {
			return nil, err
		}
	}
	words := (int(slotCount) + 63) / 64
	bits := make([]uint64, words)
	for i, alive := range st.Alive {
		if alive {
			bits[i/64] |= 1 << uint(i%64)
		}
	}
	for _, bw := range bits {
		if err := binary.Write(&buf, binary.LittleEndian, bw); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeChunk(w *ecs.World, t ecs.TypeID, out io.Writer) error {
	entries := ecs.PoolEntries(w, t)
	if len(entries) == 0 {
		return nil
	}
	box, ok := lookupLatest(t)
	if !ok {
		// No formatter registered for a populated type: no chunk is written,
		// so this type's values are not in the snapshot and a Load of it
		// leaves the type's pool empty.
		return nil
	}

	var payload bytes.Buffer
	for _, e := range entries {
		if err := binary.Write(&payload, binary.LittleEndian, uint32(e.Entity.ID())); err != nil {
			return err
		}
		if err := box.writeBoxed(&payload, e.Value); err != nil {
			return err
		}
	}

	idBytes := []byte(t)
	if len(idBytes) > 0xFFFF {
		return fmt.Errorf("stable id %q exceeds 65535 bytes", t)
	}
	if err := binary.Write(out, binary.LittleEndian, uint16(len(idBytes))); err != nil {
		return err
	}
	if _, err := out.Write(idBytes); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, box.latestVersion()); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, uint64(payload.Len())); err != nil {
		return err
	}
	_, err := out.Write(payload.Bytes())
	return err
}
