package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zecs-dev/zecs/ecs"
)

// Load replaces w's entire state with the one encoded in in. On a decode
// error w is left exactly as it was before the call: decoding happens into
// local buffers first, and only a fully-decoded stream is applied to w.
// Post-load migrations run after w has been replaced; if one fails, Load
// returns its error with w holding the loaded state and any changes the
// earlier migrations made, and the pre-load state is not restored.
func Load(w *ecs.World, in io.Reader) error {
	header := make([]byte, 8)
	if _, err := io.ReadFull(in, header); err != nil {
		return snapshotFormatErr("read header: %v", err)
	}
	if string(header[0:4]) != magic {
		return snapshotFormatErr("bad magic %q", header[0:4])
	}
	version := binary.LittleEndian.Uint16(header[4:6])
	if version != formatVersion {
		return snapshotFormatErr("unsupported format version %d", version)
	}
	flags := header[6]

	var headerLenBuf [4]byte
	if _, err := io.ReadFull(in, headerLenBuf[:]); err != nil {
		return snapshotFormatErr("read world_header_len: %v", err)
	}
	headerLen := binary.LittleEndian.Uint32(headerLenBuf[:])
	worldHeader := make([]byte, headerLen)
	if _, err := io.ReadFull(in, worldHeader); err != nil {
		return snapshotFormatErr("read world header: %v", err)
	}
	st, err := decodeWorldHeader(worldHeader)
	if err != nil {
		return snapshotFormatErr("decode world header: %v", err)
	}

	type loadedChunk struct {
		typeID  ecs.TypeID
		values  map[uint32]any
	}
	var chunks []loadedChunk

	for {
		var idLen uint16
		if err := binary.Read(in, binary.LittleEndian, &idLen); err != nil {
			return snapshotFormatErr("read stable_id_len: %v", err)
		}
		if idLen == endMarker {
			break
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(in, idBytes); err != nil {
			return snapshotFormatErr("read stable_id: %v", err)
		}
		typeID := ecs.TypeID(idBytes)

		var chunkVersion uint16
		if err := binary.Read(in, binary.LittleEndian, &chunkVersion); err != nil {
			return snapshotFormatErr("read formatter_version: %v", err)
		}
		var count uint32
		if err := binary.Read(in, binary.LittleEndian, &count); err != nil {
			return snapshotFormatErr("read count: %v", err)
		}
		var payloadLen uint64
		if err := binary.Read(in, binary.LittleEndian, &payloadLen); err != nil {
			return snapshotFormatErr("read payload_len: %v", err)
		}

		box, ok := lookupVersion(typeID, chunkVersion)
		if !ok {
			if flags&FlagIgnoreUnknown != 0 {
				if _, err := io.CopyN(io.Discard, in, int64(payloadLen)); err != nil {
					return snapshotFormatErr("skip unknown chunk %q: %v", typeID, err)
				}
				continue
			}
			return &ecs.Error{Kind: ecs.ErrUnknownComponent, Message: fmt.Sprintf("unregistered component stable id %q", typeID)}
		}

		limited := io.LimitReader(in, int64(payloadLen))
		values := make(map[uint32]any, count)
		for i := uint32(0); i < count; i++ {
			var entityID uint32
			if err := binary.Read(limited, binary.LittleEndian, &entityID); err != nil {
				return snapshotFormatErr("read entity id in chunk %q: %v", typeID, err)
			}
			v, err := box.readBoxed(limited, chunkVersion)
			if err != nil {
				return snapshotFormatErr("decode value in chunk %q: %v", typeID, err)
			}
			values[entityID] = v
		}
		// Advance past any bytes the formatter didn't consume, so the next
		// chunk header is read from the right offset regardless of exact
		// formatter byte-accounting.
		if _, err := io.Copy(io.Discard, limited); err != nil {
			return snapshotFormatErr("drain chunk %q payload: %v", typeID, err)
		}
		chunks = append(chunks, loadedChunk{typeID: typeID, values: values})
	}

	// Everything decoded successfully; now mutate w.
	w.ClearForLoad()
	w.RestoreEntityTable(st)
	for _, c := range chunks {
		for id, v := range c.values {
			gen := w.GenerationOf(id)
			if gen == 0 {
				continue
			}
			e := ecs.EntityFromParts(id, gen)
			ecs.RestoreComponentBoxed(w, e, c.typeID, v)
		}
	}
	w.RebuildSingletonOwners()

	for _, m := range sortedMigrations() {
		if err := m.Apply(w); err != nil {
			return fmt.Errorf("snapshot: post-load migration failed: %w", err)
		}
	}
	return nil
}

func decodeWorldHeader(data []byte) (ecs.EntityTableState, error) {
	r := &byteReader{data: data}
	var nextID, aliveCount uint32
	if err := r.readU32(&nextID); err != nil {
		return ecs.EntityTableState{}, err
	}
	if err := r.readU32(&aliveCount); err != nil {
		return ecs.EntityTableState{}, err
	}
	slotCount := nextID
	generations := make([]uint32, slotCount)
	for i := range generations {
		if err := r.readU32(&generations[i]); err != nil {
			return ecs.EntityTableState{}, err
		}
	}
	var freeCount uint32
	if err := r.readU32(&freeCount); err != nil {
		return ecs.EntityTableState{}, err
	}
	freeList := make([]uint32, freeCount)
	for i := range freeList {
		if err := r.readU32(&freeList[i]); err != nil {
			return ecs.EntityTableState{}, err
		}
	}
	words := (int(slotCount) + 63) / 64
	bits := make([]uint64, words)
	for i := range bits {
		if err := r.readU64(&bits[i]); err != nil {
			return ecs.EntityTableState{}, err
		}
	}
	alive := make([]bool, slotCount)
	for i := range alive {
		alive[i] = bits[i/64]&(1<<uint(i%64)) != 0
	}
	return ecs.EntityTableState{Generations: generations, Alive: alive, FreeList: freeList}, nil
}

type byteReader struct {
	data []byte
	off  int
}

func (r *byteReader) readU32(out *uint32) error {
	if r.off+4 > len(r.data) {
		return fmt.Errorf("world header truncated")
	}
	*out = binary.LittleEndian.Uint32(r.data[r.off : r.off+4])
	r.off += 4
	return nil
}

func (r *byteReader) readU64(out *uint64) error {
	if r.off+8 > len(r.data) {
		return fmt.Errorf("world header truncated")
	}
	*out = binary.LittleEndian.Uint64(r.data[r.off : r.off+8])
	r.off += 8
	return nil
}

func snapshotFormatErr(format string, args ...any) error {
	return &ecs.Error{Kind: ecs.ErrSnapshotFormat, Message: fmt.Sprintf(format, args...)}
}
