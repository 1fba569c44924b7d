package snapshot_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecs-dev/zecs/ecs"
	"github.com/zecs-dev/zecs/ecs/snapshot"
)

type snapPosition struct {
	X, Y  float64
	Layer int32
}

type snapVelocity struct {
	X, Y float64
}

var (
	snapPositionComponent = ecs.Register[snapPosition]("snapshot_test.position")
	snapVelocityComponent = ecs.Register[snapVelocity]("snapshot_test.velocity")
)

type snapPositionFormatterV2 struct{}

func (snapPositionFormatterV2) FormatterVersion() uint16 { return 2 }

func (snapPositionFormatterV2) WriteValue(w io.Writer, v snapPosition) error {
	if err := binary.Write(w, binary.LittleEndian, v.X); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, v.Y); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, v.Layer)
}

func (snapPositionFormatterV2) ReadValue(r io.Reader, version uint16) (snapPosition, error) {
	var v snapPosition
	if err := binary.Read(r, binary.LittleEndian, &v.X); err != nil {
		return v, err
	}
	if err := binary.Read(r, binary.LittleEndian, &v.Y); err != nil {
		return v, err
	}
	if err := binary.Read(r, binary.LittleEndian, &v.Layer); err != nil {
		return v, err
	}
	return v, nil
}

func init() {
	snapshot.Register(snapPositionComponent, snapPositionFormatterV2{})
	snapshot.Register(snapVelocityComponent, snapshot.BinaryFormatter[snapVelocity]{Version: 1})

	snapshot.Register(legacyProbeComponent, legacyProbeFormatterV2{})
	snapshot.RegisterLegacy(legacyProbeComponent, legacyProbeFormatterV1{})
	snapshot.RegisterMigration(legacyProbeMigration{})
}

// legacyProbe exercises the legacy-formatter decode path directly: its V1
// wire shape (int16) differs from its V2/latest shape (int32), and
// legacyProbeFormatterV1.ReadValue tags every value it decodes by adding
// legacyProbeMigrationOffset, so a test can tell whether a chunk was
// actually routed through the legacy formatter rather than the latest one.
type legacyProbe struct {
	N int32
}

const legacyProbeMigrationOffset = 1000

var legacyProbeComponent = ecs.Register[legacyProbe]("snapshot_test.legacyprobe")

type legacyProbeFormatterV2 struct{}

func (legacyProbeFormatterV2) FormatterVersion() uint16 { return 2 }

func (legacyProbeFormatterV2) WriteValue(w io.Writer, v legacyProbe) error {
	return binary.Write(w, binary.LittleEndian, v.N)
}

func (legacyProbeFormatterV2) ReadValue(r io.Reader, version uint16) (legacyProbe, error) {
	var v legacyProbe
	err := binary.Read(r, binary.LittleEndian, &v.N)
	return v, err
}

// legacyProbeFormatterV1 reads the pre-widening int16 payload legacy
// snapshots stored this component as.
type legacyProbeFormatterV1 struct{}

func (legacyProbeFormatterV1) FormatterVersion() uint16 { return 1 }

func (legacyProbeFormatterV1) WriteValue(w io.Writer, v legacyProbe) error {
	return binary.Write(w, binary.LittleEndian, int16(v.N))
}

func (legacyProbeFormatterV1) ReadValue(r io.Reader, version uint16) (legacyProbe, error) {
	var n16 int16
	if err := binary.Read(r, binary.LittleEndian, &n16); err != nil {
		return legacyProbe{}, err
	}
	return legacyProbe{N: int32(n16) + legacyProbeMigrationOffset}, nil
}

// legacyProbeMigration converts legacyProbeFormatterV1's tagged values back
// down to their real N, the same role assignDefaultLayerMigration plays for
// Position.Layer in cmd/zecsdemo.
type legacyProbeMigration struct{}

func (legacyProbeMigration) Order() int { return 100 }

func (legacyProbeMigration) Apply(w *ecs.World) error {
	errs := w.Write(func(b *ecs.CommandBuffer) {
		for e, v := range ecs.Query1(w, legacyProbeComponent) {
			if v.N >= legacyProbeMigrationOffset {
				ecs.ReplaceComponent(b, e, legacyProbeComponent, legacyProbe{N: v.N - legacyProbeMigrationOffset})
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// buildLegacyProbeStream hand-builds a complete snapshot stream carrying one
// entity (id 0, generation 1) and one legacyProbeComponent chunk written at
// formatter_version 1, exactly matching the wire layout ecs/snapshot/writer.go
// produces — this is the only way to put a true legacy-version chunk on the
// wire, since Save always writes at each type's latest registered version.
func buildLegacyProbeStream(t *testing.T, n16 int16) []byte {
	t.Helper()
	var buf bytes.Buffer

	header := make([]byte, 8)
	copy(header[0:4], "ZECS")
	binary.LittleEndian.PutUint16(header[4:6], 1) // formatVersion
	buf.Write(header)

	var worldHeader bytes.Buffer
	require.NoError(t, binary.Write(&worldHeader, binary.LittleEndian, uint32(1))) // nextID / slot count
	require.NoError(t, binary.Write(&worldHeader, binary.LittleEndian, uint32(1))) // aliveCount
	require.NoError(t, binary.Write(&worldHeader, binary.LittleEndian, uint32(1))) // generations[0]
	require.NoError(t, binary.Write(&worldHeader, binary.LittleEndian, uint32(0))) // freeCount
	require.NoError(t, binary.Write(&worldHeader, binary.LittleEndian, uint64(1))) // alive bitset word, bit 0 set

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(worldHeader.Len()))
	buf.Write(lenBuf)
	buf.Write(worldHeader.Bytes())

	idBytes := []byte(legacyProbeComponent.TypeID())
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(len(idBytes))))
	buf.Write(idBytes)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1))) // formatter_version
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1))) // count

	var payload bytes.Buffer
	require.NoError(t, binary.Write(&payload, binary.LittleEndian, uint32(0))) // entity id
	require.NoError(t, binary.Write(&payload, binary.LittleEndian, n16))

	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(payload.Len())))
	buf.Write(payload.Bytes())

	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(0))) // end marker
	return buf.Bytes()
}

func Test_Load_DecodesLegacyFormatterVersionAndMigrates(t *testing.T) {
	// Arrange
	stream := buildLegacyProbeStream(t, 42)
	w := ecs.NewWorld(ecs.DefaultWorldConfig())

	// Act
	err := snapshot.Load(w, bytes.NewReader(stream))

	// Assert
	require.NoError(t, err)
	e := ecs.EntityFromParts(0, 1)
	assert.True(t, w.IsAlive(e))
	assert.Equal(t, legacyProbe{N: 42}, ecs.ReadComponent(w, e, legacyProbeComponent))
}

func Test_SaveLoad_RoundTripsComponentValues(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	b := w.BeginWrite()
	provisional := b.CreateEntity()
	ecs.AddComponent(b, provisional, snapPositionComponent, snapPosition{X: 3, Y: 4, Layer: 2})
	ecs.AddComponent(b, provisional, snapVelocityComponent, snapVelocity{X: 1, Y: -1})
	require.Empty(t, b.End())
	e := b.Resolved(provisional)

	var buf bytes.Buffer
	require.NoError(t, snapshot.Save(w, &buf))

	// Act
	loaded := ecs.NewWorld(ecs.DefaultWorldConfig())
	err := snapshot.Load(loaded, &buf)

	// Assert
	require.NoError(t, err)
	assert.True(t, loaded.IsAlive(e))
	assert.Equal(t, snapPosition{X: 3, Y: 4, Layer: 2}, ecs.ReadComponent(loaded, e, snapPositionComponent))
	assert.Equal(t, snapVelocity{X: 1, Y: -1}, ecs.ReadComponent(loaded, e, snapVelocityComponent))
}

func Test_Load_RejectsBadMagic(t *testing.T) {
	// Arrange
	w := ecs.NewWorld(ecs.DefaultWorldConfig())
	buf := bytes.NewBufferString("not a snapshot stream at all")

	// Act
	err := snapshot.Load(w, buf)

	// Assert
	require.Error(t, err)
	var kerr *ecs.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, ecs.ErrSnapshotFormat, kerr.Kind)
}

func Test_Register_PanicsOnDuplicateLatest(t *testing.T) {
	// Arrange
	dup := ecs.Register[snapPosition]("snapshot_test.position.dup")
	snapshot.Register(dup, snapPositionFormatterV2{})

	// Act & Assert
	assert.Panics(t, func() {
		snapshot.Register(dup, snapPositionFormatterV2{})
	})
}
