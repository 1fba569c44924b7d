package main

import (
	"encoding/binary"
	"io"

	"github.com/zecs-dev/zecs/ecs"
	"github.com/zecs-dev/zecs/ecs/snapshot"
)

// positionFormatterV2 is the latest Position formatter: X, Y, Layer as
// three little-endian fields.
type positionFormatterV2 struct{}

func (positionFormatterV2) FormatterVersion() uint16 { return 2 }

func (positionFormatterV2) WriteValue(w io.Writer, v Position) error {
	if err := binary.Write(w, binary.LittleEndian, v.X); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, v.Y); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, v.Layer)
}

func (positionFormatterV2) ReadValue(r io.Reader, version uint16) (Position, error) {
	var v Position
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

// positionFormatterV1 reads the pre-Layer payload (just X, Y) and returns a
// Position with Layer left at its zero value; assignDefaultLayerMigration
// fixes that up afterward. It is never used to write new snapshots.
type positionFormatterV1 struct{}

func (positionFormatterV1) FormatterVersion() uint16 { return 1 }

func (positionFormatterV1) WriteValue(w io.Writer, v Position) error {
	var legacy legacyPositionV1
	legacy.X, legacy.Y = v.X, v.Y
	if err := binary.Write(w, binary.LittleEndian, legacy.X); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, legacy.Y)
}

func (positionFormatterV1) ReadValue(r io.Reader, version uint16) (Position, error) {
	var legacy legacyPositionV1
	if err := binary.Read(r, binary.LittleEndian, &legacy.X); err != nil {
		return Position{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &legacy.Y); err != nil {
		return Position{}, err
	}
	return Position{X: legacy.X, Y: legacy.Y}, nil
}

var velocityFormatter = snapshot.BinaryFormatter[Velocity]{Version: 1}
var healthFormatter = snapshot.BinaryFormatter[Health]{Version: 1}

func registerFormatters() {
	snapshot.Register(PositionComponent, positionFormatterV2{})
	snapshot.RegisterLegacy(PositionComponent, positionFormatterV1{})
	snapshot.Register(VelocityComponent, velocityFormatter)
	snapshot.Register(HealthComponent, healthFormatter)
}

// assignDefaultLayerMigration sets Layer = 1 on every Position loaded with
// Layer still at its legacy zero value (the V1→V2 conversion). Order 0 runs
// before any later migration a host might register.
type assignDefaultLayerMigration struct{}

func (assignDefaultLayerMigration) Order() int { return 0 }

func (assignDefaultLayerMigration) Apply(w *ecs.World) error {
	errs := w.Write(func(b *ecs.CommandBuffer) {
		for e, pos := range ecs.Query1(w, PositionComponent) {
			if pos.Layer == 0 {
				ecs.ReplaceComponent(b, e, PositionComponent, Position{X: pos.X, Y: pos.Y, Layer: 1})
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
